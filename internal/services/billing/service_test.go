package billing

import (
	"context"
	"errors"
	"strings"
	"testing"

	tginfra "github.com/dkoval/starcade/internal/infra/telegram"
	pgrepo "github.com/dkoval/starcade/internal/repo/postgres"
)

type stubProductStore struct {
	products map[string]pgrepo.ProductRecord
	stickers map[string]pgrepo.ProductRecord
}

func (s stubProductStore) FindPurchasable(_ context.Context, productID string) (pgrepo.ProductRecord, error) {
	product, ok := s.products[productID]
	if !ok {
		return pgrepo.ProductRecord{}, pgrepo.ErrProductNotFound
	}
	return product, nil
}

func (s stubProductStore) FindStickerPack(_ context.Context, packID string) (pgrepo.ProductRecord, error) {
	pack, ok := s.stickers[packID]
	if !ok {
		return pgrepo.ProductRecord{}, pgrepo.ErrProductNotFound
	}
	return pack, nil
}

type stubFulfillmentStore struct {
	outcome pgrepo.FulfillOutcome
	err     error
	applied []pgrepo.FulfillParams
}

func (s *stubFulfillmentStore) Apply(_ context.Context, p pgrepo.FulfillParams) (pgrepo.FulfillOutcome, error) {
	s.applied = append(s.applied, p)
	if s.err != nil {
		return "", s.err
	}
	return s.outcome, nil
}

type stubInvoiceClient struct {
	link        string
	err         error
	lastInvoice tginfra.InvoiceLinkParams
	preCheckout []string
}

func (s *stubInvoiceClient) CreateInvoiceLink(_ context.Context, p tginfra.InvoiceLinkParams) (string, error) {
	s.lastInvoice = p
	if s.err != nil {
		return "", s.err
	}
	return s.link, nil
}

func (s *stubInvoiceClient) AnswerPreCheckout(_ context.Context, queryID string, ok bool, errorMessage string) error {
	if !ok || errorMessage != "" {
		return errors.New("unexpected rejection")
	}
	s.preCheckout = append(s.preCheckout, queryID)
	return nil
}

type stubImageResolver struct {
	url string
}

func (s stubImageResolver) ResolveURL(_ context.Context, _ string) (string, error) {
	return s.url, nil
}

func newTestService(products stubProductStore, fulfillments *stubFulfillmentStore, provider *stubInvoiceClient) *Service {
	deps := Dependencies{
		Products:     products,
		Fulfillments: fulfillments,
		Images:       stubImageResolver{url: "https://cdn.test/img.png"},
	}
	if provider != nil {
		deps.Provider = provider
	}
	svc := NewService(deps)
	svc.SetNonceFunc(func() string { return "fixed-nonce" })
	return svc
}

func TestCreateInvoiceBuildsStarsInvoice(t *testing.T) {
	provider := &stubInvoiceClient{link: "https://t.me/invoice/abc"}
	svc := newTestService(stubProductStore{
		products: map[string]pgrepo.ProductRecord{
			"coins_500": {
				ID:       "coins_500",
				Kind:     KindCoins,
				Title:    "500 Coins",
				PriceUSD: 0.10,
				Amount:   500,
				ImageKey: "catalog/coins_500.png",
			},
		},
	}, &stubFulfillmentStore{}, provider)

	result, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		UserID:    424242,
		ProductID: "coins_500",
		Kind:      KindCoins,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if result.InvoiceURL != "https://t.me/invoice/abc" {
		t.Fatalf("unexpected invoice url: %q", result.InvoiceURL)
	}
	if result.Stars != 12 {
		t.Fatalf("unexpected stars: got %d want 12", result.Stars)
	}
	if provider.lastInvoice.Currency != "XTR" {
		t.Fatalf("unexpected currency: %q", provider.lastInvoice.Currency)
	}
	if provider.lastInvoice.PhotoURL != "https://cdn.test/img.png" {
		t.Fatalf("photo url not resolved: %q", provider.lastInvoice.PhotoURL)
	}
	if want := "v1:coins:424242:fixed-nonce:coins_500"; result.Payload != want {
		t.Fatalf("unexpected payload: got %q want %q", result.Payload, want)
	}
}

func TestCreateInvoiceStickerUsesCoinPrice(t *testing.T) {
	provider := &stubInvoiceClient{link: "https://t.me/invoice/sticker"}
	svc := newTestService(stubProductStore{
		stickers: map[string]pgrepo.ProductRecord{
			"pack_halloween": {
				ID:       "pack_halloween",
				Kind:     KindSticker,
				Title:    "Halloween Pack",
				PriceUSD: 250,
				Amount:   1,
			},
		},
	}, &stubFulfillmentStore{}, provider)

	result, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		UserID:    7,
		ProductID: "pack_halloween",
		Kind:      KindSticker,
	})
	if err != nil {
		t.Fatalf("create sticker invoice: %v", err)
	}

	// 250 coins at $0.001/coin is $0.25, which is 29 stars rounded up.
	if result.Stars != 29 {
		t.Fatalf("unexpected sticker stars: got %d want 29", result.Stars)
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	provider := &stubInvoiceClient{link: "https://t.me/invoice/x"}
	svc := newTestService(stubProductStore{}, &stubFulfillmentStore{}, provider)

	if _, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{UserID: 0, ProductID: "p", Kind: KindCoins}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero user, got %v", err)
	}
	if _, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{UserID: 7, ProductID: " ", Kind: KindCoins}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank product, got %v", err)
	}
	if _, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{UserID: 7, ProductID: "p", Kind: "mystery"}); !errors.Is(err, ErrUnsupportedKind) {
		t.Fatalf("expected ErrUnsupportedKind, got %v", err)
	}
	if _, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{UserID: 7, ProductID: "missing", Kind: KindCoins}); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestCreateInvoiceWithoutProvider(t *testing.T) {
	svc := newTestService(stubProductStore{}, &stubFulfillmentStore{}, nil)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		UserID:    7,
		ProductID: "coins_500",
		Kind:      KindCoins,
	})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestApprovePreCheckout(t *testing.T) {
	provider := &stubInvoiceClient{}
	svc := newTestService(stubProductStore{}, &stubFulfillmentStore{}, provider)

	if err := svc.ApprovePreCheckout(context.Background(), "query-1"); err != nil {
		t.Fatalf("approve pre-checkout: %v", err)
	}
	if len(provider.preCheckout) != 1 || provider.preCheckout[0] != "query-1" {
		t.Fatalf("pre-checkout not answered: %v", provider.preCheckout)
	}

	if err := svc.ApprovePreCheckout(context.Background(), "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank query id, got %v", err)
	}
}

func TestFulfillApplied(t *testing.T) {
	fulfillments := &stubFulfillmentStore{outcome: pgrepo.OutcomeApplied}
	svc := newTestService(stubProductStore{}, fulfillments, &stubInvoiceClient{})

	result, err := svc.Fulfill(context.Background(), FulfillInput{
		Payload:   "v1:coins:424242:nonce-1:coins_500",
		ChargeID:  "charge-1",
		PaidStars: 12,
		Currency:  "XTR",
	})
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	if result.Outcome != pgrepo.OutcomeApplied {
		t.Fatalf("unexpected outcome: %q", result.Outcome)
	}
	if result.UserID != 424242 || result.ProductID != "coins_500" || result.Kind != KindCoins {
		t.Fatalf("unexpected fulfill result: %+v", result)
	}
	if len(fulfillments.applied) != 1 {
		t.Fatalf("expected one apply call, got %d", len(fulfillments.applied))
	}
	if fulfillments.applied[0].ChargeID != "charge-1" {
		t.Fatalf("unexpected charge id: %q", fulfillments.applied[0].ChargeID)
	}
}

func TestFulfillDuplicateOutcome(t *testing.T) {
	fulfillments := &stubFulfillmentStore{outcome: pgrepo.OutcomeDuplicate}
	svc := newTestService(stubProductStore{}, fulfillments, &stubInvoiceClient{})

	result, err := svc.Fulfill(context.Background(), FulfillInput{
		Payload:  "v1:coins:7:n:coins_500",
		ChargeID: "charge-dup",
	})
	if err != nil {
		t.Fatalf("fulfill duplicate: %v", err)
	}
	if result.Outcome != pgrepo.OutcomeDuplicate {
		t.Fatalf("unexpected outcome: %q", result.Outcome)
	}
}

func TestFulfillUnknownKindGoesToReview(t *testing.T) {
	fulfillments := &stubFulfillmentStore{outcome: pgrepo.OutcomeReview}
	svc := newTestService(stubProductStore{}, fulfillments, &stubInvoiceClient{})

	result, err := svc.Fulfill(context.Background(), FulfillInput{
		Payload:   "v1:mystery-box:7:nonce-1:prod-1",
		ChargeID:  "charge-review",
		PaidStars: 5,
	})
	if err != nil {
		t.Fatalf("unknown kind must not fail fulfillment: %v", err)
	}

	if result.Outcome != pgrepo.OutcomeReview {
		t.Fatalf("unexpected outcome: got %q want %q", result.Outcome, pgrepo.OutcomeReview)
	}
	if len(fulfillments.applied) != 1 {
		t.Fatalf("expected one apply call, got %d", len(fulfillments.applied))
	}
	if fulfillments.applied[0].Kind != "mystery-box" {
		t.Fatalf("kind not forwarded to storage: %q", fulfillments.applied[0].Kind)
	}
}

func TestFulfillMalformedPayload(t *testing.T) {
	svc := newTestService(stubProductStore{}, &stubFulfillmentStore{}, &stubInvoiceClient{})

	_, err := svc.Fulfill(context.Background(), FulfillInput{
		Payload:  "garbage",
		ChargeID: "charge-2",
	})
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestFulfillMissingChargeID(t *testing.T) {
	svc := newTestService(stubProductStore{}, &stubFulfillmentStore{}, &stubInvoiceClient{})

	_, err := svc.Fulfill(context.Background(), FulfillInput{
		Payload: "v1:coins:7:n:coins_500",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestFulfillVanishedProduct(t *testing.T) {
	fulfillments := &stubFulfillmentStore{err: pgrepo.ErrProductNotFound}
	svc := newTestService(stubProductStore{}, fulfillments, &stubInvoiceClient{})

	_, err := svc.Fulfill(context.Background(), FulfillInput{
		Payload:  "v1:coins:7:n:coins_gone",
		ChargeID: "charge-3",
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "coins_gone") {
		t.Fatalf("error should name the product: %v", err)
	}
}
