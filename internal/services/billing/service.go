package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	tginfra "github.com/dkoval/starcade/internal/infra/telegram"
	pgrepo "github.com/dkoval/starcade/internal/repo/postgres"
)

const (
	KindCoins   = "coins"
	KindSpins   = "spins"
	KindSticker = "sticker-purchase"
)

const starsCurrency = "XTR"

var (
	ErrValidation          = errors.New("validation error")
	ErrUnsupportedKind     = errors.New("unsupported purchase kind")
	ErrMalformedPayload    = errors.New("malformed invoice payload")
	ErrProductNotFound     = errors.New("product not found")
	ErrProviderUnavailable = errors.New("payment provider is not configured")
)

func IsKnownKind(kind string) bool {
	switch kind {
	case KindCoins, KindSpins, KindSticker:
		return true
	default:
		return false
	}
}

type ProductStore interface {
	FindPurchasable(ctx context.Context, productID string) (pgrepo.ProductRecord, error)
	FindStickerPack(ctx context.Context, packID string) (pgrepo.ProductRecord, error)
}

type FulfillmentStore interface {
	Apply(ctx context.Context, p pgrepo.FulfillParams) (pgrepo.FulfillOutcome, error)
}

type InvoiceClient interface {
	CreateInvoiceLink(ctx context.Context, p tginfra.InvoiceLinkParams) (string, error)
	AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error
}

type ImageResolver interface {
	ResolveURL(ctx context.Context, imageKey string) (string, error)
}

type Dependencies struct {
	Products     ProductStore
	Fulfillments FulfillmentStore
	Provider     InvoiceClient
	Images       ImageResolver
	Logger       *zap.Logger
}

type Service struct {
	products     ProductStore
	fulfillments FulfillmentStore
	provider     InvoiceClient
	images       ImageResolver
	logger       *zap.Logger
	newNonce     func() string
}

type CreateInvoiceInput struct {
	UserID    int64
	ProductID string
	Kind      string
}

type CreateInvoiceResult struct {
	InvoiceURL string
	Stars      int64
	Payload    string
}

type FulfillInput struct {
	Payload   string
	ChargeID  string
	PaidStars int64
	Currency  string
}

type FulfillResult struct {
	Outcome   pgrepo.FulfillOutcome
	UserID    int64
	ProductID string
	Kind      string
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		products:     deps.Products,
		fulfillments: deps.Fulfillments,
		provider:     deps.Provider,
		images:       deps.Images,
		logger:       logger,
		newNonce:     uuid.NewString,
	}
}

// CreateInvoice builds a provider-hosted invoice for a catalog product and
// returns its URL. The payload embedded in the invoice round-trips back on the
// successful-payment webhook.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (CreateInvoiceResult, error) {
	if in.UserID <= 0 || strings.TrimSpace(in.ProductID) == "" {
		return CreateInvoiceResult{}, ErrValidation
	}
	if !IsKnownKind(in.Kind) {
		return CreateInvoiceResult{}, ErrUnsupportedKind
	}
	if s.provider == nil {
		return CreateInvoiceResult{}, ErrProviderUnavailable
	}
	if s.products == nil {
		return CreateInvoiceResult{}, fmt.Errorf("product store is nil")
	}

	product, err := s.lookupProduct(ctx, in.Kind, in.ProductID)
	if err != nil {
		return CreateInvoiceResult{}, err
	}

	stars := StarsForUSD(PriceUSD(in.Kind, product.PriceUSD))

	payload, err := EncodePayload(Payload{
		Kind:      in.Kind,
		UserID:    in.UserID,
		Nonce:     s.newNonce(),
		ProductID: product.ID,
	})
	if err != nil {
		return CreateInvoiceResult{}, err
	}

	photoURL := s.resolveImage(ctx, product.ImageKey)

	link, err := s.provider.CreateInvoiceLink(ctx, tginfra.InvoiceLinkParams{
		Title:       product.Title,
		Description: product.Description,
		Payload:     payload,
		Currency:    starsCurrency,
		Label:       product.Title,
		Amount:      stars,
		PhotoURL:    photoURL,
	})
	if err != nil {
		return CreateInvoiceResult{}, fmt.Errorf("create invoice link: %w", err)
	}

	s.logger.Info("invoice created",
		zap.Int64("user_id", in.UserID),
		zap.String("product_id", product.ID),
		zap.String("kind", in.Kind),
		zap.Int64("stars", stars),
	)

	return CreateInvoiceResult{
		InvoiceURL: link,
		Stars:      stars,
		Payload:    payload,
	}, nil
}

// ApprovePreCheckout answers the provider's synchronous approval request.
// Approval is unconditional; the provider's response deadline leaves no room
// for catalog round-trips here, and fulfillment re-validates everything anyway.
func (s *Service) ApprovePreCheckout(ctx context.Context, queryID string) error {
	if strings.TrimSpace(queryID) == "" {
		return ErrValidation
	}
	if s.provider == nil {
		return ErrProviderUnavailable
	}
	return s.provider.AnswerPreCheckout(ctx, queryID, true, "")
}

// Fulfill applies a completed payment to the buyer's account exactly once per
// charge id. Duplicate deliveries short-circuit; unknown purchase kinds land
// in the manual-review queue instead of being dropped.
func (s *Service) Fulfill(ctx context.Context, in FulfillInput) (FulfillResult, error) {
	if s.fulfillments == nil {
		return FulfillResult{}, fmt.Errorf("fulfillment store is nil")
	}
	if strings.TrimSpace(in.ChargeID) == "" {
		return FulfillResult{}, ErrValidation
	}

	payload, err := ParsePayload(in.Payload)
	if err != nil {
		return FulfillResult{}, err
	}

	outcome, err := s.fulfillments.Apply(ctx, pgrepo.FulfillParams{
		ChargeID:   in.ChargeID,
		UserID:     payload.UserID,
		ProductID:  payload.ProductID,
		Kind:       payload.Kind,
		RawPayload: in.Payload,
		PaidStars:  in.PaidStars,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrProductNotFound) {
			return FulfillResult{}, fmt.Errorf("%w: %s", ErrProductNotFound, payload.ProductID)
		}
		return FulfillResult{}, err
	}

	switch outcome {
	case pgrepo.OutcomeDuplicate:
		s.logger.Info("duplicate payment charge ignored",
			zap.String("charge_id", in.ChargeID),
			zap.Int64("user_id", payload.UserID),
		)
	case pgrepo.OutcomeReview:
		s.logger.Warn("payment routed to manual review",
			zap.String("charge_id", in.ChargeID),
			zap.Int64("user_id", payload.UserID),
			zap.String("kind", payload.Kind),
			zap.String("product_id", payload.ProductID),
		)
	default:
		s.logger.Info("payment fulfilled",
			zap.String("charge_id", in.ChargeID),
			zap.Int64("user_id", payload.UserID),
			zap.String("kind", payload.Kind),
			zap.String("product_id", payload.ProductID),
		)
	}

	return FulfillResult{
		Outcome:   outcome,
		UserID:    payload.UserID,
		ProductID: payload.ProductID,
		Kind:      payload.Kind,
	}, nil
}

func (s *Service) lookupProduct(ctx context.Context, kind, productID string) (pgrepo.ProductRecord, error) {
	var (
		product pgrepo.ProductRecord
		err     error
	)
	if kind == KindSticker {
		product, err = s.products.FindStickerPack(ctx, productID)
	} else {
		product, err = s.products.FindPurchasable(ctx, productID)
	}
	if err != nil {
		if errors.Is(err, pgrepo.ErrProductNotFound) {
			return pgrepo.ProductRecord{}, ErrProductNotFound
		}
		return pgrepo.ProductRecord{}, fmt.Errorf("lookup product: %w", err)
	}
	return product, nil
}

func (s *Service) resolveImage(ctx context.Context, imageKey string) string {
	if s.images == nil || strings.TrimSpace(imageKey) == "" {
		return ""
	}
	url, err := s.images.ResolveURL(ctx, imageKey)
	if err != nil {
		s.logger.Warn("resolve product image failed", zap.String("image_key", imageKey), zap.Error(err))
		return ""
	}
	return url
}

// SetNonceFunc overrides nonce generation in tests.
func (s *Service) SetNonceFunc(fn func() string) {
	if fn != nil {
		s.newNonce = fn
	}
}
