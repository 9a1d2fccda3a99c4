package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tginfra "github.com/dkoval/starcade/internal/infra/telegram"
	pgrepo "github.com/dkoval/starcade/internal/repo/postgres"
	authsvc "github.com/dkoval/starcade/internal/services/auth"
	billingsvc "github.com/dkoval/starcade/internal/services/billing"
	"github.com/dkoval/starcade/internal/transport/http/dto"
)

type invoiceTestProducts struct {
	product pgrepo.ProductRecord
}

func (s invoiceTestProducts) FindPurchasable(_ context.Context, productID string) (pgrepo.ProductRecord, error) {
	if productID != s.product.ID {
		return pgrepo.ProductRecord{}, pgrepo.ErrProductNotFound
	}
	return s.product, nil
}

func (s invoiceTestProducts) FindStickerPack(_ context.Context, _ string) (pgrepo.ProductRecord, error) {
	return pgrepo.ProductRecord{}, pgrepo.ErrProductNotFound
}

type invoiceTestProvider struct {
	lastParams tginfra.InvoiceLinkParams
}

func (p *invoiceTestProvider) CreateInvoiceLink(_ context.Context, params tginfra.InvoiceLinkParams) (string, error) {
	p.lastParams = params
	return "https://t.me/invoice/test", nil
}

func (p *invoiceTestProvider) AnswerPreCheckout(_ context.Context, _ string, _ bool, _ string) error {
	return nil
}

func newInvoiceTestHandler(provider *invoiceTestProvider) *InvoiceHandler {
	billing := billingsvc.NewService(billingsvc.Dependencies{
		Products: invoiceTestProducts{
			product: pgrepo.ProductRecord{
				ID:       "coins_500",
				Kind:     "coins",
				Title:    "500 Coins",
				PriceUSD: 0.10,
				Amount:   500,
			},
		},
		Fulfillments: &webhookTestFulfillments{},
		Provider:     provider,
	})
	return NewInvoiceHandler(billing)
}

func TestInvoiceCreateRequiresAuth(t *testing.T) {
	handler := newInvoiceTestHandler(&invoiceTestProvider{})

	req := httptest.NewRequest(http.MethodPost, "/invoice", strings.NewReader(`{"product_id":"coins_500","purchase_type":"coins"}`))
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rr.Code)
	}
}

func TestInvoiceCreateChargesAuthenticatedUser(t *testing.T) {
	provider := &invoiceTestProvider{}
	handler := newInvoiceTestHandler(provider)

	req := httptest.NewRequest(http.MethodPost, "/invoice", strings.NewReader(`{"product_id":"coins_500","purchase_type":"coins"}`))
	req = req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{
		UserID: 424242,
		SID:    "sid-1",
	}))
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rr.Code, rr.Body.String())
	}

	var payload dto.InvoiceCreateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.InvoiceURL != "https://t.me/invoice/test" {
		t.Fatalf("unexpected invoice url: %q", payload.InvoiceURL)
	}
	if payload.Stars != 12 {
		t.Fatalf("unexpected stars: %d", payload.Stars)
	}
	if !strings.Contains(provider.lastParams.Payload, ":424242:") {
		t.Fatalf("payload does not carry the authenticated user: %q", provider.lastParams.Payload)
	}
}

func TestInvoiceCreateUnknownProduct(t *testing.T) {
	handler := newInvoiceTestHandler(&invoiceTestProvider{})

	req := httptest.NewRequest(http.MethodPost, "/invoice", strings.NewReader(`{"product_id":"missing","purchase_type":"coins"}`))
	req = req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{UserID: 7, SID: "sid-2"}))
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rr.Code)
	}
}

func TestInvoiceCreateUnknownKind(t *testing.T) {
	handler := newInvoiceTestHandler(&invoiceTestProvider{})

	req := httptest.NewRequest(http.MethodPost, "/invoice", strings.NewReader(`{"product_id":"coins_500","purchase_type":"mystery"}`))
	req = req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{UserID: 7, SID: "sid-3"}))
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown purchase type, got %d", rr.Code)
	}
}
