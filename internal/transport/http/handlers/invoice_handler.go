package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/dkoval/starcade/internal/services/auth"
	billingsvc "github.com/dkoval/starcade/internal/services/billing"
	"github.com/dkoval/starcade/internal/transport/http/dto"
	httperrors "github.com/dkoval/starcade/internal/transport/http/errors"
)

type InvoiceHandler struct {
	billing *billingsvc.Service
}

func NewInvoiceHandler(billing *billingsvc.Service) *InvoiceHandler {
	return &InvoiceHandler{billing: billing}
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.billing == nil {
		writeInternal(w, "BILLING_SERVICE_UNAVAILABLE", "billing service is unavailable")
		return
	}

	var req dto.InvoiceCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	// The buyer is always the authenticated caller. A user id in the body
	// would let anyone mint invoices charging someone else's account.
	result, err := h.billing.CreateInvoice(r.Context(), billingsvc.CreateInvoiceInput{
		UserID:    identity.UserID,
		ProductID: req.ProductID,
		Kind:      req.PurchaseType,
	})
	if err != nil {
		switch {
		case errors.Is(err, billingsvc.ErrValidation), errors.Is(err, billingsvc.ErrUnsupportedKind):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid invoice request")
		case errors.Is(err, billingsvc.ErrProductNotFound):
			httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
				Code:    "PRODUCT_NOT_FOUND",
				Message: "product not found",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to create invoice")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.InvoiceCreateResponse{
		InvoiceURL: result.InvoiceURL,
		Stars:      result.Stars,
	})
}
