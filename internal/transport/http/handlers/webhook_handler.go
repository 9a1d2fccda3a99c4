package handlers

import (
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	billingsvc "github.com/dkoval/starcade/internal/services/billing"
	"github.com/dkoval/starcade/internal/transport/http/dto"
	httperrors "github.com/dkoval/starcade/internal/transport/http/errors"
)

// WebhookHandler receives bot updates from Telegram. The response is always
// HTTP 200: anything else makes Telegram redeliver the update in a retry loop,
// so failures are logged here and acknowledged upstream.
type WebhookHandler struct {
	billing *billingsvc.Service
	logger  *zap.Logger
}

func NewWebhookHandler(billing *billingsvc.Service, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		billing: billing,
		logger:  logger,
	}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("undecodable webhook update", zap.Error(err))
		h.writeError(w, "invalid update body")
		return
	}

	switch {
	case update.PreCheckoutQuery != nil:
		h.handlePreCheckout(w, r, update.PreCheckoutQuery)
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		h.handleSuccessfulPayment(w, r, update.Message.SuccessfulPayment)
	default:
		// Non-payment updates are none of our business but still get acked.
		h.writeOK(w, "")
	}
}

func (h *WebhookHandler) handlePreCheckout(w http.ResponseWriter, r *http.Request, query *tgbotapi.PreCheckoutQuery) {
	if h.billing == nil {
		h.logger.Error("pre-checkout query received with no billing service", zap.String("query_id", query.ID))
		h.writeError(w, "billing unavailable")
		return
	}

	if err := h.billing.ApprovePreCheckout(r.Context(), query.ID); err != nil {
		h.logger.Error("answer pre-checkout failed",
			zap.String("query_id", query.ID),
			zap.Error(err),
		)
		h.writeError(w, "pre-checkout answer failed")
		return
	}

	h.writeOK(w, "pre-checkout approved")
}

func (h *WebhookHandler) handleSuccessfulPayment(w http.ResponseWriter, r *http.Request, payment *tgbotapi.SuccessfulPayment) {
	if h.billing == nil {
		h.logger.Error("successful payment received with no billing service",
			zap.String("charge_id", payment.TelegramPaymentChargeID),
		)
		h.writeError(w, "billing unavailable")
		return
	}

	_, err := h.billing.Fulfill(r.Context(), billingsvc.FulfillInput{
		Payload:   payment.InvoicePayload,
		ChargeID:  payment.TelegramPaymentChargeID,
		PaidStars: int64(payment.TotalAmount),
		Currency:  payment.Currency,
	})
	if err != nil {
		h.logger.Error("fulfillment failed",
			zap.String("charge_id", payment.TelegramPaymentChargeID),
			zap.Error(err),
		)
		h.writeError(w, "fulfillment failed")
		return
	}

	h.writeOK(w, "")
}

func (h *WebhookHandler) writeOK(w http.ResponseWriter, message string) {
	httperrors.Write(w, http.StatusOK, dto.WebhookResponse{Status: "ok", Message: message})
}

func (h *WebhookHandler) writeError(w http.ResponseWriter, message string) {
	httperrors.Write(w, http.StatusOK, dto.WebhookResponse{Status: "error", Message: message})
}
