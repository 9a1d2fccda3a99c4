package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/dkoval/starcade/internal/services/auth"
	wheelsvc "github.com/dkoval/starcade/internal/services/wheel"
	"github.com/dkoval/starcade/internal/transport/http/dto"
	httperrors "github.com/dkoval/starcade/internal/transport/http/errors"
)

type WheelHandler struct {
	wheel *wheelsvc.Service
}

func NewWheelHandler(wheel *wheelsvc.Service) *WheelHandler {
	return &WheelHandler{wheel: wheel}
}

func (h *WheelHandler) Spin(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.wheel == nil {
		writeInternal(w, "WHEEL_SERVICE_UNAVAILABLE", "wheel service is unavailable")
		return
	}

	result, err := h.wheel.Spin(r.Context(), identity.UserID)
	if err != nil {
		switch {
		case errors.Is(err, wheelsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid spin request")
		case errors.Is(err, wheelsvc.ErrNoSpinsLeft):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "NO_SPINS_LEFT",
				Message: "no free or purchased spins left",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to spin the wheel")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.SpinResponse{
		PrizeID:  result.PrizeID,
		CoinsWon: result.CoinsWon,
		Balance:  result.Balance,
		Source:   result.Source,
	})
}
