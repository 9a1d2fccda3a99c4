package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dkoval/starcade/internal/config"
	authsvc "github.com/dkoval/starcade/internal/services/auth"
	billingsvc "github.com/dkoval/starcade/internal/services/billing"
	wheelsvc "github.com/dkoval/starcade/internal/services/wheel"
	"github.com/dkoval/starcade/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService    *authsvc.Service
	BillingService *billingsvc.Service
	WheelService   *wheelsvc.Service
	Logger         *zap.Logger
	Config         config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	invoiceHandler := handlers.NewInvoiceHandler(deps.BillingService)
	webhookHandler := handlers.NewWebhookHandler(deps.BillingService, deps.Logger)
	wheelHandler := handlers.NewWheelHandler(deps.WheelService)
	authMW := AuthMiddleware(deps.AuthService, deps.Logger)

	r.Get("/healthz", healthHandler.Handle)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/telegram", authHandler.Telegram)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
	})

	r.With(authMW).Post("/invoice", invoiceHandler.Create)
	r.Post("/webhook", webhookHandler.Handle)
	r.With(authMW).Post("/wheel/spin", wheelHandler.Spin)
}
