package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dkoval/starcade/internal/config"
	s3infra "github.com/dkoval/starcade/internal/infra/s3"
	tginfra "github.com/dkoval/starcade/internal/infra/telegram"
	"github.com/dkoval/starcade/internal/jobs/reconcile"
	pgrepo "github.com/dkoval/starcade/internal/repo/postgres"
	redrepo "github.com/dkoval/starcade/internal/repo/redis"
	authsvc "github.com/dkoval/starcade/internal/services/auth"
	billingsvc "github.com/dkoval/starcade/internal/services/billing"
	mediasvc "github.com/dkoval/starcade/internal/services/media"
	wheelsvc "github.com/dkoval/starcade/internal/services/wheel"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	reconcile  *reconcile.Job
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	spinQuotaRepo := redrepo.NewSpinQuotaRepo(redisClient)
	productRepo := pgrepo.NewProductRepo(pool)
	accountRepo := pgrepo.NewAccountRepo(pool)
	fulfillmentRepo := pgrepo.NewFulfillmentRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, sessionRepo, authsvc.Config{
		BotToken:       cfg.Bot.Token,
		InitDataMaxAge: cfg.Bot.InitDataMaxAge,
		RefreshTTL:     cfg.Auth.RefreshTTL,
	})

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	var tgClient *tginfra.Client
	if cfg.Bot.Token == "" {
		log.Warn("bot token is empty, invoice creation is disabled")
	} else if c, err := tginfra.NewClient(cfg.Bot.Token); err != nil {
		log.Warn("telegram client init failed, invoice creation is disabled", zap.Error(err))
	} else {
		tgClient = c
	}

	var imageResolver billingsvc.ImageResolver
	if s3Client != nil {
		imageResolver = mediasvc.NewService(s3Client, cfg.S3.Bucket)
	}

	var provider billingsvc.InvoiceClient
	if tgClient != nil {
		provider = tgClient
	}

	billingService := billingsvc.NewService(billingsvc.Dependencies{
		Products:     productRepo,
		Fulfillments: fulfillmentRepo,
		Provider:     provider,
		Images:       imageResolver,
		Logger:       log,
	})

	wheelPrizes := make([]wheelsvc.Prize, 0, len(cfg.Wheel.Prizes))
	for _, p := range cfg.Wheel.Prizes {
		wheelPrizes = append(wheelPrizes, wheelsvc.Prize{
			ID:     p.ID,
			Coins:  p.Coins,
			Weight: p.Weight,
		})
	}
	wheelService := wheelsvc.NewService(accountRepo, spinQuotaRepo, wheelsvc.Config{
		FreeSpinsPerDay: cfg.Wheel.FreeSpinsPerDay,
		Prizes:          wheelPrizes,
	}, log)

	reconcileJob := reconcile.New(fulfillmentRepo, cfg.Reconcile.Interval, log)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		AuthService:    authService,
		BillingService: billingService,
		WheelService:   wheelService,
		Logger:         log,
		Config:         cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		reconcile:  reconcileJob,
		httpRouter: r,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	if a.postgres != nil {
		go func() {
			if err := a.reconcile.RunLoop(ctx); err != nil {
				a.logger.Error("reconcile loop stopped", zap.Error(err))
			}
		}()
	}

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
