// Package recipeentitlements собирает приложение: хранилища, сервисы,
// маршруты и HTTP-сервер с graceful shutdown.
package recipeentitlements

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/recipe-entitlements/internal/cache"
	"github.com/magabrotheeeer/recipe-entitlements/internal/config"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/jwt"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/recipe-entitlements/internal/migrations"
	"github.com/magabrotheeeer/recipe-entitlements/internal/rabbitmq"
	authservice "github.com/magabrotheeeer/recipe-entitlements/internal/services/auth"
	billingservice "github.com/magabrotheeeer/recipe-entitlements/internal/services/billing"
	collectionservice "github.com/magabrotheeeer/recipe-entitlements/internal/services/collection"
	guestservice "github.com/magabrotheeeer/recipe-entitlements/internal/services/guest"
	monetizationservice "github.com/magabrotheeeer/recipe-entitlements/internal/services/monetization"
	"github.com/magabrotheeeer/recipe-entitlements/internal/storage/gueststore"
	"github.com/magabrotheeeer/recipe-entitlements/internal/storage/repository"
)

// App агрегирует зависимости приложения и HTTP-сервер.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
}

// New создает приложение: подключает Postgres, Redis и RabbitMQ, гоняет
// миграции, собирает сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}
	if err = repository.CheckDatabaseReady(db); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	guestStore, err := gueststore.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.URLRabbit, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	rabbitCh, err := rabbitmq.SetupChannel(rabbitConn)
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(rabbitCh)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	authService := authservice.New(db, db, jwtMaker, cfg.TokenTTL)
	collectionService := collectionservice.New(logger, authService, db, guestStore, cacheRedis)
	guestService := guestservice.New(logger, guestStore, db)
	monetizationService := monetizationservice.New(logger, db, db)
	billingService := billingservice.New(logger, db, db, publisher, cfg.FallbackWindow)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg,
		authService, collectionService, guestService, monetizationService, billingService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
	}, nil
}

// sessionSweepInterval — период уборки истекших сессий.
const sessionSweepInterval = time.Hour

// Run запускает HTTP-сервер и фоновую уборку сессий, останавливает их
// по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	go a.sweepExpiredSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.db.DB.Close()
		return err
	}
}

// sweepExpiredSessions периодически удаляет истекшие сессии, чтобы таблица
// не росла бесконечно: валидность и так проверяется по expires_at.
func (a *App) sweepExpiredSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.db.DeleteExpiredSessions(ctx, time.Now())
			if err != nil {
				a.logger.Error("failed to delete expired sessions", sl.Err(err))
				continue
			}
			if n > 0 {
				a.logger.Info("expired sessions deleted", slog.Int("count", n))
			}
		}
	}
}
