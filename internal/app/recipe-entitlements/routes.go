// Package recipeentitlements предоставляет маршруты для основного приложения.
package recipeentitlements

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/recipe-entitlements/internal/config"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/collection/add"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/collection/addmany"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/collection/clearall"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/collection/clearchecked"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/collection/list"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/collection/remove"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/collection/togglechecked"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/guest/migrate"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/guest/profile"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/monetization/increment"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/monetization/unlock"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/handlers/monetization/usage"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/middlewarectx"
	authservice "github.com/magabrotheeeer/recipe-entitlements/internal/services/auth"
	billingservice "github.com/magabrotheeeer/recipe-entitlements/internal/services/billing"
	collectionservice "github.com/magabrotheeeer/recipe-entitlements/internal/services/collection"
	guestservice "github.com/magabrotheeeer/recipe-entitlements/internal/services/guest"
	monetizationservice "github.com/magabrotheeeer/recipe-entitlements/internal/services/monetization"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	authService *authservice.Service,
	collectionService *collectionservice.Service,
	guestService *guestservice.Service,
	monetizationService *monetizationservice.Service,
	billingService *billingservice.Service,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)

		// Группа запросного пути: идентичность из заголовков, ветку
		// local/remote выбирает фасад на каждом вызове.
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.IdentityMiddleware())
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/login", login.New(logger, authService, guestService).ServeHTTP)
			r.Post("/logout", logout.New(logger, authService).ServeHTTP)

			r.Route("/collections/{collection}", func(r chi.Router) {
				r.Get("/", list.New(logger, collectionService).ServeHTTP)
				r.Post("/", add.New(logger, collectionService).ServeHTTP)
				r.Post("/batch", addmany.New(logger, collectionService).ServeHTTP)
				r.Delete("/", clearall.New(logger, collectionService).ServeHTTP)
				r.Delete("/checked", clearchecked.New(logger, collectionService).ServeHTTP)
				r.Delete("/{id}", remove.New(logger, collectionService).ServeHTTP)
				r.Patch("/{id}/toggle", togglechecked.New(logger, collectionService).ServeHTTP)
			})

			r.Post("/guest/profile", profile.New(logger, guestService).ServeHTTP)
			r.Post("/guest/migrate", migrate.New(logger, authService, guestService).ServeHTTP)

			r.Get("/monetization/usage", usage.New(logger, authService, monetizationService).ServeHTTP)
			r.Post("/monetization/usage/increment", increment.New(logger, authService, monetizationService).ServeHTTP)
			r.Post("/monetization/unlock", unlock.New(logger, authService, monetizationService).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации, подпись проверяет обработчик)
		r.Post("/billing/webhook", webhook.New(logger, billingService, cfg.WebhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
