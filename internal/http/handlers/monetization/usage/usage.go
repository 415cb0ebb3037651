// Package usage реализует HTTP-обработчик сводки по тарифу и счётчикам.
package usage

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/recipe-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/response"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// SessionValidator проверяет токен сессии и возвращает UID пользователя.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, error)
}

// Service описывает интерфейс сервиса монетизации для чтения сводки.
type Service interface {
	Status(ctx context.Context, userUID string) (*models.UsageStatus, error)
}

// Handler управляет HTTP-запросами на чтение сводки использования.
type Handler struct {
	log      *slog.Logger
	sessions SessionValidator
	service  Service
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, sessions SessionValidator, service Service) *Handler {
	return &Handler{log: log, sessions: sessions, service: service}
}

// ServeHTTP godoc
// @Summary Получить сводку по тарифу и счётчикам
// @Description Возвращает текущий тариф, дневные счётчики тарифицируемых функций и разблокированные страны.
// @Tags Monetization
// @Produce  json
// @Success 200 {object} models.UsageStatus "Сводка использования"
// @Failure 401 {object} response.ErrorResponse "Нет сессии или она истекла"
// @Router /monetization/usage [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.monetization.usage"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, err := h.sessions.ValidateSession(r.Context(), middlewarectx.TokenFromContext(r.Context()))
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	status, err := h.service.Status(r.Context(), userUID)
	if err != nil {
		log.Error("failed to load usage status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not load usage status"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(status))
}
