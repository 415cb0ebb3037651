// Package migrate реализует HTTP-обработчик миграции гостевого профиля.
//
// Handler требует действующую сессию и заголовок X-Guest-ID. Миграция
// идемпотентна: повтор после сбоя безопасен, параллельный вызов для того же
// профиля отклоняется со статусом 409.
package migrate

import (
	"context"
	"errors"
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

// Service описывает интерфейс сервиса миграции гостевых профилей.
type Service interface {
	Migrate(ctx context.Context, guestID, userUID string) error
}

// Handler управляет HTTP-запросами на миграцию гостевого профиля.
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
// @Summary Мигрировать гостевой профиль в аккаунт
// @Description Копирует коллекции и реплеит покупки гостя в аккаунт текущего пользователя, затем удаляет профиль.
// @Tags Guest
// @Produce  json
// @Success 200 {object} response.Response "Миграция завершена"
// @Failure 400 {object} response.ErrorResponse "Нет заголовка X-Guest-ID"
// @Failure 401 {object} response.ErrorResponse "Нет сессии или она истекла"
// @Failure 409 {object} response.ErrorResponse "Миграция уже идет"
// @Failure 500 {object} response.ErrorResponse "Миграция прервана, профиль сохранен"
// @Router /guest/migrate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.guest.migrate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token := middlewarectx.TokenFromContext(r.Context())
	userUID, err := h.sessions.ValidateSession(r.Context(), token)
	if err != nil {
		log.Warn("migration without valid session", sl.Err(err))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	guestID := middlewarectx.GuestIDFromContext(r.Context())
	if guestID == "" {
		log.Error("missing guest id header")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing X-Guest-ID header"))
		return
	}

	if err := h.service.Migrate(r.Context(), guestID, userUID); err != nil {
		if errors.Is(err, models.ErrMigrationInProgress) {
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("migration already in progress"))
			return
		}
		log.Error("migration failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("migration failed, safe to retry"))
		return
	}

	log.Info("guest profile migrated",
		slog.String("guest_id", guestID), slog.String("user_uid", userUID))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
