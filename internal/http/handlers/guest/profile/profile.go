// Package profile реализует HTTP-обработчик выдачи гостевого профиля.
//
// Handler возвращает существующий профиль по заголовку X-Guest-ID либо
// создает новый. Клиент сохраняет guest_id и передает его во всех
// последующих запросах до регистрации.
package profile

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

// Service описывает интерфейс сервиса гостевых профилей.
type Service interface {
	GetOrCreate(ctx context.Context, guestID string) (*models.GuestProfile, error)
}

// Handler управляет HTTP-запросами на выдачу гостевого профиля.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить или создать гостевой профиль
// @Description Возвращает профиль по заголовку X-Guest-ID либо создает новый. Операция идемпотентна.
// @Tags Guest
// @Produce  json
// @Success 200 {object} map[string]any "Гостевой профиль"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /guest/profile [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.guest.profile"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	guestID := middlewarectx.GuestIDFromContext(r.Context())
	prof, err := h.service.GetOrCreate(r.Context(), guestID)
	if err != nil {
		log.Error("failed to get or create guest profile", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create guest profile"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"guest_id": prof.GuestID,
	}))
}
