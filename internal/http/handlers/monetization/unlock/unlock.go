// Package unlock реализует HTTP-обработчик разблокировки страны за рекламу.
package unlock

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/recipe-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/response"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/sl"
)

// Request описывает тело запроса разблокировки страны.
type Request struct {
	Country string `json:"country" validate:"required"`
}

// SessionValidator проверяет токен сессии и возвращает UID пользователя.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, error)
}

// Service описывает интерфейс сервиса монетизации для разблокировки стран.
type Service interface {
	UnlockCountry(ctx context.Context, userUID, country string) error
}

// Handler управляет HTTP-запросами на разблокировку стран.
type Handler struct {
	log      *slog.Logger
	sessions SessionValidator
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, sessions SessionValidator, service Service) *Handler {
	return &Handler{
		log:      log,
		sessions: sessions,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Разблокировать страну после просмотра рекламы
// @Description Добавляет страну в реестр разблокированных. Повторная разблокировка — no-op.
// @Tags Monetization
// @Accept  json
// @Produce  json
// @Param request body Request true "Страна для разблокировки"
// @Success 200 {object} response.Response "Страна разблокирована"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Нет сессии или она истекла"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /monetization/unlock [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.monetization.unlock"
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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.UnlockCountry(r.Context(), userUID, req.Country); err != nil {
		log.Error("failed to unlock country", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not unlock country"))
		return
	}

	log.Info("country unlocked",
		slog.String("user_uid", userUID), slog.String("country", req.Country))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
