// Package increment реализует HTTP-обработчик расхода дневного лимита.
//
// Проверка и инкремент атомарны: при одном оставшемся вызове два
// конкурирующих запроса не пройдут оба.
package increment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/recipe-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/response"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// Request описывает тело запроса расхода лимита.
type Request struct {
	Meter string `json:"meter" validate:"required,oneof=ai travel"`
}

// SessionValidator проверяет токен сессии и возвращает UID пользователя.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, error)
}

// Service описывает интерфейс сервиса монетизации для расхода лимита.
type Service interface {
	Increment(ctx context.Context, userUID string, meter tier.Meter) (*models.LimitCheck, error)
}

// Handler управляет HTTP-запросами на расход дневного лимита.
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
// @Summary Израсходовать один вызов тарифицируемой функции
// @Description Атомарно увеличивает дневной счётчик. При исчерпании лимита возвращает 429, если тариф вовсе не даёт доступа к функции — 403.
// @Tags Monetization
// @Accept  json
// @Produce  json
// @Param request body Request true "Тарифицируемая функция"
// @Success 200 {object} models.LimitCheck "Остаток лимита"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Нет сессии или она истекла"
// @Failure 403 {object} response.ErrorResponse "Функция недоступна на тарифе"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Лимит исчерпан"
// @Router /monetization/usage/increment [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.monetization.increment"
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

	check, err := h.service.Increment(r.Context(), userUID, tier.Meter(req.Meter))
	if err != nil {
		if errors.Is(err, models.ErrUpgradeRequired) {
			log.Info("feature not available on tier",
				slog.String("user_uid", userUID), slog.String("meter", req.Meter))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("upgrade required"))
			return
		}
		if errors.Is(err, models.ErrQuotaExceeded) {
			log.Info("quota exceeded",
				slog.String("user_uid", userUID), slog.String("meter", req.Meter))
			w.WriteHeader(http.StatusTooManyRequests)
			render.JSON(w, r, response.Error("quota exceeded"))
			return
		}
		log.Error("failed to increment usage", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not increment usage"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(check))
}
