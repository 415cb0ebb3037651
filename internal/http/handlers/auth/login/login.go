// Package login реализует HTTP-обработчик входа пользователя.
//
// Handler проверяет учетные данные, выдает токен сессии и, если в запросе
// передан идентификатор гостевого профиля, запускает его миграцию в аккаунт.
package login

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
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// Request описывает тело запроса входа.
type Request struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Service описывает интерфейс бизнес-логики входа.
type Service interface {
	Login(ctx context.Context, username, password string) (token string, userUID string, err error)
}

// Migrator запускает миграцию гостевого профиля после входа.
type Migrator interface {
	Migrate(ctx context.Context, guestID, userUID string) error
}

// Handler управляет HTTP-запросами на вход пользователей.
type Handler struct {
	log      *slog.Logger
	service  Service
	migrator Migrator
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, migrator Migrator) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		migrator: migrator,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Войти в систему
// @Description Проверяет учетные данные и возвращает токен сессии. Если передан заголовок X-Guest-ID, гостевой профиль мигрирует в аккаунт.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} map[string]any "Успешный вход"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 409 {object} response.ErrorResponse "Миграция гостевого профиля уже идет"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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

	token, userUID, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		log.Error("failed to login", sl.Err(err))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid credentials"))
		return
	}

	// Гостевой профиль из заголовка мигрирует сразу после входа, чтобы
	// первый же запрос к коллекциям увидел накопленные данные.
	if guestID := middlewarectx.GuestIDFromContext(r.Context()); guestID != "" {
		if err := h.migrator.Migrate(r.Context(), guestID, userUID); err != nil {
			if errors.Is(err, models.ErrMigrationInProgress) {
				log.Warn("guest migration already in progress", slog.String("guest_id", guestID))
				w.WriteHeader(http.StatusConflict)
				render.JSON(w, r, response.Error("migration already in progress"))
				return
			}
			// Вход удался, миграцию можно повторить отдельным запросом.
			log.Error("guest migration failed after login", sl.Err(err))
		}
	}

	log.Info("user logged in", slog.String("user_uid", userUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"token":    token,
		"user_uid": userUID,
	}))
}
