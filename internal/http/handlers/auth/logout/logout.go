// Package logout реализует HTTP-обработчик выхода из системы.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/recipe-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/response"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/sl"
)

// Service описывает интерфейс бизнес-логики выхода.
type Service interface {
	Logout(ctx context.Context, token string) error
}

// Handler управляет HTTP-запросами на выход пользователей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Выйти из системы
// @Description Удаляет сессию предъявленного токена. Дальнейшие удалённые операции с этим токеном отклоняются.
// @Tags Auth
// @Security BearerAuth
// @Produce  json
// @Success 200 {object} response.Response "Сессия удалена"
// @Failure 401 {object} response.ErrorResponse "Токен не передан"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка"
// @Router /logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token := middlewarectx.TokenFromContext(r.Context())
	if token == "" {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		log.Error("failed to logout", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not logout"))
		return
	}

	log.Info("user logged out")
	render.JSON(w, r, response.StatusOKWithData(nil))
}
