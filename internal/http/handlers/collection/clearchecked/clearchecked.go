// Package clearchecked реализует HTTP-обработчик удаления отмеченных элементов.
package clearchecked

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/recipe-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/response"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
	"github.com/magabrotheeeer/recipe-entitlements/internal/services/collection"
)

// Service описывает интерфейс фасада коллекций для очистки отмеченного.
type Service interface {
	ClearChecked(ctx context.Context, caller collection.Caller, c models.Collection) error
}

// Handler управляет HTTP-запросами на удаление отмеченных элементов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Удалить отмеченные элементы
// @Description Удаляет из коллекции все элементы с checked=true.
// @Tags Collections
// @Produce  json
// @Param collection path string true "Имя коллекции" Enums(shopping_list, pantry, favorites, history)
// @Success 200 {object} response.Response "Отмеченные элементы удалены"
// @Failure 400 {object} response.ErrorResponse "Неизвестная коллекция"
// @Failure 401 {object} response.ErrorResponse "Нет сессии или она истекла"
// @Router /collections/{collection}/checked [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.collection.clearchecked"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	c, err := models.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		log.Error("unknown collection", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown collection"))
		return
	}

	caller := collection.Caller{
		Token:   middlewarectx.TokenFromContext(r.Context()),
		GuestID: middlewarectx.GuestIDFromContext(r.Context()),
	}

	if err := h.service.ClearChecked(r.Context(), caller, c); err != nil {
		if errors.Is(err, models.ErrStaleSession) || errors.Is(err, models.ErrUnauthenticated) {
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("unauthorized"))
			return
		}
		log.Error("failed to clear checked items", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not clear checked items"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(nil))
}
