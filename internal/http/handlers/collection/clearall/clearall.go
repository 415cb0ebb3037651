// Package clearall реализует HTTP-обработчик полной очистки коллекции.
package clearall

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

// Service описывает интерфейс фасада коллекций для полной очистки.
type Service interface {
	ClearAll(ctx context.Context, caller collection.Caller, c models.Collection) error
}

// Handler управляет HTTP-запросами на полную очистку коллекции.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Очистить коллекцию
// @Description Удаляет все элементы коллекции.
// @Tags Collections
// @Produce  json
// @Param collection path string true "Имя коллекции" Enums(shopping_list, pantry, favorites, history)
// @Success 200 {object} response.Response "Коллекция очищена"
// @Failure 400 {object} response.ErrorResponse "Неизвестная коллекция"
// @Failure 401 {object} response.ErrorResponse "Нет сессии или она истекла"
// @Router /collections/{collection} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.collection.clearall"
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

	if err := h.service.ClearAll(r.Context(), caller, c); err != nil {
		if errors.Is(err, models.ErrStaleSession) || errors.Is(err, models.ErrUnauthenticated) {
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("unauthorized"))
			return
		}
		log.Error("failed to clear collection", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not clear collection"))
		return
	}

	log.Info("collection cleared", slog.String("collection", string(c)))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
