// Package list реализует HTTP-обработчик чтения коллекции.
//
// Handler определяет коллекцию из URL и возвращает её содержимое через
// фасад. Для авторизованного пользователя с холодным кешем ответ приходит
// с loading=true — клиент повторяет запрос до загрузки данных.
package list

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

// Service описывает интерфейс фасада коллекций для чтения.
type Service interface {
	List(ctx context.Context, caller collection.Caller, c models.Collection) (models.ListResult, error)
}

// Handler управляет HTTP-запросами на чтение коллекций.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить содержимое коллекции
// @Description Возвращает элементы коллекции. Поле loading=true означает, что удалённая выборка еще идет.
// @Tags Collections
// @Produce  json
// @Param collection path string true "Имя коллекции" Enums(shopping_list, pantry, favorites, history)
// @Success 200 {object} map[string]any "Содержимое коллекции"
// @Failure 400 {object} response.ErrorResponse "Неизвестная коллекция"
// @Failure 401 {object} response.ErrorResponse "Нет сессии или она истекла"
// @Router /collections/{collection} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.collection.list"
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

	result, err := h.service.List(r.Context(), caller, c)
	if err != nil {
		if errors.Is(err, models.ErrStaleSession) {
			log.Warn("stale session")
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("stale session"))
			return
		}
		if errors.Is(err, models.ErrUnauthenticated) {
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("unauthorized"))
			return
		}
		log.Error("failed to list collection", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list collection"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(result))
}
