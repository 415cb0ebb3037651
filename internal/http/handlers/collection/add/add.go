// Package add реализует HTTP-обработчик добавления элемента в коллекцию.
package add

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/recipe-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/recipe-entitlements/internal/http/response"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
	"github.com/magabrotheeeer/recipe-entitlements/internal/services/collection"
)

// Service описывает интерфейс фасада коллекций для добавления элемента.
type Service interface {
	Add(ctx context.Context, caller collection.Caller, c models.Collection, item models.DummyItem) (string, error)
}

// Handler управляет HTTP-запросами на добавление элементов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Добавить элемент в коллекцию
// @Description Добавляет один элемент и возвращает его идентификатор.
// @Tags Collections
// @Accept  json
// @Produce  json
// @Param collection path string true "Имя коллекции" Enums(shopping_list, pantry, favorites, history)
// @Param request body models.DummyItem true "Новый элемент"
// @Success 200 {object} map[string]any "Элемент добавлен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или неизвестная коллекция"
// @Failure 401 {object} response.ErrorResponse "Нет сессии или она истекла"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /collections/{collection} [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.collection.add"
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

	var req models.DummyItem
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

	caller := collection.Caller{
		Token:   middlewarectx.TokenFromContext(r.Context()),
		GuestID: middlewarectx.GuestIDFromContext(r.Context()),
	}

	id, err := h.service.Add(r.Context(), caller, c, req)
	if err != nil {
		if errors.Is(err, models.ErrStaleSession) || errors.Is(err, models.ErrUnauthenticated) {
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("unauthorized"))
			return
		}
		log.Error("failed to add item", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not add item"))
		return
	}

	log.Info("item added", slog.String("collection", string(c)), slog.String("id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"id": id,
	}))
}
