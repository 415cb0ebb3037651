// Package webhook реализует HTTP-обработчик биллинговых событий провайдера.
//
// Handler проверяет HMAC-подпись тела запроса, разбирает событие и передает
// его реконсилиатору. Ответ 200 подтверждает провайдеру доставку; ошибка
// обработки возвращает 500, и провайдер повторит доставку позже.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// Service описывает интерфейс реконсилиатора биллинговых событий.
type Service interface {
	ProcessEvent(ctx context.Context, event models.WebhookEvent) error
}

// Handler управляет HTTP-запросами вебхука биллинга.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый Handler с переданными логгером, сервисом и секретом.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload — сырое биллинговое событие провайдера.
type Payload struct {
	Event struct {
		ID                string `json:"id"`
		Type              string `json:"type"`
		AppUserID         string `json:"app_user_id"`
		ProductID         string `json:"product_id"`
		ExpirationAtMs    *int64 `json:"expiration_at_ms"`
		OriginalAppUserID string `json:"original_app_user_id"`
	} `json:"event"`
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// ServeHTTP godoc
// @Summary Принять биллинговое событие
// @Description Принимает подписанное событие провайдера подписок и применяет его к состоянию пользователя.
// @Tags Billing
// @Accept  json
// @Success 200 "Событие принято"
// @Failure 400 "Некорректное тело или событие"
// @Failure 401 "Неверная подпись"
// @Failure 500 "Ошибка обработки, провайдер повторит доставку"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event := models.WebhookEvent{
		ID:                payload.Event.ID,
		Type:              payload.Event.Type,
		AppUserID:         payload.Event.AppUserID,
		ProductID:         payload.Event.ProductID,
		ExpirationAtMs:    payload.Event.ExpirationAtMs,
		OriginalAppUserID: payload.Event.OriginalAppUserID,
	}

	if err := h.service.ProcessEvent(r.Context(), event); err != nil {
		if errors.Is(err, models.ErrInvalidWebhookEvent) {
			log.Warn("invalid webhook event",
				slog.String("event_id", event.ID), slog.String("event_type", event.Type))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		log.Error("failed to process webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Info("webhook processed",
		slog.String("event_id", event.ID), slog.String("event_type", event.Type))
	w.WriteHeader(http.StatusOK)
}
