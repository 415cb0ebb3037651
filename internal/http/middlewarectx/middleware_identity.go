// Package middlewarectx содержит HTTP middleware запросного пути.
//
// IdentityMiddleware извлекает токен сессии из заголовка Authorization и
// идентификатор гостевого профиля из заголовка X-Guest-ID и кладёт их в
// контекст запроса. Валидность токена здесь не проверяется: фасад коллекций
// сверяет сессию на каждом вызове заново, поэтому middleware лишь переносит
// идентичность, не фиксируя ветку local/remote.
package middlewarectx

import (
	"context"
	"net/http"
	"strings"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// SessionToken — ключ токена сессии в контексте.
	SessionToken Key = "session_token"
	// GuestID — ключ идентификатора гостевого профиля в контексте.
	GuestID Key = "guest_id"
)

// IdentityMiddleware переносит идентичность вызывающего в контекст запроса.
func IdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				ctx = context.WithValue(ctx, SessionToken, strings.TrimPrefix(authHeader, "Bearer "))
			}
			if guestID := r.Header.Get("X-Guest-ID"); guestID != "" {
				ctx = context.WithValue(ctx, GuestID, guestID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromContext возвращает токен сессии из контекста запроса.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(SessionToken).(string)
	return token
}

// GuestIDFromContext возвращает идентификатор гостевого профиля из контекста.
func GuestIDFromContext(ctx context.Context) string {
	guestID, _ := ctx.Value(GuestID).(string)
	return guestID
}
