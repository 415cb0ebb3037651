package logout

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/recipe-entitlements/internal/http/middlewarectx"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/logout", nil)
	if token != "" {
		ctx := context.WithValue(req.Context(), middlewarectx.SessionToken, token)
		req = req.WithContext(ctx)
	}
	return req
}

func TestLogoutHandler(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		serviceErr error
		wantStatus int
		wantCall   bool
	}{
		{
			name:       "Успешный выход",
			token:      "token-1",
			wantStatus: http.StatusOK,
			wantCall:   true,
		},
		{
			name:       "Без токена",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Ошибка сервиса",
			token:      "token-1",
			serviceErr: errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
			wantCall:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			service.On("Logout", mock.Anything, tt.token).Return(tt.serviceErr).Maybe()

			handler := New(slog.New(slog.NewTextHandler(discard{}, nil)), service)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, newRequest(tt.token))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCall {
				service.AssertCalled(t, "Logout", mock.Anything, tt.token)
			} else {
				service.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
			}
		})
	}
}
