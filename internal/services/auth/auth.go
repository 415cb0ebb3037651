// Package auth содержит логику регистрации, входа и проверки сессий.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/jwt"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/password"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его UID.
	RegisterUser(ctx context.Context, user models.User) (string, error)
	// GetUserByUsername возвращает пользователя по имени или ошибку, если не найден.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// SessionRepository описывает контракт для работы с сессиями.
type SessionRepository interface {
	CreateSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// Service отвечает за регистрацию, авторизацию и валидацию сессий.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	jwtMaker jwt.Maker
	tokenTTL time.Duration
}

// New создает новый экземпляр Service.
func New(users UserRepository, sessions SessionRepository, jwtMaker jwt.Maker, tokenTTL time.Duration) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		jwtMaker: jwtMaker,
		tokenTTL: tokenTTL,
	}
}

// Register создает нового пользователя с хэшированием пароля и тарифом free.
func (s *Service) Register(ctx context.Context, email, username, rawPassword string) (string, error) {
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", err
	}
	user := models.User{
		Email:            email,
		Username:         username,
		PasswordHash:     hashed,
		Tier:             tier.Free,
		SubscriptionType: tier.SubFree,
	}
	return s.users.RegisterUser(ctx, user)
}

// Login проверяет пароль пользователя, выписывает токен и создает сессию.
func (s *Service) Login(ctx context.Context, username, rawPassword string) (token string, userUID string, err error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return "", "", errors.New("invalid credentials")
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", "", errors.New("invalid credentials")
	}
	token, err = s.jwtMaker.GenerateToken(user.UID, user.Username)
	if err != nil {
		return "", "", err
	}
	session := models.Session{
		Token:     token,
		UserUID:   user.UID,
		ExpiresAt: time.Now().Add(s.tokenTTL),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return "", "", err
	}
	return token, user.UID, nil
}

// ValidateSession проверяет токен против таблицы сессий и возвращает UID
// пользователя. Проверка выполняется на каждой удалённой мутации заново —
// валидность не кешируется между вызовами, окно устаревания ограничено TTL.
func (s *Service) ValidateSession(ctx context.Context, token string) (string, error) {
	const op = "auth.ValidateSession"
	if token == "" {
		return "", models.ErrUnauthenticated
	}
	if _, err := s.jwtMaker.ParseToken(token); err != nil {
		return "", fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, models.ErrUnauthenticated)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if time.Now().After(session.ExpiresAt) {
		return "", fmt.Errorf("%s: %w", op, models.ErrStaleSession)
	}
	return session.UserUID, nil
}

// Logout удаляет сессию по токену.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}
