// Package jwt реализует генерацию и парсинг JWT токенов сессии с
// пользовательскими claim полями.
//
// CustomClaims расширяет стандартные claims JWT, добавляя uid пользователя
// и его имя. Подпись токена — только первая линия проверки: каждая удалённая
// мутация дополнительно сверяет токен с таблицей сессий.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга токенов сессии.
type Maker interface {
	// GenerateToken создает токен с uid и именем пользователя.
	GenerateToken(userUID, username string) (string, error)
	// ParseToken возвращает *CustomClaims, если токен корректен.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

// TokenTTL возвращает срок жизни выдаваемых токенов.
func (j *MakerImpl) TokenTTL() time.Duration {
	return j.tokenTTL
}
