package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/team4job/marketplace-backend/internal/models"
)

// TokenManager проверяет access токены внешнего провайдера идентификации.
// Выпуск токенов нужен для служебных сценариев и тестов.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// accessClaims sub содержит ID пользователя, roles его роли на платформе.
type accessClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Issue выпускает access токен для пользователя.
func (m *TokenManager) Issue(userID uuid.UUID, roles models.Roles) (string, error) {
	now := time.Now()
	raw := make([]string, len(roles))
	for i, r := range roles {
		raw[i] = string(r)
	}

	claims := accessClaims{
		Roles: raw,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseAccess извлекает пользователя и его роли из access токена.
func (m *TokenManager) ParseAccess(token string) (models.Actor, error) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return models.Actor{}, err
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return models.Actor{}, jwt.ErrTokenInvalidClaims
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return models.Actor{}, jwt.ErrTokenInvalidClaims
	}

	return models.Actor{ID: userID, Roles: models.ParseRoles(claims.Roles)}, nil
}
