// Package auth выпускает и проверяет токены доступа и определяет текущего пользователя запроса.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/untibullet/bug-bounty/internal/models"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Типы токенов
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Claims содержимое токена
type Claims struct {
	Username string `json:"username"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// Manager выпускает и проверяет токены HS256
type Manager struct {
	secret     []byte
	ttl        time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewManager создает менеджер токенов. ttl задает срок токена доступа, refreshTTL срок токена обновления.
func NewManager(secret string, ttl, refreshTTL time.Duration, issuer string) *Manager {
	return &Manager{
		secret:     []byte(secret),
		ttl:        ttl,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		now:        time.Now,
	}
}

// Issue выпускает токен доступа для пользователя и возвращает время его истечения
func (m *Manager) Issue(user models.User) (string, time.Time, error) {
	return m.issue(user, TokenAccess, m.ttl)
}

// IssueRefresh выпускает токен обновления
func (m *Manager) IssueRefresh(user models.User) (string, time.Time, error) {
	return m.issue(user, TokenRefresh, m.refreshTTL)
}

// Parse проверяет токен доступа и возвращает ID пользователя
func (m *Manager) Parse(token string) (uuid.UUID, *Claims, error) {
	return m.parse(token, TokenAccess)
}

// ParseRefresh проверяет токен обновления
func (m *Manager) ParseRefresh(token string) (uuid.UUID, *Claims, error) {
	return m.parse(token, TokenRefresh)
}

func (m *Manager) issue(user models.User, typ string, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		Username: user.Username,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// parse проверяет подпись, издателя, срок действия и тип токена
func (m *Manager) parse(token, typ string) (uuid.UUID, *Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Type != typ {
		return uuid.Nil, nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.Type)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return userID, claims, nil
}
