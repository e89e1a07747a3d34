package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// CookieName имя cookie с токеном доступа
	CookieName = "accessToken"
	// RefreshCookieName имя cookie с токеном обновления
	RefreshCookieName = "refreshToken"

	userIDKey = "auth.user_id"
)

// Middleware пропускает запрос только с действительным токеном и сохраняет ID пользователя в контексте.
// Токен берется из заголовка Authorization: Bearer или из cookie.
func Middleware(m *Manager, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := extractToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, unauthorized("authorization required"))
			}

			userID, _, err := m.Parse(token)
			if err != nil {
				logger.Debug("auth: токен отклонен", zap.Error(err), zap.String("path", c.Path()))
				return c.JSON(http.StatusUnauthorized, unauthorized("invalid or expired token"))
			}

			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

// UserID возвращает ID пользователя, определенный Middleware
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(userIDKey).(uuid.UUID)
	return id, ok
}

func extractToken(c echo.Context) (string, bool) {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", false
		}
		return token, true
	}

	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

func unauthorized(message string) map[string]map[string]string {
	return map[string]map[string]string{
		"error": {"code": "UNAUTHORIZED", "message": message},
	}
}
