package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/untibullet/bug-bounty/internal/auth"
	"github.com/untibullet/bug-bounty/internal/models"
	"github.com/untibullet/bug-bounty/internal/repository"
	"go.uber.org/zap"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=2,max=20"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,strong_password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r *registerRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// Register регистрирует нового пользователя
func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("Register: ошибка парсинга тела запроса", zap.Error(err))
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeValidation, "invalid request body"))
	}
	req.normalize()
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeValidation, validationMessage(err)))
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Register: ошибка хеширования пароля", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, newErrorResponse(ErrCodeInternal, "failed to register user"))
	}

	user := &models.User{ID: uuid.New(), Username: req.Username, Email: req.Email}
	err = h.users.CreateUser(c.Request().Context(), user, hash)
	if errors.Is(err, repository.ErrAlreadyExists) {
		h.logger.Warn("Register: пользователь уже существует", zap.String("username", req.Username))
		return c.JSON(http.StatusConflict, newErrorResponse(ErrCodeConflict, "username or email already taken"))
	}
	if err != nil {
		h.logger.Error("Register: ошибка создания пользователя", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, newErrorResponse(ErrCodeInternal, "failed to register user"))
	}

	h.logger.Info("Register: пользователь зарегистрирован", zap.String("user_id", user.ID.String()))
	return c.JSON(http.StatusCreated, map[string]interface{}{"user": user})
}

// Login выдает токен доступа по email и паролю
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("Login: ошибка парсинга тела запроса", zap.Error(err))
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeValidation, "invalid request body"))
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeValidation, validationMessage(err)))
	}

	email := req.Email
	user, hash, err := h.users.GetUserCredentials(c.Request().Context(), email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.logger.Error("Login: ошибка получения пользователя", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, newErrorResponse(ErrCodeInternal, "failed to login"))
	}
	if errors.Is(err, repository.ErrNotFound) {
		_ = auth.CompareDummy(req.Password)
	}
	if err != nil || auth.CheckPassword(hash, req.Password) != nil {
		h.logger.Warn("Login: неверные учетные данные", zap.String("email", email))
		return c.JSON(http.StatusUnauthorized, newErrorResponse(ErrCodeUnauthorized, "invalid email or password"))
	}

	session, err := h.startSession(c, user)
	if err != nil {
		h.logger.Error("Login: ошибка выпуска токена", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, newErrorResponse(ErrCodeInternal, "failed to login"))
	}

	h.logger.Info("Login: пользователь вошел", zap.String("user_id", user.ID.String()))
	return c.JSON(http.StatusOK, session)
}

// RefreshToken выдает новую пару токенов по токену обновления из тела запроса или cookie
func (h *Handler) RefreshToken(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("RefreshToken: ошибка парсинга тела запроса", zap.Error(err))
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeValidation, "invalid request body"))
	}
	if req.RefreshToken == "" {
		if cookie, err := c.Cookie(auth.RefreshCookieName); err == nil {
			req.RefreshToken = cookie.Value
		}
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusUnauthorized, newErrorResponse(ErrCodeUnauthorized, "refresh token required"))
	}

	userID, _, err := h.tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		h.logger.Warn("RefreshToken: токен отклонен", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, newErrorResponse(ErrCodeUnauthorized, "invalid or expired refresh token"))
	}

	user, err := h.users.GetUser(c.Request().Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, newErrorResponse(ErrCodeUnauthorized, "invalid or expired refresh token"))
	}
	if err != nil {
		h.logger.Error("RefreshToken: ошибка получения пользователя", zap.Error(err), zap.String("user_id", userID.String()))
		return c.JSON(http.StatusInternalServerError, newErrorResponse(ErrCodeInternal, "failed to refresh token"))
	}

	session, err := h.startSession(c, user)
	if err != nil {
		h.logger.Error("RefreshToken: ошибка выпуска токена", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, newErrorResponse(ErrCodeInternal, "failed to refresh token"))
	}
	return c.JSON(http.StatusOK, session)
}

// startSession выпускает токены доступа и обновления и выставляет их в cookie
func (h *Handler) startSession(c echo.Context, user *models.User) (map[string]interface{}, error) {
	access, expiresAt, err := h.tokens.Issue(*user)
	if err != nil {
		return nil, err
	}
	refresh, refreshExpiresAt, err := h.tokens.IssueRefresh(*user)
	if err != nil {
		return nil, err
	}

	c.SetCookie(sessionCookie(auth.CookieName, access, expiresAt))
	c.SetCookie(sessionCookie(auth.RefreshCookieName, refresh, refreshExpiresAt))

	return map[string]interface{}{
		"user":          user,
		"access_token":  access,
		"refresh_token": refresh,
		"expires_at":    expiresAt,
	}, nil
}

func sessionCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Logout удаляет cookie с токенами
func (h *Handler) Logout(c echo.Context) error {
	for _, name := range []string{auth.CookieName, auth.RefreshCookieName} {
		cookie := sessionCookie(name, "", time.Unix(0, 0))
		cookie.MaxAge = -1
		c.SetCookie(cookie)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me возвращает текущего пользователя вместе с суммой наград
func (h *Handler) Me(c echo.Context) error {
	userID, ok := h.currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.users.GetUser(c.Request().Context(), userID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, newErrorResponse(ErrCodeNotFound, "user not found"))
	}
	if err != nil {
		h.logger.Error("Me: ошибка получения пользователя", zap.Error(err), zap.String("user_id", userID.String()))
		return c.JSON(http.StatusInternalServerError, newErrorResponse(ErrCodeInternal, "failed to get user"))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"user": user})
}
