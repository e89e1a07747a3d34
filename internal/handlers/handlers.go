package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/untibullet/bug-bounty/internal/auth"
	"github.com/untibullet/bug-bounty/internal/repository"
	"github.com/untibullet/bug-bounty/internal/workflow"
	"go.uber.org/zap"
)

// Коды ошибок для API
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeInvalidState = "INVALID_STATE"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL"
)

type Handler struct {
	workflow *workflow.Service
	users    repository.UserRepository
	tokens   *auth.Manager
	logger   *zap.Logger
}

// New создает новый экземпляр обработчика
func New(svc *workflow.Service, users repository.UserRepository, tokens *auth.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		workflow: svc,
		users:    users,
		tokens:   tokens,
		logger:   logger,
	}
}

// ErrorResponse представляет структуру ошибки API
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newErrorResponse создает стандартный ответ с ошибкой
func newErrorResponse(code, message string) ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	return resp
}

// fail отвечает клиенту по виду доменной ошибки. Ожидаемые ошибки логируются как Warn,
// непредвиденные как Error и клиенту не раскрываются.
func (h *Handler) fail(c echo.Context, op string, err error, fields ...zap.Field) error {
	status, code := http.StatusInternalServerError, ErrCodeInternal
	switch {
	case errors.Is(err, workflow.ErrValidation):
		status, code = http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, workflow.ErrNotFound):
		status, code = http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, workflow.ErrForbidden):
		status, code = http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, workflow.ErrInvalidState):
		status, code = http.StatusUnprocessableEntity, ErrCodeInvalidState
	case errors.Is(err, workflow.ErrConflict):
		status, code = http.StatusConflict, ErrCodeConflict
	}

	fields = append(fields, zap.Error(err))
	if status == http.StatusInternalServerError {
		h.logger.Error(op+": внутренняя ошибка", fields...)
		return c.JSON(status, newErrorResponse(code, "internal server error"))
	}

	h.logger.Warn(op+": запрос отклонен", append(fields, zap.String("code", code))...)
	return c.JSON(status, newErrorResponse(code, err.Error()))
}

// currentUser возвращает ID пользователя, определенный auth.Middleware
func (h *Handler) currentUser(c echo.Context) (uuid.UUID, bool) {
	return auth.UserID(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, newErrorResponse(ErrCodeUnauthorized, "authorization required"))
}

// RegisterRoutes регистрирует все маршруты API
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.Validator = newRequestValidator()

	api := e.Group("/api/v1")
	requireAuth := auth.Middleware(h.tokens, h.logger)

	// Auth
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/logout", h.Logout, requireAuth)
	api.POST("/auth/refresh-token", h.RefreshToken)
	api.GET("/auth/me", h.Me, requireAuth)

	// Bugs
	api.GET("/bugs", h.ListBugs)
	api.POST("/bugs", h.CreateBug, requireAuth)
	api.GET("/bugs/my-bugs", h.GetMyBugs, requireAuth)
	api.GET("/bugs/:bugId", h.GetBug)
	api.DELETE("/bugs/:bugId", h.DeleteBug, requireAuth)

	// Submissions
	api.GET("/submissions/my", h.GetMySubmissions, requireAuth)
	api.POST("/submissions/:bugId", h.SubmitSolution, requireAuth)
	api.PATCH("/submissions/:submissionId/approve", h.ApproveSubmission, requireAuth)
}
