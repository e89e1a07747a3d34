package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/untibullet/bug-bounty/internal/workflow"
	"go.uber.org/zap"
)

// SubmitSolution отправляет решение к багу
func (h *Handler) SubmitSolution(c echo.Context) error {
	userID, ok := h.currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	bugID := c.Param("bugId")

	var req workflow.SolutionInput
	if err := c.Bind(&req); err != nil {
		h.logger.Error("SubmitSolution: ошибка парсинга тела запроса", zap.Error(err))
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeValidation, "invalid request body"))
	}

	res, err := h.workflow.SubmitSolution(c.Request().Context(), userID, bugID, req)
	if err != nil {
		return h.fail(c, "SubmitSolution", err, zap.String("bug_id", bugID), zap.String("user_id", userID.String()))
	}

	h.logger.Info("SubmitSolution: решение принято",
		zap.String("bug_id", bugID),
		zap.String("submission_id", res.Submission.ID.String()),
		zap.String("bug_status", string(res.BugStatus)))
	return c.JSON(http.StatusCreated, res)
}

// ApproveSubmission одобряет решение и закрывает баг
func (h *Handler) ApproveSubmission(c echo.Context) error {
	userID, ok := h.currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	submissionID := c.Param("submissionId")

	approval, err := h.workflow.ApproveSubmission(c.Request().Context(), userID, submissionID)
	if err != nil {
		return h.fail(c, "ApproveSubmission", err,
			zap.String("submission_id", submissionID),
			zap.String("user_id", userID.String()))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"bug":        approval.Bug,
		"submission": approval.Winner,
		"rejected":   len(approval.Rejected),
		"awarded":    approval.Credit.Amount,
	})
}

// GetMySubmissions возвращает решения текущего пользователя
func (h *Handler) GetMySubmissions(c echo.Context) error {
	userID, ok := h.currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	submissions, err := h.workflow.MySubmissions(c.Request().Context(), userID)
	if err != nil {
		return h.fail(c, "GetMySubmissions", err, zap.String("user_id", userID.String()))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"submissions": submissions})
}
