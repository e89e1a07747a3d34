package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/untibullet/bug-bounty/internal/workflow"
	"go.uber.org/zap"
)

// CreateBug создает новый баг от имени текущего пользователя
func (h *Handler) CreateBug(c echo.Context) error {
	userID, ok := h.currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req workflow.BugInput
	if err := c.Bind(&req); err != nil {
		h.logger.Error("CreateBug: ошибка парсинга тела запроса", zap.Error(err))
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeValidation, "invalid request body"))
	}

	bug, err := h.workflow.CreateBug(c.Request().Context(), userID, req)
	if err != nil {
		return h.fail(c, "CreateBug", err, zap.String("user_id", userID.String()))
	}

	h.logger.Info("CreateBug: баг создан",
		zap.String("bug_id", bug.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("bounty", bug.BountyAmount))
	return c.JSON(http.StatusCreated, map[string]interface{}{"bug": bug})
}

// ListBugs возвращает страницу багов с фильтрами status и search
func (h *Handler) ListBugs(c echo.Context) error {
	q := workflow.ListQuery{
		Status: c.QueryParam("status"),
		Search: c.QueryParam("search"),
	}
	// нечисловые page и limit заменяются значениями по умолчанию
	q.Page, _ = strconv.Atoi(c.QueryParam("page"))
	q.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	page, err := h.workflow.ListBugs(c.Request().Context(), q)
	if err != nil {
		return h.fail(c, "ListBugs", err)
	}

	return c.JSON(http.StatusOK, page)
}

// GetBug возвращает баг со всеми решениями
func (h *Handler) GetBug(c echo.Context) error {
	bugID := c.Param("bugId")

	details, err := h.workflow.GetBug(c.Request().Context(), bugID)
	if err != nil {
		return h.fail(c, "GetBug", err, zap.String("bug_id", bugID))
	}

	return c.JSON(http.StatusOK, details)
}

// GetMyBugs возвращает баги текущего пользователя
func (h *Handler) GetMyBugs(c echo.Context) error {
	userID, ok := h.currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	bugs, err := h.workflow.MyBugs(c.Request().Context(), userID)
	if err != nil {
		return h.fail(c, "GetMyBugs", err, zap.String("user_id", userID.String()))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"bugs": bugs})
}

// DeleteBug удаляет баг вместе с решениями
func (h *Handler) DeleteBug(c echo.Context) error {
	userID, ok := h.currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	bugID := c.Param("bugId")

	if err := h.workflow.DeleteBug(c.Request().Context(), userID, bugID); err != nil {
		return h.fail(c, "DeleteBug", err, zap.String("bug_id", bugID), zap.String("user_id", userID.String()))
	}

	h.logger.Info("DeleteBug: баг удален", zap.String("bug_id", bugID))
	return c.NoContent(http.StatusNoContent)
}
