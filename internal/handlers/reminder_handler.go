package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/reminders"
)

// ReminderRunner runs one round of debt reminders.
type ReminderRunner interface {
	Run(ctx context.Context) (*reminders.Report, error)
}

// ReminderHandler exposes reminder runs to internal callers.
type ReminderHandler struct {
	runner ReminderRunner
}

// NewReminderHandler creates a new ReminderHandler.
func NewReminderHandler(runner ReminderRunner) *ReminderHandler {
	return &ReminderHandler{runner: runner}
}

// RunReminders mails every debtor a summary of what they owe
// @Summary     Run debt reminders
// @Description Settle every active group and email each debtor (internal endpoint)
// @Tags        internal
// @Produce     json
// @Param       X-API-Key header   string            true "Internal API key"
// @Success     200       {object} reminders.Report  "Run report"
// @Failure     401       {object} ErrorResponse     "Invalid API key"
// @Failure     503       {object} ErrorResponse     "Internal API not configured"
// @Router      /internal/reminders/run [post]
func (h *ReminderHandler) RunReminders(c *gin.Context) {
	report, err := h.runner.Run(c.Request.Context())
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}
