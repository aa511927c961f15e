package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/events"
	"splitledger/internal/pagination"
	"splitledger/internal/services"
)

// ExpenseHandler handles expense-related requests.
type ExpenseHandler struct {
	expenseService services.ExpenseServicer
	auditService   services.AuditServicer
	publisher      events.Publisher
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(expenseService services.ExpenseServicer, auditService services.AuditServicer, publisher events.Publisher) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService, auditService: auditService, publisher: publisher}
}

// CreateExpenseRequest represents the request payload for recording an expense
type CreateExpenseRequest struct {
	GroupID      string          `json:"group_id" binding:"required,uuid"`
	Description  string          `json:"description" binding:"required,min=1,max=200"`
	Amount       decimal.Decimal `json:"amount" binding:"required,money" swaggertype:"string" example:"42.50"`
	PaidBy       string          `json:"paid_by" binding:"omitempty,uuid"`
	SplitBetween []string        `json:"split_between" binding:"required,min=1,dive,uuid"`
	CategoryID   *string         `json:"category_id" binding:"omitempty,uuid"`
	Date         *string         `json:"date"`
}

// UpdateExpenseRequest represents the request payload for changing an expense.
// An empty category_id clears the category.
type UpdateExpenseRequest struct {
	Description *string          `json:"description" binding:"omitempty,min=1,max=200"`
	Amount      *decimal.Decimal `json:"amount" binding:"omitempty,money" swaggertype:"string" example:"42.50"`
	CategoryID  *string          `json:"category_id" binding:"omitempty,uuid|len=0"`
}

// CreateExpense handles the creation of an expense split equally between members
// @Summary     Record an expense
// @Description The payer and every participant must be members of the group
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateExpenseRequest true "Expense details"
// @Success     201 {object} models.Expense "Expense created"
// @Failure     400 {object} ErrorResponse "Invalid input or invalid expense"
// @Failure     404 {object} ErrorResponse "Group or category not found"
// @Router      /expenses [post]
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var date *time.Time
	if req.Date != nil && *req.Date != "" {
		parsed, parseErr := parseFlexibleTime(*req.Date)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid date format, use RFC3339 or YYYY-MM-DD"))
			return
		}
		date = &parsed
	}

	expense, err := h.expenseService.CreateExpense(userID, services.CreateExpenseInput{
		GroupID:      req.GroupID,
		Description:  req.Description,
		Amount:       req.Amount,
		PaidBy:       req.PaidBy,
		SplitBetween: req.SplitBetween,
		CategoryID:   req.CategoryID,
		Date:         date,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(services.AuditEntry{
		UserID: userID, GroupID: expense.GroupID, Action: "CREATE_EXPENSE", ResourceType: "expense", ResourceID: expense.ID,
		IPAddress: c.ClientIP(),
		Changes: map[string]interface{}{
			"amount":        expense.Amount.String(),
			"paid_by":       expense.PaidBy,
			"split_between": expense.Participants(),
		},
	})
	publish(h.publisher, events.ExpenseCreated, expense.GroupID, expense.ID, userID)

	c.JSON(http.StatusCreated, gin.H{"expense": expense})
}

// GetExpenseByID returns an expense with its splits
// @Summary     Get an expense
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Expense ID"
// @Success     200 {object} models.Expense "Expense"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Router      /expenses/{id} [get]
func (h *ExpenseHandler) GetExpenseByID(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	expense, err := h.expenseService.GetExpenseByID(userID, expenseID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// UpdateExpense changes an expense's description, amount or category
// @Summary     Update an expense
// @Description Only the payer or a group admin may update; split shares are recomputed
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Expense ID"
// @Param       request body UpdateExpenseRequest true "Fields to change"
// @Success     200 {object} models.Expense "Updated expense"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not the payer or an admin"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Router      /expenses/{id} [put]
func (h *ExpenseHandler) UpdateExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	expense, err := h.expenseService.UpdateExpense(userID, expenseID, services.UpdateExpenseInput{
		Description: req.Description,
		Amount:      req.Amount,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	changes := map[string]interface{}{}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.Amount != nil {
		changes["amount"] = req.Amount.String()
	}
	if req.CategoryID != nil {
		changes["category_id"] = *req.CategoryID
	}
	h.auditService.Log(services.AuditEntry{
		UserID: userID, GroupID: expense.GroupID, Action: "UPDATE_EXPENSE", ResourceType: "expense", ResourceID: expense.ID,
		IPAddress: c.ClientIP(), Changes: changes,
	})
	publish(h.publisher, events.ExpenseUpdated, expense.GroupID, expense.ID, userID)

	c.JSON(http.StatusOK, gin.H{"expense": expense})
}

// DeleteExpense soft-deletes an expense and its splits
// @Summary     Delete an expense
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Expense ID"
// @Success     200 {object} map[string]string "Expense deleted"
// @Failure     403 {object} ErrorResponse "Not the payer or an admin"
// @Failure     404 {object} ErrorResponse "Expense not found"
// @Router      /expenses/{id} [delete]
func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenseID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	expense, err := h.expenseService.DeleteExpense(userID, expenseID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(services.AuditEntry{
		UserID: userID, GroupID: expense.GroupID, Action: "DELETE_EXPENSE", ResourceType: "expense", ResourceID: expense.ID,
		IPAddress: c.ClientIP(), Changes: map[string]interface{}{"amount": expense.Amount.String()},
	})
	publish(h.publisher, events.ExpenseDeleted, expense.GroupID, expense.ID, userID)

	c.JSON(http.StatusOK, gin.H{"message": "Expense deleted successfully"})
}

// GetGroupExpenses lists a group's active expenses
// @Summary     List group expenses
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id          path  string true  "Group ID"
// @Param       category_id query string false "Filter by category"
// @Param       paid_by     query string false "Filter by payer"
// @Param       start_date  query string false "From date (RFC3339 or YYYY-MM-DD)"
// @Param       end_date    query string false "To date (RFC3339 or YYYY-MM-DD)"
// @Param       description query string false "Case-insensitive description match"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Param       sort        query string false "newest (default) or oldest"
// @Success     200 {object} pagination.PageResponse[models.Expense] "Paginated expenses"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /groups/{id}/expenses [get]
func (h *ExpenseHandler) GetGroupExpenses(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	groupID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, filter, err := parseExpenseQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.expenseService.GetGroupExpenses(userID, groupID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPaidExpenses lists expenses the caller paid, across groups
// @Summary     List expenses I paid
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       group_id    query string false "Filter by group"
// @Param       category_id query string false "Filter by category"
// @Param       start_date  query string false "From date (RFC3339 or YYYY-MM-DD)"
// @Param       end_date    query string false "To date (RFC3339 or YYYY-MM-DD)"
// @Param       description query string false "Case-insensitive description match"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Param       sort        query string false "newest (default) or oldest"
// @Success     200 {object} pagination.PageResponse[models.Expense] "Paginated expenses"
// @Router      /me/expenses/paid [get]
func (h *ExpenseHandler) GetPaidExpenses(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, filter, err := parseExpenseQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.expenseService.GetPaidExpenses(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOwedExpenses lists expenses the caller takes part in, across groups
// @Summary     List expenses I share
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       group_id    query string false "Filter by group"
// @Param       category_id query string false "Filter by category"
// @Param       paid_by     query string false "Filter by payer"
// @Param       start_date  query string false "From date (RFC3339 or YYYY-MM-DD)"
// @Param       end_date    query string false "To date (RFC3339 or YYYY-MM-DD)"
// @Param       description query string false "Case-insensitive description match"
// @Param       page        query int    false "Page number (default 1)"
// @Param       page_size   query int    false "Items per page (default 20, max 100)"
// @Param       sort        query string false "newest (default) or oldest"
// @Success     200 {object} pagination.PageResponse[models.Expense] "Paginated expenses"
// @Router      /me/expenses/owed [get]
func (h *ExpenseHandler) GetOwedExpenses(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	page, filter, err := parseExpenseQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.expenseService.GetOwedExpenses(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseExpenseQuery(c *gin.Context) (pagination.PageRequest, services.ExpenseFilter, error) {
	var page pagination.PageRequest
	var filter services.ExpenseFilter

	if err := c.ShouldBindQuery(&page); err != nil {
		return page, filter, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	var err error
	if filter.GroupID, err = parseOptionalID(c, "group_id"); err != nil {
		return page, filter, err
	}
	if filter.CategoryID, err = parseOptionalID(c, "category_id"); err != nil {
		return page, filter, err
	}
	if filter.PaidBy, err = parseOptionalID(c, "paid_by"); err != nil {
		return page, filter, err
	}

	if v := c.Query("start_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return page, filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid start_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := parseFlexibleTime(v)
		if err != nil {
			return page, filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid end_date format, use RFC3339 or YYYY-MM-DD")
		}
		filter.EndDate = &t
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return page, filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "end_date must not be before start_date")
	}

	filter.Description = c.Query("description")
	return page, filter, nil
}
