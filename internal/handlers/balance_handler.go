package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"splitledger/internal/services"
)

// BalanceHandler serves balances and settlement suggestions. Nothing here is
// cached; each request recomputes from the active expenses.
type BalanceHandler struct {
	balanceService services.BalanceServicer
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balanceService services.BalanceServicer) *BalanceHandler {
	return &BalanceHandler{balanceService: balanceService}
}

// GetGroupBalances returns each member's net balance and the transfers that
// settle the group
// @Summary     Group balances
// @Description Positive balances are owed to the member, negative balances are owed by the member.
// @Description Debts are a greedy settlement: at most one fewer than the number of unsettled members.
// @Tags        balances
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Group ID"
// @Success     200 {object} services.GroupBalances "Balances, debts and warnings"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /groups/{id}/balances [get]
func (h *BalanceHandler) GetGroupBalances(c *gin.Context) {
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

	result, err := h.balanceService.GetGroupBalances(userID, groupID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetGroupStats summarises a group's spending
// @Summary     Group statistics
// @Tags        balances
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Group ID"
// @Success     200 {object} services.GroupStats "Statistics"
// @Failure     404 {object} ErrorResponse "Group not found"
// @Router      /groups/{id}/stats [get]
func (h *BalanceHandler) GetGroupStats(c *gin.Context) {
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

	stats, err := h.balanceService.GetGroupStats(userID, groupID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetUserSummary returns the caller's position in every group
// @Summary     My balances
// @Tags        balances
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.UserSummary "Per-group balances and totals"
// @Router      /me/balances [get]
func (h *BalanceHandler) GetUserSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.balanceService.GetUserSummary(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
