package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/ledger"
	"splitledger/internal/services"
)

// --- mock balance service ---

type mockBalanceService struct {
	getGroupBalancesFn func(userID, groupID string) (*services.GroupBalances, error)
	getGroupStatsFn    func(userID, groupID string) (*services.GroupStats, error)
	getUserSummaryFn   func(userID string) (*services.UserSummary, error)
}

func (m *mockBalanceService) GetGroupBalances(userID, groupID string) (*services.GroupBalances, error) {
	if m.getGroupBalancesFn != nil {
		return m.getGroupBalancesFn(userID, groupID)
	}
	return &services.GroupBalances{GroupID: groupID, Warnings: []services.Warning{}}, nil
}

func (m *mockBalanceService) GetGroupStats(userID, groupID string) (*services.GroupStats, error) {
	if m.getGroupStatsFn != nil {
		return m.getGroupStatsFn(userID, groupID)
	}
	return &services.GroupStats{}, nil
}

func (m *mockBalanceService) GetUserSummary(userID string) (*services.UserSummary, error) {
	if m.getUserSummaryFn != nil {
		return m.getUserSummaryFn(userID)
	}
	return &services.UserSummary{Groups: []services.GroupPosition{}}, nil
}

func (m *mockBalanceService) ComputeGroupSettlement(groupID string) (*services.GroupBalances, error) {
	return &services.GroupBalances{GroupID: groupID}, nil
}

func (m *mockBalanceService) ListActiveGroupIDs() ([]string, error) { return nil, nil }

var _ services.BalanceServicer = (*mockBalanceService)(nil)

func setupBalanceRouter(handler *BalanceHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.GET("/groups/:id/balances", handler.GetGroupBalances)
	auth.GET("/groups/:id/stats", handler.GetGroupStats)
	auth.GET("/me/balances", handler.GetUserSummary)
	return r
}

func TestBalanceHandler_GetGroupBalances(t *testing.T) {
	t.Run("returns balances debts and warnings", func(t *testing.T) {
		svc := &mockBalanceService{
			getGroupBalancesFn: func(_, groupID string) (*services.GroupBalances, error) {
				return &services.GroupBalances{
					GroupID: groupID,
					Balances: []services.MemberBalance{
						{UserID: testUserID, Balance: decimal.NewFromInt(30)},
						{UserID: otherUserID, Balance: decimal.NewFromInt(-30)},
					},
					Debts:    []ledger.Debt{{From: otherUserID, To: testUserID, Amount: decimal.NewFromInt(30)}},
					Warnings: []services.Warning{},
				}, nil
			},
		}
		r := setupBalanceRouter(NewBalanceHandler(svc))

		rec := doRequest(r, "GET", "/groups/"+testGroupID+"/balances", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := parseJSON(t, rec)
		debts := result["debts"].([]interface{})
		if len(debts) != 1 {
			t.Fatalf("expected 1 debt, got %d", len(debts))
		}
		debt := debts[0].(map[string]interface{})
		if debt["from"] != otherUserID || debt["to"] != testUserID || debt["amount"] != "30" {
			t.Errorf("unexpected debt %v", debt)
		}
		if warnings, ok := result["warnings"].([]interface{}); !ok || len(warnings) != 0 {
			t.Errorf("expected empty warnings array, got %v", result["warnings"])
		}
	})

	t.Run("surfaces unbalanced warning with 200", func(t *testing.T) {
		svc := &mockBalanceService{
			getGroupBalancesFn: func(_, groupID string) (*services.GroupBalances, error) {
				return &services.GroupBalances{
					GroupID:  groupID,
					Warnings: []services.Warning{{Code: apperrors.ErrUnbalancedLedger.Code, Message: "off by 0.05"}},
				}, nil
			},
		}
		r := setupBalanceRouter(NewBalanceHandler(svc))

		rec := doRequest(r, "GET", "/groups/"+testGroupID+"/balances", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		warnings := parseJSON(t, rec)["warnings"].([]interface{})
		if len(warnings) != 1 || warnings[0].(map[string]interface{})["code"] != "UNBALANCED_LEDGER" {
			t.Errorf("expected UNBALANCED_LEDGER warning, got %v", warnings)
		}
	})

	t.Run("returns 404 for non-member", func(t *testing.T) {
		svc := &mockBalanceService{
			getGroupBalancesFn: func(_, _ string) (*services.GroupBalances, error) { return nil, apperrors.ErrGroupNotFound },
		}
		r := setupBalanceRouter(NewBalanceHandler(svc))

		rec := doRequest(r, "GET", "/groups/"+testGroupID+"/balances", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("returns 500 without leaking details", func(t *testing.T) {
		svc := &mockBalanceService{
			getGroupBalancesFn: func(_, _ string) (*services.GroupBalances, error) {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, apperrors.ErrInvalidExpense)
			},
		}
		r := setupBalanceRouter(NewBalanceHandler(svc))

		rec := doRequest(r, "GET", "/groups/"+testGroupID+"/balances", "")

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INTERNAL_ERROR")
	})
}

func TestBalanceHandler_GetGroupStats(t *testing.T) {
	svc := &mockBalanceService{
		getGroupStatsFn: func(_, _ string) (*services.GroupStats, error) {
			return &services.GroupStats{TotalMembers: 3, TotalExpenses: 2, TotalAmount: decimal.RequireFromString("42.5")}, nil
		},
	}
	r := setupBalanceRouter(NewBalanceHandler(svc))

	rec := doRequest(r, "GET", "/groups/"+testGroupID+"/stats", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	result := parseJSON(t, rec)
	if result["total_members"] != float64(3) || result["total_amount"] != "42.5" {
		t.Errorf("unexpected stats %v", result)
	}
}

func TestBalanceHandler_GetUserSummary(t *testing.T) {
	svc := &mockBalanceService{
		getUserSummaryFn: func(userID string) (*services.UserSummary, error) {
			if userID != testUserID {
				t.Errorf("expected %s, got %s", testUserID, userID)
			}
			return &services.UserSummary{
				Groups:     []services.GroupPosition{{GroupID: testGroupID, Balance: decimal.NewFromInt(20)}},
				TotalOwed:  decimal.NewFromInt(30),
				TotalOwing: decimal.NewFromInt(10),
				NetBalance: decimal.NewFromInt(20),
			}, nil
		},
	}
	r := setupBalanceRouter(NewBalanceHandler(svc))

	rec := doRequest(r, "GET", "/me/balances", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if parseJSON(t, rec)["net_balance"] != "20" {
		t.Error("expected net balance 20")
	}
}
