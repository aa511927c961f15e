package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/ledger"
	"splitledger/internal/metrics"
	"splitledger/internal/models"
	"splitledger/internal/testutil"
)

func newBalanceService(db *gorm.DB) BalanceServicer {
	return NewBalanceService(db, ledger.New(ledger.DefaultEpsilon), metrics.New())
}

func balanceOf(t *testing.T, result *GroupBalances, userID string) decimal.Decimal {
	t.Helper()
	for _, b := range result.Balances {
		if b.UserID == userID {
			return b.Balance
		}
	}
	t.Fatalf("no balance for %s", userID)
	return decimal.Zero
}

func TestGetGroupBalances(t *testing.T) {
	t.Run("one_payer_three_members", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		a, b, c := testutil.CreateTestUser(t, db), testutil.CreateTestUser(t, db), testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a)
		testutil.AddTestMember(t, db, group, b, models.MemberRoleMember)
		testutil.AddTestMember(t, db, group, c, models.MemberRoleMember)
		testutil.CreateTestExpense(t, db, group, a, "90", a, b, c)

		result, err := newBalanceService(db).GetGroupBalances(b.ID, group.ID)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, balanceOf(t, result, a.ID), "60", "balance of A")
		testutil.AssertDecimal(t, balanceOf(t, result, b.ID), "-30", "balance of B")
		testutil.AssertDecimal(t, balanceOf(t, result, c.ID), "-30", "balance of C")

		if result.Balances[0].UserID != a.ID {
			t.Errorf("expected creditor first, got %s", result.Balances[0].UserID)
		}
		if len(result.Debts) != 2 {
			t.Fatalf("expected 2 debts, got %d", len(result.Debts))
		}
		for _, d := range result.Debts {
			if d.To != a.ID {
				t.Errorf("expected debt to A, got %s", d.To)
			}
			testutil.AssertDecimal(t, d.Amount, "30", "debt amount")
		}
		if result.Warnings == nil || len(result.Warnings) != 0 {
			t.Errorf("expected empty warnings, got %v", result.Warnings)
		}
	})

	t.Run("offsetting_expenses", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		a, b := testutil.CreateTestUser(t, db), testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a)
		testutil.AddTestMember(t, db, group, b, models.MemberRoleMember)
		testutil.CreateTestExpense(t, db, group, a, "50", a, b)
		testutil.CreateTestExpense(t, db, group, b, "50", a, b)

		result, err := newBalanceService(db).GetGroupBalances(a.ID, group.ID)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, balanceOf(t, result, a.ID), "0", "balance of A")
		testutil.AssertDecimal(t, balanceOf(t, result, b.ID), "0", "balance of B")
		if len(result.Debts) != 0 {
			t.Errorf("expected no debts, got %v", result.Debts)
		}
	})

	t.Run("four_members", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		a := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a)
		others := make([]*models.User, 3)
		for i := range others {
			others[i] = testutil.CreateTestUser(t, db)
			testutil.AddTestMember(t, db, group, others[i], models.MemberRoleMember)
		}
		testutil.CreateTestExpense(t, db, group, a, "100", a, others[0], others[1], others[2])

		result, err := newBalanceService(db).GetGroupBalances(a.ID, group.ID)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, balanceOf(t, result, a.ID), "75", "balance of A")
		if len(result.Debts) != 3 {
			t.Fatalf("expected 3 debts, got %d", len(result.Debts))
		}
		for _, d := range result.Debts {
			if d.To != a.ID {
				t.Errorf("expected debt to A, got %s", d.To)
			}
			testutil.AssertDecimal(t, d.Amount, "25", "debt amount")
		}
	})

	t.Run("uneven_split_keeps_precision", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		a, b, c := testutil.CreateTestUser(t, db), testutil.CreateTestUser(t, db), testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a)
		testutil.AddTestMember(t, db, group, b, models.MemberRoleMember)
		testutil.AddTestMember(t, db, group, c, models.MemberRoleMember)
		testutil.CreateTestExpense(t, db, group, a, "100", a, b, c)

		result, err := newBalanceService(db).GetGroupBalances(a.ID, group.ID)
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, balanceOf(t, result, a.ID), "66.67", "balance of A")
		if len(result.Warnings) != 0 {
			t.Errorf("expected a balanced ledger, got %v", result.Warnings)
		}
	})

	t.Run("deleted_expenses_ignored", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		a, b := testutil.CreateTestUser(t, db), testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a)
		testutil.AddTestMember(t, db, group, b, models.MemberRoleMember)
		expense := testutil.CreateTestExpense(t, db, group, a, "40", a, b)

		_, err := NewExpenseService(db).DeleteExpense(a.ID, expense.ID)
		testutil.AssertNoError(t, err)

		result, err := newBalanceService(db).GetGroupBalances(a.ID, group.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, balanceOf(t, result, a.ID), "0", "balance of A")
		if len(result.Debts) != 0 {
			t.Errorf("expected no debts, got %v", result.Debts)
		}
	})

	t.Run("non_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		owner, outsider := testutil.CreateTestUser(t, db), testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, owner)

		_, err := newBalanceService(db).GetGroupBalances(outsider.ID, group.ID)
		testutil.AssertAppError(t, err, apperrors.ErrGroupNotFound.Code)
	})
}

func TestComputeGroupSettlement(t *testing.T) {
	t.Run("no_access_check", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		a, b := testutil.CreateTestUser(t, db), testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, a)
		testutil.AddTestMember(t, db, group, b, models.MemberRoleMember)
		testutil.CreateTestExpense(t, db, group, b, "20", a, b)

		result, err := newBalanceService(db).ComputeGroupSettlement(group.ID)
		testutil.AssertNoError(t, err)
		if len(result.Debts) != 1 || result.Debts[0].From != a.ID {
			t.Fatalf("expected A to owe B, got %v", result.Debts)
		}
		testutil.AssertDecimal(t, result.Debts[0].Amount, "10", "debt amount")
	})

	t.Run("missing_group", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		_, err := newBalanceService(db).ComputeGroupSettlement("00000000-0000-0000-0000-000000000000")
		testutil.AssertAppError(t, err, apperrors.ErrGroupNotFound.Code)
	})
}

func TestGetGroupStats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	a, b := testutil.CreateTestUser(t, db), testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, a)
	testutil.AddTestMember(t, db, group, b, models.MemberRoleMember)
	testutil.CreateTestExpense(t, db, group, a, "30", a, b)
	testutil.CreateTestExpense(t, db, group, b, "12.50", a, b)

	stats, err := newBalanceService(db).GetGroupStats(a.ID, group.ID)
	testutil.AssertNoError(t, err)

	if stats.TotalMembers != 2 {
		t.Errorf("expected 2 members, got %d", stats.TotalMembers)
	}
	if stats.TotalExpenses != 2 {
		t.Errorf("expected 2 expenses, got %d", stats.TotalExpenses)
	}
	testutil.AssertDecimal(t, stats.TotalAmount, "42.5", "total amount")
	if len(stats.Categories) != 1 || stats.Categories[0].CategoryID != nil {
		t.Errorf("expected a single uncategorized bucket, got %v", stats.Categories)
	}
	if stats.Balances == nil {
		t.Fatal("expected balances")
	}
	testutil.AssertDecimal(t, balanceOf(t, stats.Balances, a.ID), "8.75", "balance of A")
}

func TestGetUserSummary(t *testing.T) {
	t.Run("across_groups", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		a, b, c := testutil.CreateTestUser(t, db), testutil.CreateTestUser(t, db), testutil.CreateTestUser(t, db)

		trip := testutil.CreateTestGroup(t, db, a)
		testutil.AddTestMember(t, db, trip, b, models.MemberRoleMember)
		testutil.CreateTestExpense(t, db, trip, a, "60", a, b)

		flat := testutil.CreateTestGroup(t, db, c)
		testutil.AddTestMember(t, db, flat, a, models.MemberRoleMember)
		testutil.CreateTestExpense(t, db, flat, c, "20", a, c)

		summary, err := newBalanceService(db).GetUserSummary(a.ID)
		testutil.AssertNoError(t, err)

		if len(summary.Groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(summary.Groups))
		}
		testutil.AssertDecimal(t, summary.TotalOwed, "30", "total owed")
		testutil.AssertDecimal(t, summary.TotalOwing, "10", "total owing")
		testutil.AssertDecimal(t, summary.NetBalance, "20", "net balance")
		for _, g := range summary.Groups {
			if len(g.Debts) != 1 {
				t.Errorf("expected one debt in %s, got %d", g.GroupName, len(g.Debts))
			}
		}
	})

	t.Run("no_groups", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		user := testutil.CreateTestUser(t, db)

		summary, err := newBalanceService(db).GetUserSummary(user.ID)
		testutil.AssertNoError(t, err)
		if len(summary.Groups) != 0 {
			t.Errorf("expected no groups, got %d", len(summary.Groups))
		}
		testutil.AssertDecimal(t, summary.NetBalance, "0", "net balance")
	})
}

func TestListActiveGroupIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	owner := testutil.CreateTestUser(t, db)
	kept := testutil.CreateTestGroup(t, db, owner)
	gone := testutil.CreateTestGroup(t, db, owner)
	testutil.AssertNoError(t, NewGroupService(db).DeleteGroup(owner.ID, gone.ID))

	ids, err := newBalanceService(db).ListActiveGroupIDs()
	testutil.AssertNoError(t, err)
	if len(ids) != 1 || ids[0] != kept.ID {
		t.Errorf("expected only %s, got %v", kept.ID, ids)
	}
}
