package testutil_test

import (
	"testing"

	"splitledger/internal/errors"
	"splitledger/internal/models"
	"splitledger/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	var count int64
	for _, table := range []string{"users", "categories", "groups", "group_members", "expenses", "expense_splits", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDB_Isolated(t *testing.T) {
	first := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, first)
	second := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, second)

	testutil.CreateTestUser(t, first)

	var count int64
	second.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("expected a fresh database, found %d users", count)
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	alice := testutil.CreateTestUser(t, db)
	bob := testutil.CreateTestUser(t, db)
	if alice.ID == "" || alice.ID == bob.ID {
		t.Fatalf("expected distinct user IDs, got %q and %q", alice.ID, bob.ID)
	}

	group := testutil.CreateTestGroup(t, db, alice)
	testutil.AddTestMember(t, db, group, bob, models.MemberRoleMember)

	var members int64
	db.Model(&models.GroupMember{}).Where("group_id = ?", group.ID).Count(&members)
	if members != 2 {
		t.Errorf("expected 2 members, got %d", members)
	}

	expense := testutil.CreateTestExpense(t, db, group, alice, "30", alice, bob)
	var splits []models.ExpenseSplit
	db.Where("expense_id = ?", expense.ID).Find(&splits)
	if len(splits) != 2 {
		t.Fatalf("expected 2 splits, got %d", len(splits))
	}
	testutil.AssertDecimal(t, splits[0].Amount, "15", "split amount")

	category := testutil.CreateTestCategory(t, db, alice)
	if category.CreatedBy == nil || *category.CreatedBy != alice.ID {
		t.Errorf("expected category owned by %s", alice.ID)
	}
}

func TestAssertAppError(t *testing.T) {
	testutil.AssertAppError(t, errors.ErrGroupNotFound, "GROUP_NOT_FOUND")
	testutil.AssertAppError(t, errors.WithMessage(errors.ErrInvalidExpense, "expense 0: split set is empty"), "INVALID_EXPENSE")
}
