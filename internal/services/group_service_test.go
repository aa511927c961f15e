package services

import (
	"testing"

	"gorm.io/gorm"

	"splitledger/internal/models"
	"splitledger/internal/pagination"
	"splitledger/internal/testutil"
)

func TestCreateGroup(t *testing.T) {
	t.Run("creator_becomes_admin", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		user := testutil.CreateTestUser(t, db)

		group, err := svc.CreateGroup(user.ID, " Trip ", "Lisbon")
		testutil.AssertNoError(t, err)

		if group.Name != "Trip" {
			t.Errorf("expected trimmed name Trip, got %q", group.Name)
		}
		if len(group.Members) != 1 || group.Members[0].Role != models.MemberRoleAdmin {
			t.Fatalf("expected creator as single admin, got %+v", group.Members)
		}
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateGroup(user.ID, "  ", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestLockGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	alice := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, alice)

	testutil.AssertNoError(t, db.Transaction(func(tx *gorm.DB) error {
		return lockGroup(tx, group.ID)
	}))

	db.Delete(group)
	err := db.Transaction(func(tx *gorm.DB) error {
		return lockGroup(tx, group.ID)
	})
	testutil.AssertAppError(t, err, "GROUP_NOT_FOUND")
}

func TestGetUserGroups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewGroupService(db)
	alice := testutil.CreateTestUser(t, db)
	bob := testutil.CreateTestUser(t, db)

	testutil.CreateTestGroup(t, db, alice)
	shared := testutil.CreateTestGroup(t, db, bob)
	testutil.AddTestMember(t, db, shared, alice, models.MemberRoleMember)
	testutil.CreateTestGroup(t, db, bob)

	page, err := svc.GetUserGroups(alice.ID, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 2 || len(page.Data) != 2 {
		t.Errorf("expected 2 groups, got %d (%d items)", page.TotalItems, len(page.Data))
	}
}

func TestGetGroupByID(t *testing.T) {
	t.Run("member_sees_members", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)
		testutil.AddTestMember(t, db, group, bob, models.MemberRoleMember)

		got, err := svc.GetGroupByID(bob.ID, group.ID)
		testutil.AssertNoError(t, err)
		if len(got.Members) != 2 {
			t.Fatalf("expected 2 members, got %d", len(got.Members))
		}
		if got.Members[0].User == nil || got.Members[0].User.ID != alice.ID {
			t.Error("expected members to be preloaded with users, oldest first")
		}
	})

	t.Run("non_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		mallory := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)

		_, err := svc.GetGroupByID(mallory.ID, group.ID)
		testutil.AssertAppError(t, err, "GROUP_NOT_FOUND")
	})
}

func TestUpdateGroup(t *testing.T) {
	t.Run("admin", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)

		name := "Renamed"
		got, err := svc.UpdateGroup(alice.ID, group.ID, &name, nil)
		testutil.AssertNoError(t, err)
		if got.Name != "Renamed" {
			t.Errorf("expected Renamed, got %s", got.Name)
		}
	})

	t.Run("non_admin", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)
		testutil.AddTestMember(t, db, group, bob, models.MemberRoleMember)

		name := "Mine now"
		_, err := svc.UpdateGroup(bob.ID, group.ID, &name, nil)
		testutil.AssertAppError(t, err, "NOT_GROUP_ADMIN")
	})
}

func TestDeleteGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewGroupService(db)
	alice := testutil.CreateTestUser(t, db)
	bob := testutil.CreateTestUser(t, db)
	group := testutil.CreateTestGroup(t, db, alice)
	testutil.AddTestMember(t, db, group, bob, models.MemberRoleMember)
	expense := testutil.CreateTestExpense(t, db, group, alice, "20", alice, bob)

	err := svc.DeleteGroup(bob.ID, group.ID)
	testutil.AssertAppError(t, err, "NOT_GROUP_ADMIN")

	testutil.AssertNoError(t, svc.DeleteGroup(alice.ID, group.ID))

	_, err = svc.GetGroupByID(alice.ID, group.ID)
	testutil.AssertAppError(t, err, "GROUP_NOT_FOUND")

	var expenses, splits int64
	db.Model(&models.Expense{}).Where("id = ?", expense.ID).Count(&expenses)
	db.Model(&models.ExpenseSplit{}).Where("expense_id = ?", expense.ID).Count(&splits)
	if expenses != 0 || splits != 0 {
		t.Errorf("expected expense and splits to be soft-deleted, got %d expenses and %d splits", expenses, splits)
	}
}

func TestAddMember(t *testing.T) {
	t.Run("by_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)

		member, err := svc.AddMember(alice.ID, group.ID, AddMemberInput{Email: bob.Email})
		testutil.AssertNoError(t, err)
		if member.UserID != bob.ID || member.Role != models.MemberRoleMember {
			t.Errorf("unexpected member %+v", member)
		}
	})

	t.Run("already_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)

		_, err := svc.AddMember(alice.ID, group.ID, AddMemberInput{UserID: alice.ID})
		testutil.AssertAppError(t, err, "ALREADY_MEMBER")
	})

	t.Run("unknown_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)

		_, err := svc.AddMember(alice.ID, group.ID, AddMemberInput{Email: "ghost@example.com"})
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})

	t.Run("invalid_role", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)

		_, err := svc.AddMember(alice.ID, group.ID, AddMemberInput{UserID: bob.ID, Role: "owner"})
		testutil.AssertAppError(t, err, "INVALID_MEMBER_ROLE")
	})

	t.Run("non_admin", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		carol := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)
		testutil.AddTestMember(t, db, group, bob, models.MemberRoleMember)

		_, err := svc.AddMember(bob.ID, group.ID, AddMemberInput{UserID: carol.ID})
		testutil.AssertAppError(t, err, "NOT_GROUP_ADMIN")
	})
}

func TestUpdateMemberRole(t *testing.T) {
	t.Run("promote_then_demote", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)
		testutil.AddTestMember(t, db, group, bob, models.MemberRoleMember)

		member, err := svc.UpdateMemberRole(alice.ID, group.ID, bob.ID, models.MemberRoleAdmin)
		testutil.AssertNoError(t, err)
		if member.Role != models.MemberRoleAdmin {
			t.Errorf("expected admin, got %s", member.Role)
		}

		_, err = svc.UpdateMemberRole(bob.ID, group.ID, alice.ID, models.MemberRoleMember)
		testutil.AssertNoError(t, err)
	})

	t.Run("last_admin", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)

		_, err := svc.UpdateMemberRole(alice.ID, group.ID, alice.ID, models.MemberRoleMember)
		testutil.AssertAppError(t, err, "LAST_ADMIN")
	})
}

func TestRemoveMember(t *testing.T) {
	t.Run("removes_and_allows_readding", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)
		testutil.AddTestMember(t, db, group, bob, models.MemberRoleMember)

		testutil.AssertNoError(t, svc.RemoveMember(alice.ID, group.ID, bob.ID))

		_, err := svc.AddMember(alice.ID, group.ID, AddMemberInput{UserID: bob.ID})
		testutil.AssertNoError(t, err)
	})

	t.Run("referenced_by_expense", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)
		testutil.AddTestMember(t, db, group, bob, models.MemberRoleMember)
		testutil.CreateTestExpense(t, db, group, alice, "10", bob)

		err := svc.RemoveMember(alice.ID, group.ID, bob.ID)
		testutil.AssertAppError(t, err, "MEMBER_HAS_EXPENSES")
	})

	t.Run("deleted_expense_does_not_block", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)
		testutil.AddTestMember(t, db, group, bob, models.MemberRoleMember)
		expense := testutil.CreateTestExpense(t, db, group, bob, "10", alice)
		db.Delete(expense)

		testutil.AssertNoError(t, svc.RemoveMember(alice.ID, group.ID, bob.ID))
	})

	t.Run("not_a_member", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)

		err := svc.RemoveMember(alice.ID, group.ID, bob.ID)
		testutil.AssertAppError(t, err, "MEMBER_NOT_FOUND")
	})
}

func TestLeaveGroup(t *testing.T) {
	t.Run("member_leaves", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)
		testutil.AddTestMember(t, db, group, bob, models.MemberRoleMember)

		testutil.AssertNoError(t, svc.LeaveGroup(bob.ID, group.ID))

		_, err := svc.GetGroupByID(bob.ID, group.ID)
		testutil.AssertAppError(t, err, "GROUP_NOT_FOUND")
	})

	t.Run("last_admin", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewGroupService(db)
		alice := testutil.CreateTestUser(t, db)
		bob := testutil.CreateTestUser(t, db)
		group := testutil.CreateTestGroup(t, db, alice)
		testutil.AddTestMember(t, db, group, bob, models.MemberRoleMember)

		err := svc.LeaveGroup(alice.ID, group.ID)
		testutil.AssertAppError(t, err, "LAST_ADMIN")
	})
}
