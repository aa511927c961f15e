package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"splitledger/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Name:     fmt.Sprintf("User %d", nextID()),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestGroup creates a group with owner as its only admin.
func CreateTestGroup(t *testing.T, db *gorm.DB, owner *models.User) *models.Group {
	t.Helper()

	group := &models.Group{
		Name:      fmt.Sprintf("Test Group %d", nextID()),
		CreatedBy: owner.ID,
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to create test group: %v", err)
	}
	AddTestMember(t, db, group, owner, models.MemberRoleAdmin)
	return group
}

// AddTestMember adds user to group with the given role.
func AddTestMember(t *testing.T, db *gorm.DB, group *models.Group, user *models.User, role models.MemberRole) *models.GroupMember {
	t.Helper()

	member := &models.GroupMember{
		GroupID:  group.ID,
		UserID:   user.ID,
		Role:     role,
		JoinedAt: time.Now(),
	}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("failed to add test member: %v", err)
	}
	return member
}

// CreateTestExpense records an expense of amount paid by payer and split
// equally between participants.
func CreateTestExpense(t *testing.T, db *gorm.DB, group *models.Group, payer *models.User, amount string, participants ...*models.User) *models.Expense {
	t.Helper()

	total := decimal.RequireFromString(amount)
	share := total.Div(decimal.NewFromInt(int64(len(participants)))).Round(2)

	expense := &models.Expense{
		GroupID:     group.ID,
		Description: fmt.Sprintf("Test Expense %d", nextID()),
		Amount:      total,
		PaidBy:      payer.ID,
		Date:        time.Now(),
		CreatedBy:   payer.ID,
	}
	for _, p := range participants {
		expense.Splits = append(expense.Splits, models.ExpenseSplit{UserID: p.ID, Amount: share})
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return expense
}

// CreateTestCategory creates a custom category owned by user.
func CreateTestCategory(t *testing.T, db *gorm.DB, user *models.User) *models.Category {
	t.Helper()

	category := &models.Category{
		Name:      fmt.Sprintf("Test Category %d", nextID()),
		Color:     "#123456",
		CreatedBy: &user.ID,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateDefaultCategory creates a shared default category.
func CreateDefaultCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()

	category := &models.Category{Name: name, IsDefault: true}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create default category: %v", err)
	}
	return category
}
