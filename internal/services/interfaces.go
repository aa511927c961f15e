package services

import (
	"time"

	"github.com/shopspring/decimal"

	"splitledger/internal/ledger"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, name string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
	UpdateProfile(userID string, name, email *string) (*models.User, error)
	ChangePassword(userID, currentPassword, newPassword string) error
	DeleteAccount(userID string) error
}

// AddMemberInput identifies the user to add by email or by ID.
type AddMemberInput struct {
	Email  string
	UserID string
	Role   models.MemberRole
}

// GroupServicer defines the contract for groups and their membership.
type GroupServicer interface {
	CreateGroup(userID, name, description string) (*models.Group, error)
	GetUserGroups(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Group], error)
	GetGroupByID(userID, groupID string) (*models.Group, error)
	UpdateGroup(userID, groupID string, name, description *string) (*models.Group, error)
	DeleteGroup(userID, groupID string) error
	GetMembers(userID, groupID string) ([]models.GroupMember, error)
	AddMember(userID, groupID string, input AddMemberInput) (*models.GroupMember, error)
	UpdateMemberRole(userID, groupID, memberUserID string, role models.MemberRole) (*models.GroupMember, error)
	RemoveMember(userID, groupID, memberUserID string) error
	LeaveGroup(userID, groupID string) error
}

// CreateExpenseInput holds the fields of a new expense. An empty PaidBy
// defaults to the caller and a nil Date to now.
type CreateExpenseInput struct {
	GroupID      string
	Description  string
	Amount       decimal.Decimal
	PaidBy       string
	SplitBetween []string
	CategoryID   *string
	Date         *time.Time
}

// UpdateExpenseInput holds the mutable fields of an expense. An empty
// CategoryID clears the category.
type UpdateExpenseInput struct {
	Description *string
	Amount      *decimal.Decimal
	CategoryID  *string
}

// ExpenseFilter holds optional filter parameters for listing expenses.
type ExpenseFilter struct {
	GroupID     *string
	CategoryID  *string
	PaidBy      *string
	StartDate   *time.Time
	EndDate     *time.Time
	Description string
}

// ExpenseServicer defines the contract for expense-related business logic.
type ExpenseServicer interface {
	CreateExpense(userID string, input CreateExpenseInput) (*models.Expense, error)
	GetExpenseByID(userID, expenseID string) (*models.Expense, error)
	UpdateExpense(userID, expenseID string, input UpdateExpenseInput) (*models.Expense, error)
	DeleteExpense(userID, expenseID string) (*models.Expense, error)
	GetGroupExpenses(userID, groupID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error)
	GetPaidExpenses(userID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error)
	GetOwedExpenses(userID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error)
}

// CategoryStat summarizes the active expenses filed under one category.
type CategoryStat struct {
	CategoryID *string         `json:"category_id"`
	Name       string          `json:"name"`
	Count      int64           `json:"count"`
	Total      decimal.Decimal `json:"total"`
	Average    decimal.Decimal `json:"average"`
}

// CategoryUsage is a category with the number of active expenses filed under it.
type CategoryUsage struct {
	Category   models.Category `json:"category"`
	UsageCount int64           `json:"usage_count"`
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	EnsureDefaultCategories() error
	GetCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	SearchCategories(userID, query string) ([]models.Category, error)
	CreateCategory(userID, name, icon, color string) (*models.Category, error)
	UpdateCategory(userID, categoryID string, name, icon, color *string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
	GetCategoryStats(userID string, groupID *string) ([]CategoryStat, error)
	GetMostUsedCategories(userID string, groupID *string, limit int) ([]CategoryUsage, error)
	GetRecentCategories(userID string, groupID *string, limit int) ([]models.Category, error)
}

// MemberBalance is one member's position in a group.
type MemberBalance struct {
	UserID  string          `json:"user_id"`
	Name    string          `json:"name"`
	Paid    decimal.Decimal `json:"paid"`
	Owed    decimal.Decimal `json:"owed"`
	Balance decimal.Decimal `json:"balance"`
}

// Warning is a non-fatal condition reported next to a result.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GroupBalances is the settlement view of one group.
type GroupBalances struct {
	GroupID   string          `json:"group_id"`
	GroupName string          `json:"group_name"`
	Balances  []MemberBalance `json:"balances"`
	Debts     []ledger.Debt   `json:"debts"`
	Warnings  []Warning       `json:"warnings"`
}

// GroupStats aggregates a group's activity.
type GroupStats struct {
	TotalMembers  int64           `json:"total_members"`
	TotalExpenses int64           `json:"total_expenses"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Categories    []CategoryStat  `json:"categories"`
	Balances      *GroupBalances  `json:"balances"`
}

// GroupPosition is the caller's standing in one of their groups.
type GroupPosition struct {
	GroupID   string          `json:"group_id"`
	GroupName string          `json:"group_name"`
	Balance   decimal.Decimal `json:"balance"`
	Debts     []ledger.Debt   `json:"debts"`
}

// UserSummary is the caller's standing across all of their groups.
type UserSummary struct {
	Groups     []GroupPosition `json:"groups"`
	TotalOwed  decimal.Decimal `json:"total_owed"`
	TotalOwing decimal.Decimal `json:"total_owing"`
	NetBalance decimal.Decimal `json:"net_balance"`
}

// BalanceServicer computes balances and settling debts from stored expenses.
type BalanceServicer interface {
	GetGroupBalances(userID, groupID string) (*GroupBalances, error)
	GetGroupStats(userID, groupID string) (*GroupStats, error)
	GetUserSummary(userID string) (*UserSummary, error)
	ComputeGroupSettlement(groupID string) (*GroupBalances, error)
	ListActiveGroupIDs() ([]string, error)
}

// AuditEntry describes one audited mutation. GroupID is empty for
// mutations outside a group.
type AuditEntry struct {
	UserID       string
	GroupID      string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	Changes      map[string]interface{}
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(entry AuditEntry)
}
