package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/ledger"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
	"splitledger/internal/uuid"
)

// expenseService handles expense-related business logic.
type expenseService struct {
	db *gorm.DB
}

// NewExpenseService creates a new ExpenseServicer.
func NewExpenseService(db *gorm.DB) ExpenseServicer {
	return &expenseService{db: db}
}

// splitShare is the per-participant amount stored for display. Balances are
// always derived from the expense amount, never from these rows.
func splitShare(amount decimal.Decimal, participants int) decimal.Decimal {
	return ledger.Round(amount.Div(decimal.NewFromInt(int64(participants))))
}

// normalizeID returns the canonical form of a UUID. Anything else is returned
// unchanged and later fails the membership check.
func normalizeID(id string) string {
	if n, err := uuid.Normalize(id); err == nil {
		return n
	}
	return id
}

func memberIDs(tx *gorm.DB, groupID string) ([]string, error) {
	var ids []string
	if err := tx.Model(&models.GroupMember{}).Where("group_id = ?", groupID).Pluck("user_id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ids, nil
}

func checkCategory(tx *gorm.DB, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&models.Category{}).Where("id = ?", *categoryID).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrCategoryNotFound
	}
	return nil
}

// CreateExpense records an expense and its splits in one transaction. The
// payer and every participant must be members of the group.
func (s *expenseService) CreateExpense(userID string, input CreateExpenseInput) (*models.Expense, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description is required")
	}
	paidBy := input.PaidBy
	if paidBy == "" {
		paidBy = userID
	}
	participants := make([]string, len(input.SplitBetween))
	for i, id := range input.SplitBetween {
		participants[i] = normalizeID(id)
	}
	groupID := normalizeID(input.GroupID)
	date := time.Now()
	if input.Date != nil {
		date = *input.Date
	}

	if _, err := requireMember(s.db, userID, groupID); err != nil {
		return nil, err
	}

	expense := &models.Expense{
		GroupID:     groupID,
		Description: description,
		Amount:      input.Amount,
		PaidBy:      normalizeID(paidBy),
		CategoryID:  input.CategoryID,
		Date:        date,
		CreatedBy:   userID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockGroup(tx, groupID); err != nil {
			return err
		}
		members, err := memberIDs(tx, groupID)
		if err != nil {
			return err
		}
		if err := ledger.Validate(members, ledger.Expense{
			Amount:       expense.Amount,
			PaidBy:       expense.PaidBy,
			SplitBetween: participants,
		}); err != nil {
			return err
		}
		if err := checkCategory(tx, input.CategoryID); err != nil {
			return err
		}

		share := splitShare(expense.Amount, len(participants))
		for _, p := range participants {
			expense.Splits = append(expense.Splits, models.ExpenseSplit{UserID: p, Amount: share})
		}
		if err := tx.Create(expense).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetExpenseByID(userID, expense.ID)
}

func (s *expenseService) findExpense(expenseID string) (*models.Expense, error) {
	var expense models.Expense
	if err := s.db.Preload("Splits").Preload("Splits.User").Preload("Payer").Preload("Category").
		Where("id = ?", expenseID).First(&expense).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &expense, nil
}

// GetExpenseByID retrieves an expense with its splits for a member of its group.
func (s *expenseService) GetExpenseByID(userID, expenseID string) (*models.Expense, error) {
	expense, err := s.findExpense(expenseID)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(s.db, userID, expense.GroupID); err != nil {
		if errors.Is(err, apperrors.ErrGroupNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, err
	}
	return expense, nil
}

// canModify reports whether the user may change the expense: its payer or a
// group admin.
func (s *expenseService) canModify(userID string, expense *models.Expense) error {
	member, err := requireMember(s.db, userID, expense.GroupID)
	if err != nil {
		if errors.Is(err, apperrors.ErrGroupNotFound) {
			return apperrors.ErrExpenseNotFound
		}
		return err
	}
	if expense.PaidBy != userID && member.Role != models.MemberRoleAdmin {
		return apperrors.ErrNotExpenseOwner
	}
	return nil
}

// UpdateExpense changes description, amount and/or category. A new amount
// recomputes the stored split shares in the same transaction.
func (s *expenseService) UpdateExpense(userID, expenseID string, input UpdateExpenseInput) (*models.Expense, error) {
	expense, err := s.findExpense(expenseID)
	if err != nil {
		return nil, err
	}
	if err := s.canModify(userID, expense); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description cannot be empty")
		}
		updates["description"] = description
	}
	if input.Amount != nil {
		updates["amount"] = *input.Amount
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockGroup(tx, expense.GroupID); err != nil {
			return err
		}
		if input.Amount != nil {
			members, err := memberIDs(tx, expense.GroupID)
			if err != nil {
				return err
			}
			participants := make([]string, len(expense.Splits))
			for i, split := range expense.Splits {
				participants[i] = split.UserID
			}
			if err := ledger.Validate(members, ledger.Expense{
				Amount:       *input.Amount,
				PaidBy:       expense.PaidBy,
				SplitBetween: participants,
			}); err != nil {
				return err
			}
		}
		if input.CategoryID != nil {
			if *input.CategoryID == "" {
				updates["category_id"] = nil
			} else {
				if err := checkCategory(tx, input.CategoryID); err != nil {
					return err
				}
				updates["category_id"] = *input.CategoryID
			}
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&models.Expense{}).Where("id = ?", expenseID).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if input.Amount != nil && len(expense.Splits) > 0 {
			share := splitShare(*input.Amount, len(expense.Splits))
			if err := tx.Model(&models.ExpenseSplit{}).Where("expense_id = ?", expenseID).
				Update("amount", share).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.findExpense(expenseID)
}

// DeleteExpense soft-deletes an expense together with its splits and returns
// the deleted expense.
func (s *expenseService) DeleteExpense(userID, expenseID string) (*models.Expense, error) {
	expense, err := s.findExpense(expenseID)
	if err != nil {
		return nil, err
	}
	if err := s.canModify(userID, expense); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockGroup(tx, expense.GroupID); err != nil {
			return err
		}
		if err := tx.Where("expense_id = ?", expenseID).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("id = ?", expenseID).Delete(&models.Expense{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// applyExpenseFilter adds the optional filters to an expense query.
func applyExpenseFilter(query *gorm.DB, filter ExpenseFilter) *gorm.DB {
	if filter.GroupID != nil {
		query = query.Where("expenses.group_id = ?", *filter.GroupID)
	}
	if filter.CategoryID != nil {
		query = query.Where("expenses.category_id = ?", *filter.CategoryID)
	}
	if filter.PaidBy != nil {
		query = query.Where("expenses.paid_by = ?", *filter.PaidBy)
	}
	if filter.StartDate != nil {
		query = query.Where("expenses.date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("expenses.date <= ?", *filter.EndDate)
	}
	if d := strings.TrimSpace(filter.Description); d != "" {
		query = query.Where("LOWER(expenses.description) LIKE ?", "%"+strings.ToLower(d)+"%")
	}
	return query
}

func (s *expenseService) paginate(base *gorm.DB, page pagination.PageRequest) (*pagination.PageResponse[models.Expense], error) {
	page.Defaults()

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var expenses []models.Expense
	if err := base.Preload("Splits").Preload("Payer").Preload("Category").
		Scopes(pagination.OrderBy(page, "expenses.date", "expenses.created_at")).
		Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(expenses, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetGroupExpenses lists a group's active expenses, newest first unless the
// page asks for oldest.
func (s *expenseService) GetGroupExpenses(userID, groupID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error) {
	if _, err := requireMember(s.db, userID, groupID); err != nil {
		return nil, err
	}
	filter.GroupID = &groupID
	return s.paginate(applyExpenseFilter(s.db.Model(&models.Expense{}), filter), page)
}

// userGroups restricts a query to expenses of active groups the user belongs to.
func (s *expenseService) userGroups(userID string) *gorm.DB {
	return s.db.Model(&models.Expense{}).
		Where("expenses.group_id IN (?)", s.db.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", userID)).
		Where("expenses.group_id IN (?)", s.db.Model(&models.Group{}).Select("id"))
}

// GetPaidExpenses lists the expenses the user paid for across their groups.
func (s *expenseService) GetPaidExpenses(userID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error) {
	filter.PaidBy = nil
	base := applyExpenseFilter(s.userGroups(userID).Where("expenses.paid_by = ?", userID), filter)
	return s.paginate(base, page)
}

// GetOwedExpenses lists the expenses someone else paid that the user shares in.
func (s *expenseService) GetOwedExpenses(userID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error) {
	base := s.userGroups(userID).
		Where("expenses.paid_by <> ?", userID).
		Where("expenses.id IN (?)", s.db.Model(&models.ExpenseSplit{}).Select("expense_id").Where("user_id = ?", userID))
	return s.paginate(applyExpenseFilter(base, filter), page)
}
