package services

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/ledger"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
)

const (
	maxSearchResults       = 10
	defaultSuggestionLimit = 5
	maxSuggestionLimit     = 20
)

// DefaultCategories are available to every user and cannot be changed.
var DefaultCategories = []models.Category{
	{Name: "Food", Icon: "utensils", Color: "#FF6B6B"},
	{Name: "Transport", Icon: "car", Color: "#4ECDC4"},
	{Name: "Accommodation", Icon: "bed", Color: "#45B7D1"},
	{Name: "Entertainment", Icon: "film", Color: "#96CEB4"},
	{Name: "Shopping", Icon: "shopping-bag", Color: "#FFEAA7"},
	{Name: "Utilities", Icon: "bolt", Color: "#DDA0DD"},
	{Name: "Health", Icon: "heart", Color: "#98D8C8"},
	{Name: "Other", Icon: "tag", Color: "#B0B0B0"},
}

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// visibleTo restricts a category query to defaults and the user's own categories.
func visibleTo(db *gorm.DB, userID string) *gorm.DB {
	return db.Where("is_default = ? OR created_by = ?", true, userID)
}

// EnsureDefaultCategories creates any missing default category. It is safe to
// call on every start.
func (s *categoryService) EnsureDefaultCategories() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, def := range DefaultCategories {
			var count int64
			if err := tx.Model(&models.Category{}).
				Where("is_default = ? AND LOWER(name) = ?", true, strings.ToLower(def.Name)).
				Count(&count).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if count > 0 {
				continue
			}
			category := def
			category.IsDefault = true
			if err := tx.Create(&category).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		return nil
	})
}

// GetCategories retrieves a paginated list of the categories visible to a
// user, defaults first.
func (s *categoryService) GetCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	var totalItems int64
	base := visibleTo(s.db.Model(&models.Category{}), userID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Order("is_default DESC, name ASC").Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCategoryByID retrieves a category visible to the user.
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := visibleTo(s.db.Where("id = ?", categoryID), userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// SearchCategories returns up to maxSearchResults visible categories whose
// name contains query.
func (s *categoryService) SearchCategories(userID, query string) ([]models.Category, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "search query must be at least 2 characters")
	}

	var categories []models.Category
	if err := visibleTo(s.db.Model(&models.Category{}), userID).
		Where("LOWER(name) LIKE ?", "%"+strings.ToLower(query)+"%").
		Order("name ASC").
		Limit(maxSearchResults).
		Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return categories, nil
}

func (s *categoryService) checkDuplicateName(userID, name, excludeID string) error {
	var count int64
	query := visibleTo(s.db.Model(&models.Category{}), userID).Where("LOWER(name) = ?", strings.ToLower(name))
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateCategory
	}
	return nil
}

// CreateCategory creates a custom category owned by the user.
func (s *categoryService) CreateCategory(userID, name, icon, color string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if err := s.checkDuplicateName(userID, name, ""); err != nil {
		return nil, err
	}

	category := &models.Category{
		Name:      name,
		Icon:      icon,
		Color:     color,
		CreatedBy: &userID,
	}
	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// ownedCategory returns a custom category the user created. Defaults are
// reported as immutable.
func (s *categoryService) ownedCategory(userID, categoryID string) (*models.Category, error) {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}
	if category.IsDefault {
		return nil, apperrors.ErrCategoryIsDefault
	}
	if category.CreatedBy == nil || *category.CreatedBy != userID {
		return nil, apperrors.ErrCategoryNotFound
	}
	return category, nil
}

// UpdateCategory updates a custom category owned by the user.
func (s *categoryService) UpdateCategory(userID, categoryID string, name, icon, color *string) (*models.Category, error) {
	category, err := s.ownedCategory(userID, categoryID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
		}
		if !strings.EqualFold(trimmed, category.Name) {
			if err := s.checkDuplicateName(userID, trimmed, categoryID); err != nil {
				return nil, err
			}
		}
		updates["name"] = trimmed
	}
	if icon != nil {
		updates["icon"] = *icon
	}
	if color != nil {
		updates["color"] = *color
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return category, nil
}

// DeleteCategory soft-deletes a custom category that no active expense uses.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	category, err := s.ownedCategory(userID, categoryID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var inUse int64
		if err := tx.Model(&models.Expense{}).Where("category_id = ?", categoryID).Count(&inUse).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if inUse > 0 {
			return apperrors.ErrCategoryInUse
		}
		if err := tx.Delete(category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

type categoryRow struct {
	CategoryID *string
	Name       *string
	Count      int64
	Total      decimal.Decimal
}

// categoryStats aggregates active expenses of the given groups by category.
func categoryStats(db *gorm.DB, groupIDs interface{}) ([]CategoryStat, error) {
	var rows []categoryRow
	err := db.Model(&models.Expense{}).
		Select("expenses.category_id AS category_id, categories.name AS name, COUNT(expenses.id) AS count, SUM(expenses.amount) AS total").
		Joins("LEFT JOIN categories ON categories.id = expenses.category_id").
		Where("expenses.group_id IN (?)", groupIDs).
		Group("expenses.category_id, categories.name").
		Order("total DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stats := make([]CategoryStat, 0, len(rows))
	for _, r := range rows {
		name := "Uncategorized"
		if r.Name != nil {
			name = *r.Name
		}
		stat := CategoryStat{
			CategoryID: r.CategoryID,
			Name:       name,
			Count:      r.Count,
			Total:      ledger.Round(r.Total),
			Average:    decimal.Zero,
		}
		if r.Count > 0 {
			stat.Average = ledger.Round(r.Total.Div(decimal.NewFromInt(r.Count)))
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// GetCategoryStats reports expense counts and totals per category, over one
// group or over every group the user belongs to.
func (s *categoryService) GetCategoryStats(userID string, groupID *string) ([]CategoryStat, error) {
	if groupID != nil {
		if _, err := requireMember(s.db, userID, *groupID); err != nil {
			return nil, err
		}
		return categoryStats(s.db, []string{*groupID})
	}

	groups := s.db.Model(&models.GroupMember{}).Select("group_id").
		Where("user_id = ?", userID).
		Where("group_id IN (?)", s.db.Model(&models.Group{}).Select("id"))
	return categoryStats(s.db, groups)
}

func suggestionLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultSuggestionLimit
	case limit > maxSuggestionLimit:
		return maxSuggestionLimit
	}
	return limit
}

// scopedExpenses restricts an expense query to one group the user belongs to,
// or to all of the user's active groups.
func (s *categoryService) scopedExpenses(userID string, groupID *string) (*gorm.DB, error) {
	query := s.db.Model(&models.Expense{}).Where("expenses.category_id IS NOT NULL")
	if groupID != nil {
		if _, err := requireMember(s.db, userID, *groupID); err != nil {
			return nil, err
		}
		return query.Where("expenses.group_id = ?", *groupID), nil
	}
	groups := s.db.Model(&models.GroupMember{}).Select("group_id").
		Where("user_id = ?", userID).
		Where("group_id IN (?)", s.db.Model(&models.Group{}).Select("id"))
	return query.Where("expenses.group_id IN (?)", groups), nil
}

// loadCategories fetches categories by ID.
func (s *categoryService) loadCategories(ids []string) (map[string]models.Category, error) {
	byID := make(map[string]models.Category, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	var categories []models.Category
	if err := s.db.Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for _, c := range categories {
		byID[c.ID] = c
	}
	return byID, nil
}

type usageRow struct {
	CategoryID string
	UsageCount int64
}

// GetMostUsedCategories returns the categories with the most active expenses,
// over one group or every group of the user.
func (s *categoryService) GetMostUsedCategories(userID string, groupID *string, limit int) ([]CategoryUsage, error) {
	query, err := s.scopedExpenses(userID, groupID)
	if err != nil {
		return nil, err
	}

	var rows []usageRow
	if err := query.Select("expenses.category_id AS category_id, COUNT(expenses.id) AS usage_count").
		Group("expenses.category_id").
		Order("usage_count DESC, category_id ASC").
		Limit(suggestionLimit(limit)).
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.CategoryID
	}
	byID, err := s.loadCategories(ids)
	if err != nil {
		return nil, err
	}

	usage := make([]CategoryUsage, 0, len(rows))
	for _, r := range rows {
		if c, ok := byID[r.CategoryID]; ok {
			usage = append(usage, CategoryUsage{Category: c, UsageCount: r.UsageCount})
		}
	}
	return usage, nil
}

// GetRecentCategories suggests categories from the expenses the user most
// recently shared in, most recent first and without repeats.
func (s *categoryService) GetRecentCategories(userID string, groupID *string, limit int) ([]models.Category, error) {
	query, err := s.scopedExpenses(userID, groupID)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := query.
		Where("expenses.id IN (?)", s.db.Model(&models.ExpenseSplit{}).Select("expense_id").Where("user_id = ?", userID)).
		Group("expenses.category_id").
		Order("MAX(expenses.created_at) DESC").
		Limit(suggestionLimit(limit)).
		Pluck("expenses.category_id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	byID, err := s.loadCategories(ids)
	if err != nil {
		return nil, err
	}
	categories := make([]models.Category, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			categories = append(categories, c)
		}
	}
	return categories, nil
}
