package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/models"
	"splitledger/internal/pagination"
)

// groupService handles groups and their membership.
type groupService struct {
	db *gorm.DB
}

// NewGroupService creates a new GroupServicer.
func NewGroupService(db *gorm.DB) GroupServicer {
	return &groupService{db: db}
}

// requireMember returns the caller's membership of an active group. A group
// the caller does not belong to is reported as not found.
func requireMember(db *gorm.DB, userID, groupID string) (*models.GroupMember, error) {
	var member models.GroupMember
	err := db.Joins(`JOIN "groups" ON "groups".id = group_members.group_id AND "groups".deleted_at IS NULL`).
		Where("group_members.group_id = ? AND group_members.user_id = ?", groupID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &member, nil
}

func requireAdmin(db *gorm.DB, userID, groupID string) (*models.GroupMember, error) {
	member, err := requireMember(db, userID, groupID)
	if err != nil {
		return nil, err
	}
	if member.Role != models.MemberRoleAdmin {
		return nil, apperrors.ErrNotGroupAdmin
	}
	return member, nil
}

// lockGroup takes a row lock on an active group until the transaction ends.
// Expense writes and member removal lock the group first, so a member cannot
// be removed while an expense that names them is being recorded.
func lockGroup(tx *gorm.DB, groupID string) error {
	var group models.Group
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").
		Where("id = ?", groupID).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrGroupNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// CreateGroup creates a group with the caller as its first admin.
func (s *groupService) CreateGroup(userID, name, description string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "group name is required")
	}

	group := &models.Group{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   userID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		member := models.GroupMember{
			GroupID:  group.ID,
			UserID:   userID,
			Role:     models.MemberRoleAdmin,
			JoinedAt: time.Now(),
		}
		if err := tx.Create(&member).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		group.Members = []models.GroupMember{member}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// GetUserGroups retrieves a paginated list of the groups the user belongs to.
func (s *groupService) GetUserGroups(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Group], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Group{}).
		Where("id IN (?)", s.db.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", userID))
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var groups []models.Group
	if err := base.Scopes(pagination.OrderBy(page, "created_at")).Find(&groups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(groups, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetGroupByID retrieves a group with its members for one of its members.
func (s *groupService) GetGroupByID(userID, groupID string) (*models.Group, error) {
	if _, err := requireMember(s.db, userID, groupID); err != nil {
		return nil, err
	}

	var group models.Group
	if err := s.db.Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("joined_at ASC")
	}).Preload("Members.User").Where("id = ?", groupID).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &group, nil
}

// UpdateGroup changes a group's name and/or description. Admins only.
func (s *groupService) UpdateGroup(userID, groupID string, name, description *string) (*models.Group, error) {
	if _, err := requireAdmin(s.db, userID, groupID); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "group name cannot be empty")
		}
		updates["name"] = trimmed
	}
	if description != nil {
		updates["description"] = strings.TrimSpace(*description)
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Group{}).Where("id = ?", groupID).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return s.GetGroupByID(userID, groupID)
}

// DeleteGroup soft-deletes a group together with its expenses and splits.
// Admins only.
func (s *groupService) DeleteGroup(userID, groupID string) error {
	if _, err := requireAdmin(s.db, userID, groupID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		expenseIDs := tx.Model(&models.Expense{}).Select("id").Where("group_id = ?", groupID)
		if err := tx.Where("expense_id IN (?)", expenseIDs).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.Expense{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("id = ?", groupID).Delete(&models.Group{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// GetMembers lists the members of a group, oldest first.
func (s *groupService) GetMembers(userID, groupID string) ([]models.GroupMember, error) {
	if _, err := requireMember(s.db, userID, groupID); err != nil {
		return nil, err
	}

	var members []models.GroupMember
	if err := s.db.Preload("User").Where("group_id = ?", groupID).Order("joined_at ASC").Find(&members).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return members, nil
}

// AddMember adds an existing user, found by email or ID, to the group. Admins only.
func (s *groupService) AddMember(userID, groupID string, input AddMemberInput) (*models.GroupMember, error) {
	if _, err := requireAdmin(s.db, userID, groupID); err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = models.MemberRoleMember
	}
	if !role.Valid() {
		return nil, apperrors.ErrInvalidMemberRole
	}

	var user models.User
	query := s.db.Where("is_active = ?", true)
	switch {
	case input.UserID != "":
		query = query.Where("id = ?", input.UserID)
	case input.Email != "":
		query = query.Where("email = ?", normalizeEmail(input.Email))
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email or user_id is required")
	}
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var count int64
	if err := s.db.Model(&models.GroupMember{}).Where("group_id = ? AND user_id = ?", groupID, user.ID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrAlreadyMember
	}

	member := &models.GroupMember{
		GroupID:  groupID,
		UserID:   user.ID,
		Role:     role,
		JoinedAt: time.Now(),
		User:     &user,
	}
	if err := s.db.Omit("User").Create(member).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return member, nil
}

// UpdateMemberRole changes a member's role. Admins only; the last admin
// cannot be demoted.
func (s *groupService) UpdateMemberRole(userID, groupID, memberUserID string, role models.MemberRole) (*models.GroupMember, error) {
	if !role.Valid() {
		return nil, apperrors.ErrInvalidMemberRole
	}
	if _, err := requireAdmin(s.db, userID, groupID); err != nil {
		return nil, err
	}

	var member *models.GroupMember
	err := s.db.Transaction(func(tx *gorm.DB) error {
		m, err := findMember(tx, groupID, memberUserID)
		if err != nil {
			return err
		}
		if m.Role == models.MemberRoleAdmin && role != models.MemberRoleAdmin {
			if err := ensureAnotherAdmin(tx, groupID); err != nil {
				return err
			}
		}
		if err := tx.Model(m).Update("role", role).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		m.Role = role
		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember removes another member from the group. Admins only.
func (s *groupService) RemoveMember(userID, groupID, memberUserID string) error {
	if _, err := requireAdmin(s.db, userID, groupID); err != nil {
		return err
	}
	return s.removeMember(groupID, memberUserID)
}

// LeaveGroup removes the caller from the group.
func (s *groupService) LeaveGroup(userID, groupID string) error {
	if _, err := requireMember(s.db, userID, groupID); err != nil {
		return err
	}
	return s.removeMember(groupID, userID)
}

// removeMember deletes a membership unless the member is the last admin or
// is still referenced by an active expense. The row is hard-deleted so the
// user can be added again later.
func (s *groupService) removeMember(groupID, memberUserID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockGroup(tx, groupID); err != nil {
			return err
		}
		member, err := findMember(tx, groupID, memberUserID)
		if err != nil {
			return err
		}
		if member.Role == models.MemberRoleAdmin {
			if err := ensureAnotherAdmin(tx, groupID); err != nil {
				return err
			}
		}

		referenced, err := isReferencedByExpenses(tx, groupID, memberUserID)
		if err != nil {
			return err
		}
		if referenced {
			return apperrors.ErrMemberHasExpenses
		}

		if err := tx.Unscoped().Delete(member).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

func findMember(tx *gorm.DB, groupID, userID string) (*models.GroupMember, error) {
	var member models.GroupMember
	if err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrMemberNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &member, nil
}

func ensureAnotherAdmin(tx *gorm.DB, groupID string) error {
	var admins int64
	if err := tx.Model(&models.GroupMember{}).
		Where("group_id = ? AND role = ?", groupID, models.MemberRoleAdmin).
		Count(&admins).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if admins <= 1 {
		return apperrors.ErrLastAdmin
	}
	return nil
}

// isReferencedByExpenses reports whether the user paid for, or shares in, an
// active expense of the group.
func isReferencedByExpenses(tx *gorm.DB, groupID, userID string) (bool, error) {
	var count int64
	err := tx.Model(&models.Expense{}).
		Where("group_id = ?", groupID).
		Where("paid_by = ? OR id IN (?)", userID,
			tx.Model(&models.ExpenseSplit{}).Select("expense_id").Where("user_id = ?", userID)).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}
