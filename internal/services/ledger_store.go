package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/ledger"
	"splitledger/internal/models"
)

// LedgerSnapshot is a consistent view of one group's members and active
// expenses.
type LedgerSnapshot struct {
	Group    models.Group
	Members  []models.GroupMember
	Expenses []models.Expense
}

// MemberIDs returns the IDs of the snapshot's members.
func (s *LedgerSnapshot) MemberIDs() []string {
	ids := make([]string, len(s.Members))
	for i, m := range s.Members {
		ids[i] = m.UserID
	}
	return ids
}

// LedgerExpenses converts the stored expenses into engine inputs.
func (s *LedgerSnapshot) LedgerExpenses() []ledger.Expense {
	out := make([]ledger.Expense, len(s.Expenses))
	for i := range s.Expenses {
		out[i] = ledger.Expense{
			Amount:       s.Expenses[i].Amount,
			PaidBy:       s.Expenses[i].PaidBy,
			SplitBetween: s.Expenses[i].Participants(),
		}
	}
	return out
}

// LedgerStore reads the records the settlement engine works on. Soft-deleted
// expenses and splits are never returned.
type LedgerStore interface {
	ListMembers(groupID string) ([]models.GroupMember, error)
	ListActiveExpenses(groupID string) ([]models.Expense, error)
	ListActiveGroupIDs() ([]string, error)
	Snapshot(groupID string) (*LedgerSnapshot, error)
}

type ledgerStore struct {
	db *gorm.DB
}

// NewLedgerStore creates a LedgerStore over db.
func NewLedgerStore(db *gorm.DB) LedgerStore {
	return &ledgerStore{db: db}
}

// ListMembers returns the group's members with their users, oldest first.
func (s *ledgerStore) ListMembers(groupID string) ([]models.GroupMember, error) {
	var members []models.GroupMember
	if err := s.db.Preload("User").Where("group_id = ?", groupID).Order("joined_at ASC").Find(&members).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return members, nil
}

// ListActiveExpenses returns the group's non-deleted expenses with their
// non-deleted splits.
func (s *ledgerStore) ListActiveExpenses(groupID string) ([]models.Expense, error) {
	var expenses []models.Expense
	if err := s.db.Preload("Splits").Where("group_id = ?", groupID).Order("date ASC, id ASC").Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return expenses, nil
}

// ListActiveGroupIDs returns the IDs of every non-deleted group.
func (s *ledgerStore) ListActiveGroupIDs() ([]string, error) {
	var ids []string
	if err := s.db.Model(&models.Group{}).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ids, nil
}

// Snapshot reads the group, its members and its active expenses in a single
// transaction so concurrent writes cannot produce a torn view.
func (s *ledgerStore) Snapshot(groupID string) (*LedgerSnapshot, error) {
	snap := &LedgerSnapshot{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", groupID).First(&snap.Group).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrGroupNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		store := &ledgerStore{db: tx}
		var err error
		if snap.Members, err = store.ListMembers(groupID); err != nil {
			return err
		}
		if snap.Expenses, err = store.ListActiveExpenses(groupID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
