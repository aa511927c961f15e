package services

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "splitledger/internal/errors"
	"splitledger/internal/ledger"
	"splitledger/internal/logger"
	"splitledger/internal/metrics"
	"splitledger/internal/models"
)

// balanceService derives balances and settling debts from stored expenses.
// Nothing it computes is persisted; every call recomputes from the store.
type balanceService struct {
	db      *gorm.DB
	store   LedgerStore
	engine  *ledger.Engine
	metrics *metrics.Registry
}

// NewBalanceService creates a new BalanceServicer. reg may be nil.
func NewBalanceService(db *gorm.DB, engine *ledger.Engine, reg *metrics.Registry) BalanceServicer {
	return &balanceService{
		db:      db,
		store:   NewLedgerStore(db),
		engine:  engine,
		metrics: reg,
	}
}

// settle runs the engine over a snapshot and shapes the result for display.
func (s *balanceService) settle(snap *LedgerSnapshot) (*GroupBalances, error) {
	log := logger.Named("ledger")

	settlement, err := s.engine.Settle(snap.MemberIDs(), snap.LedgerExpenses())
	if err != nil {
		// Stored expenses are validated on write, so this is an inconsistency.
		log.Errorw("stored expenses rejected by ledger engine", "group_id", snap.Group.ID, "error", err)
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	balances := make([]MemberBalance, 0, len(snap.Members))
	for _, m := range snap.Members {
		name := ""
		if m.User != nil {
			name = m.User.Name
		}
		totals := settlement.Totals[m.UserID]
		balances = append(balances, MemberBalance{
			UserID:  m.UserID,
			Name:    name,
			Paid:    ledger.Round(totals.Paid),
			Owed:    ledger.Round(totals.Owed),
			Balance: ledger.Round(settlement.Balances[m.UserID]),
		})
	}
	sort.SliceStable(balances, func(i, j int) bool {
		if c := balances[i].Balance.Cmp(balances[j].Balance); c != 0 {
			return c > 0
		}
		return balances[i].UserID < balances[j].UserID
	})

	warnings := make([]Warning, 0)
	if !settlement.Balanced {
		log.Warnw("group balances do not sum to zero",
			"group_id", snap.Group.ID,
			"residual", settlement.Residual.String(),
			"epsilon", s.engine.Epsilon().String(),
		)
		warnings = append(warnings, Warning{
			Code:    apperrors.ErrUnbalancedLedger.Code,
			Message: fmt.Sprintf("%s (residual %s)", apperrors.ErrUnbalancedLedger.Message, settlement.Residual.StringFixed(4)),
		})
	}
	s.metrics.ObserveSettlement(len(settlement.Debts), settlement.Balanced)

	return &GroupBalances{
		GroupID:   snap.Group.ID,
		GroupName: snap.Group.Name,
		Balances:  balances,
		Debts:     settlement.Debts,
		Warnings:  warnings,
	}, nil
}

// ComputeGroupSettlement settles one group without an access check. It is
// meant for background jobs.
func (s *balanceService) ComputeGroupSettlement(groupID string) (*GroupBalances, error) {
	snap, err := s.store.Snapshot(groupID)
	if err != nil {
		return nil, err
	}
	return s.settle(snap)
}

// GetGroupBalances returns every member's balance and the transfers that
// settle the group.
func (s *balanceService) GetGroupBalances(userID, groupID string) (*GroupBalances, error) {
	if _, err := requireMember(s.db, userID, groupID); err != nil {
		return nil, err
	}
	return s.ComputeGroupSettlement(groupID)
}

// GetGroupStats aggregates a group's expenses and includes its balances.
func (s *balanceService) GetGroupStats(userID, groupID string) (*GroupStats, error) {
	if _, err := requireMember(s.db, userID, groupID); err != nil {
		return nil, err
	}

	snap, err := s.store.Snapshot(groupID)
	if err != nil {
		return nil, err
	}
	balances, err := s.settle(snap)
	if err != nil {
		return nil, err
	}
	categories, err := categoryStats(s.db, []string{groupID})
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, e := range snap.Expenses {
		total = total.Add(e.Amount)
	}

	return &GroupStats{
		TotalMembers:  int64(len(snap.Members)),
		TotalExpenses: int64(len(snap.Expenses)),
		TotalAmount:   ledger.Round(total),
		Categories:    categories,
		Balances:      balances,
	}, nil
}

// GetUserSummary returns the user's balance in each of their groups and the
// transfers they are part of.
func (s *balanceService) GetUserSummary(userID string) (*UserSummary, error) {
	var groups []models.Group
	if err := s.db.Where("id IN (?)", s.db.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", userID)).
		Order("name ASC").Find(&groups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	summary := &UserSummary{
		Groups:     make([]GroupPosition, 0, len(groups)),
		TotalOwed:  decimal.Zero,
		TotalOwing: decimal.Zero,
		NetBalance: decimal.Zero,
	}
	for _, g := range groups {
		result, err := s.ComputeGroupSettlement(g.ID)
		if err != nil {
			return nil, err
		}

		position := GroupPosition{GroupID: g.ID, GroupName: g.Name, Balance: decimal.Zero, Debts: make([]ledger.Debt, 0)}
		for _, b := range result.Balances {
			if b.UserID == userID {
				position.Balance = b.Balance
			}
		}
		for _, d := range result.Debts {
			switch userID {
			case d.To:
				summary.TotalOwed = summary.TotalOwed.Add(d.Amount)
				position.Debts = append(position.Debts, d)
			case d.From:
				summary.TotalOwing = summary.TotalOwing.Add(d.Amount)
				position.Debts = append(position.Debts, d)
			}
		}
		summary.NetBalance = summary.NetBalance.Add(position.Balance)
		summary.Groups = append(summary.Groups, position)
	}
	return summary, nil
}

// ListActiveGroupIDs returns every group that can carry open debts.
func (s *balanceService) ListActiveGroupIDs() ([]string, error) {
	return s.store.ListActiveGroupIDs()
}
