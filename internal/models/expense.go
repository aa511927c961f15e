package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a purchase paid by one member and split equally between a
// non-empty set of members. Only description, amount and category change
// after creation; deleting an expense soft-deletes it together with its splits.
type Expense struct {
	Base
	GroupID     string          `gorm:"type:uuid;not null;index" json:"group_id"`
	Description string          `gorm:"size:200;not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PaidBy      string          `gorm:"type:uuid;not null;index" json:"paid_by"`
	CategoryID  *string         `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Date        time.Time       `gorm:"not null;index" json:"date"`
	CreatedBy   string          `gorm:"type:uuid;not null" json:"created_by"`

	Payer    *User          `gorm:"foreignKey:PaidBy" json:"payer,omitempty"`
	Category *Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Splits   []ExpenseSplit `gorm:"foreignKey:ExpenseID" json:"splits,omitempty"`
}

// Participants returns the IDs of the members the expense is split between.
func (e *Expense) Participants() []string {
	ids := make([]string, 0, len(e.Splits))
	for _, s := range e.Splits {
		ids = append(ids, s.UserID)
	}
	return ids
}

// ExpenseSplit records one participant of an expense. Amount is the share
// rounded for display; balances are always derived from the expense amount.
type ExpenseSplit struct {
	Base
	ExpenseID string          `gorm:"type:uuid;not null;index" json:"expense_id"`
	UserID    string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
