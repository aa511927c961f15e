// Package ledger turns a group's expenses into per-member net balances and a
// short list of settling transfers.
//
// Everything here is pure: inputs are plain values, outputs are fresh values,
// and an Engine holds nothing but its epsilon, so it is safe for concurrent use.
// Amounts are decimal throughout and only the emitted transfer amounts are
// rounded to the currency's minor unit.
package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	apperrors "splitledger/internal/errors"
)

// DefaultEpsilon is the tolerance below which a balance or a transfer is
// considered settled: one minor currency unit.
var DefaultEpsilon = decimal.New(1, -2)

// sharePrecision is the number of decimal places kept when dividing an expense
// into equal shares. Shares are never rounded to the minor unit while summing.
const sharePrecision int32 = 16

// minorUnitPlaces is the number of decimal places of a presented amount.
const minorUnitPlaces int32 = 2

// Expense is the engine's view of a recorded, non-deleted expense.
type Expense struct {
	Amount       decimal.Decimal
	PaidBy       string
	SplitBetween []string
}

// Balances maps a member id to its net position: positive when the group owes
// the member, negative when the member owes the group.
type Balances map[string]decimal.Decimal

// Totals holds what a member paid and what they owe, before netting.
type Totals struct {
	Paid decimal.Decimal `json:"paid"`
	Owed decimal.Decimal `json:"owed"`
}

// Debt is a recommended payment of Amount from one member to another.
type Debt struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// Settlement bundles the output of one balance + debt computation.
type Settlement struct {
	Balances Balances
	Totals   map[string]Totals
	Debts    []Debt
	Residual decimal.Decimal
	Balanced bool
}

// Engine computes balances and debts using a fixed epsilon shared by both steps.
type Engine struct {
	epsilon decimal.Decimal
}

// New returns an Engine using epsilon as its settlement tolerance. A
// non-positive epsilon falls back to DefaultEpsilon.
func New(epsilon decimal.Decimal) *Engine {
	if epsilon.Sign() <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Engine{epsilon: epsilon}
}

// Epsilon returns the engine's settlement tolerance.
func (e *Engine) Epsilon() decimal.Decimal {
	return e.epsilon
}

// ComputeBalances returns every member's net balance over expenses. Members
// without expenses are present with a zero balance. An expense with no
// participants, a non-positive amount, or a payer or participant outside
// members is rejected with an INVALID_EXPENSE error.
func (e *Engine) ComputeBalances(members []string, expenses []Expense) (Balances, error) {
	totals, err := e.ComputeTotals(members, expenses)
	if err != nil {
		return nil, err
	}

	balances := make(Balances, len(totals))
	for m, t := range totals {
		balances[m] = t.Paid.Sub(t.Owed)
	}
	return balances, nil
}

// ComputeTotals returns the amount each member paid and owes over expenses.
// It applies the same validation as ComputeBalances.
func (e *Engine) ComputeTotals(members []string, expenses []Expense) (map[string]Totals, error) {
	totals := make(map[string]Totals, len(members))
	for _, m := range members {
		totals[m] = Totals{Paid: decimal.Zero, Owed: decimal.Zero}
	}

	for i, exp := range expenses {
		if err := validateExpense(totals, exp); err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidExpense, fmt.Sprintf("expense %d: %s", i, err.Error()))
		}

		share := exp.Amount.DivRound(decimal.NewFromInt(int64(len(exp.SplitBetween))), sharePrecision)

		payer := totals[exp.PaidBy]
		payer.Paid = payer.Paid.Add(exp.Amount)
		totals[exp.PaidBy] = payer

		for _, m := range exp.SplitBetween {
			t := totals[m]
			t.Owed = t.Owed.Add(share)
			totals[m] = t
		}
	}

	return totals, nil
}

// Validate checks one expense against members with the rules ComputeBalances
// applies, so a bad expense can be refused before it is stored. The amount
// must also be a whole number of minor units.
func Validate(members []string, exp Expense) error {
	set := make(map[string]Totals, len(members))
	for _, m := range members {
		set[m] = Totals{}
	}
	if err := validateExpense(set, exp); err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidExpense, err.Error())
	}
	if !exp.Amount.Equal(Round(exp.Amount)) {
		return apperrors.WithMessage(apperrors.ErrInvalidExpense,
			fmt.Sprintf("amount has more than %d decimal places", minorUnitPlaces))
	}
	return nil
}

func validateExpense(members map[string]Totals, exp Expense) error {
	if exp.Amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if len(exp.SplitBetween) == 0 {
		return fmt.Errorf("split set is empty")
	}
	if _, ok := members[exp.PaidBy]; !ok {
		return fmt.Errorf("payer %q is not a group member", exp.PaidBy)
	}
	seen := make(map[string]struct{}, len(exp.SplitBetween))
	for _, m := range exp.SplitBetween {
		if _, ok := members[m]; !ok {
			return fmt.Errorf("participant %q is not a group member", m)
		}
		if _, dup := seen[m]; dup {
			return fmt.Errorf("participant %q is listed twice", m)
		}
		seen[m] = struct{}{}
	}
	return nil
}

type position struct {
	member string
	amount decimal.Decimal
}

// ComputeDebts returns transfers that settle balances, largest imbalances
// first. It is a greedy matching of creditors against debtors: it emits at
// most one fewer transfer than there are unsettled members, but it is not
// guaranteed to find the minimum number of transfers.
//
// Balances are first allocated to whole minor units so that the allocated
// amounts keep the exact sum of the input, rounded, and no member is moved by
// a full unit. Transfers are then exact in minor units and every emitted
// amount is above epsilon. A member whose position rounds to within epsilon is
// treated as settled and receives no transfer.
//
// If balances do not sum to zero the walk stops when either side runs out and
// the remainder stays unsettled; callers should check IsBalanced first.
func (e *Engine) ComputeDebts(balances Balances) []Debt {
	var creditors, debtors []position
	negEpsilon := e.epsilon.Neg()
	for _, p := range allocateMinorUnits(balances) {
		switch {
		case p.amount.GreaterThan(e.epsilon):
			creditors = append(creditors, p)
		case p.amount.LessThan(negEpsilon):
			debtors = append(debtors, position{member: p.member, amount: p.amount.Abs()})
		}
	}
	sortPositions(creditors)
	sortPositions(debtors)

	debts := make([]Debt, 0)
	i, j := 0, 0
	for i < len(creditors) && j < len(debtors) {
		amount := decimal.Min(creditors[i].amount, debtors[j].amount)
		if amount.GreaterThan(e.epsilon) {
			debts = append(debts, Debt{
				From:   debtors[j].member,
				To:     creditors[i].member,
				Amount: amount,
			})
		}

		creditors[i].amount = creditors[i].amount.Sub(amount)
		debtors[j].amount = debtors[j].amount.Sub(amount)

		if creditors[i].amount.LessThanOrEqual(e.epsilon) {
			i++
		}
		if debtors[j].amount.LessThanOrEqual(e.epsilon) {
			j++
		}
	}

	return debts
}

// allocateMinorUnits rounds every balance to the minor unit with the largest
// remainder method: all balances are floored, then the units lost to flooring
// go one each to the members with the largest fractional remainder. The
// allocated amounts sum to the rounded sum of balances and each differs from
// its balance by less than one unit.
func allocateMinorUnits(balances Balances) []position {
	type share struct {
		member    string
		floor     decimal.Decimal
		remainder decimal.Decimal
	}

	shares := make([]share, 0, len(balances))
	total, floored := decimal.Zero, decimal.Zero
	for m, b := range balances {
		units := b.Shift(minorUnitPlaces)
		f := units.Floor()
		shares = append(shares, share{member: m, floor: f, remainder: units.Sub(f)})
		total = total.Add(units)
		floored = floored.Add(f)
	}

	sort.Slice(shares, func(a, b int) bool {
		if c := shares[a].remainder.Cmp(shares[b].remainder); c != 0 {
			return c > 0
		}
		return shares[a].member < shares[b].member
	})

	// 0 <= extra <= len(shares), because flooring loses less than one unit per member.
	extra := total.Round(0).Sub(floored).IntPart()

	out := make([]position, len(shares))
	for k, s := range shares {
		units := s.floor
		if int64(k) < extra {
			units = units.Add(decimal.NewFromInt(1))
		}
		out[k] = position{member: s.member, amount: units.Shift(-minorUnitPlaces)}
	}
	return out
}

// sortPositions orders by amount descending, then member id ascending so that
// equal amounts always settle in the same order.
func sortPositions(ps []position) {
	sort.Slice(ps, func(a, b int) bool {
		if c := ps[a].amount.Cmp(ps[b].amount); c != 0 {
			return c > 0
		}
		return ps[a].member < ps[b].member
	})
}

// IsBalanced reports whether balances sum to zero within the engine's epsilon.
func (e *Engine) IsBalanced(balances Balances) bool {
	return Residual(balances).Abs().LessThanOrEqual(e.epsilon)
}

// Settle computes balances, totals and debts for one group in a single call.
func (e *Engine) Settle(members []string, expenses []Expense) (*Settlement, error) {
	totals, err := e.ComputeTotals(members, expenses)
	if err != nil {
		return nil, err
	}

	balances := make(Balances, len(totals))
	for m, t := range totals {
		balances[m] = t.Paid.Sub(t.Owed)
	}

	residual := Residual(balances)
	return &Settlement{
		Balances: balances,
		Totals:   totals,
		Debts:    e.ComputeDebts(balances),
		Residual: residual,
		Balanced: residual.Abs().LessThanOrEqual(e.epsilon),
	}, nil
}

// Residual returns the signed sum of all balances.
func Residual(balances Balances) decimal.Decimal {
	sum := decimal.Zero
	for _, b := range balances {
		sum = sum.Add(b)
	}
	return sum
}

// Round rounds an amount to the currency's minor unit for presentation.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(minorUnitPlaces)
}

var defaultEngine = New(DefaultEpsilon)

// ComputeBalances runs Engine.ComputeBalances with DefaultEpsilon.
func ComputeBalances(members []string, expenses []Expense) (Balances, error) {
	return defaultEngine.ComputeBalances(members, expenses)
}

// ComputeDebts runs Engine.ComputeDebts with DefaultEpsilon.
func ComputeDebts(balances Balances) []Debt {
	return defaultEngine.ComputeDebts(balances)
}
