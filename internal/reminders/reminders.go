// Package reminders emails every member who owes money in some group the
// transfers that would settle their debts.
package reminders

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"splitledger/internal/logger"
	"splitledger/internal/metrics"
	"splitledger/internal/models"
	"splitledger/internal/services"
)

// maxConcurrency bounds both the group settlements and the emails in flight.
const maxConcurrency = 4

// Settler computes settlements without an access check.
type Settler interface {
	ListActiveGroupIDs() ([]string, error)
	ComputeGroupSettlement(groupID string) (*services.GroupBalances, error)
}

// Directory resolves user IDs to users.
type Directory interface {
	GetUserByID(id string) (*models.User, error)
}

// Line is one transfer a debtor should make.
type Line struct {
	GroupName    string
	CreditorName string
	Amount       decimal.Decimal
}

// Report summarises one run.
type Report struct {
	Groups  int `json:"groups"`
	Skipped int `json:"skipped"`
	Debtors int `json:"debtors"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// Service runs reminder rounds.
type Service struct {
	settler   Settler
	directory Directory
	mailer    Mailer
	metrics   *metrics.Registry
}

// NewService creates a Service. reg may be nil.
func NewService(settler Settler, directory Directory, mailer Mailer, reg *metrics.Registry) *Service {
	return &Service{settler: settler, directory: directory, mailer: mailer, metrics: reg}
}

// Run settles every active group and mails each debtor one summary of what
// they owe across all groups. A group that fails to settle is logged and
// skipped; only context cancellation aborts the run.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	log := logger.Named("reminders")

	groupIDs, err := s.settler.ListActiveGroupIDs()
	if err != nil {
		return nil, err
	}

	results := make([]*services.GroupBalances, len(groupIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, id := range groupIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := s.settler.ComputeGroupSettlement(id)
			if err != nil {
				log.Warnw("skipping group", "group_id", id, "error", err)
				return nil
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	var settled []*services.GroupBalances
	for _, r := range results {
		if r == nil {
			report.Skipped++
			continue
		}
		settled = append(settled, r)
	}
	report.Groups = len(settled)

	byDebtor := aggregate(settled)
	report.Debtors = len(byDebtor)

	debtors := make([]string, 0, len(byDebtor))
	for id := range byDebtor {
		debtors = append(debtors, id)
	}
	sort.Strings(debtors)

	outcomes := make([]error, len(debtors))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, id := range debtors {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.remind(gctx, id, byDebtor[id])
			s.metrics.ReminderSent(outcomes[i])
			if outcomes[i] != nil {
				log.Errorw("failed to send reminder", "user_id", id, "error", outcomes[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, err := range outcomes {
		if err != nil {
			report.Failed++
		} else {
			report.Sent++
		}
	}

	log.Infow("reminder run finished",
		"groups", report.Groups,
		"skipped", report.Skipped,
		"debtors", report.Debtors,
		"sent", report.Sent,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *Service) remind(ctx context.Context, userID string, lines []Line) error {
	user, err := s.directory.GetUserByID(userID)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, Compose(user, lines))
}

// aggregate groups every debt by the member who owes it.
func aggregate(results []*services.GroupBalances) map[string][]Line {
	out := make(map[string][]Line)
	for _, r := range results {
		names := make(map[string]string, len(r.Balances))
		for _, b := range r.Balances {
			names[b.UserID] = b.Name
		}
		for _, d := range r.Debts {
			out[d.From] = append(out[d.From], Line{
				GroupName:    r.GroupName,
				CreditorName: names[d.To],
				Amount:       d.Amount,
			})
		}
	}
	return out
}

// Compose renders the reminder for user.
func Compose(user *models.User, lines []Line) Message {
	total := decimal.Zero
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nYou have open balances in your groups:\n\n", user.Name)
	for _, l := range lines {
		fmt.Fprintf(&b, "  %s: pay %s %s\n", l.GroupName, l.CreditorName, l.Amount.StringFixed(2))
		total = total.Add(l.Amount)
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", total.StringFixed(2))

	return Message{
		To:      user.Email,
		Subject: fmt.Sprintf("You owe %s across %d transfer(s)", total.StringFixed(2), len(lines)),
		Body:    b.String(),
	}
}
