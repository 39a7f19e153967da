/*
installments.go - Installment service

PURPOSE:
  Reads installments, records payments (routing upward amount edits
  through the overpayment cascade), and serves the dashboard counts.

STATUS RULES:
  Reads return installment status exactly as stored. The only status
  transitions are the ones the cascade produces; nothing here reverts a
  paid installment.
*/
package insurance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/isth3root/bz-exp/engine"
	"github.com/isth3root/bz-exp/jalali"
)

// InstallmentService administers installment records.
type InstallmentService struct {
	store Store
	now   func() time.Time
}

// NewInstallmentService creates an installment service. A nil clock
// defaults to time.Now.
func NewInstallmentService(store Store, clock func() time.Time) *InstallmentService {
	if clock == nil {
		clock = time.Now
	}
	return &InstallmentService{store: store, now: clock}
}

// =============================================================================
// READS
// =============================================================================

func (s *InstallmentService) List(ctx context.Context) ([]Installment, error) {
	return s.store.ListInstallments(ctx)
}

func (s *InstallmentService) Get(ctx context.Context, id int64) (*Installment, error) {
	return s.store.GetInstallment(ctx, id)
}

func (s *InstallmentService) ListByCustomer(ctx context.Context, customerID int64) ([]Installment, error) {
	return s.store.ListInstallmentsByCustomer(ctx, customerID)
}

func (s *InstallmentService) ListByPolicy(ctx context.Context, policyID int64) ([]Installment, error) {
	return s.store.ListInstallmentsByPolicy(ctx, policyID)
}

// OverdueCount counts installments stored overdue whose due date has
// actually passed.
func (s *InstallmentService) OverdueCount(ctx context.Context) (int, error) {
	installments, err := s.store.ListInstallments(ctx)
	if err != nil {
		return 0, err
	}
	today := jalali.FromTime(s.now())
	count := 0
	for _, in := range installments {
		if in.Status != engine.StatusOverdue {
			continue
		}
		due, err := jalali.Parse(in.DueDate)
		if err != nil {
			continue
		}
		if due.Before(today) {
			count++
		}
	}
	return count, nil
}

// NearExpiryCount counts unpaid installments due within the next month.
func (s *InstallmentService) NearExpiryCount(ctx context.Context) (int, error) {
	installments, err := s.store.ListInstallments(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	count := 0
	for _, in := range installments {
		if in.Status == engine.StatusPaid {
			continue
		}
		near, err := engine.NearExpiry(in.DueDate, now)
		if err != nil {
			continue
		}
		if near {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// WRITES
// =============================================================================

// Create persists a manually entered installment record.
func (s *InstallmentService) Create(ctx context.Context, in *Installment) error {
	if in.Status == "" {
		status, err := engine.DeriveStatus(in.DueDate, s.now())
		if err != nil {
			return err
		}
		in.Status = status
	}
	return s.store.CreateInstallment(ctx, in)
}

// RecordPayment edits an installment's amount. An upward edit marks it
// paid and cascades the excess across the policy's later installments;
// the whole cascade is applied atomically.
func (s *InstallmentService) RecordPayment(ctx context.Context, id int64, newAmount decimal.Decimal) (*Installment, error) {
	in, err := s.store.GetInstallment(ctx, id)
	if err != nil {
		return nil, err
	}

	later, err := s.store.ListInstallmentsAfter(ctx, in.PolicyID, in.Number)
	if err != nil {
		return nil, err
	}

	diff := engine.ApplyPayment(in.engineView(), newAmount, engineViews(later))

	err = s.store.WithTx(ctx, func(tx Store) error {
		return applyDiff(ctx, tx, diff, in.PolicyID, in.CustomerID)
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetInstallment(ctx, id)
}

// Delete removes one installment.
func (s *InstallmentService) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteInstallment(ctx, id)
}
