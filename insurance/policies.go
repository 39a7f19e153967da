/*
policies.go - Policy lifecycle service

PURPOSE:
  Creates, updates and deletes policies, driving the engine at each
  step: schedule construction on create, recalculation when financial
  terms change, cascade deletion of installments on remove. Read paths
  derive policy status (expired / near-expiry) without mutating rows.

TRANSACTIONS:
  Every mutation that touches installments runs inside Store.WithTx so a
  crash can never leave a mix of old and new unpaid installments.
*/
package insurance

import (
	"context"
	"time"

	"github.com/isth3root/bz-exp/engine"
	"github.com/isth3root/bz-exp/jalali"
)

// PolicyService administers policies and their schedules.
type PolicyService struct {
	store Store
	now   func() time.Time
}

// NewPolicyService creates a policy service. A nil clock defaults to
// time.Now (tests inject a fixed clock).
func NewPolicyService(store Store, clock func() time.Time) *PolicyService {
	if clock == nil {
		clock = time.Now
	}
	return &PolicyService{store: store, now: clock}
}

// =============================================================================
// READS
// =============================================================================

// List returns all policies with their status derived against now.
func (s *PolicyService) List(ctx context.Context) ([]Policy, error) {
	policies, err := s.store.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	return s.deriveStatuses(policies)
}

// Get returns one policy. Status is stored as-is here; list views derive.
func (s *PolicyService) Get(ctx context.Context, id int64) (*Policy, error) {
	return s.store.GetPolicy(ctx, id)
}

// ListByNationalCode returns a customer's policies with derived status.
func (s *PolicyService) ListByNationalCode(ctx context.Context, code string) ([]Policy, error) {
	policies, err := s.store.ListPoliciesByNationalCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.deriveStatuses(policies)
}

// ListByCustomer resolves the customer's national code first; a missing
// customer yields an empty list, not an error.
func (s *PolicyService) ListByCustomer(ctx context.Context, customerID int64) ([]Policy, error) {
	customer, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		if engine.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return s.ListByNationalCode(ctx, customer.NationalCode)
}

func (s *PolicyService) deriveStatuses(policies []Policy) ([]Policy, error) {
	now := s.now()
	for i := range policies {
		status, err := engine.DerivePolicyStatus(policies[i].EndDate, policies[i].Status, now)
		if err != nil {
			return nil, err
		}
		policies[i].Status = status
	}
	return policies, nil
}

// Count returns the total number of policies.
func (s *PolicyService) Count(ctx context.Context) (int, error) {
	return s.store.CountPolicies(ctx)
}

// NearExpiryCount counts policies whose end date falls within the next
// month.
func (s *PolicyService) NearExpiryCount(ctx context.Context) (int, error) {
	policies, err := s.store.ListPolicies(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	count := 0
	for _, p := range policies {
		if p.EndDate == "" {
			continue
		}
		near, err := engine.NearExpiry(p.EndDate, now)
		if err != nil {
			return 0, err
		}
		if near {
			count++
		}
	}
	return count, nil
}

// NumberExists reports whether a policy number is already taken.
func (s *PolicyService) NumberExists(ctx context.Context, policyNumber string) (bool, error) {
	return s.store.PolicyNumberExists(ctx, policyNumber)
}

// =============================================================================
// CREATE
// =============================================================================

// Create persists a policy and, for installment plans, its full
// schedule, atomically. The owning customer must exist.
//
// Defaults applied:
//   - blank end date: start date plus one administrative year
//   - blank status:   active, or expired if the end date already passed
func (s *PolicyService) Create(ctx context.Context, p *Policy) error {
	now := s.now()

	if p.EndDate == "" {
		start, err := jalali.Parse(p.StartDate)
		if err != nil {
			return &engine.ValidationError{Field: "start_date", Reason: "unparsable date"}
		}
		p.EndDate = start.AddYears(1).String()
	}
	if p.Status == "" {
		p.Status = engine.PolicyActive
		if status, err := engine.DerivePolicyStatus(p.EndDate, p.Status, now); err == nil && status == engine.PolicyExpired {
			p.Status = engine.PolicyExpired
		}
	}

	customer, err := s.store.GetCustomerByNationalCode(ctx, p.CustomerNationalCode)
	if err != nil {
		return err
	}

	var specs []engine.InstallmentSpec
	if p.hasSchedule() {
		specs, err = engine.BuildSchedule(p.Terms(), now)
		if err != nil {
			return err
		}
	}

	return s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.CreatePolicy(ctx, p); err != nil {
			return err
		}
		for _, spec := range specs {
			in := specToInstallment(spec, p.ID, customer.ID)
			if err := tx.CreateInstallment(ctx, &in); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// UPDATE + RECALCULATION
// =============================================================================

// Update saves changed policy fields and, when premium, count, variant
// or first amount changed on an installment plan, recalculates the
// unpaid schedule tail. Paid installments are never touched.
func (s *PolicyService) Update(ctx context.Context, p *Policy) error {
	old, err := s.store.GetPolicy(ctx, p.ID)
	if err != nil {
		return err
	}

	// Partial updates keep the stored end date and status.
	if p.EndDate == "" {
		p.EndDate = old.EndDate
	}
	if p.Status == "" {
		p.Status = old.Status
	}

	needsRecalc := !old.Premium.Equal(p.Premium) ||
		old.InstallmentCount != p.InstallmentCount ||
		old.InstallmentType != p.InstallmentType ||
		!old.FirstInstallmentAmount.Equal(p.FirstInstallmentAmount)

	if !needsRecalc || !p.hasSchedule() {
		return s.store.UpdatePolicy(ctx, p)
	}

	existing, err := s.store.ListInstallmentsByPolicy(ctx, p.ID)
	if err != nil {
		return err
	}

	diff, err := engine.Recalculate(p.Terms(), engineViews(existing), s.now())
	if err != nil {
		return err
	}

	customer, err := s.store.GetCustomerByNationalCode(ctx, p.CustomerNationalCode)
	if err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.UpdatePolicy(ctx, p); err != nil {
			return err
		}
		return applyDiff(ctx, tx, diff, p.ID, customer.ID)
	})
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a policy and all its installments atomically.
func (s *PolicyService) Delete(ctx context.Context, id int64) error {
	if _, err := s.store.GetPolicy(ctx, id); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.DeleteInstallmentsByPolicy(ctx, id); err != nil {
			return err
		}
		return tx.DeletePolicy(ctx, id)
	})
}

// =============================================================================
// PROJECTION
// =============================================================================

// ProjectInstallments recomputes every installment plan's schedule from
// current policy terms for the dashboard. This is a read model: stored
// installment rows are not consulted and nothing is persisted. Policies
// without a parsable start date fall back to today.
//
// Statuses follow the schedule builder's day-granular rule: a row due
// today is labeled future here, while instant-based comparisons (the
// near-expiry counters) would already treat it as due.
func (s *PolicyService) ProjectInstallments(ctx context.Context) ([]InstallmentProjection, error) {
	policies, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var out []InstallmentProjection
	for _, p := range policies {
		if !p.hasSchedule() {
			continue
		}

		terms := p.Terms()
		if _, err := jalali.Parse(terms.StartDate); err != nil {
			terms.StartDate = jalali.FromTime(now).String()
		}

		specs, err := engine.BuildSchedule(terms, now)
		if err != nil {
			// Skip policies with invalid terms rather than failing the
			// whole dashboard.
			continue
		}

		customerName := "Unknown"
		customerCode := p.CustomerNationalCode
		if c, err := s.store.GetCustomerByNationalCode(ctx, p.CustomerNationalCode); err == nil {
			customerName = c.FullName
		}

		for _, spec := range specs {
			out = append(out, InstallmentProjection{
				ID:                   projectionID(p.ID, spec.Number),
				CustomerName:         customerName,
				CustomerNationalCode: customerCode,
				PolicyType:           p.InsuranceType,
				Amount:               spec.Amount,
				DueDate:              spec.DueDate,
				Status:               spec.Status,
				PolicyID:             p.ID,
				Number:               spec.Number,
			})
		}
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func specToInstallment(spec engine.InstallmentSpec, policyID, customerID int64) Installment {
	return Installment{
		CustomerID: customerID,
		PolicyID:   policyID,
		Number:     spec.Number,
		Amount:     spec.Amount,
		DueDate:    spec.DueDate,
		Status:     spec.Status,
		PayLink:    spec.PayLink,
	}
}

// applyDiff applies an engine diff against the (transactional) store.
func applyDiff(ctx context.Context, tx Store, diff engine.ScheduleDiff, policyID, customerID int64) error {
	for _, id := range diff.ToDelete {
		if err := tx.DeleteInstallment(ctx, id); err != nil {
			return err
		}
	}
	for _, spec := range diff.ToCreate {
		in := specToInstallment(spec, policyID, customerID)
		if err := tx.CreateInstallment(ctx, &in); err != nil {
			return err
		}
	}
	for _, change := range diff.ToUpdate {
		if err := tx.UpdateInstallmentAmount(ctx, change.ID, change.Amount, change.Status); err != nil {
			return err
		}
	}
	return nil
}
