/*
Package engine implements the installment amortization and recalculation
engine.

PURPOSE:
  Converts a policy's premium into a dated installment schedule on the
  administrative calendar, rebuilds the unpaid tail when policy terms
  change, cascades overpayments across later installments, and derives
  read-time status labels. Everything here is pure: the engine holds no
  state, performs no I/O, and expresses all effects as a ScheduleDiff
  the caller applies inside one store transaction.

KEY CONCEPTS IN THIS FILE (types.go):
  - PolicyTerms: the financial terms a schedule is derived from
  - InstallmentSpec: a to-be-created installment (number, amount, due date)
  - Installment: an existing record as the engine needs to see it
  - ScheduleDiff: deletions, creations and updates for one mutation

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money, never floats
  2. Purity: "now" is always an explicit parameter
  3. Paid history is immutable: no diff ever touches a paid installment,
     except the cascade marking installments paid

SEE ALSO:
  - schedule.go: BuildSchedule
  - recalc.go:   Recalculate
  - cascade.go:  ApplyPayment
  - status.go:   DeriveStatus / DerivePolicyStatus
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS - plan, variant, statuses
// =============================================================================

// PlanType distinguishes one-time payment from installment-based policies.
type PlanType string

const (
	PlanCash        PlanType = "cash"
	PlanInstallment PlanType = "installment"
)

// Variant selects how the premium is split across installments.
type Variant string

const (
	// VariantUniform divides the premium equally, remainder on the last.
	VariantUniform Variant = "uniform"
	// VariantPrepayment fixes the first installment's amount; the rest
	// of the premium is divided across the remaining installments.
	VariantPrepayment Variant = "prepayment"
)

// InstallmentStatus is the stored status of a single installment.
type InstallmentStatus string

const (
	StatusFuture  InstallmentStatus = "future"
	StatusOverdue InstallmentStatus = "overdue"
	StatusPaid    InstallmentStatus = "paid"
)

// PolicyStatus is the (partially derived) status of a policy.
type PolicyStatus string

const (
	PolicyActive     PolicyStatus = "active"
	PolicyNearExpiry PolicyStatus = "near-expiry"
	PolicyExpired    PolicyStatus = "expired"
)

// =============================================================================
// INPUT / OUTPUT TYPES
// =============================================================================

// PolicyTerms carries the subset of a policy the engine derives
// schedules from.
type PolicyTerms struct {
	Premium          decimal.Decimal
	PlanType         PlanType
	InstallmentCount int
	Variant          Variant
	// FirstAmount is the fixed first installment. Required (and only
	// meaningful) for VariantPrepayment.
	FirstAmount decimal.Decimal
	// StartDate is an administrative-calendar `YYYY/MM/DD` string.
	StartDate string
	// PayLink is carried onto every created installment.
	PayLink string
}

// InstallmentSpec describes an installment to be created.
type InstallmentSpec struct {
	Number  int
	Amount  decimal.Decimal
	DueDate string
	Status  InstallmentStatus
	PayLink string
}

// Installment is an existing installment record as seen by the engine.
type Installment struct {
	ID     int64
	Number int
	Amount decimal.Decimal
	Status InstallmentStatus
}

// AmountChange updates one existing installment's amount and status.
type AmountChange struct {
	ID     int64
	Amount decimal.Decimal
	Status InstallmentStatus
}

// ScheduleDiff is the engine's output: the full set of persistence
// effects for one schedule mutation. The caller must apply it atomically.
type ScheduleDiff struct {
	ToDelete []int64
	ToCreate []InstallmentSpec
	ToUpdate []AmountChange
}

// Empty reports whether the diff carries no effects.
func (d ScheduleDiff) Empty() bool {
	return len(d.ToDelete) == 0 && len(d.ToCreate) == 0 && len(d.ToUpdate) == 0
}

// =============================================================================
// HELPERS
// =============================================================================

// splitEvenly divides total across count parts with integer-safe floor
// division: every part gets base, the remainder goes to the LAST part.
// This tie-break is load-bearing: stored schedules were produced with it
// and must reproduce identically.
func splitEvenly(total decimal.Decimal, count int) (base, remainder decimal.Decimal) {
	n := decimal.NewFromInt(int64(count))
	base = total.Div(n).Floor()
	remainder = total.Sub(base.Mul(n))
	return base, remainder
}

func sumAmounts(installments []Installment) decimal.Decimal {
	sum := decimal.Zero
	for _, in := range installments {
		sum = sum.Add(in.Amount)
	}
	return sum
}
