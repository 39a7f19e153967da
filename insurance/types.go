/*
Package insurance is the domain layer: customers, policies and
installment records, plus the services that orchestrate the pure engine
against the persistence store.

PURPOSE:
  The engine (package engine) computes schedules and diffs; this package
  owns the records those diffs apply to and guarantees every schedule
  mutation happens inside one store transaction.

OWNERSHIP MODEL:
  - A policy references its customer by NATIONAL CODE, not numeric id.
    Deliberate denormalization: when a customer's code changes, the new
    code is copied onto their policies in the same transaction.
  - A policy owns its installments; deleting a policy deletes them.

SEE ALSO:
  - engine:       schedule math
  - store/sqlite: Store implementation
*/
package insurance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/isth3root/bz-exp/engine"
)

// =============================================================================
// RECORDS
// =============================================================================

// Customer is an insured person (or an admin account).
type Customer struct {
	ID            int64
	FullName      string
	NationalCode  string
	InsuranceCode string
	Phone         string
	BirthDate     string
	Score         string // A, B, C or D
	Role          string // "customer" or "admin"
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Policy is an insurance policy. Dates are administrative-calendar
// `YYYY/MM/DD` strings; money is exact decimal.
type Policy struct {
	ID                     int64
	CustomerNationalCode   string
	InsuranceType          string
	Details                string
	StartDate              string
	EndDate                string
	Premium                decimal.Decimal
	PaymentType            engine.PlanType
	InstallmentCount       int
	InstallmentType        engine.Variant
	FirstInstallmentAmount decimal.Decimal
	PaymentID              string
	PaymentLink            string
	DocumentPath           string
	PolicyNumber           string
	Status                 engine.PolicyStatus
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Terms extracts the engine-facing financial terms of the policy.
func (p Policy) Terms() engine.PolicyTerms {
	return engine.PolicyTerms{
		Premium:          p.Premium,
		PlanType:         p.PaymentType,
		InstallmentCount: p.InstallmentCount,
		Variant:          p.InstallmentType,
		FirstAmount:      p.FirstInstallmentAmount,
		StartDate:        p.StartDate,
		PayLink:          p.PaymentLink,
	}
}

// hasSchedule reports whether the policy should carry installments at
// all. Mirrors the legacy guard: installment plan, a positive count and
// a positive premium.
func (p Policy) hasSchedule() bool {
	return p.PaymentType == engine.PlanInstallment &&
		p.InstallmentCount > 0 &&
		p.Premium.IsPositive()
}

// Installment is one dated share of a policy's premium.
type Installment struct {
	ID         int64
	CustomerID int64
	PolicyID   int64
	Number     int
	Amount     decimal.Decimal
	DueDate    string
	Status     engine.InstallmentStatus
	PayLink    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (in Installment) engineView() engine.Installment {
	return engine.Installment{
		ID:     in.ID,
		Number: in.Number,
		Amount: in.Amount,
		Status: in.Status,
	}
}

func engineViews(installments []Installment) []engine.Installment {
	out := make([]engine.Installment, len(installments))
	for i, in := range installments {
		out[i] = in.engineView()
	}
	return out
}

// InstallmentProjection is a read-model row for the "all installments"
// dashboard: the schedule recomputed from current policy terms, not the
// stored rows.
type InstallmentProjection struct {
	ID                   string
	CustomerName         string
	CustomerNationalCode string
	PolicyType           string
	Amount               decimal.Decimal
	DueDate              string
	Status               engine.InstallmentStatus
	PolicyID             int64
	Number               int
}

func projectionID(policyID int64, number int) string {
	return fmt.Sprintf("%d-%d", policyID, number)
}
