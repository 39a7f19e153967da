/*
schedule.go - Installment schedule construction

PURPOSE:
  BuildSchedule turns a policy's premium into N dated installment specs.

ALGORITHM:
  Uniform:     base = floor(P / N), remainder on installment N.
               Installment i is due i months after the start date.
  Prepayment:  installment 1 carries the fixed first amount and is due
               on the start date itself; P - F is divided across the
               remaining N-1 installments, remainder on the last, each
               due i-1 months after start.
  Exception:   a single-installment prepayment plan is due one month
               after start, not on the start date. Observed legacy
               behavior, preserved deliberately.

Dates are parsed, era-normalized, then advanced with calendar-aware
month addition (day clamped to short months). Status is derived against
"now" at day granularity; no installment is ever created paid.
*/
package engine

import (
	"fmt"
	"time"

	"github.com/isth3root/bz-exp/jalali"
)

// BuildSchedule produces the full installment schedule for a policy.
// Pure: no I/O, "now" only feeds the future/overdue label.
//
// Returns nil (no schedule, no error) for cash plans and for the
// degenerate case where no installments remain to divide.
func BuildSchedule(terms PolicyTerms, now time.Time) ([]InstallmentSpec, error) {
	if terms.PlanType != PlanInstallment {
		return nil, nil
	}
	if err := validateTerms(terms); err != nil {
		return nil, err
	}

	start, err := parseStart(terms.StartDate)
	if err != nil {
		return nil, err
	}

	prepay := terms.Variant == VariantPrepayment

	// Single-installment prepayment: only the fixed installment exists,
	// due one month after start (not on the start date).
	if prepay && terms.InstallmentCount == 1 {
		due := start.AddMonths(1)
		return []InstallmentSpec{{
			Number:  1,
			Amount:  terms.FirstAmount,
			DueDate: due.String(),
			Status:  deriveStatus(due, now),
			PayLink: terms.PayLink,
		}}, nil
	}

	remainingTotal := terms.Premium
	remainingCount := terms.InstallmentCount
	if prepay {
		remainingTotal = terms.Premium.Sub(terms.FirstAmount)
		remainingCount = terms.InstallmentCount - 1
	}
	if remainingCount <= 0 {
		// Malformed count. Policy decision: no schedule, not an error.
		return nil, nil
	}

	base, remainder := splitEvenly(remainingTotal, remainingCount)

	var specs []InstallmentSpec
	if prepay {
		due := start.AddMonths(0)
		specs = append(specs, InstallmentSpec{
			Number:  1,
			Amount:  terms.FirstAmount,
			DueDate: due.String(),
			Status:  deriveStatus(due, now),
			PayLink: terms.PayLink,
		})
	}

	startNumber := 1
	if prepay {
		startNumber = 2
	}
	for k := 0; k < remainingCount; k++ {
		number := startNumber + k
		months := number
		if prepay {
			months = number - 1
		}
		due := start.AddMonths(months)

		amount := base
		if k == remainingCount-1 {
			amount = amount.Add(remainder)
		}

		specs = append(specs, InstallmentSpec{
			Number:  number,
			Amount:  amount,
			DueDate: due.String(),
			Status:  deriveStatus(due, now),
			PayLink: terms.PayLink,
		})
	}
	return specs, nil
}

// validateTerms enforces the financial invariants shared by schedule
// building and recalculation.
func validateTerms(terms PolicyTerms) error {
	if !terms.Premium.IsPositive() {
		return &ValidationError{Field: "premium", Reason: "must be positive"}
	}
	if terms.InstallmentCount < 1 {
		return &ValidationError{Field: "installment_count", Reason: "must be at least 1"}
	}
	if terms.Variant == VariantPrepayment {
		if !terms.FirstAmount.IsPositive() {
			return &ValidationError{Field: "first_installment_amount", Reason: "required for prepayment plans"}
		}
		if !terms.FirstAmount.LessThan(terms.Premium) {
			return &ValidationError{Field: "first_installment_amount", Reason: "must be less than the premium"}
		}
	}
	return nil
}

// parseStart parses and era-normalizes a policy start date.
func parseStart(s string) (jalali.Date, error) {
	d, err := jalali.Parse(s)
	if err != nil {
		return jalali.Date{}, &ValidationError{Field: "start_date", Reason: fmt.Sprintf("unparsable date %q", s)}
	}
	return d.NormalizeEra(), nil
}
