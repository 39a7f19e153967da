/*
status.go - Read-time status derivation

PURPOSE:
  Computes presentation status labels from stored dates and "now".

ASYMMETRY (intentional):
  Policy status is ALWAYS derived on read: expired and near-expiry
  override the stored label. Installment status is derived only when
  installments are created or recalculated; on reads it is whatever was
  last persisted, and it only moves to paid through explicit payment
  actions. Reads never mutate stored state either way.

GRANULARITY:
  Installments compare at day granularity (an installment due today is
  still "future"). Policies compare the end-of-day-start instant against
  the raw "now" instant, so a policy expiring today already reads as
  expired — both match the legacy system.
*/
package engine

import (
	"fmt"
	"time"

	"github.com/isth3root/bz-exp/jalali"
)

// DeriveStatus labels a due date as future or overdue relative to now.
// Paid is never produced here; it only arises from payment actions.
func DeriveStatus(dueDate string, now time.Time) (InstallmentStatus, error) {
	due, err := jalali.Parse(dueDate)
	if err != nil {
		return "", &ValidationError{Field: "due_date", Reason: fmt.Sprintf("unparsable date %q", dueDate)}
	}
	return deriveStatus(due, now), nil
}

func deriveStatus(due jalali.Date, now time.Time) InstallmentStatus {
	if due.Before(jalali.FromTime(now)) {
		return StatusOverdue
	}
	return StatusFuture
}

// DerivePolicyStatus labels a policy from its end date: expired if the
// end date has passed, near-expiry if it falls within the next month,
// otherwise the stored status is kept. An empty end date keeps the
// stored status.
func DerivePolicyStatus(endDate string, stored PolicyStatus, now time.Time) (PolicyStatus, error) {
	if endDate == "" {
		return stored, nil
	}
	d, err := jalali.Parse(endDate)
	if err != nil {
		return "", &ValidationError{Field: "end_date", Reason: fmt.Sprintf("unparsable date %q", endDate)}
	}

	end := d.Time()
	oneMonthAhead := now.AddDate(0, 1, 0)

	switch {
	case end.Before(now):
		return PolicyExpired, nil
	case !end.After(oneMonthAhead):
		return PolicyNearExpiry, nil
	default:
		return stored, nil
	}
}

// NearExpiry reports whether a date falls in [now, now+1 month].
// Shared by the dashboard counts for policies and installments.
func NearExpiry(date string, now time.Time) (bool, error) {
	d, err := jalali.Parse(date)
	if err != nil {
		return false, &ValidationError{Field: "date", Reason: fmt.Sprintf("unparsable date %q", date)}
	}
	t := d.Time()
	return !t.Before(now) && !t.After(now.AddDate(0, 1, 0)), nil
}
