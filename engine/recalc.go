/*
recalc.go - Schedule recalculation after policy term changes

PURPOSE:
  When an installment-based policy's premium, count, variant or first
  amount changes after some installments were paid, Recalculate rebuilds
  the unpaid tail of the schedule over the remaining premium.

CONTRACT:
  - Paid installments are never modified: not their amount, due date or
    number. Their numbers stay occupied.
  - All unpaid installments are discarded unconditionally.
  - New installments take the lowest sequence numbers not held by a paid
    row, in ascending order, and fall due `number` months after the
    ORIGINAL start date (not after "today"). When the paid set is the
    contiguous prefix 1..k this is plain numbering from k+1; a paid row
    further out (settled directly, ahead of its turn) is skipped over so
    the rebuilt tail never collides with it.

PRESERVED QUIRKS (observed legacy behavior, do not "fix"):
  - When the plan is prepayment-first, the first amount applies, and
    installment #1 is unpaid but some later ones are paid, the divisor
    subtracts the first amount while the regenerated numbers start past
    #1; the resulting total falls short of the remaining premium.
  - When the divisor count is not positive, no installments are created
    and the remaining premium is silently unreconciled.
*/
package engine

import (
	"time"
)

// Recalculate rebuilds the unpaid portion of an existing schedule after
// the policy's financial terms changed. `existing` must be the policy's
// full installment set ordered by sequence number.
//
// The returned diff deletes every unpaid installment and recreates the
// tail; paid installments never appear in it.
func Recalculate(terms PolicyTerms, existing []Installment, now time.Time) (ScheduleDiff, error) {
	var diff ScheduleDiff

	if err := validateTerms(terms); err != nil {
		return diff, err
	}

	var paid, unpaid []Installment
	for _, in := range existing {
		if in.Status == StatusPaid {
			paid = append(paid, in)
		} else {
			unpaid = append(unpaid, in)
		}
	}

	// Unpaid installments are always discarded, whatever gets rebuilt.
	for _, in := range unpaid {
		diff.ToDelete = append(diff.ToDelete, in.ID)
	}

	remaining := terms.Premium.Sub(sumAmounts(paid))
	if !remaining.IsPositive() {
		// Fully satisfied by paid installments: nothing to recreate,
		// even if fewer than InstallmentCount rows remain.
		return diff, nil
	}

	firstPaid := false
	for _, in := range paid {
		if in.Number == 1 {
			firstPaid = true
			break
		}
	}

	prepayFirst := terms.Variant == VariantPrepayment && terms.FirstAmount.IsPositive() && !firstPaid

	total := remaining
	count := terms.InstallmentCount - len(paid)
	if prepayFirst {
		total = remaining.Sub(terms.FirstAmount)
		count = terms.InstallmentCount - 1
	}
	if count <= 0 {
		// Nothing to divide into. The remainder is absorbed silently.
		return diff, nil
	}

	base, remainder := splitEvenly(total, count)

	start, err := parseStart(terms.StartDate)
	if err != nil {
		return diff, err
	}

	paidNumbers := make(map[int]bool, len(paid))
	for _, in := range paid {
		paidNumbers[in.Number] = true
	}

	number := 0
	for i := 0; i < count; i++ {
		number++
		for paidNumbers[number] {
			number++
		}
		due := start.AddMonths(number)

		amount := base
		if prepayFirst && number == 1 {
			amount = terms.FirstAmount
		} else if i == count-1 {
			amount = amount.Add(remainder)
		}

		diff.ToCreate = append(diff.ToCreate, InstallmentSpec{
			Number:  number,
			Amount:  amount,
			DueDate: due.String(),
			Status:  deriveStatus(due, now),
			PayLink: terms.PayLink,
		})
	}
	return diff, nil
}
