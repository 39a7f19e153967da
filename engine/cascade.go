/*
cascade.go - Overpayment cascade

PURPOSE:
  When a recorded payment exceeds an installment's stored amount, the
  excess prepays future installments in sequence order: each later
  installment is reduced, zeroed installments are marked paid, and the
  walk continues until the excess is used up.

PRESERVED QUIRK:
  Excess left over after the last installment is dropped silently — it
  is not carried onto the policy or reported. Observed legacy behavior.
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ApplyPayment records an amount edit on one installment.
//
// A positive difference (newAmount > stored amount) marks the edited
// installment paid and cascades the excess across `later` — the
// policy's installments with a strictly greater sequence number — in
// ascending number order. A non-positive difference is a plain amount
// edit: no cascade, status untouched.
func ApplyPayment(edited Installment, newAmount decimal.Decimal, later []Installment) ScheduleDiff {
	var out ScheduleDiff

	diff := newAmount.Sub(edited.Amount)
	if !diff.IsPositive() {
		out.ToUpdate = append(out.ToUpdate, AmountChange{
			ID:     edited.ID,
			Amount: newAmount,
			Status: edited.Status,
		})
		return out
	}

	out.ToUpdate = append(out.ToUpdate, AmountChange{
		ID:     edited.ID,
		Amount: newAmount,
		Status: StatusPaid,
	})

	tail := make([]Installment, len(later))
	copy(tail, later)
	sort.Slice(tail, func(i, j int) bool { return tail[i].Number < tail[j].Number })

	remaining := diff
	for _, sub := range tail {
		if !remaining.IsPositive() {
			break
		}
		newSub := sub.Amount.Sub(remaining)
		if newSub.Sign() <= 0 {
			// Fully consumed: zero it, mark paid, carry the excess on.
			out.ToUpdate = append(out.ToUpdate, AmountChange{
				ID:     sub.ID,
				Amount: decimal.Zero,
				Status: StatusPaid,
			})
			remaining = newSub.Neg()
		} else {
			out.ToUpdate = append(out.ToUpdate, AmountChange{
				ID:     sub.ID,
				Amount: newSub,
				Status: sub.Status,
			})
			remaining = decimal.Zero
		}
	}
	// Any remaining excess is dropped here.
	return out
}
