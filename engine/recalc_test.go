package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isth3root/bz-exp/engine"
)

func inst(id int64, number int, amount int64, status engine.InstallmentStatus) engine.Installment {
	return engine.Installment{ID: id, Number: number, Amount: dec(amount), Status: status}
}

// =============================================================================
// BASIC RECALCULATION
// =============================================================================

func TestRecalculate_RebuildsUnpaidTail(t *testing.T) {
	// GIVEN: 3x1000 uniform schedule, #1 paid; premium raised to 5000
	// WHEN: recalculating
	// THEN: #2 and #3 are deleted; two new installments numbered 2 and 3
	//       carry the remaining 4000, due 2 and 3 months after the
	//       ORIGINAL start date

	terms := uniformTerms(5000, 3, "1402/01/15")
	existing := []engine.Installment{
		inst(11, 1, 1000, engine.StatusPaid),
		inst(12, 2, 1000, engine.StatusFuture),
		inst(13, 3, 1000, engine.StatusOverdue),
	}

	diff, err := engine.Recalculate(terms, existing, testNow)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{12, 13}, diff.ToDelete)
	assert.Empty(t, diff.ToUpdate, "paid installments are never modified")
	require.Len(t, diff.ToCreate, 2)

	assert.Equal(t, 2, diff.ToCreate[0].Number)
	assert.True(t, diff.ToCreate[0].Amount.Equal(dec(2000)))
	assert.Equal(t, "1402/03/15", diff.ToCreate[0].DueDate)

	assert.Equal(t, 3, diff.ToCreate[1].Number)
	assert.True(t, diff.ToCreate[1].Amount.Equal(dec(2000)))
	assert.Equal(t, "1402/04/15", diff.ToCreate[1].DueDate)
}

func TestRecalculate_RemainderOnLastCreated(t *testing.T) {
	// Remaining 4001 over two new installments: 2000 then 2001.
	terms := uniformTerms(5001, 3, "1402/01/15")
	existing := []engine.Installment{
		inst(11, 1, 1000, engine.StatusPaid),
		inst(12, 2, 1000, engine.StatusFuture),
		inst(13, 3, 1000, engine.StatusFuture),
	}

	diff, err := engine.Recalculate(terms, existing, testNow)
	require.NoError(t, err)
	require.Len(t, diff.ToCreate, 2)
	assert.True(t, diff.ToCreate[0].Amount.Equal(dec(2000)))
	assert.True(t, diff.ToCreate[1].Amount.Equal(dec(2001)))
}

func TestRecalculate_PaidCoversPremium_DeletesUnpaidOnly(t *testing.T) {
	// GIVEN: paid installments already cover the (lowered) premium
	// THEN: unpaid rows are deleted and nothing is created

	terms := uniformTerms(2000, 3, "1402/01/15")
	existing := []engine.Installment{
		inst(11, 1, 1000, engine.StatusPaid),
		inst(12, 2, 1000, engine.StatusPaid),
		inst(13, 3, 1000, engine.StatusFuture),
	}

	diff, err := engine.Recalculate(terms, existing, testNow)
	require.NoError(t, err)
	assert.Equal(t, []int64{13}, diff.ToDelete)
	assert.Empty(t, diff.ToCreate)
}

func TestRecalculate_DivisorCountNotPositive_NoCreation(t *testing.T) {
	// GIVEN: more installments paid than the new count allows for
	// THEN: no new installments; the remaining premium is NOT
	//       reconciled (observed behavior, kept as-is)

	terms := uniformTerms(5000, 2, "1402/01/15")
	existing := []engine.Installment{
		inst(11, 1, 1000, engine.StatusPaid),
		inst(12, 2, 1000, engine.StatusPaid),
	}

	diff, err := engine.Recalculate(terms, existing, testNow)
	require.NoError(t, err)
	assert.Empty(t, diff.ToDelete)
	assert.Empty(t, diff.ToCreate)
}

// =============================================================================
// PAID HISTORY PRESERVATION
// =============================================================================

func TestRecalculate_RepeatedRuns_NeverTouchPaid(t *testing.T) {
	// Recalculate with several different premiums in a row: paid rows
	// never appear in any diff.
	existing := []engine.Installment{
		inst(11, 1, 1500, engine.StatusPaid),
		inst(12, 2, 1500, engine.StatusPaid),
		inst(13, 3, 1500, engine.StatusFuture),
	}

	for _, premium := range []int64{6000, 9000, 4500, 20000} {
		terms := uniformTerms(premium, 4, "1402/01/15")
		diff, err := engine.Recalculate(terms, existing, testNow)
		require.NoError(t, err)

		assert.NotContains(t, diff.ToDelete, int64(11))
		assert.NotContains(t, diff.ToDelete, int64(12))
		for _, c := range diff.ToCreate {
			assert.Greater(t, c.Number, 2, "new numbers start after the last paid number")
		}
		assert.Empty(t, diff.ToUpdate)
	}
}

func TestRecalculate_NonContiguousPaid_TakesFreeNumbers(t *testing.T) {
	// GIVEN: only #3 paid (a later installment was settled directly,
	//        ahead of its turn), #1 and #2 still open
	// WHEN: the premium changes
	// THEN: the rebuilt tail takes the free numbers 1 and 2; the occupied
	//       #3 is never reissued

	terms := uniformTerms(16000, 3, "1402/01/15")
	existing := []engine.Installment{
		inst(11, 1, 4000, engine.StatusOverdue),
		inst(12, 2, 4000, engine.StatusFuture),
		inst(13, 3, 4500, engine.StatusPaid),
	}

	diff, err := engine.Recalculate(terms, existing, testNow)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{11, 12}, diff.ToDelete)
	require.Len(t, diff.ToCreate, 2)

	assert.Equal(t, 1, diff.ToCreate[0].Number)
	assert.True(t, diff.ToCreate[0].Amount.Equal(dec(5750)))
	assert.Equal(t, "1402/02/15", diff.ToCreate[0].DueDate)

	assert.Equal(t, 2, diff.ToCreate[1].Number)
	assert.True(t, diff.ToCreate[1].Amount.Equal(dec(5750)))
	assert.Equal(t, "1402/03/15", diff.ToCreate[1].DueDate)
}

func TestRecalculate_Idempotent(t *testing.T) {
	// GIVEN: a recalculation applied once
	// WHEN: recalculating again with the same policy input and no new
	//       payments in between
	// THEN: the regenerated unpaid schedule is identical

	terms := uniformTerms(9000, 4, "1402/01/15")
	existing := []engine.Installment{
		inst(11, 1, 1000, engine.StatusPaid),
		inst(12, 2, 1000, engine.StatusFuture),
		inst(13, 3, 1000, engine.StatusFuture),
	}

	first, err := engine.Recalculate(terms, existing, testNow)
	require.NoError(t, err)

	// Apply the first diff: paid rows survive, created specs become rows.
	applied := []engine.Installment{existing[0]}
	for i, c := range first.ToCreate {
		applied = append(applied, engine.Installment{
			ID:     100 + int64(i),
			Number: c.Number,
			Amount: c.Amount,
			Status: c.Status,
		})
	}

	second, err := engine.Recalculate(terms, applied, testNow)
	require.NoError(t, err)
	assert.Equal(t, first.ToCreate, second.ToCreate)
}

// =============================================================================
// PREPAYMENT BRANCHES
// =============================================================================

func TestRecalculate_Prepayment_FirstAlreadyPaid(t *testing.T) {
	// GIVEN: prepayment plan whose fixed first installment is paid
	// THEN: the remaining premium divides over count - paidCount, the
	//       fixed amount plays no further role

	terms := prepayTerms(10000, 3, 1000, "1402/01/15")
	existing := []engine.Installment{
		inst(11, 1, 1000, engine.StatusPaid),
		inst(12, 2, 4500, engine.StatusFuture),
		inst(13, 3, 4500, engine.StatusFuture),
	}

	diff, err := engine.Recalculate(terms, existing, testNow)
	require.NoError(t, err)
	require.Len(t, diff.ToCreate, 2)

	total := decimal.Zero
	for _, c := range diff.ToCreate {
		total = total.Add(c.Amount)
	}
	assert.True(t, total.Equal(dec(9000)))
	assert.Equal(t, 2, diff.ToCreate[0].Number)
	assert.Equal(t, 3, diff.ToCreate[1].Number)
}

func TestRecalculate_Prepayment_FirstUnpaid_RegeneratesFixedFirst(t *testing.T) {
	// GIVEN: prepayment plan, nothing paid yet, terms changed
	// THEN: installment 1 is recreated with the fixed amount, due one
	//       month after start (recalculation's uniform due-date rule),
	//       and the created tail is one short of the count with the
	//       total falling short of the premium — the observed
	//       recalculation shortfall, reproduced deliberately

	terms := prepayTerms(10000, 3, 1000, "1402/01/15")
	existing := []engine.Installment{
		inst(11, 1, 1000, engine.StatusFuture),
		inst(12, 2, 4500, engine.StatusFuture),
		inst(13, 3, 4500, engine.StatusFuture),
	}

	diff, err := engine.Recalculate(terms, existing, testNow)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{11, 12, 13}, diff.ToDelete)
	require.Len(t, diff.ToCreate, 2)

	assert.Equal(t, 1, diff.ToCreate[0].Number)
	assert.True(t, diff.ToCreate[0].Amount.Equal(dec(1000)), "fixed first amount")
	assert.Equal(t, "1402/02/15", diff.ToCreate[0].DueDate)

	assert.Equal(t, 2, diff.ToCreate[1].Number)
	assert.True(t, diff.ToCreate[1].Amount.Equal(dec(4500)))

	// 1000 + 4500 != 10000: the base share displaced by the fixed first
	// amount is dropped. Pinned so a future change is a conscious one.
	total := diff.ToCreate[0].Amount.Add(diff.ToCreate[1].Amount)
	assert.True(t, total.Equal(dec(5500)))
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestRecalculate_UnparsableStartDate(t *testing.T) {
	terms := uniformTerms(5000, 3, "1402-01-15")
	existing := []engine.Installment{inst(11, 1, 1000, engine.StatusFuture)}

	_, err := engine.Recalculate(terms, existing, testNow)
	require.Error(t, err)
	assert.True(t, engine.IsClientError(err))
}
