package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isth3root/bz-exp/engine"
	"github.com/isth3root/bz-exp/insurance"
	"github.com/isth3root/bz-exp/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// timeFuture is a cutoff later than any row written during the test.
func timeFuture() time.Time {
	return time.Now().Add(time.Hour)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedCustomer(t *testing.T, store *sqlite.Store, code string) *insurance.Customer {
	t.Helper()
	c := &insurance.Customer{
		FullName:     "Ali Rezaei",
		NationalCode: code,
		Phone:        "09120000000",
	}
	require.NoError(t, store.CreateCustomer(context.Background(), c))
	return c
}

func seedPolicy(t *testing.T, store *sqlite.Store, code string) *insurance.Policy {
	t.Helper()
	p := &insurance.Policy{
		CustomerNationalCode: code,
		InsuranceType:        "third-party",
		StartDate:            "1402/01/15",
		EndDate:              "1403/01/15",
		Premium:              dec("12000"),
		PaymentType:          engine.PlanInstallment,
		InstallmentCount:     3,
		InstallmentType:      engine.VariantUniform,
		PolicyNumber:         "POL-" + code,
		Status:               engine.PolicyActive,
	}
	require.NoError(t, store.CreatePolicy(context.Background(), p))
	return p
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestCustomer_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := seedCustomer(t, store, "0012345678")
	assert.NotZero(t, c.ID)

	got, err := store.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ali Rezaei", got.FullName)
	assert.Equal(t, "0012345678", got.NationalCode)
	assert.Equal(t, "A", got.Score)
	assert.Equal(t, "customer", got.Role)

	byCode, err := store.GetCustomerByNationalCode(ctx, "0012345678")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byCode.ID)
}

func TestCustomer_NotFoundSentinel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetCustomer(ctx, 9999)
	assert.True(t, errors.Is(err, engine.ErrCustomerNotFound))

	_, err = store.GetCustomerByNationalCode(ctx, "nope")
	assert.True(t, errors.Is(err, engine.ErrCustomerNotFound))
}

func TestCustomer_DuplicateNationalCodeRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "0012345678")
	dup := &insurance.Customer{FullName: "Other", NationalCode: "0012345678"}
	assert.Error(t, store.CreateCustomer(ctx, dup))
}

func TestCustomer_SearchByName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "001")
	other := &insurance.Customer{FullName: "Sara Mohammadi", NationalCode: "002"}
	require.NoError(t, store.CreateCustomer(ctx, other))

	found, err := store.SearchCustomersByName(ctx, "Sara")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "002", found[0].NationalCode)

	all, err := store.SearchCustomersByName(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCustomer_ReassignPolicies(t *testing.T) {
	// GIVEN: two policies referencing a customer's national code
	// WHEN: policies are reassigned to a new code
	// THEN: both rows carry the new code, other customers untouched

	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "old-code")
	seedCustomer(t, store, "other")
	seedPolicy(t, store, "old-code")
	p2 := seedPolicy(t, store, "other")

	require.NoError(t, store.ReassignPolicies(ctx, "old-code", "new-code"))

	moved, err := store.ListPoliciesByNationalCode(ctx, "new-code")
	require.NoError(t, err)
	assert.Len(t, moved, 1)

	left, err := store.ListPoliciesByNationalCode(ctx, "old-code")
	require.NoError(t, err)
	assert.Empty(t, left)

	kept, err := store.GetPolicy(ctx, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, "other", kept.CustomerNationalCode)
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPolicy_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "001")
	p := &insurance.Policy{
		CustomerNationalCode:   "001",
		InsuranceType:          "fire",
		Details:                "warehouse coverage",
		StartDate:              "1402/03/01",
		EndDate:                "1403/03/01",
		Premium:                dec("10000.50"),
		PaymentType:            engine.PlanInstallment,
		InstallmentCount:       4,
		InstallmentType:        engine.VariantPrepayment,
		FirstInstallmentAmount: dec("1000"),
		PaymentLink:            "https://pay.example/abc",
		DocumentPath:           "/docs/p1.pdf",
		PolicyNumber:           "FP-1001",
		Status:                 engine.PolicyActive,
	}
	require.NoError(t, store.CreatePolicy(ctx, p))
	assert.NotZero(t, p.ID)

	got, err := store.GetPolicy(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Premium.Equal(dec("10000.50")), "premium survives as exact decimal")
	assert.True(t, got.FirstInstallmentAmount.Equal(dec("1000")))
	assert.Equal(t, engine.PlanInstallment, got.PaymentType)
	assert.Equal(t, engine.VariantPrepayment, got.InstallmentType)
	assert.Equal(t, engine.PolicyActive, got.Status)
	assert.Equal(t, "FP-1001", got.PolicyNumber)
}

func TestPolicy_ZeroFirstAmountStoredAsNull(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "001")
	p := seedPolicy(t, store, "001")

	got, err := store.GetPolicy(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.FirstInstallmentAmount.IsZero())
}

func TestPolicy_NotFoundSentinel(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPolicy(context.Background(), 42)
	assert.True(t, errors.Is(err, engine.ErrPolicyNotFound))
}

func TestPolicy_NumberExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "001")
	seedPolicy(t, store, "001")

	exists, err := store.PolicyNumberExists(ctx, "POL-001")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.PolicyNumberExists(ctx, "POL-999")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPolicy_UpdatePersistsChangedTerms(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "001")
	p := seedPolicy(t, store, "001")

	p.Premium = dec("24000")
	p.InstallmentCount = 6
	p.Status = engine.PolicyNearExpiry
	require.NoError(t, store.UpdatePolicy(ctx, p))

	got, err := store.GetPolicy(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Premium.Equal(dec("24000")))
	assert.Equal(t, 6, got.InstallmentCount)
	assert.Equal(t, engine.PolicyNearExpiry, got.Status)
}

func TestPolicy_DocumentJanitorQueries(t *testing.T) {
	// GIVEN: one policy with a document, one without
	// WHEN: listing policies with documents older than a future cutoff
	// THEN: only the documented policy is returned, and clearing removes it

	store := newTestStore(t)
	ctx := context.Background()

	seedCustomer(t, store, "001")
	withDoc := seedPolicy(t, store, "001")
	withDoc.DocumentPath = "/docs/old.pdf"
	require.NoError(t, store.UpdatePolicy(ctx, withDoc))

	bare := &insurance.Policy{
		CustomerNationalCode: "001",
		InsuranceType:        "life",
		StartDate:            "1402/01/01",
		Premium:              dec("500"),
		PaymentType:          engine.PlanCash,
		Status:               engine.PolicyActive,
	}
	require.NoError(t, store.CreatePolicy(ctx, bare))

	cutoff := timeFuture()
	stale, err := store.ListPoliciesWithDocumentsBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, withDoc.ID, stale[0].ID)

	require.NoError(t, store.ClearDocumentPath(ctx, withDoc.ID))
	stale, err = store.ListPoliciesWithDocumentsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

func TestInstallment_CreateListOrdered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := seedCustomer(t, store, "001")
	p := seedPolicy(t, store, "001")

	// Insert out of order; reads must come back sorted by number.
	for _, n := range []int{3, 1, 2} {
		in := &insurance.Installment{
			CustomerID: c.ID,
			PolicyID:   p.ID,
			Number:     n,
			Amount:     dec("4000"),
			DueDate:    "1402/02/15",
			Status:     engine.StatusFuture,
		}
		require.NoError(t, store.CreateInstallment(ctx, in))
	}

	installments, err := store.ListInstallmentsByPolicy(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, installments, 3)
	for i, in := range installments {
		assert.Equal(t, i+1, in.Number)
	}
}

func TestInstallment_DuplicateNumberRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := seedCustomer(t, store, "001")
	p := seedPolicy(t, store, "001")

	in := &insurance.Installment{
		CustomerID: c.ID, PolicyID: p.ID, Number: 1,
		Amount: dec("4000"), DueDate: "1402/02/15", Status: engine.StatusFuture,
	}
	require.NoError(t, store.CreateInstallment(ctx, in))

	dup := &insurance.Installment{
		CustomerID: c.ID, PolicyID: p.ID, Number: 1,
		Amount: dec("1"), DueDate: "1402/03/15", Status: engine.StatusFuture,
	}
	assert.Error(t, store.CreateInstallment(ctx, dup))
}

func TestInstallment_ListAfter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := seedCustomer(t, store, "001")
	p := seedPolicy(t, store, "001")
	for n := 1; n <= 4; n++ {
		in := &insurance.Installment{
			CustomerID: c.ID, PolicyID: p.ID, Number: n,
			Amount: dec("3000"), DueDate: "1402/02/15", Status: engine.StatusFuture,
		}
		require.NoError(t, store.CreateInstallment(ctx, in))
	}

	tail, err := store.ListInstallmentsAfter(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, 3, tail[0].Number)
	assert.Equal(t, 4, tail[1].Number)
}

func TestInstallment_UpdateAmountAndStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := seedCustomer(t, store, "001")
	p := seedPolicy(t, store, "001")
	in := &insurance.Installment{
		CustomerID: c.ID, PolicyID: p.ID, Number: 1,
		Amount: dec("4000"), DueDate: "1402/02/15", Status: engine.StatusFuture,
	}
	require.NoError(t, store.CreateInstallment(ctx, in))

	require.NoError(t, store.UpdateInstallmentAmount(ctx, in.ID, dec("5000"), engine.StatusPaid))

	got, err := store.GetInstallment(ctx, in.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("5000")))
	assert.Equal(t, engine.StatusPaid, got.Status)
}

func TestInstallment_NotFoundSentinel(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetInstallment(context.Background(), 7)
	assert.True(t, errors.Is(err, engine.ErrInstallmentNotFound))
}

func TestInstallment_DeleteByPolicy(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := seedCustomer(t, store, "001")
	p := seedPolicy(t, store, "001")
	for n := 1; n <= 3; n++ {
		in := &insurance.Installment{
			CustomerID: c.ID, PolicyID: p.ID, Number: n,
			Amount: dec("4000"), DueDate: "1402/02/15", Status: engine.StatusFuture,
		}
		require.NoError(t, store.CreateInstallment(ctx, in))
	}

	require.NoError(t, store.DeleteInstallmentsByPolicy(ctx, p.ID))
	left, err := store.ListInstallmentsByPolicy(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: a transaction creating a customer
	// WHEN: fn returns an error after the insert
	// THEN: nothing is persisted

	store := newTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := store.WithTx(ctx, func(tx insurance.Store) error {
		c := &insurance.Customer{FullName: "Ghost", NationalCode: "gone"}
		if err := tx.CreateCustomer(ctx, c); err != nil {
			return err
		}
		return sentinel
	})
	assert.True(t, errors.Is(err, sentinel))

	_, err = store.GetCustomerByNationalCode(ctx, "gone")
	assert.True(t, errors.Is(err, engine.ErrCustomerNotFound))
}

func TestWithTx_CommitsAndNests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx insurance.Store) error {
		c := &insurance.Customer{FullName: "Kept", NationalCode: "kept"}
		if err := tx.CreateCustomer(ctx, c); err != nil {
			return err
		}
		// Nested WithTx joins the outer transaction.
		return tx.WithTx(ctx, func(inner insurance.Store) error {
			p := &insurance.Policy{
				CustomerNationalCode: "kept",
				InsuranceType:        "life",
				StartDate:            "1402/01/01",
				Premium:              dec("100"),
				PaymentType:          engine.PlanCash,
				Status:               engine.PolicyActive,
			}
			return inner.CreatePolicy(ctx, p)
		})
	})
	require.NoError(t, err)

	policies, err := store.ListPoliciesByNationalCode(ctx, "kept")
	require.NoError(t, err)
	assert.Len(t, policies, 1)
}
