package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isth3root/bz-exp/engine"
	"github.com/isth3root/bz-exp/jalali"
)

func jdate(t time.Time) string { return jalali.FromTime(t).String() }

// =============================================================================
// INSTALLMENT STATUS
// =============================================================================

func TestDeriveStatus(t *testing.T) {
	now := testNow

	cases := []struct {
		name string
		due  string
		want engine.InstallmentStatus
	}{
		{"yesterday is overdue", jdate(now.AddDate(0, 0, -1)), engine.StatusOverdue},
		{"today is still future", jdate(now), engine.StatusFuture},
		{"tomorrow is future", jdate(now.AddDate(0, 0, 1)), engine.StatusFuture},
		{"far past is overdue", "1398/01/01", engine.StatusOverdue},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := engine.DeriveStatus(c.due, now)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestDeriveStatus_Malformed(t *testing.T) {
	_, err := engine.DeriveStatus("14020101", testNow)
	require.Error(t, err)
	assert.True(t, engine.IsClientError(err))
}

// =============================================================================
// POLICY STATUS
// =============================================================================

func TestDerivePolicyStatus(t *testing.T) {
	now := testNow

	cases := []struct {
		name   string
		end    string
		stored engine.PolicyStatus
		want   engine.PolicyStatus
	}{
		{"ended yesterday", jdate(now.AddDate(0, 0, -1)), engine.PolicyActive, engine.PolicyExpired},
		{"ends in two weeks", jdate(now.AddDate(0, 0, 14)), engine.PolicyActive, engine.PolicyNearExpiry},
		{"ends in two months", jdate(now.AddDate(0, 2, 0)), engine.PolicyActive, engine.PolicyActive},
		{"stored status kept beyond horizon", jdate(now.AddDate(1, 0, 0)), engine.PolicyActive, engine.PolicyActive},
		{"no end date keeps stored", "", engine.PolicyActive, engine.PolicyActive},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := engine.DerivePolicyStatus(c.end, c.stored, now)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestDerivePolicyStatus_EndingTodayReadsExpired(t *testing.T) {
	// Policy end dates convert to local midnight and compare against the
	// raw instant, so a policy ending today already reads expired once
	// the day has started. Installments compare at day granularity
	// instead; the asymmetry is inherited behavior.
	got, err := engine.DerivePolicyStatus(jdate(testNow), engine.PolicyActive, testNow)
	require.NoError(t, err)
	assert.Equal(t, engine.PolicyExpired, got)
}

func TestDerivePolicyStatus_Malformed(t *testing.T) {
	_, err := engine.DerivePolicyStatus("bad/date/string", engine.PolicyActive, testNow)
	require.Error(t, err)
	assert.True(t, engine.IsClientError(err))
}

// =============================================================================
// NEAR-EXPIRY WINDOW
// =============================================================================

func TestNearExpiry(t *testing.T) {
	now := testNow

	in, err := engine.NearExpiry(jdate(now.AddDate(0, 0, 10)), now)
	require.NoError(t, err)
	assert.True(t, in)

	past, err := engine.NearExpiry(jdate(now.AddDate(0, 0, -2)), now)
	require.NoError(t, err)
	assert.False(t, past)

	far, err := engine.NearExpiry(jdate(now.AddDate(0, 2, 0)), now)
	require.NoError(t, err)
	assert.False(t, far)
}
