package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func days(ds ...int) []time.Time {
	out := make([]time.Time, 0, len(ds))
	for _, d := range ds {
		out = append(out, t0.Add(time.Duration(d)*Day))
	}
	return out
}

func repeat(d, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func TestCountEventsInWindow(t *testing.T) {
	events := days(0, 1, 2, 3, 4, 10)
	now := t0.Add(7 * Day)

	assert.Equal(t, 4, CountEventsInWindow(events, now, 7*Day), "day 0 sits on the boundary and is excluded")
	assert.Equal(t, 5, CountEventsInWindow(events, now, 0), "lifetime ignores the future event only")
	assert.Equal(t, 0, CountEventsInWindow(nil, now, 7*Day))
}

func TestRollingWeekBlocksSixth(t *testing.T) {
	windows, err := Windows(PlanRolling)
	require.NoError(t, err)

	now := t0.Add(4 * Day)
	d := Evaluate(windows, days(0, 1, 2, 3, 4), now)

	assert.False(t, d.Allowed)
	assert.False(t, d.Permanent)
	require.NotNil(t, d.UnlockAt)
	assert.Equal(t, t0.Add(7*Day), *d.UnlockAt)
	require.Len(t, d.Violations, 1)
	assert.Equal(t, "7d", d.Violations[0].Window.Name)

	var qe *ExceededError
	require.ErrorAs(t, d.Authorize(), &qe)
	assert.Contains(t, qe.Error(), "2026-03-08T09:00:00Z")
}

func TestRollingWindowSelfHeals(t *testing.T) {
	windows, _ := Windows(PlanRolling)
	d := Evaluate(windows, days(0, 1, 2, 3, 4), t0.Add(7*Day))
	assert.True(t, d.Allowed)
	assert.NoError(t, d.Authorize())
}

func TestRollingUnlockIsLatestOverViolatedWindows(t *testing.T) {
	windows, _ := Windows(PlanRolling)

	// 15 creates on day 10 then one per day up to day 15: both windows violated.
	events := days(append(repeat(10, 15), 11, 12, 13, 14, 15)...)
	d := Evaluate(windows, events, t0.Add(15*Day))

	assert.False(t, d.Allowed)
	require.Len(t, d.Violations, 2)
	assert.Equal(t, t0.Add(17*Day), *d.Violations[0].Unlock)
	assert.Equal(t, t0.Add(40*Day), *d.Violations[1].Unlock)
	assert.Equal(t, t0.Add(40*Day), *d.UnlockAt)
}

func TestRollingMonthOnly(t *testing.T) {
	windows, _ := Windows(PlanRolling)

	// 16 creates on day 1 and 4 on day 25: under 5/7d, at 20/30d.
	events := days(append(repeat(1, 16), repeat(25, 4)...)...)
	d := Evaluate(windows, events, t0.Add(28*Day))

	assert.False(t, d.Allowed)
	require.Len(t, d.Violations, 1)
	assert.Equal(t, "30d", d.Violations[0].Window.Name)
	assert.Equal(t, t0.Add(31*Day), *d.UnlockAt)
}

func TestLifetimePlan(t *testing.T) {
	windows, err := Windows(PlanLifetimeOne)
	require.NoError(t, err)

	assert.True(t, Evaluate(windows, nil, t0).Allowed)

	for _, later := range []time.Duration{0, 30 * Day, 3650 * Day} {
		d := Evaluate(windows, days(0), t0.Add(later))
		assert.False(t, d.Allowed)
		assert.True(t, d.Permanent)
		assert.Nil(t, d.UnlockAt)
	}
	assert.Equal(t, "project limit reached for your plan", Evaluate(windows, days(0), t0).Authorize().Error())
}

func TestWindowsUnknownPlan(t *testing.T) {
	_, err := Windows("enterprise")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestMaxWindow(t *testing.T) {
	rolling, _ := Windows(PlanRolling)
	assert.Equal(t, 30*Day, MaxWindow(rolling))
	lifetime, _ := Windows(PlanLifetimeOne)
	assert.Equal(t, time.Duration(0), MaxWindow(lifetime))
}

func TestCheckEditLock(t *testing.T) {
	assert.NoError(t, CheckEditLock(0))
	assert.ErrorIs(t, CheckEditLock(1), ErrEditLockActive)
	assert.ErrorIs(t, CheckEditLock(3), ErrEditLockActive)
}
