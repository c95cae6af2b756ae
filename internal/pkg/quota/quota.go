// Package quota holds the creation quota and edit-lock policy.
// All decisions are computed from usage event timestamps; nothing here touches storage.
package quota

import (
	"errors"
	"fmt"
	"time"
)

type Plan string

const (
	PlanLifetimeOne Plan = "lifetime_one"
	PlanRolling     Plan = "rolling"
)

const Day = 24 * time.Hour

// Window is a trailing count limit. A zero Length means the whole history.
type Window struct {
	Name   string        `json:"name"`
	Length time.Duration `json:"length"`
	Limit  int           `json:"limit"`
}

func (w Window) Lifetime() bool { return w.Length == 0 }

var (
	WindowLifetime = Window{Name: "lifetime", Limit: 1}
	WindowWeek     = Window{Name: "7d", Length: 7 * Day, Limit: 5}
	WindowMonth    = Window{Name: "30d", Length: 30 * Day, Limit: 20}

	// EditsPerProject is the lifetime edit allowance of a single project.
	EditsPerProject = 1

	ErrUnknownPlan    = errors.New("unknown plan")
	ErrEditLockActive = errors.New("this project has already been edited and is now locked")
)

// Windows returns the creation windows enforced for plan.
func Windows(plan Plan) ([]Window, error) {
	switch plan {
	case PlanLifetimeOne:
		return []Window{WindowLifetime}, nil
	case PlanRolling:
		return []Window{WindowWeek, WindowMonth}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
}

// MaxWindow is the longest finite window of plan; zero when any window is lifetime.
func MaxWindow(windows []Window) time.Duration {
	var longest time.Duration
	for _, w := range windows {
		if w.Lifetime() {
			return 0
		}
		longest = max(longest, w.Length)
	}
	return longest
}

// CountEventsInWindow counts events in (now-length, now]. A zero length counts everything up to now.
func CountEventsInWindow(events []time.Time, now time.Time, length time.Duration) int {
	n := 0
	for _, at := range events {
		if at.After(now) {
			continue
		}
		if length == 0 || at.After(now.Add(-length)) {
			n++
		}
	}
	return n
}

// oldestInWindow returns the earliest event inside (now-length, now].
func oldestInWindow(events []time.Time, now time.Time, length time.Duration) time.Time {
	var oldest time.Time
	for _, at := range events {
		if at.After(now) || (length > 0 && !at.After(now.Add(-length))) {
			continue
		}
		if oldest.IsZero() || at.Before(oldest) {
			oldest = at
		}
	}
	return oldest
}

type Violation struct {
	Window Window     `json:"window"`
	Count  int        `json:"count"`
	Unlock *time.Time `json:"unlock_at,omitempty"`
}

type Decision struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations,omitempty"`
	// UnlockAt is the latest unlock over all violated windows; nil when allowed or permanently blocked.
	UnlockAt  *time.Time `json:"unlock_at,omitempty"`
	Permanent bool       `json:"permanent"`
}

// Evaluate decides whether another create is allowed under windows.
func Evaluate(windows []Window, creates []time.Time, now time.Time) Decision {
	d := Decision{Allowed: true}
	var latest time.Time
	for _, w := range windows {
		count := CountEventsInWindow(creates, now, w.Length)
		if count < w.Limit {
			continue
		}
		v := Violation{Window: w, Count: count}
		if w.Lifetime() {
			d.Permanent = true
		} else {
			unlock := oldestInWindow(creates, now, w.Length).Add(w.Length)
			v.Unlock = &unlock
			if unlock.After(latest) {
				latest = unlock
			}
		}
		d.Allowed = false
		d.Violations = append(d.Violations, v)
	}
	if !d.Allowed && !d.Permanent {
		d.UnlockAt = &latest
	}
	return d
}

// ExceededError is returned when a create would break a plan window.
type ExceededError struct {
	Decision Decision
}

func (e *ExceededError) Error() string {
	if e.Decision.Permanent {
		return "project limit reached for your plan"
	}
	if e.Decision.UnlockAt != nil {
		return fmt.Sprintf("project limit reached, you can create another project after %s", e.Decision.UnlockAt.UTC().Format(time.RFC3339))
	}
	return "project limit reached"
}

// Authorize turns a decision into an error.
func (d Decision) Authorize() error {
	if d.Allowed {
		return nil
	}
	return &ExceededError{Decision: d}
}

// CheckEditLock fails once a project has used its edit allowance.
func CheckEditLock(editCount int64) error {
	if editCount >= int64(EditsPerProject) {
		return ErrEditLockActive
	}
	return nil
}
