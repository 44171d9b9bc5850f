package live

import "time"

// Outcome classifies one refresh.
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// Result is published after every refresh. A failed refresh carries the last
// good value with Stale set, or the zero value when nothing succeeded yet.
type Result[T any] struct {
	Outcome Outcome   `json:"outcome"`
	Value   T         `json:"value"`
	Err     error     `json:"-"`
	Block   uint64    `json:"block"`
	At      time.Time `json:"at"`
	Stale   bool      `json:"stale"`
}

// Error returns the refresh error message, or "" on success.
func (r Result[T]) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
