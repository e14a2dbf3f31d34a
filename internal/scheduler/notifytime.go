package scheduler

import (
	"sync"

	"github.com/ykvlv/birthday-bot/internal/domain"
)

// NotifyTime is the process-wide default notification time. It is the only
// mutable configuration the cycle owns; per-group overrides live in the
// store. A single setter behind a mutex keeps concurrent command handlers
// and the running cycle consistent.
type NotifyTime struct {
	mu sync.Mutex
	t  domain.TimeOfDay
}

// NewNotifyTime creates the global default set to t.
func NewNotifyTime(t domain.TimeOfDay) *NotifyTime {
	return &NotifyTime{t: t}
}

// DefaultTime returns the current global notification time.
func (n *NotifyTime) DefaultTime() domain.TimeOfDay {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.t
}

// SetDefaultTime replaces the global notification time. It affects trigger
// computation from the next wait onward.
func (n *NotifyTime) SetDefaultTime(t domain.TimeOfDay) {
	n.mu.Lock()
	n.t = t
	n.mu.Unlock()
}
