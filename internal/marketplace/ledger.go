package marketplace

import (
	"errors"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

// Order statuses.
const (
	StatusDiscuss  = "discuss"
	StatusApproved = "approved"
	StatusDenied   = "denied"
	StatusRefunded = "refunded"
	StatusExchange = "exchange"
	StatusComplete = "complete"
)

var (
	ErrInvalidAction     = errors.New("invalid action")
	ErrInvalidTransition = errors.New("action not allowed in current status")
)

// transitions maps an action to its target status and the statuses it may
// be applied from. A nil from-set means any status.
var transitions = map[string]struct {
	to   string
	from []string
}{
	"approve":  {StatusApproved, []string{StatusDiscuss}},
	"deny":     {StatusDenied, []string{StatusDiscuss}},
	"refund":   {StatusRefunded, []string{StatusDiscuss}},
	"exchange": {StatusExchange, []string{StatusDiscuss}},
	"discuss":  {StatusDiscuss, []string{StatusDiscuss}},
	"complete": {StatusComplete, nil},
}

// Transition applies a trader action to o in place. Unknown actions return
// ErrInvalidAction and actions that do not apply to the current status
// return ErrInvalidTransition; o is untouched in both cases. The returned
// bool is true when the order newly became complete.
func Transition(o *store.Order, action string) (bool, error) {
	t, ok := transitions[action]
	if !ok {
		return false, ErrInvalidAction
	}
	if t.from != nil && !contains(t.from, o.Status) {
		return false, ErrInvalidTransition
	}

	completed := t.to == StatusComplete && o.Status != StatusComplete
	o.Status = t.to
	if t.to == StatusApproved {
		o.Request.Ack = true
	}
	return completed, nil
}

// Actions lists the known action names.
func Actions() []string {
	return []string{"approve", "deny", "refund", "exchange", "discuss", "complete"}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
