package marketplace

import (
	"errors"
	"testing"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

func TestTransitionFromDiscuss(t *testing.T) {
	tests := []struct {
		action    string
		want      string
		ack       bool
		completed bool
	}{
		{"approve", StatusApproved, true, false},
		{"deny", StatusDenied, false, false},
		{"refund", StatusRefunded, false, false},
		{"exchange", StatusExchange, false, false},
		{"complete", StatusComplete, false, true},
		{"discuss", StatusDiscuss, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			o := &store.Order{Status: StatusDiscuss}
			completed, err := Transition(o, tt.action)
			if err != nil {
				t.Fatalf("transition: %v", err)
			}
			if o.Status != tt.want || o.Request.Ack != tt.ack || completed != tt.completed {
				t.Fatalf("got status=%s ack=%v completed=%v", o.Status, o.Request.Ack, completed)
			}
		})
	}
}

func TestUnknownActionLeavesOrderUnchanged(t *testing.T) {
	for _, action := range []string{"", "APPROVE", "cancel", "approved", "delete"} {
		o := &store.Order{Status: StatusDiscuss}
		_, err := Transition(o, action)
		if !errors.Is(err, ErrInvalidAction) {
			t.Fatalf("%q: expected ErrInvalidAction, got %v", action, err)
		}
		if o.Status != StatusDiscuss || o.Request.Ack {
			t.Fatalf("%q: order mutated: %+v", action, o)
		}
	}
}

func TestTransitionsAreOneWay(t *testing.T) {
	for _, from := range []string{StatusApproved, StatusDenied, StatusRefunded, StatusExchange, StatusComplete} {
		for _, action := range []string{"approve", "deny", "refund", "exchange", "discuss"} {
			o := &store.Order{Status: from}
			if _, err := Transition(o, action); !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", from, action, err)
			}
			if o.Status != from {
				t.Fatalf("%s -> %s: status changed to %s", from, action, o.Status)
			}
		}
	}
}

func TestCompleteFromAnyStatus(t *testing.T) {
	for _, from := range []string{StatusDiscuss, StatusApproved, StatusExchange, StatusDenied} {
		o := &store.Order{Status: from}
		completed, err := Transition(o, "complete")
		if err != nil || !completed || o.Status != StatusComplete {
			t.Fatalf("%s: completed=%v status=%s err=%v", from, completed, o.Status, err)
		}
	}

	o := &store.Order{Status: StatusComplete}
	completed, err := Transition(o, "complete")
	if err != nil || completed {
		t.Fatalf("re-completing: completed=%v err=%v", completed, err)
	}
}
