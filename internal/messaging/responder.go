package messaging

import (
	"context"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

// Responder produces the assistant reply to a conversation. history is in
// chronological order and ends with the message being answered.
type Responder interface {
	Reply(ctx context.Context, history []store.Message) (string, error)
}

// EchoResponder repeats the last message back.
type EchoResponder struct{}

func (EchoResponder) Reply(_ context.Context, history []store.Message) (string, error) {
	if len(history) == 0 {
		return "", nil
	}
	return "You said: " + history[len(history)-1].Content, nil
}
