package messaging

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

const assistantPrompt = "You are the Trade Exchange assistant. Help customers and traders " +
	"describe jobs, compare offers and agree on schedules. Answer briefly."

// OllamaResponder answers through a local Ollama chat model.
type OllamaResponder struct {
	client *api.Client
	http   *http.Client
	model  string
	// window caps how many trailing messages are sent as context.
	window int
}

func NewOllamaResponder(baseURL, model string, timeout time.Duration) (*OllamaResponder, error) {
	u, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url: %w", err)
	}
	hc := &http.Client{Timeout: timeout}
	return &OllamaResponder{
		client: api.NewClient(u, hc),
		http:   hc,
		model:  model,
		window: 20,
	}, nil
}

func (r *OllamaResponder) Reply(ctx context.Context, history []store.Message) (string, error) {
	if len(history) > r.window {
		history = history[len(history)-r.window:]
	}
	msgs := make([]api.Message, 0, len(history)+1)
	msgs = append(msgs, api.Message{Role: "system", Content: assistantPrompt})
	for _, m := range history {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	req := &api.ChatRequest{Model: r.model, Messages: msgs, Stream: &stream}

	var sb strings.Builder
	err := r.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Close drops idle connections held by the HTTP client.
func (r *OllamaResponder) Close() {
	r.http.CloseIdleConnections()
}
