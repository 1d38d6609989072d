package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sudo-init-do/tradeexchange/internal/store"
)

func TestOllamaResponderSendsHistory(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"test","message":{"role":"assistant","content":"Tuesday works."},"done":true}` + "\n"))
	}))
	defer srv.Close()

	r, err := NewOllamaResponder(srv.URL, "test", 5*time.Second)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer r.Close()

	uid := "u1"
	history := []store.Message{
		{Role: store.MessageRoleUser, UserID: &uid, Content: "hi"},
		{Role: store.MessageRoleAssistant, Content: "hello"},
		{Role: store.MessageRoleUser, UserID: &uid, Content: "is Tuesday ok?"},
	}
	reply, err := r.Reply(context.Background(), history)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "Tuesday works." {
		t.Fatalf("reply = %q", reply)
	}
	if got.Model != "test" || len(got.Messages) != 4 || got.Messages[0].Role != "system" || got.Messages[3].Content != "is Tuesday ok?" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestOllamaResponderUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	r, _ := NewOllamaResponder(srv.URL, "test", time.Second)
	defer r.Close()
	if _, err := r.Reply(context.Background(), []store.Message{{Role: "user", Content: "x"}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewOllamaResponderRejectsBadURL(t *testing.T) {
	if _, err := NewOllamaResponder("not a url", "m", time.Second); err == nil {
		t.Fatal("expected error")
	}
}
