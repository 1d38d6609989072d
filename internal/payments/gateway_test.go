package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHTTPGatewaySuccess(t *testing.T) {
	var got chargeBody
	var auth, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/charges" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		key = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(Charge{ID: "ch_1", Status: "succeeded"})
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL+"/", "sk_test", time.Second)
	defer gw.CloseIdleConnections()

	ch, err := gw.Charge(context.Background(), ChargeRequest{
		AmountCents: 2550, Currency: "usd", CustomerID: "u1", IdempotencyKey: "k1",
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if ch.ID != "ch_1" {
		t.Fatalf("id = %q", ch.ID)
	}
	if got.Amount != 2550 || got.Currency != "usd" || got.Customer != "u1" {
		t.Fatalf("body = %+v", got)
	}
	if auth != "Bearer sk_test" || key != "k1" {
		t.Fatalf("headers auth=%q key=%q", auth, key)
	}
}

func TestHTTPGatewayFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"declined", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":"card_declined"}`))
		}},
		{"bad status", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(Charge{ID: "ch_2", Status: "failed"})
		}},
		{"garbage", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			gw := NewHTTPGateway(srv.URL, "", 100*time.Millisecond)
			defer gw.CloseIdleConnections()

			_, err := gw.Charge(context.Background(), ChargeRequest{AmountCents: 100, Currency: "usd"})
			if !errors.Is(err, ErrPaymentFailed) {
				t.Fatalf("expected ErrPaymentFailed, got %v", err)
			}
		})
	}
}

func TestOfflineGateway(t *testing.T) {
	ch, err := OfflineGateway{}.Charge(context.Background(), ChargeRequest{AmountCents: 1})
	if err != nil || ch.Status != "succeeded" || ch.ID == "" {
		t.Fatalf("charge = %+v, %v", ch, err)
	}
	if _, err := (OfflineGateway{}).Charge(context.Background(), ChargeRequest{}); !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("zero amount accepted: %v", err)
	}
}
