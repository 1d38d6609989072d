package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/config"
	"github.com/sudo-init-do/tradeexchange/internal/logging"
	"github.com/sudo-init-do/tradeexchange/internal/messaging"
	"github.com/sudo-init-do/tradeexchange/internal/payments"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/store/memory"
)

type testApp struct {
	e      *echo.Echo
	store  *memory.Store
	tokens *auth.TokenService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	st := memory.New()
	tokens := auth.NewTokenService("test-secret", 7*24*time.Hour)
	cfg := &config.Config{
		Env:         "test",
		CookieName:  "token",
		CORSOrigins: []string{"http://localhost:5173"},
		Payments:    config.PaymentsConfig{Currency: "usd", Timeout: time.Second},
	}
	e := New(Deps{
		Config:        cfg,
		Store:         st,
		Tokens:        tokens,
		Logger:        logging.Discard(),
		Responder:     messaging.EchoResponder{},
		Gateway:       payments.OfflineGateway{},
		PasswordCost:  bcrypt.MinCost,
		AuthRateLimit: 1000,
	})
	return &testApp{e: e, store: st, tokens: tokens}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

type account struct {
	token      string
	userID     string
	providerID string
}

func (a *testApp) signup(t *testing.T, email, role string) account {
	t.Helper()
	code, body := a.do(t, http.MethodPost, "/signup", "", echo.Map{"email": email, "password": "pw", "role": role})
	if code != http.StatusCreated {
		t.Fatalf("signup %s: status %d %v", email, code, body)
	}
	u := body["user"].(map[string]any)
	acc := account{token: body["token"].(string), userID: u["id"].(string)}
	if pid, ok := u["providerId"].(string); ok {
		acc.providerID = pid
	}
	return acc
}

func (a *testApp) makeAdmin(t *testing.T, userID string) {
	t.Helper()
	u, err := a.store.GetUser(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	u.Role = store.RoleAdmin
	if err := a.store.UpdateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
}

func list(body map[string]any, key string) []any {
	v, _ := body[key].([]any)
	return v
}

func TestSignupThenSigninIssuesUserToken(t *testing.T) {
	app := newTestApp(t)
	app.signup(t, "a@b.com", "")

	req := httptest.NewRequest(http.MethodPost, "/signin", bytes.NewBufferString(`{"email":"a@b.com","password":"pw"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin status %d: %s", rec.Code, rec.Body)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	claims, err := app.tokens.Verify(body.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Role != store.RoleUser {
		t.Fatalf("role = %q", claims.Role)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode || cookie.Value != body.Token {
		t.Fatalf("cookie = %+v", cookie)
	}

	if code, _ := app.do(t, http.MethodPost, "/signin", "", echo.Map{"email": "a@b.com", "password": "nope"}); code != http.StatusUnauthorized {
		t.Fatalf("bad password status %d", code)
	}
	if code, _ := app.do(t, http.MethodPost, "/signup", "", echo.Map{"email": "A@B.com", "password": "pw"}); code != http.StatusConflict {
		t.Fatalf("duplicate signup status %d", code)
	}
}

func TestListingAppearsAndRanksInSearch(t *testing.T) {
	app := newTestApp(t)
	gardener := app.signup(t, "garden@example.com", "TRADER")
	plumber := app.signup(t, "pipes@example.com", "TRADER")

	code, body := app.do(t, http.MethodPost, "/trader/listings", gardener.token,
		echo.Map{"title": "Lawn Care", "price": 85, "tags": "home,outdoor"})
	if code != http.StatusCreated {
		t.Fatalf("create listing: %d %v", code, body)
	}
	if code, _ := app.do(t, http.MethodPost, "/trader/listings", plumber.token,
		echo.Map{"title": "Pipe repair", "price": 60, "tags": "home"}); code != http.StatusCreated {
		t.Fatalf("create second listing: %d", code)
	}

	_, body = app.do(t, http.MethodGet, "/listings", "", nil)
	found := false
	for _, l := range list(body, "listings") {
		if l.(map[string]any)["title"] == "Lawn Care" {
			found = true
		}
	}
	if !found {
		t.Fatalf("listing missing from /listings: %v", body)
	}

	_, body = app.do(t, http.MethodGet, "/search?q=lawn", "", nil)
	providers := list(body, "providers")
	if len(providers) != 2 {
		t.Fatalf("providers = %v", providers)
	}
	if providers[0].(map[string]any)["id"] != gardener.providerID {
		t.Fatalf("expected gardener first, got %v", providers)
	}
	first := providers[0].(map[string]any)["score"].(float64)
	second := providers[1].(map[string]any)["score"].(float64)
	if first <= second {
		t.Fatalf("scores %v <= %v", first, second)
	}
	if got := list(body, "listings"); len(got) != 1 {
		t.Fatalf("matching listings = %v", got)
	}
}

func TestOrderApprovalIsVisibleToCustomer(t *testing.T) {
	app := newTestApp(t)
	trader := app.signup(t, "trader@example.com", "TRADER")
	customer := app.signup(t, "customer@example.com", "")

	_, body := app.do(t, http.MethodPost, "/trader/listings", trader.token, echo.Map{"title": "Lawn Care", "price": 85})
	listingID := body["listing"].(map[string]any)["id"].(string)

	code, body := app.do(t, http.MethodPost, "/orders/request", customer.token, echo.Map{
		"providerId": trader.providerID, "listingId": listingID, "details": "front yard", "date": "2026-10-20",
	})
	if code != http.StatusCreated {
		t.Fatalf("request order: %d %v", code, body)
	}
	order := body["order"].(map[string]any)
	if order["service"] != "Lawn Care" || order["amount"].(float64) != 85 {
		t.Fatalf("order defaults not applied: %v", order)
	}

	_, body = app.do(t, http.MethodGet, "/trader/orders", trader.token, nil)
	orders := list(body, "orders")
	if len(orders) != 1 || orders[0].(map[string]any)["status"] != "discuss" {
		t.Fatalf("trader orders = %v", orders)
	}
	orderID := orders[0].(map[string]any)["id"].(string)

	if code, _ := app.do(t, http.MethodPost, "/trader/orders/"+orderID+"/action", customer.token, echo.Map{"action": "approve"}); code != http.StatusForbidden {
		t.Fatalf("customer acting as trader: %d", code)
	}
	if code, _ := app.do(t, http.MethodPost, "/trader/orders/"+orderID+"/action", trader.token, echo.Map{"action": "bogus"}); code != http.StatusBadRequest {
		t.Fatalf("bogus action: %d", code)
	}
	if code, body := app.do(t, http.MethodPost, "/trader/orders/"+orderID+"/action", trader.token, echo.Map{"action": "approve"}); code != http.StatusOK {
		t.Fatalf("approve: %d %v", code, body)
	}

	_, body = app.do(t, http.MethodGet, "/orders/status?providerId="+trader.providerID+"&listingId="+listingID, customer.token, nil)
	if body["found"] != true || body["status"] != "approved" || body["ack"] != true {
		t.Fatalf("status = %v", body)
	}

	if code, _ := app.do(t, http.MethodPost, "/trader/orders/"+orderID+"/action", trader.token, echo.Map{"action": "deny"}); code != http.StatusConflict {
		t.Fatalf("deny after approve: %d", code)
	}

	_, body = app.do(t, http.MethodGet, "/orders/status?providerId=someone-else", customer.token, nil)
	if body["found"] != false || body["status"] != "none" {
		t.Fatalf("missing order status = %v", body)
	}
}

func TestSequentialCheckoutsAppendInteractions(t *testing.T) {
	app := newTestApp(t)
	trader := app.signup(t, "trader@example.com", "TRADER")
	customer := app.signup(t, "customer@example.com", "")

	for i, amount := range []float64{40, 55} {
		code, body := app.do(t, http.MethodPost, "/checkout", customer.token, echo.Map{"providerId": trader.providerID, "amount": amount})
		if code != http.StatusCreated {
			t.Fatalf("checkout %d: %d %v", i, code, body)
		}
	}

	_, body := app.do(t, http.MethodGet, "/user/history", customer.token, nil)
	history := list(body, "history")
	if len(history) != 2 {
		t.Fatalf("history = %v", history)
	}
	seen := map[float64]bool{}
	for _, h := range history {
		seen[h.(map[string]any)["amount"].(float64)] = true
	}
	if !seen[40] || !seen[55] {
		t.Fatalf("amounts = %v", seen)
	}

	_, body = app.do(t, http.MethodGet, "/trader/summary", trader.token, nil)
	if body["interactions"].(float64) != 2 || body["clients"].(float64) != 1 || body["earnings"].(float64) != 95 {
		t.Fatalf("summary = %v", body)
	}
}

func TestConversationRequiresMembership(t *testing.T) {
	app := newTestApp(t)
	alice := app.signup(t, "alice@example.com", "")
	mallory := app.signup(t, "mallory@example.com", "")

	code, body := app.do(t, http.MethodPost, "/conversations", alice.token, echo.Map{"kind": "chat", "title": "notes"})
	if code != http.StatusOK {
		t.Fatalf("create conversation: %d %v", code, body)
	}
	convID := body["conversation"].(map[string]any)["id"].(string)

	code, body = app.do(t, http.MethodPost, "/conversations/"+convID+"/messages", alice.token, echo.Map{"content": "hello"})
	if code != http.StatusCreated {
		t.Fatalf("post: %d %v", code, body)
	}
	if body["reply"].(map[string]any)["content"] != "You said: hello" {
		t.Fatalf("reply = %v", body["reply"])
	}

	_, body = app.do(t, http.MethodGet, "/conversations/"+convID+"/messages", alice.token, nil)
	if got := list(body, "messages"); len(got) != 2 {
		t.Fatalf("messages = %v", got)
	}

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/conversations/" + convID},
		{http.MethodGet, "/conversations/" + convID + "/messages"},
		{http.MethodPost, "/conversations/" + convID + "/messages"},
	} {
		if code, _ := app.do(t, tc.method, tc.path, mallory.token, echo.Map{"content": "hi"}); code != http.StatusForbidden {
			t.Errorf("%s %s as non-member: %d", tc.method, tc.path, code)
		}
	}
}

func TestSameServiceFromTwoTradersStaysSeparate(t *testing.T) {
	app := newTestApp(t)
	traderA := app.signup(t, "a@example.com", "TRADER")
	traderB := app.signup(t, "b@example.com", "TRADER")
	customer := app.signup(t, "customer@example.com", "")

	convOf := func(trader account) string {
		t.Helper()
		code, body := app.do(t, http.MethodPost, "/orders/request", customer.token, echo.Map{
			"providerId": trader.providerID, "title": "Lawn Care",
		})
		if code != http.StatusCreated {
			t.Fatalf("request order: %d %v", code, body)
		}
		return body["order"].(map[string]any)["request"].(map[string]any)["conversationId"].(string)
	}
	convA, convB := convOf(traderA), convOf(traderB)
	if convA == convB {
		t.Fatalf("both orders share conversation %s", convA)
	}

	if code, body := app.do(t, http.MethodPost, "/conversations/"+convA+"/messages", customer.token, echo.Map{"content": "my address is 1 Secret St"}); code != http.StatusCreated {
		t.Fatalf("post: %d %v", code, body)
	}
	if code, _ := app.do(t, http.MethodGet, "/conversations/"+convA+"/messages", traderB.token, nil); code != http.StatusForbidden {
		t.Fatalf("trader b reading a's conversation: %d", code)
	}

	updates := func(trader account) []any {
		t.Helper()
		_, body := app.do(t, http.MethodGet, "/trader/orders", trader.token, nil)
		orders := list(body, "orders")
		if len(orders) != 1 {
			t.Fatalf("trader orders = %v", orders)
		}
		u, _ := orders[0].(map[string]any)["request"].(map[string]any)["updates"].([]any)
		return u
	}
	if got := updates(traderA); len(got) != 1 {
		t.Fatalf("trader a updates = %v", got)
	}
	if got := updates(traderB); len(got) != 0 {
		t.Fatalf("trader b sees a's follow-up: %v", got)
	}

	code, _ := app.do(t, http.MethodPost, "/orders/request", customer.token, echo.Map{
		"providerId": traderB.providerID, "title": "Lawn Care", "conversationId": convA,
	})
	if code != http.StatusForbidden {
		t.Fatalf("ordering from b through a's conversation: %d", code)
	}

	chatWith := func(trader account) string {
		t.Helper()
		code, body := app.do(t, http.MethodPost, "/conversations", customer.token, echo.Map{"title": "quote", "providerId": trader.providerID})
		if code != http.StatusOK {
			t.Fatalf("create conversation: %d %v", code, body)
		}
		return body["conversation"].(map[string]any)["id"].(string)
	}
	if chatWith(traderA) == chatWith(traderB) {
		t.Fatalf("same title with two providers shares a conversation")
	}
}

func TestAdminProviderDeleteCascades(t *testing.T) {
	app := newTestApp(t)
	trader := app.signup(t, "trader@example.com", "TRADER")
	boss := app.signup(t, "boss@example.com", "")

	if code, _ := app.do(t, http.MethodPost, "/trader/listings", trader.token, echo.Map{"title": "Lawn Care", "price": 85}); code != http.StatusCreated {
		t.Fatalf("create listing: %d", code)
	}

	if code, _ := app.do(t, http.MethodDelete, "/admin/providers/"+trader.providerID, boss.token, nil); code != http.StatusForbidden {
		t.Fatalf("non-admin delete: %d", code)
	}

	// role is re-read from the store, so the existing token picks up ADMIN
	app.makeAdmin(t, boss.userID)
	if code, body := app.do(t, http.MethodDelete, "/admin/providers/"+trader.providerID, boss.token, nil); code != http.StatusOK {
		t.Fatalf("admin delete: %d %v", code, body)
	}

	if code, _ := app.do(t, http.MethodGet, "/providers/"+trader.providerID, "", nil); code != http.StatusNotFound {
		t.Fatalf("provider still readable: %d", code)
	}
	_, body := app.do(t, http.MethodGet, "/listings", "", nil)
	if got := list(body, "listings"); len(got) != 0 {
		t.Fatalf("orphaned listings: %v", got)
	}

	_, body = app.do(t, http.MethodGet, "/admin/stats", boss.token, nil)
	if body["providers"].(float64) != 0 || body["listings"].(float64) != 0 || body["users"].(float64) != 2 {
		t.Fatalf("stats = %v", body)
	}
}

func TestHealthAndAuthErrors(t *testing.T) {
	app := newTestApp(t)

	if code, body := app.do(t, http.MethodGet, "/health", "", nil); code != http.StatusOK || body["ok"] != true {
		t.Fatalf("health: %d %v", code, body)
	}
	if code, _ := app.do(t, http.MethodGet, "/ready", "", nil); code != http.StatusOK {
		t.Fatalf("ready: %d", code)
	}
	if code, body := app.do(t, http.MethodGet, "/me", "", nil); code != http.StatusUnauthorized || body["error"] == nil {
		t.Fatalf("me without token: %d %v", code, body)
	}
	if code, _ := app.do(t, http.MethodGet, "/me", "not.a.token", nil); code != http.StatusUnauthorized {
		t.Fatalf("me with garbage token: %d", code)
	}

	user := app.signup(t, "plain@example.com", "")
	if code, _ := app.do(t, http.MethodGet, "/trader/listings", user.token, nil); code != http.StatusForbidden {
		t.Fatalf("user on trader route: %d", code)
	}
	if code, _ := app.do(t, http.MethodGet, "/admin/users", user.token, nil); code != http.StatusForbidden {
		t.Fatalf("user on admin route: %d", code)
	}
}
