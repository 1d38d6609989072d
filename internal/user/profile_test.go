package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/tradeexchange/internal/auth"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/store/memory"
)

func TestPublicProfileHidesEmail(t *testing.T) {
	st := memory.New()
	u := &store.User{Name: "Cy", Email: "cy@example.com", Role: store.RoleUser, PasswordHash: "x"}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(u.ID)
	if err := NewHandler(st).GetPublicProfile(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["name"] != "Cy" {
		t.Fatalf("body = %v", body)
	}
	if _, ok := body["email"]; ok {
		t.Fatalf("email leaked: %v", body)
	}
}

func TestPublicProfileNotFound(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")
	_ = NewHandler(memory.New()).GetPublicProfile(c)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUpdateProfile(t *testing.T) {
	st := memory.New()
	u := &store.User{Name: "old", Email: "n@example.com", Role: store.RoleUser}
	_ = st.CreateUser(context.Background(), u)

	for _, tc := range []struct {
		body string
		want int
	}{
		{`{"name":"  "}`, http.StatusBadRequest},
		{`{"name":" New Name "}`, http.StatusOK},
	} {
		e := echo.New()
		req := httptest.NewRequest(http.MethodPatch, "/user/profile", strings.NewReader(tc.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		auth.SetIdentity(c, auth.Identity{UserID: u.ID, Role: store.RoleUser})
		_ = NewHandler(st).UpdateProfile(c)
		if rec.Code != tc.want {
			t.Fatalf("%s: status = %d", tc.body, rec.Code)
		}
	}

	got, _ := st.GetUser(context.Background(), u.ID)
	if got.Name != "New Name" {
		t.Fatalf("name = %q", got.Name)
	}
}
