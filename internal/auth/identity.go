package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// Identity is the authenticated caller as resolved for the current request.
type Identity struct {
	UserID     string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	ProviderID string `json:"providerId,omitempty"`
}

// SetIdentity stores id on the echo context. user_id and role are set as
// well for the role middleware.
func SetIdentity(c echo.Context, id Identity) {
	c.Set(identityKey, id)
	c.Set("user_id", id.UserID)
	c.Set("role", id.Role)
}

func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// ExtractToken looks for a bearer token in the Authorization header, then the
// named cookie, then the "token" query parameter when allowQuery is set.
func ExtractToken(r *http.Request, cookieName string, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(tok) != "" {
			return strings.TrimSpace(tok)
		}
	}
	if ck, err := r.Cookie(cookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}
