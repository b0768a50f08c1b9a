package cart

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-mebel/internal/common"
)

// SessionCookie resolves the browsing session for each request. The id is
// read from the X-Session-ID header or the session cookie and minted when
// absent or malformed.
type SessionCookie struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

func (c SessionCookie) name() string {
	if strings.TrimSpace(c.Name) == "" {
		return "sid"
	}
	return c.Name
}

// Middleware stores the session id on the request context and echoes it back
// in both the response header and the cookie.
func (c SessionCookie) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := parseSessionID(r.Header.Get(common.SessionHeader))
		if id == "" {
			if ck, err := r.Cookie(c.name()); err == nil {
				id = parseSessionID(ck.Value)
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(common.SessionHeader, id)
		cookie := &http.Cookie{
			Name:     c.name(),
			Value:    id,
			Path:     "/",
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: true,
			SameSite: c.SameSite,
		}
		if c.MaxAge > 0 {
			cookie.MaxAge = int(c.MaxAge / time.Second)
		}
		http.SetCookie(w, cookie)
		next.ServeHTTP(w, r.WithContext(common.WithSessionID(r.Context(), id)))
	})
}

func parseSessionID(raw string) string {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return id.String()
}
