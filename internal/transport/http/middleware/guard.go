package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/mkhalid11/learnbuddy/backend/pkg/httputil"
)

// Guard is the edge-level interceptor. It checks credential *presence*, not
// validity: cheap, coarse filtering before any handler runs. Full signature
// verification happens later in the Authorizer, so exempt traffic never pays
// the verification cost.
type Guard struct {
	loginPath      string
	exemptPrefixes []string
	activePrefixes []string
}

// NewGuard builds a guard with a static allow-list of exempt path prefixes
// and a set of prefixes the guard is explicitly active for. Paths outside
// both sets are implicitly protected.
func NewGuard(loginPath string, exemptPrefixes, activePrefixes []string) *Guard {
	return &Guard{
		loginPath:      loginPath,
		exemptPrefixes: exemptPrefixes,
		activePrefixes: activePrefixes,
	}
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware evaluates the guard once per request, before anything else.
// A request to an exempt path proceeds untouched. A non-exempt request with
// no credential at all is redirected to the login entry point, preserving
// the originally requested path as a return target.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if matchesPrefix(r.URL.Path, g.exemptPrefixes) {
			next.ServeHTTP(w, r)
			return
		}

		// Active or implicitly protected: presence check only.
		if !httputil.HasToken(r) {
			target := g.loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}
