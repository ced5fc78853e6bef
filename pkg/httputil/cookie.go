package httputil

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	// AuthCookieName carries the access credential for browser navigation.
	AuthCookieName = "auth_token"
	// RefreshCookieName carries the refresh credential. It is written once at
	// login and cleared at logout; renewal does not rewrite it.
	RefreshCookieName = "refresh_token"
)

// CookieOptions captures the transport-dependent cookie attributes, selected
// once at startup from the environment.
type CookieOptions struct {
	Secure bool
}

func newCookie(name, value string, maxAge int, opts CookieOptions) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
	}

	// SameSite=None requires Secure=true, so use Lax for plain-HTTP development
	if opts.Secure {
		cookie.SameSite = http.SameSiteNoneMode
	} else {
		cookie.SameSite = http.SameSiteLaxMode
	}
	return cookie
}

func SetAuthCookie(w http.ResponseWriter, token string, ttl time.Duration, opts CookieOptions) {
	http.SetCookie(w, newCookie(AuthCookieName, token, int(ttl.Seconds()), opts))
}

func SetRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration, opts CookieOptions) {
	http.SetCookie(w, newCookie(RefreshCookieName, token, int(ttl.Seconds()), opts))
}

func ClearAuthCookies(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, newCookie(AuthCookieName, "", -1, opts))
	http.SetCookie(w, newCookie(RefreshCookieName, "", -1, opts))
}

// GetTokenFromCookie extracts the access token from the auth cookie
func GetTokenFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(AuthCookieName)
	if err != nil {
		return "", errors.New("auth cookie not found")
	}
	if cookie.Value == "" {
		return "", errors.New("auth cookie is empty")
	}
	return cookie.Value, nil
}

// GetRefreshTokenFromCookie extracts the refresh token from its cookie.
func GetRefreshTokenFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", errors.New("refresh cookie not found")
	}
	return cookie.Value, nil
}

// GetTokenFromRequest locates the access credential. The cookie and the
// Authorization header are equivalent transports: the same token must verify
// to the same outcome regardless of where it travelled.
func GetTokenFromRequest(r *http.Request) (string, error) {
	token, err := GetTokenFromCookie(r)
	if err == nil && token != "" {
		return token, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Support "Bearer <token>" format
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer "), nil
		}
		return authHeader, nil
	}

	return "", errors.New("no auth token found in cookie or header")
}

// HasToken reports credential presence without verifying it. Used by the
// edge guard, which is a coarse filter only.
func HasToken(r *http.Request) bool {
	_, err := GetTokenFromRequest(r)
	return err == nil
}
