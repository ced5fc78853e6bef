package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
	"github.com/mkhalid11/learnbuddy/backend/internal/service/session"
	"github.com/mkhalid11/learnbuddy/backend/internal/transport/http/middleware"
	"github.com/mkhalid11/learnbuddy/backend/pkg/auth"
	"github.com/mkhalid11/learnbuddy/backend/pkg/httputil"
	"github.com/rs/zerolog/log"
)

// UserStore is the user repository surface the auth handlers need.
type UserStore interface {
	GetUserByEmail(email string) (*domain.User, error)
	GetUserByID(id int64) (*domain.User, error)
	CreateUser(email, firstName, lastName string, role domain.Role, passwordHash string) (int64, error)
	UpdateProfile(id int64, firstName, lastName string) error
}

// CacheRepository is the optional profile cache.
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type AuthHandler struct {
	Users      UserStore
	Sessions   *session.Issuer
	Cache      CacheRepository // optional, can be nil
	CookieOpts httputil.CookieOptions
	AccessTTL  time.Duration
}

func NewAuthHandler(users UserStore, sessions *session.Issuer, cache CacheRepository, cookieOpts httputil.CookieOptions, accessTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		Users:      users,
		Sessions:   sessions,
		Cache:      cache,
		CookieOpts: cookieOpts,
		AccessTTL:  accessTTL,
	}
}

// setSessionCookies writes the access cookie (browser navigation transport)
// and the refresh cookie. Called on login and registration only.
func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, pair *session.TokenPair) {
	httputil.SetAuthCookie(w, pair.AccessToken, h.AccessTTL, h.CookieOpts)
	httputil.SetRefreshCookie(w, pair.RefreshToken, time.Until(pair.RefreshExpiry), h.CookieOpts)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httputil.WriteError(w, http.StatusBadRequest, "invalid email format")
		return
	}

	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, _ := h.Users.GetUserByEmail(req.Email)
	if existing != nil {
		httputil.WriteError(w, http.StatusConflict, "email already registered")
		return
	}

	hashedPwd, err := auth.HashPassword(req.Password)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// Public registration always creates parent accounts; roles are assigned
	// by an admin afterwards.
	userID, err := h.Users.CreateUser(req.Email, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), domain.RoleParent, hashedPwd)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user, err := h.Users.GetUserByID(userID)
	if err != nil || user == nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	pair, err := h.Sessions.Issue(user)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.setSessionCookies(w, pair)
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"token": pair.AccessToken,
		"user":  user.UserResponse(),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}

	pair, err := h.Sessions.Login(strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if errors.Is(err, session.ErrAuthenticationFailed) {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Error().Err(err).Msg("[AUTH] login failed")
		httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.setSessionCookies(w, pair)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": pair.AccessToken,
		"user":  pair.User.UserResponse(),
	})
}

// Refresh exchanges a valid refresh cookie for a fresh access credential.
// It accepts no body; the refresh credential travels only in its cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := httputil.GetRefreshTokenFromCookie(r)
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	accessToken, user, err := h.Sessions.Renew(refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrRefreshInvalid) {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		log.Error().Err(err).Msg("[AUTH] refresh failed")
		httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// The refresh cookie is deliberately not rewritten here.
	httputil.SetAuthCookie(w, accessToken, h.AccessTTL, h.CookieOpts)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": accessToken,
		"user":  user.UserResponse(),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if refreshToken, err := httputil.GetRefreshTokenFromCookie(r); err == nil {
		if err := h.Sessions.Logout(refreshToken); err != nil {
			log.Warn().Err(err).Msg("[AUTH] logout revoke failed")
		}
	}
	httputil.ClearAuthCookies(w, h.CookieOpts)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Try cache first
	cacheKey := fmt.Sprintf("user_profile:%d", claims.UserID)
	if h.Cache != nil {
		cachedData, err := h.Cache.Get(r.Context(), cacheKey)
		if err == nil && cachedData != "" {
			var response map[string]interface{}
			if err := json.Unmarshal([]byte(cachedData), &response); err == nil {
				w.Header().Set("X-Cache", "HIT")
				httputil.WriteJSON(w, http.StatusOK, response)
				return
			}
		}
	}

	user, err := h.Users.GetUserByID(claims.UserID)
	if err != nil || user == nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}

	response := user.UserResponse()
	if h.Cache != nil {
		if data, err := json.Marshal(response); err == nil {
			h.Cache.Set(r.Context(), cacheKey, data, time.Hour)
		}
	}

	w.Header().Set("X-Cache", "MISS")
	httputil.WriteJSON(w, http.StatusOK, response)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}

	if err := h.Users.UpdateProfile(claims.UserID, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	// Invalidate cache on update
	if h.Cache != nil {
		h.Cache.Del(r.Context(), fmt.Sprintf("user_profile:%d", claims.UserID))
	}

	user, err := h.Users.GetUserByID(claims.UserID)
	if err != nil || user == nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": user.UserResponse()})
}

// LoginPage is the redirect target for the edge guard. The real page is
// rendered by the frontend; this stub exists so unauthenticated browser
// navigation lands somewhere sensible during development.
func LoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	next := r.URL.Query().Get("next")
	if next != "" {
		fmt.Fprintf(w, "login required, return to %s after signing in\n", next)
		return
	}
	fmt.Fprintln(w, "login required")
}
