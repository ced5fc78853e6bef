package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
	"github.com/mkhalid11/learnbuddy/backend/pkg/httputil"
)

// AdminUserStore is the extra repository surface the admin endpoints need.
type AdminUserStore interface {
	ListUsers(limit int) ([]domain.User, error)
	GetUserByID(id int64) (*domain.User, error)
	UpdateUserRole(id int64, role domain.Role) error
}

// SessionRevoker invalidates outstanding refresh credentials.
type SessionRevoker interface {
	RevokeAllForUser(userID int64) error
}

type AdminHandler struct {
	Users    AdminUserStore
	Sessions SessionRevoker
}

func NewAdminHandler(users AdminUserStore, sessions SessionRevoker) *AdminHandler {
	return &AdminHandler{Users: users, Sessions: sessions}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(200)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

// UpdateUserRole changes a user's role. Outstanding access credentials keep
// the old role until they expire or are renewed; renewal re-derives claims
// from the updated row.
func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req struct {
		Role domain.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}
	if !domain.ValidRole(req.Role) {
		httputil.WriteError(w, http.StatusBadRequest, "unknown role")
		return
	}

	user, err := h.Users.GetUserByID(userID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.Users.UpdateUserRole(userID, req.Role); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update role")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"id": userID, "role": req.Role})
}

// DisableUser revokes every refresh credential the user holds, forcing a
// full re-authentication once their access credential expires.
func (h *AdminHandler) DisableUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.Sessions.RevokeAllForUser(userID); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "sessions revoked"})
}
