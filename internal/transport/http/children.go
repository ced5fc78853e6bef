package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mkhalid11/learnbuddy/backend/internal/domain"
	"github.com/mkhalid11/learnbuddy/backend/internal/transport/http/middleware"
	"github.com/mkhalid11/learnbuddy/backend/pkg/auth"
	"github.com/mkhalid11/learnbuddy/backend/pkg/httputil"
)

// ChildStore is the repository surface for children and their logs.
type ChildStore interface {
	CreateChild(parentID int64, firstName, lastName string, birthYear int) (int64, error)
	GetChildByID(id int64) (*domain.Child, error)
	ListChildrenByParent(parentID int64) ([]domain.Child, error)
	UpdateChild(id int64, firstName, lastName string, birthYear int) error
	DeleteChild(id int64) error
	CreateSkillLog(childID int64, skill, note string, minutes int, loggedAt time.Time) (int64, error)
	ListSkillLogs(childID int64, limit int) ([]domain.SkillLog, error)
	DeleteSkillLog(childID, logID int64) error
	CreateEvaluation(childID int64, subject string, score int, summary string) (int64, error)
	ListEvaluations(childID int64, limit int) ([]domain.EvaluationLog, error)
}

type ChildrenHandler struct {
	Children ChildStore
}

func NewChildrenHandler(children ChildStore) *ChildrenHandler {
	return &ChildrenHandler{Children: children}
}

// loadOwnedChild resolves the {id} path value and enforces ownership:
// parents may only touch their own children, admins may touch any.
func (h *ChildrenHandler) loadOwnedChild(w http.ResponseWriter, r *http.Request, claims *auth.Claims) *domain.Child {
	childID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid child id")
		return nil
	}

	child, err := h.Children.GetChildByID(childID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load child")
		return nil
	}
	if child == nil {
		httputil.WriteError(w, http.StatusNotFound, "child not found")
		return nil
	}
	if claims.Role != domain.RoleAdmin && child.ParentID != claims.UserID {
		httputil.WriteError(w, http.StatusForbidden, "forbidden")
		return nil
	}
	return child
}

func (h *ChildrenHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		BirthYear int    `json:"birth_year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	if req.FirstName == "" {
		httputil.WriteError(w, http.StatusBadRequest, "first name is required")
		return
	}

	childID, err := h.Children.CreateChild(claims.UserID, req.FirstName, strings.TrimSpace(req.LastName), req.BirthYear)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create child")
		return
	}

	child, err := h.Children.GetChildByID(childID)
	if err != nil || child == nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load child")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, child)
}

func (h *ChildrenHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	children, err := h.Children.ListChildrenByParent(claims.UserID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list children")
		return
	}
	if children == nil {
		children = []domain.Child{}
	}
	httputil.WriteJSON(w, http.StatusOK, children)
}

func (h *ChildrenHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	child := h.loadOwnedChild(w, r, claims)
	if child == nil {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, child)
}

func (h *ChildrenHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	child := h.loadOwnedChild(w, r, claims)
	if child == nil {
		return
	}

	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		BirthYear int    `json:"birth_year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}

	if err := h.Children.UpdateChild(child.ID, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), req.BirthYear); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update child")
		return
	}

	updated, err := h.Children.GetChildByID(child.ID)
	if err != nil || updated == nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load child")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *ChildrenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	child := h.loadOwnedChild(w, r, claims)
	if child == nil {
		return
	}

	if err := h.Children.DeleteChild(child.ID); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete child")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *ChildrenHandler) CreateSkillLog(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	child := h.loadOwnedChild(w, r, claims)
	if child == nil {
		return
	}

	var req struct {
		Skill    string     `json:"skill"`
		Note     string     `json:"note"`
		Minutes  int        `json:"minutes"`
		LoggedAt *time.Time `json:"logged_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}

	req.Skill = strings.TrimSpace(req.Skill)
	if req.Skill == "" {
		httputil.WriteError(w, http.StatusBadRequest, "skill is required")
		return
	}

	loggedAt := time.Now()
	if req.LoggedAt != nil {
		loggedAt = *req.LoggedAt
	}

	id, err := h.Children.CreateSkillLog(child.ID, req.Skill, req.Note, req.Minutes, loggedAt)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create skill log")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *ChildrenHandler) ListSkillLogs(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	child := h.loadOwnedChild(w, r, claims)
	if child == nil {
		return
	}

	logs, err := h.Children.ListSkillLogs(child.ID, 50)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list skill logs")
		return
	}
	if logs == nil {
		logs = []domain.SkillLog{}
	}
	httputil.WriteJSON(w, http.StatusOK, logs)
}

func (h *ChildrenHandler) DeleteSkillLog(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	child := h.loadOwnedChild(w, r, claims)
	if child == nil {
		return
	}

	logID, err := strconv.ParseInt(r.PathValue("logID"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid log id")
		return
	}

	if err := h.Children.DeleteSkillLog(child.ID, logID); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete skill log")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *ChildrenHandler) CreateEvaluation(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	child := h.loadOwnedChild(w, r, claims)
	if child == nil {
		return
	}

	var req struct {
		Subject string `json:"subject"`
		Score   int    `json:"score"`
		Summary string `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}

	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		httputil.WriteError(w, http.StatusBadRequest, "subject is required")
		return
	}

	id, err := h.Children.CreateEvaluation(child.ID, req.Subject, req.Score, req.Summary)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create evaluation")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *ChildrenHandler) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	child := h.loadOwnedChild(w, r, claims)
	if child == nil {
		return
	}

	evals, err := h.Children.ListEvaluations(child.ID, 50)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list evaluations")
		return
	}
	if evals == nil {
		evals = []domain.EvaluationLog{}
	}
	httputil.WriteJSON(w, http.StatusOK, evals)
}
