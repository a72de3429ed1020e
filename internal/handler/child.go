package handler

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dukerupert/praisepoints/internal/auth"
	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/points"
	"github.com/dukerupert/praisepoints/internal/store"
)

var usernameRegexp = regexp.MustCompile(`^[a-z0-9_.-]{3,32}$`)

type ChildHandler struct {
	children *store.ChildStore
	svc      *points.Service
	notifier points.Notifier
	logger   *slog.Logger
}

func NewChildHandler(cs *store.ChildStore, svc *points.Service, n points.Notifier, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{children: cs, svc: svc, notifier: n, logger: logger}
}

func (h *ChildHandler) notify(ownerID int64, action string, id int64) {
	if h.notifier != nil {
		h.notifier.Notify(ownerID, "child", action, id, map[string]any{"child_id": id})
	}
}

type childRequest struct {
	Name         string `json:"name"`
	BirthDate    string `json:"birth_date"`
	ProfileImage string `json:"profile_image"`
	Username     string `json:"username"`
	AuthKey      string `json:"auth_key"`
}

// toInput validates req and hashes a new auth key when one is given. A child
// with a username must be able to log in, so it needs a key from somewhere.
func (req *childRequest) toInput(hasKey bool) (model.ChildInput, string) {
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Name == "" {
		return model.ChildInput{}, "name is required"
	}
	if req.BirthDate != "" {
		if _, err := time.Parse(time.DateOnly, req.BirthDate); err != nil {
			return model.ChildInput{}, "birth_date must be YYYY-MM-DD"
		}
	}
	if req.Username != "" && !usernameRegexp.MatchString(req.Username) {
		return model.ChildInput{}, "username must be 3-32 lowercase letters, digits, '.', '_' or '-'"
	}
	if req.AuthKey != "" && (len(req.AuthKey) < 4 || len(req.AuthKey) > 72) {
		return model.ChildInput{}, "auth_key must be 4 to 72 characters"
	}
	if req.Username != "" && req.AuthKey == "" && !hasKey {
		return model.ChildInput{}, "auth_key is required with a username"
	}

	in := model.ChildInput{
		Name:         req.Name,
		BirthDate:    req.BirthDate,
		ProfileImage: strings.TrimSpace(req.ProfileImage),
		Username:     req.Username,
	}
	return in, ""
}

func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	children, err := h.children.ListByOwner(r.Context(), auth.OwnerID(r.Context()))
	if err != nil {
		internalError(w, r, h.logger, "failed to list children", err)
		return
	}
	if children == nil {
		children = []model.Child{}
	}
	writeJSON(w, http.StatusOK, children)
}

func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	in, problem := req.toInput(false)
	if problem != "" {
		badRequest(w, problem)
		return
	}
	if !h.usernameFree(w, r, in.Username, 0) {
		return
	}
	if req.AuthKey != "" {
		hash, err := auth.HashSecret(req.AuthKey)
		if err != nil {
			internalError(w, r, h.logger, "failed to hash auth key", err)
			return
		}
		in.AuthKeyHash = hash
	}

	ownerID := auth.OwnerID(r.Context())
	child, err := h.children.Create(r.Context(), ownerID, in)
	if err != nil {
		internalError(w, r, h.logger, "failed to create child", err)
		return
	}

	h.notify(ownerID, "created", child.ID)
	writeJSON(w, http.StatusCreated, child)
}

func (h *ChildHandler) Get(w http.ResponseWriter, r *http.Request) {
	child, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	var req childRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	in, problem := req.toInput(existing.HasAuthKey)
	if problem != "" {
		badRequest(w, problem)
		return
	}
	if !h.usernameFree(w, r, in.Username, existing.ID) {
		return
	}
	if req.AuthKey != "" {
		hash, err := auth.HashSecret(req.AuthKey)
		if err != nil {
			internalError(w, r, h.logger, "failed to hash auth key", err)
			return
		}
		in.AuthKeyHash = hash
	}

	child, err := h.children.Update(r.Context(), existing.ID, in)
	if err != nil {
		internalError(w, r, h.logger, "failed to update child", err)
		return
	}

	h.notify(existing.OwnerID, "updated", child.ID)
	writeJSON(w, http.StatusOK, child)
}

// Delete removes a child and its history. Children with open purchase
// requests must have them decided first.
func (h *ChildHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	caller, _ := auth.FromContext(r.Context())
	if err := h.svc.DeleteChild(r.Context(), caller, existing.ID); err != nil {
		writeServiceError(w, r, h.logger, "delete child", err)
		return
	}

	h.notify(existing.OwnerID, "deleted", existing.ID)
	w.WriteHeader(http.StatusNoContent)
}

// load fetches the {id} child and writes 404 unless it belongs to the caller.
func (h *ChildHandler) load(w http.ResponseWriter, r *http.Request) (*model.Child, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return nil, false
	}
	child, err := h.children.GetByID(r.Context(), id)
	if err != nil {
		internalError(w, r, h.logger, "failed to get child", err)
		return nil, false
	}
	if child == nil || child.OwnerID != auth.OwnerID(r.Context()) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "child not found")
		return nil, false
	}
	return child, true
}

func (h *ChildHandler) usernameFree(w http.ResponseWriter, r *http.Request, username string, excludeID int64) bool {
	if username == "" {
		return true
	}
	exists, err := h.children.UsernameExists(r.Context(), username, excludeID)
	if err != nil {
		internalError(w, r, h.logger, "failed to check username", err)
		return false
	}
	if exists {
		writeError(w, http.StatusConflict, "CONFLICT", "that username is taken")
		return false
	}
	return true
}
