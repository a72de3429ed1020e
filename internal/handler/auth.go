package handler

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/dukerupert/praisepoints/internal/auth"
	"github.com/dukerupert/praisepoints/internal/store"
)

type AuthHandler struct {
	users    *store.UserStore
	children *store.ChildStore
	tokens   *auth.Issuer
	logger   *slog.Logger
}

func NewAuthHandler(users *store.UserStore, children *store.ChildStore, tokens *auth.Issuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, children: children, tokens: tokens, logger: logger}
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      auth.Role `json:"role"`
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, status int, c auth.Caller) {
	tok, exp, err := h.tokens.Issue(c)
	if err != nil {
		internalError(w, r, h.logger, "failed to issue token", err)
		return
	}
	writeJSON(w, status, tokenResponse{Token: tok, ExpiresAt: exp, Role: c.Role})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		badRequest(w, "a valid email is required")
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	if len(req.Password) < 8 || len(req.Password) > 72 {
		badRequest(w, "password must be 8 to 72 characters")
		return
	}

	existing, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		internalError(w, r, h.logger, "failed to check email", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "CONFLICT", "an account with that email already exists")
		return
	}

	hash, err := auth.HashSecret(req.Password)
	if err != nil {
		internalError(w, r, h.logger, "failed to hash password", err)
		return
	}
	user, err := h.users.Create(r.Context(), req.Email, req.Name, hash)
	if err != nil {
		internalError(w, r, h.logger, "failed to create account", err)
		return
	}

	h.logger.Info("parent signed up", "user_id", user.ID)
	h.issue(w, r, http.StatusCreated, auth.Parent(user.ID))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	id, hash, err := h.users.GetPasswordHash(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		internalError(w, r, h.logger, "failed to look up account", err)
		return
	}
	if !auth.CheckSecret(hash, req.Password) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid email or password")
		return
	}

	h.issue(w, r, http.StatusOK, auth.Parent(id))
}

// ChildLogin authenticates a child by username and auth key.
func (h *AuthHandler) ChildLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		AuthKey  string `json:"auth_key"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	child, err := h.children.GetByUsername(r.Context(), strings.ToLower(strings.TrimSpace(req.Username)))
	if err != nil {
		internalError(w, r, h.logger, "failed to look up child", err)
		return
	}
	if child == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid username or key")
		return
	}
	hash, err := h.children.GetAuthKeyHash(r.Context(), child.ID)
	if err != nil {
		internalError(w, r, h.logger, "failed to look up child", err)
		return
	}
	if !auth.CheckSecret(hash, req.AuthKey) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid username or key")
		return
	}

	h.issue(w, r, http.StatusOK, auth.Child(child.OwnerID, child.ID))
}

// Me returns the signed-in parent or child.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.FromContext(r.Context())
	if c.IsChild() {
		child, err := h.children.GetByID(r.Context(), c.ChildID)
		if err != nil {
			internalError(w, r, h.logger, "failed to get child", err)
			return
		}
		if child == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "child not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"role": c.Role, "child": child})
		return
	}

	user, err := h.users.GetByID(r.Context(), c.OwnerID)
	if err != nil {
		internalError(w, r, h.logger, "failed to get user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "account not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": c.Role, "user": user})
}
