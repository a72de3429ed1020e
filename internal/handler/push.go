package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukerupert/praisepoints/internal/auth"
	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/store"
)

type PushHandler struct {
	subs      *store.PushStore
	publicKey string
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, vapidPublicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: ps, publicKey: vapidPublicKey, logger: logger}
}

// subscribeRequest mirrors the browser's PushSubscription.toJSON().
type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscriptions
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		badRequest(w, "endpoint, keys.p256dh and keys.auth are required")
		return
	}
	if u, err := url.Parse(req.Endpoint); err != nil || u.Scheme != "https" || u.Host == "" {
		badRequest(w, "endpoint must be an https URL")
		return
	}

	sub, err := h.subs.Save(r.Context(), auth.OwnerID(r.Context()), req.Endpoint,
		req.Keys.P256dh, req.Keys.Auth, strings.TrimSpace(req.DeviceName))
	if err != nil {
		internalError(w, r, h.logger, "failed to save subscription", err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	ok, err := h.subs.Delete(r.Context(), id, auth.OwnerID(r.Context()))
	if err != nil {
		internalError(w, r, h.logger, "failed to delete subscription", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "subscription not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/push/subscriptions
func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListByOwner(r.Context(), auth.OwnerID(r.Context()))
	if err != nil {
		internalError(w, r, h.logger, "failed to list subscriptions", err)
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}
