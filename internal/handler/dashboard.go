package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/praisepoints/internal/auth"
	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/points"
	"github.com/dukerupert/praisepoints/internal/store"
)

// DashboardHandler serves the signed-in child. The child is always taken
// from the token, never from the URL.
type DashboardHandler struct {
	svc     *points.Service
	rewards *store.RewardStore
	logger  *slog.Logger
}

func NewDashboardHandler(svc *points.Service, rs *store.RewardStore, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, rewards: rs, logger: logger}
}

func (h *DashboardHandler) Profile(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	child, err := h.svc.Child(r.Context(), caller, caller.ChildID)
	if err != nil {
		writeServiceError(w, r, h.logger, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, child)
}

func (h *DashboardHandler) History(w http.ResponseWriter, r *http.Request) {
	writeHistory(w, r, h.svc, h.logger, auth.ChildID(r.Context()))
}

func (h *DashboardHandler) Purchases(w http.ResponseWriter, r *http.Request) {
	f, ok := parsePurchaseFilter(r)
	if !ok {
		badRequest(w, "invalid status")
		return
	}
	caller, _ := auth.FromContext(r.Context())
	purchases, err := h.svc.ListPurchases(r.Context(), caller, f)
	if err != nil {
		writeServiceError(w, r, h.logger, "list purchases", err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

// Rewards lists the active rewards the child's parent offers.
func (h *DashboardHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	category, ok := parseCategory(r)
	if !ok {
		badRequest(w, "unknown category")
		return
	}
	rewards, err := h.rewards.ListActiveByOwner(r.Context(), auth.OwnerID(r.Context()), category)
	if err != nil {
		internalError(w, r, h.logger, "failed to list rewards", err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *DashboardHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RewardID int64 `json:"reward_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if req.RewardID <= 0 {
		badRequest(w, "reward_id is required")
		return
	}

	caller, _ := auth.FromContext(r.Context())
	p, err := h.svc.RequestPurchase(r.Context(), caller, caller.ChildID, req.RewardID)
	if err != nil {
		writeServiceError(w, r, h.logger, "request purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *DashboardHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	caller, _ := auth.FromContext(r.Context())
	p, err := h.svc.CancelPurchase(r.Context(), caller, caller.ChildID, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "cancel purchase", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
