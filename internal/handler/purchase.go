package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/praisepoints/internal/auth"
	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/points"
)

// PurchaseHandler serves the parent's side of the purchase workflow.
type PurchaseHandler struct {
	svc    *points.Service
	logger *slog.Logger
}

func NewPurchaseHandler(svc *points.Service, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{svc: svc, logger: logger}
}

func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := parsePurchaseFilter(r)
	if !ok {
		badRequest(w, "invalid status or child_id")
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

// Create handles POST /api/purchases: a parent opens a request on behalf of
// one of their children.
func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChildID  int64 `json:"child_id"`
		RewardID int64 `json:"reward_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if req.ChildID <= 0 || req.RewardID <= 0 {
		badRequest(w, "child_id and reward_id are required")
		return
	}

	caller, _ := auth.FromContext(r.Context())
	p, err := h.svc.RequestPurchase(r.Context(), caller, req.ChildID, req.RewardID)
	if err != nil {
		writeServiceError(w, r, h.logger, "create purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PurchaseHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.svc.ApprovePurchase)
}

func (h *PurchaseHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.svc.RejectPurchase)
}

type decideFunc func(ctx context.Context, caller auth.Caller, purchaseID int64) (*model.Purchase, error)

func (h *PurchaseHandler) decide(w http.ResponseWriter, r *http.Request, fn decideFunc) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	caller, _ := auth.FromContext(r.Context())
	p, err := fn(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "decide purchase", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
