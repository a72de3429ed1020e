package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/praisepoints/internal/auth"
	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/points"
	"github.com/dukerupert/praisepoints/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// maxPage keeps page*size well inside int range.
	maxPage = math.MaxInt32 / maxPageSize
)

// AwardBounds limits how many points a single award may carry.
type AwardBounds struct {
	Min int
	Max int
}

type PointsHandler struct {
	svc    *points.Service
	bounds AwardBounds
	logger *slog.Logger
}

func NewPointsHandler(svc *points.Service, bounds AwardBounds, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{svc: svc, bounds: bounds, logger: logger}
}

type awardRequest struct {
	ChildIDs []int64 `json:"child_ids"`
	ChildID  int64   `json:"child_id"`
	Amount   int     `json:"amount"`
	Reason   string  `json:"reason"`
	Message  string  `json:"message"`
}

// Award credits points to one or more children at once.
func (h *PointsHandler) Award(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	ids := req.ChildIDs
	if req.ChildID != 0 {
		ids = append(ids, req.ChildID)
	}
	if len(ids) == 0 {
		badRequest(w, "child_ids is required")
		return
	}
	if req.Amount < h.bounds.Min || req.Amount > h.bounds.Max {
		writeError(w, http.StatusBadRequest, string(points.CodeInvalidAmount),
			"amount must be between "+strconv.Itoa(h.bounds.Min)+" and "+strconv.Itoa(h.bounds.Max))
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		badRequest(w, "reason is required")
		return
	}

	caller, _ := auth.FromContext(r.Context())
	entries, err := h.svc.AwardPoints(r.Context(), caller, ids, req.Amount, req.Reason, strings.TrimSpace(req.Message))
	if err != nil {
		writeServiceError(w, r, h.logger, "award points", err)
		return
	}
	writeJSON(w, http.StatusCreated, entries)
}

func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	caller, _ := auth.FromContext(r.Context())
	b, err := h.svc.GetBalance(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	writeHistory(w, r, h.svc, h.logger, id)
}

// Audit compares a child's stored counters with its ledger and open
// purchases.
func (h *PointsHandler) Audit(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}
	caller, _ := auth.FromContext(r.Context())
	err = h.svc.Audit(r.Context(), caller, id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"child_id": id, "balanced": true})
	case errors.Is(err, points.ErrOutOfBalance):
		h.logger.Error("audit found mismatch", "child_id", id, "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"child_id": id, "balanced": false, "detail": err.Error()})
	default:
		writeServiceError(w, r, h.logger, "audit", err)
	}
}

// parsePage reads ?page= (zero based) and ?size=.
func parsePage(r *http.Request) (points.Page, bool) {
	q := r.URL.Query()
	page, size := 0, defaultPageSize
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxPage {
			return points.Page{}, false
		}
		page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			return points.Page{}, false
		}
		size = n
	}
	return points.Page{Limit: size, Offset: page * size}, true
}

func writeHistory(w http.ResponseWriter, r *http.Request, svc *points.Service, logger *slog.Logger, childID int64) {
	page, ok := parsePage(r)
	if !ok {
		badRequest(w, "invalid page or size")
		return
	}
	caller, _ := auth.FromContext(r.Context())
	hist, err := svc.GetHistory(r.Context(), caller, childID, page)
	if err != nil {
		writeServiceError(w, r, logger, "get history", err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// parsePurchaseFilter reads ?status= and ?child_id=.
func parsePurchaseFilter(r *http.Request) (store.PurchaseFilter, bool) {
	q := r.URL.Query()
	var f store.PurchaseFilter
	if v := q.Get("status"); v != "" {
		s := model.PurchaseStatus(strings.ToUpper(v))
		switch s {
		case model.PurchasePending, model.PurchaseApproved, model.PurchaseRejected:
			f.Status = s
		default:
			return f, false
		}
	}
	if v := q.Get("child_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, false
		}
		f.ChildID = id
	}
	return f, true
}
