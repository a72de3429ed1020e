package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/praisepoints/internal/auth"
	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/points"
	"github.com/dukerupert/praisepoints/internal/store"
)

type RewardHandler struct {
	rewards  *store.RewardStore
	notifier points.Notifier
	logger   *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, n points.Notifier, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rs, notifier: n, logger: logger}
}

func (h *RewardHandler) notify(ownerID int64, action string, id int64) {
	if h.notifier != nil {
		h.notifier.Notify(ownerID, "reward", action, id, nil)
	}
}

type rewardRequest struct {
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	RequiredPoints int                  `json:"required_points"`
	Category       model.RewardCategory `json:"category"`
	ImageURL       string               `json:"image_url"`
	Active         *bool                `json:"active"`
}

func (req *rewardRequest) toInput() (model.RewardInput, string) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return model.RewardInput{}, "name is required"
	}
	if req.RequiredPoints <= 0 {
		return model.RewardInput{}, "required_points must be > 0"
	}
	category := model.RewardCategory(strings.ToUpper(string(req.Category)))
	if category == "" {
		category = model.CategoryOther
	}
	if !category.Valid() {
		return model.RewardInput{}, "unknown category"
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return model.RewardInput{
		Name:           req.Name,
		Description:    strings.TrimSpace(req.Description),
		RequiredPoints: req.RequiredPoints,
		Category:       category,
		ImageURL:       strings.TrimSpace(req.ImageURL),
		Active:         active,
	}, ""
}

// parseCategory reads the optional ?category= filter. An empty result means
// no filter.
func parseCategory(r *http.Request) (model.RewardCategory, bool) {
	raw := r.URL.Query().Get("category")
	if raw == "" {
		return "", true
	}
	c := model.RewardCategory(strings.ToUpper(raw))
	return c, c.Valid()
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	in, problem := req.toInput()
	if problem != "" {
		badRequest(w, problem)
		return
	}

	ownerID := auth.OwnerID(r.Context())
	reward, err := h.rewards.Create(r.Context(), ownerID, in)
	if err != nil {
		internalError(w, r, h.logger, "failed to create reward", err)
		return
	}

	h.notify(ownerID, "created", reward.ID)
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	category, ok := parseCategory(r)
	if !ok {
		badRequest(w, "unknown category")
		return
	}
	rewards, err := h.rewards.ListByOwner(r.Context(), auth.OwnerID(r.Context()), category)
	if err != nil {
		internalError(w, r, h.logger, "failed to list rewards", err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Get(w http.ResponseWriter, r *http.Request) {
	reward, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	var req rewardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if req.Active == nil {
		req.Active = &existing.Active
	}
	in, problem := req.toInput()
	if problem != "" {
		badRequest(w, problem)
		return
	}

	// Pending purchases keep the cost they captured at request time.
	reward, err := h.rewards.Update(r.Context(), existing.ID, in)
	if err != nil {
		internalError(w, r, h.logger, "failed to update reward", err)
		return
	}

	h.notify(existing.OwnerID, "updated", reward.ID)
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	reward, err := h.rewards.Toggle(r.Context(), existing.ID)
	if err != nil {
		internalError(w, r, h.logger, "failed to toggle reward", err)
		return
	}

	h.notify(existing.OwnerID, "toggled", reward.ID)
	writeJSON(w, http.StatusOK, reward)
}

// Delete removes a reward that was never requested. Rewards with purchase
// history should be deactivated instead.
func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	used, err := h.rewards.HasPurchases(r.Context(), existing.ID)
	if err != nil {
		internalError(w, r, h.logger, "failed to check purchases", err)
		return
	}
	if used {
		writeError(w, http.StatusConflict, "CONFLICT", "reward has purchases; deactivate it instead")
		return
	}

	if err := h.rewards.Delete(r.Context(), existing.ID); err != nil {
		internalError(w, r, h.logger, "failed to delete reward", err)
		return
	}

	h.notify(existing.OwnerID, "deleted", existing.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *RewardHandler) load(w http.ResponseWriter, r *http.Request) (*model.Reward, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return nil, false
	}
	reward, err := h.rewards.GetByID(r.Context(), id)
	if err != nil {
		internalError(w, r, h.logger, "failed to get reward", err)
		return nil, false
	}
	if reward == nil || reward.OwnerID != auth.OwnerID(r.Context()) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "reward not found")
		return nil, false
	}
	return reward, true
}
