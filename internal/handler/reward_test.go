package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/praisepoints/internal/auth"
	"github.com/dukerupert/praisepoints/internal/model"
)

func TestRewardCreateDefaults(t *testing.T) {
	e := newEnv(t)
	n := &recordingNotifier{}
	h := NewRewardHandler(e.rewards, n, e.logger)

	rec := serve(h.Create, request(t, e.parent, "POST", "/api/rewards", map[string]any{
		"name": "Sticker", "required_points": 3,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got model.Reward
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.CategoryOther, got.Category)
	assert.True(t, got.Active)
	assert.Equal(t, []string{"reward_created"}, n.events)
}

func TestRewardValidation(t *testing.T) {
	e := newEnv(t)
	h := NewRewardHandler(e.rewards, nil, e.logger)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"required_points": 5}},
		{"zero cost", map[string]any{"name": "A", "required_points": 0}},
		{"negative cost", map[string]any{"name": "A", "required_points": -4}},
		{"unknown category", map[string]any{"name": "A", "required_points": 5, "category": "PONY"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h.Create, request(t, e.parent, "POST", "/api/rewards", tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRewardListCategoryFilter(t *testing.T) {
	e := newEnv(t)
	h := NewRewardHandler(e.rewards, nil, e.logger)
	e.reward(t, e.parent, "Robot", 50)
	_, err := e.rewards.Create(context.Background(), e.parent.OwnerID, model.RewardInput{
		Name: "Cookie", RequiredPoints: 2, Category: model.CategorySnack, Active: true,
	})
	require.NoError(t, err)

	rec := serve(h.List, request(t, e.parent, "GET", "/api/rewards?category=snack", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Reward
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Cookie", got[0].Name)

	rec = serve(h.List, request(t, e.parent, "GET", "/api/rewards?category=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRewardToggleKeepsPendingPurchase(t *testing.T) {
	e := newEnv(t)
	h := NewRewardHandler(e.rewards, nil, e.logger)
	ctx := context.Background()

	c := e.child(t, e.parent, "Kid")
	r := e.reward(t, e.parent, "Robot", 10)
	_, err := e.svc.AwardPoints(ctx, e.parent, []int64{c.ID}, 10, "tidy room", "")
	require.NoError(t, err)
	p, err := e.svc.RequestPurchase(ctx, auth.Child(e.parent.OwnerID, c.ID), c.ID, r.ID)
	require.NoError(t, err)

	id := strconv.FormatInt(r.ID, 10)
	rec := serve(h.Toggle, request(t, e.parent, "POST", "/api/rewards/"+id+"/toggle", nil, "id", id))
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled model.Reward
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
	assert.False(t, toggled.Active)

	approved, err := e.svc.ApprovePurchase(ctx, e.parent, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseApproved, approved.Status)

	// Requested rewards cannot be deleted, only deactivated.
	rec = serve(h.Delete, request(t, e.parent, "DELETE", "/api/rewards/"+id, nil, "id", id))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRewardUpdateKeepsActiveWhenOmitted(t *testing.T) {
	e := newEnv(t)
	h := NewRewardHandler(e.rewards, nil, e.logger)
	r := e.reward(t, e.parent, "Robot", 10)
	_, err := e.rewards.Toggle(context.Background(), r.ID)
	require.NoError(t, err)

	id := strconv.FormatInt(r.ID, 10)
	rec := serve(h.Update, request(t, e.parent, "PUT", "/api/rewards/"+id, map[string]any{
		"name": "Big Robot", "required_points": 20, "category": "TOY",
	}, "id", id))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got model.Reward
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Big Robot", got.Name)
	assert.Equal(t, 20, got.RequiredPoints)
	assert.False(t, got.Active)
}

func TestRewardDeleteUnused(t *testing.T) {
	e := newEnv(t)
	h := NewRewardHandler(e.rewards, nil, e.logger)
	r := e.reward(t, e.parent, "Robot", 10)
	id := strconv.FormatInt(r.ID, 10)

	stranger := e.signup(t, "stranger@example.com")
	rec := serve(h.Delete, request(t, stranger, "DELETE", "/api/rewards/"+id, nil, "id", id))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h.Delete, request(t, e.parent, "DELETE", "/api/rewards/"+id, nil, "id", id))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
