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

func TestDashboardRequestAndCancel(t *testing.T) {
	e := newEnv(t)
	h := NewDashboardHandler(e.svc, e.rewards, e.logger)
	ctx := context.Background()

	c := e.child(t, e.parent, "Kid")
	r := e.reward(t, e.parent, "Yo-yo", 6)
	_, err := e.svc.AwardPoints(ctx, e.parent, []int64{c.ID}, 10, "reading", "")
	require.NoError(t, err)
	kid := auth.Child(e.parent.OwnerID, c.ID)

	rec := serve(h.Request, request(t, kid, "POST", "/api/child-dashboard/purchases", map[string]int64{"reward_id": r.ID}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p model.Purchase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, model.PurchasePending, p.Status)

	rec = serve(h.Profile, request(t, kid, "GET", "/api/child-dashboard/profile", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var profile model.Child
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, model.NewBalance(10, 6), profile.Balance)

	id := strconv.FormatInt(p.ID, 10)
	rec = serve(h.Cancel, request(t, kid, "POST", "/api/child-dashboard/purchases/"+id+"/cancel", nil, "id", id))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, model.PurchaseRejected, p.Status)
	assert.Equal(t, model.DecidedByChild, p.DecidedBy)

	rec = serve(h.Cancel, request(t, kid, "POST", "/api/child-dashboard/purchases/"+id+"/cancel", nil, "id", id))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDashboardCannotCancelSibling(t *testing.T) {
	e := newEnv(t)
	h := NewDashboardHandler(e.svc, e.rewards, e.logger)
	_, _, p := pendingPurchase(t, e, 4)
	sibling := e.child(t, e.parent, "Sibling")

	id := strconv.FormatInt(p.ID, 10)
	rec := serve(h.Cancel, request(t, auth.Child(e.parent.OwnerID, sibling.ID), "POST", "/", nil, "id", id))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDashboardRewardsOnlyActive(t *testing.T) {
	e := newEnv(t)
	h := NewDashboardHandler(e.svc, e.rewards, e.logger)
	c := e.child(t, e.parent, "Kid")
	e.reward(t, e.parent, "Robot", 50)
	hidden := e.reward(t, e.parent, "Pony", 500)
	_, err := e.rewards.Toggle(context.Background(), hidden.ID)
	require.NoError(t, err)

	stranger := e.signup(t, "stranger@example.com")
	e.reward(t, stranger, "Not yours", 1)

	rec := serve(h.Rewards, request(t, auth.Child(e.parent.OwnerID, c.ID), "GET", "/api/child-dashboard/rewards", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Reward
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Robot", got[0].Name)
}

func TestDashboardPurchasesScopedToChild(t *testing.T) {
	e := newEnv(t)
	h := NewDashboardHandler(e.svc, e.rewards, e.logger)
	_, kid, _ := pendingPurchase(t, e, 4)
	sibling := e.child(t, e.parent, "Sibling")

	rec := serve(h.Purchases, request(t, kid, "GET", "/api/child-dashboard/purchases", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Purchase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 1)

	// A child_id in the query cannot widen the view.
	target := "/api/child-dashboard/purchases?child_id=" + strconv.FormatInt(kid.ChildID, 10)
	rec = serve(h.Purchases, request(t, auth.Child(e.parent.OwnerID, sibling.ID), "GET", target, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got)
}
