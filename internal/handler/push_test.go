package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/store"
)

func subscribeBody(endpoint string) map[string]any {
	return map[string]any{
		"endpoint":    endpoint,
		"keys":        map[string]string{"p256dh": "BNc...", "auth": "tBH..."},
		"device_name": "Laptop",
	}
}

func TestPushSubscribeAndList(t *testing.T) {
	e := newEnv(t)
	h := NewPushHandler(store.NewPushStore(e.db), "public-key", e.logger)

	rec := serve(h.Subscribe, request(t, e.parent, "POST", "/api/push/subscriptions", subscribeBody("https://push.example/1")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sub model.PushSubscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	assert.Equal(t, "Laptop", sub.DeviceName)
	assert.NotContains(t, rec.Body.String(), "tBH", "keys are never echoed back")

	rec = serve(h.List, request(t, e.parent, "GET", "/api/push/subscriptions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []model.PushSubscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subs))
	assert.Len(t, subs, 1)

	rec = serve(h.VAPIDKey, request(t, e.parent, "GET", "/api/push/vapid-key", nil))
	assert.JSONEq(t, `{"public_key":"public-key"}`, rec.Body.String())
}

func TestPushSubscribeValidation(t *testing.T) {
	e := newEnv(t)
	h := NewPushHandler(store.NewPushStore(e.db), "k", e.logger)

	for _, body := range []map[string]any{
		{"endpoint": "https://push.example/1"},
		subscribeBody("http://push.example/1"),
		subscribeBody("not a url"),
	} {
		rec := serve(h.Subscribe, request(t, e.parent, "POST", "/api/push/subscriptions", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}

func TestPushUnsubscribe(t *testing.T) {
	e := newEnv(t)
	h := NewPushHandler(store.NewPushStore(e.db), "k", e.logger)

	rec := serve(h.Subscribe, request(t, e.parent, "POST", "/api/push/subscriptions", subscribeBody("https://push.example/1")))
	require.Equal(t, http.StatusCreated, rec.Code)
	var sub model.PushSubscription
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sub))
	id := strconv.FormatInt(sub.ID, 10)

	stranger := e.signup(t, "stranger@example.com")
	rec = serve(h.Unsubscribe, request(t, stranger, "DELETE", "/api/push/subscriptions/"+id, nil, "id", id))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h.Unsubscribe, request(t, e.parent, "DELETE", "/api/push/subscriptions/"+id, nil, "id", id))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
