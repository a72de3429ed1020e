package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/praisepoints/internal/auth"
	"github.com/dukerupert/praisepoints/internal/database"
	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/points"
	"github.com/dukerupert/praisepoints/internal/store"
)

type env struct {
	db       *sql.DB
	svc      *points.Service
	users    *store.UserStore
	children *store.ChildStore
	rewards  *store.RewardStore
	logger   *slog.Logger
	parent   auth.Caller
}

func newEnv(t *testing.T) *env {
	t.Helper()
	auth.HashCost = bcrypt.MinCost

	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := &env{
		db:       db,
		svc:      points.NewService(db, points.Options{LockTimeout: time.Second, Logger: logger}),
		users:    store.NewUserStore(db),
		children: store.NewChildStore(db),
		rewards:  store.NewRewardStore(db),
		logger:   logger,
	}
	e.parent = e.signup(t, "parent@example.com")
	return e
}

func (e *env) signup(t *testing.T, email string) auth.Caller {
	t.Helper()
	u, err := e.users.Create(context.Background(), email, "Parent", "hash")
	require.NoError(t, err)
	return auth.Parent(u.ID)
}

func (e *env) child(t *testing.T, owner auth.Caller, name string) *model.Child {
	t.Helper()
	c, err := e.children.Create(context.Background(), owner.OwnerID, model.ChildInput{Name: name})
	require.NoError(t, err)
	return c
}

func (e *env) reward(t *testing.T, owner auth.Caller, name string, cost int) *model.Reward {
	t.Helper()
	r, err := e.rewards.Create(context.Background(), owner.OwnerID, model.RewardInput{
		Name: name, RequiredPoints: cost, Category: model.CategoryToy, Active: true,
	})
	require.NoError(t, err)
	return r
}

// request builds a request as the given caller. pathValues alternate
// name, value.
func request(t *testing.T, caller auth.Caller, method, target string, body any, pathValues ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	return req.WithContext(auth.WithCaller(req.Context(), caller))
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["code"]
}
