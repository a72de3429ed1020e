package points

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/praisepoints/internal/metrics"
	"github.com/dukerupert/praisepoints/internal/model"
	"github.com/dukerupert/praisepoints/internal/store"
)

func releaseUnderflows(t *testing.T) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "praisepoints_balance_release_underflows_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatal("release underflow counter not registered")
	return 0
}

func TestTrackerAvailable(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	tr := NewTracker(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	f.award(t, 10)

	err := store.WithTx(ctx, f.db, func(tx *sql.Tx) error {
		return tr.Reserve(ctx, tx, f.child.ID, 3)
	})
	require.NoError(t, err)

	avail, err := tr.Available(ctx, f.db, f.child.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, avail)

	_, err = tr.Available(ctx, f.db, f.child.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrackerReleaseClampsAtZero(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	var logs bytes.Buffer
	tr := NewTracker(slog.New(slog.NewTextHandler(&logs, nil)))
	f.award(t, 10)

	err := store.WithTx(ctx, f.db, func(tx *sql.Tx) error {
		return tr.Reserve(ctx, tx, f.child.ID, 3)
	})
	require.NoError(t, err)

	before := releaseUnderflows(t)
	err = store.WithTx(ctx, f.db, func(tx *sql.Tx) error {
		return tr.Release(ctx, tx, f.child.ID, 5)
	})
	require.NoError(t, err)

	b, err := tr.Balance(ctx, f.db, f.child.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NewBalance(10, 0), b)
	assert.Equal(t, before+1, releaseUnderflows(t))
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "release exceeds reserved points")

	// An exact release is not an underflow.
	require.NoError(t, store.WithTx(ctx, f.db, func(tx *sql.Tx) error {
		if err := tr.Reserve(ctx, tx, f.child.ID, 4); err != nil {
			return err
		}
		return tr.Release(ctx, tx, f.child.ID, 4)
	}))
	assert.Equal(t, before+1, releaseUnderflows(t))
}

func TestTrackerRejectsNonPositive(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()
	tr := NewTracker(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	assert.ErrorIs(t, tr.Reserve(ctx, f.db, f.child.ID, 0), ErrInvalidAmount)
	assert.ErrorIs(t, tr.Release(ctx, f.db, f.child.ID, -1), ErrInvalidAmount)
}
