package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperExpiresOnlyStalePending(t *testing.T) {
	m, repo, _, store, _ := testManager(t)
	now := time.Now().UTC()
	seedJob(t, repo, "stale", "SWP001", JobStatusPending, now.Add(-30*time.Hour), "shop1/stale.pdf")
	seedJob(t, repo, "recent", "SWP002", JobStatusPending, now.Add(-time.Hour), "shop1/recent.pdf")

	s := NewSweeper(m, time.Minute, 24*time.Hour)
	s.Sweep(context.Background())

	assert.Equal(t, JobStatusExpired, repo.get(t, "stale").Status)
	assert.Equal(t, 1, store.removals("shop1/stale.pdf"))
	assert.Equal(t, JobStatusPending, repo.get(t, "recent").Status)
	assert.Equal(t, 0, store.removals("shop1/recent.pdf"))
}

func TestSweeperSweepIsIdempotent(t *testing.T) {
	m, repo, _, store, _ := testManager(t)
	seedJob(t, repo, "stale", "SWP001", JobStatusPending, time.Now().UTC().Add(-30*time.Hour), "shop1/stale.pdf")

	s := NewSweeper(m, time.Minute, 24*time.Hour)
	s.Sweep(context.Background())
	s.Sweep(context.Background())

	assert.Equal(t, 1, store.removals("shop1/stale.pdf"))
	assert.Equal(t, JobStatusExpired, repo.get(t, "stale").Status)
}

func TestSweeperDefaults(t *testing.T) {
	m, _, _, _, _ := testManager(t)
	s := NewSweeper(m, 0, 0)
	require.Equal(t, 15*time.Minute, s.interval)
	require.Equal(t, 24*time.Hour, s.maxAge)
}
