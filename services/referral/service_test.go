package referral

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"shards-controlplane/services/testutil"
)

func newTestService(t *testing.T) (*Service, clockwork.Clock) {
	t.Helper()
	db := testutil.NewTestDB(t, &Referral{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	return NewService(ServiceParams{DB: db, Node: node, Clock: clock}), clock
}

func TestCreateReferral(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateReferral(context.Background(), "0xAAA", "0xBBB", "season-1")
	require.NoError(t, err)
	require.Equal(t, "0xaaa", created.ReferrerAddress)
	require.Equal(t, "0xbbb", created.RefereeAddress)
	require.Equal(t, StatusPending, created.Status)
}

func TestCreateReferralDuplicateReferee(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateReferral(context.Background(), "0xaaa", "0xbbb", "season-1")
	require.NoError(t, err)

	// Same referee, different referrer, same season.
	_, err = svc.CreateReferral(context.Background(), "0xccc", "0xBBB", "season-1")
	require.Error(t, err)

	// A new season starts fresh.
	_, err = svc.CreateReferral(context.Background(), "0xccc", "0xbbb", "season-2")
	require.NoError(t, err)
}

func TestCreateReferralSelfReferral(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateReferral(context.Background(), "0xaaa", "0xAAA", "season-1")
	require.Error(t, err)
}

func TestActivateReferral(t *testing.T) {
	svc, clock := newTestService(t)

	created, err := svc.CreateReferral(context.Background(), "0xaaa", "0xbbb", "season-1")
	require.NoError(t, err)

	active, err := svc.ActivateReferral(context.Background(), created.ID, decimal.NewFromInt(120))
	require.NoError(t, err)
	require.Equal(t, StatusActive, active.Status)
	require.True(t, active.ActivationDate.Equal(clock.Now()))
	require.True(t, active.RefereeMultiplierExpires.Equal(clock.Now().Add(BonusWindow)))

	// Persisted, not just returned.
	stored, err := svc.get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, stored.Status)
}

func TestActivateReferralBelowThreshold(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateReferral(context.Background(), "0xaaa", "0xbbb", "season-1")
	require.NoError(t, err)

	_, err = svc.ActivateReferral(context.Background(), created.ID, decimal.NewFromInt(99))
	require.Error(t, err)
}

func TestActivateReferralNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ActivateReferral(context.Background(), "missing", decimal.NewFromInt(500))
	require.Error(t, err)
}

func TestExpireReferralIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateReferral(context.Background(), "0xaaa", "0xbbb", "season-1")
	require.NoError(t, err)

	expired, err := svc.ExpireReferral(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, expired.Status)

	again, err := svc.ExpireReferral(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, again.Status)
}
