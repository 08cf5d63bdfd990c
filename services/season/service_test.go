package season

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shards-controlplane/services/testutil"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, &Season{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node}), db
}

func TestCreateSeasonGeneratesID(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSeason(context.Background(), Params{
		Name:      "Season 1",
		StartDate: time.Now().UTC(),
		EndDate:   time.Now().UTC().AddDate(0, 3, 0),
		Rates:     map[string]decimal.Decimal{"eth": decimal.NewFromInt(100)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, StatusUpcoming, created.Status)

	found, err := svc.GetSeason(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Name, found.Name)
}

func TestGetSeasonNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetSeason(context.Background(), "missing")
	require.Error(t, err)
}

func TestActivateAndCompleteSeason(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSeason(context.Background(), Params{Name: "Season 1"})
	require.NoError(t, err)

	active, err := svc.ActivateSeason(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, active.Status)

	found, err := svc.FindActive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, created.ID, found.ID)

	completed, err := svc.CompleteSeason(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)

	// The transition is persisted, not just returned.
	stored, err := svc.GetSeason(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)

	none, err := svc.FindActive(context.Background())
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestActivateSeasonTwiceFails(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSeason(context.Background(), Params{Name: "Season 1"})
	require.NoError(t, err)

	_, err = svc.ActivateSeason(context.Background(), created.ID)
	require.NoError(t, err)

	_, err = svc.ActivateSeason(context.Background(), created.ID)
	require.Error(t, err)
}

func TestUpdateSeasonPersistsFields(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSeason(context.Background(), Params{Name: "Season 1"})
	require.NoError(t, err)

	name := "Season 1 extended"
	social := decimal.NewFromInt(50)
	updated, err := svc.UpdateSeason(context.Background(), created.ID, Update{
		Name:       &name,
		SocialRate: &social,
	})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)

	stored, err := svc.GetSeason(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, name, stored.Name)
	require.True(t, stored.SocialConversionRate.Equal(social))
}
