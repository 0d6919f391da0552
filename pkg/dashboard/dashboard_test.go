package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/dbx"
)

// fakeStore only implements ShareFor, used by the AccessLevelFor unit
// tests below. Manager.Create/Update/Restore need a real pool for
// dbx.WithTx and are exercised in integration tests, same as
// pkg/vault.Manager's RefreshOne.
type fakeStore struct {
	shares map[uuid.UUID]Share
}

func (s *fakeStore) CountActiveForTenantForUpdate(context.Context, dbx.DBTX, uuid.UUID) (int, error) {
	return 0, nil
}
func (s *fakeStore) NameConflictExists(context.Context, dbx.DBTX, uuid.UUID, string, uuid.UUID) (bool, error) {
	return false, nil
}
func (s *fakeStore) Insert(context.Context, dbx.DBTX, Dashboard) error { return nil }
func (s *fakeStore) GetForUpdate(context.Context, dbx.DBTX, uuid.UUID, uuid.UUID) (Dashboard, error) {
	return Dashboard{}, nil
}
func (s *fakeStore) Get(context.Context, dbx.DBTX, uuid.UUID, uuid.UUID) (Dashboard, error) {
	return Dashboard{}, nil
}
func (s *fakeStore) Update(context.Context, dbx.DBTX, Dashboard) error { return nil }
func (s *fakeStore) ReplaceReports(context.Context, dbx.DBTX, uuid.UUID, []Report) error {
	return nil
}
func (s *fakeStore) ReportsFor(context.Context, dbx.DBTX, uuid.UUID) ([]Report, error) {
	return nil, nil
}
func (s *fakeStore) InsertVersion(context.Context, dbx.DBTX, DashboardVersion) error { return nil }
func (s *fakeStore) ListVersions(context.Context, dbx.DBTX, uuid.UUID) ([]DashboardVersion, error) {
	return nil, nil
}
func (s *fakeStore) GetVersion(context.Context, dbx.DBTX, uuid.UUID, int) (DashboardVersion, error) {
	return DashboardVersion{}, nil
}
func (s *fakeStore) DeleteVersions(context.Context, dbx.DBTX, []uuid.UUID) error { return nil }

func (s *fakeStore) ShareFor(_ context.Context, _ dbx.DBTX, dashboardID, userID uuid.UUID) (Share, bool, error) {
	share, ok := s.shares[dashboardID.String()+userID.String()]
	return share, ok, nil
}

var _ Store = (*fakeStore)(nil)

func TestAccessLevelFor_OwnerTakesPrecedence(t *testing.T) {
	owner := uuid.New()
	d := Dashboard{ID: uuid.New(), OwnerUserID: owner}
	store := &fakeStore{shares: map[uuid.UUID]Share{}}
	level, err := AccessLevelFor(context.Background(), store, nil, d, owner, time.Now())
	require.NoError(t, err)
	require.Equal(t, AccessOwner, level)
}

func TestAccessLevelFor_NoShareIsNoAccess(t *testing.T) {
	d := Dashboard{ID: uuid.New(), OwnerUserID: uuid.New()}
	store := &fakeStore{shares: map[uuid.UUID]Share{}}
	_, err := AccessLevelFor(context.Background(), store, nil, d, uuid.New(), time.Now())
	require.ErrorIs(t, err, ErrNoAccess)
}

func TestAccessLevel_CanWrite(t *testing.T) {
	require.True(t, AccessOwner.CanWrite())
	require.True(t, AccessAdmin.CanWrite())
	require.True(t, AccessEdit.CanWrite())
	require.False(t, AccessRead.CanWrite())
}

func TestShare_Expired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	s := Share{ExpiresAt: &past}
	require.True(t, s.Expired(time.Now()))

	future := time.Now().Add(time.Hour)
	s2 := Share{ExpiresAt: &future}
	require.False(t, s2.Expired(time.Now()))

	s3 := Share{}
	require.False(t, s3.Expired(time.Now()))
}

func TestAssignReportIDs_SetsDashboardIDAndPosition(t *testing.T) {
	dashboardID := uuid.New()
	existing := uuid.New()
	reports := []Report{{Name: "a"}, {ID: existing, Name: "b"}}
	out := assignReportIDs(reports, dashboardID)

	require.NotEqual(t, uuid.Nil, out[0].ID)
	require.Equal(t, existing, out[1].ID)
	require.Equal(t, dashboardID, out[0].DashboardID)
	require.Equal(t, 0, out[0].Position)
	require.Equal(t, 1, out[1].Position)
}

func TestVersionsToPrune_PrunesNothingWhenUnderCap(t *testing.T) {
	versions := make([]DashboardVersion, 10)
	for i := range versions {
		versions[i] = DashboardVersion{ID: uuid.New(), VersionNumber: i + 1}
	}
	require.Empty(t, versionsToPrune(versions))
}

func TestVersionsToPrune_PrunesOldestFIFOBeyondCap(t *testing.T) {
	versions := make([]DashboardVersion, VersionCap+3)
	for i := range versions {
		versions[i] = DashboardVersion{ID: uuid.New(), VersionNumber: i + 1}
	}
	prune := versionsToPrune(versions)
	require.Len(t, prune, 3)
	require.Equal(t, versions[0].ID, prune[0])
	require.Equal(t, versions[1].ID, prune[1])
	require.Equal(t, versions[2].ID, prune[2])
}
