package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/driver-agent/pkg/models"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func testSession() *models.RideSession {
	accepted := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return &models.RideSession{
		RequestID:   "req-100",
		Status:      models.StatusEnRouteToPickup,
		OTPExpected: "4821",
		Pickup: models.Place{
			Description: "Ashgabat Mall",
			Coordinates: models.Coordinates{Lat: 37.95, Lon: 58.38},
		},
		Drop: models.Place{
			Description: "Airport",
			Coordinates: models.Coordinates{Lat: 37.98, Lon: 58.36},
		},
		DriverID:   "driver-1",
		AcceptedAt: &accepted,
	}
}

func TestFileStoreSessionRoundTrip(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, testSession()))

	loaded, err := s.LoadSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "req-100", loaded.RequestID)
	assert.Equal(t, models.StatusEnRouteToPickup, loaded.Status)
	assert.Equal(t, "4821", loaded.OTPExpected)
	assert.Equal(t, 37.95, loaded.Pickup.Coordinates.Lat)
	require.NotNil(t, loaded.AcceptedAt)
}

func TestFileStoreLoadSessionEmpty(t *testing.T) {
	s := newTestFileStore(t)

	loaded, err := s.LoadSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileStoreFlagsRoundTrip(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	flags, err := s.LoadFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Flags{}, flags)

	require.NoError(t, s.SaveFlags(ctx, models.Flags{OTP: "4821", RideStarted: true}))

	flags, err = s.LoadFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, "4821", flags.OTP)
	assert.True(t, flags.RideStarted)
	assert.False(t, flags.RideCompleted)
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	session := testSession()
	require.NoError(t, s.SaveSession(ctx, session))

	session.Status = models.StatusInProgress
	require.NoError(t, s.SaveSession(ctx, session))

	loaded, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, loaded.Status)
}

func TestFileStoreClear(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, testSession()))
	require.NoError(t, s.SaveFlags(ctx, models.Flags{OTP: "4821"}))

	require.NoError(t, s.Clear(ctx))

	loaded, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	flags, err := s.LoadFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Flags{}, flags)

	// Clearing an already-empty store is a no-op
	require.NoError(t, s.Clear(ctx))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, testSession()))
	require.NoError(t, s.SaveFlags(ctx, models.Flags{OTP: "4821"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Contains(t, []string{sessionFile, flagsFile}, entry.Name())
	}
}

func TestFileStoreCorruptRecordFailsLoud(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionFile), []byte("{not json"), 0o644))

	_, err = s.LoadSession(context.Background())
	require.Error(t, err)
}

func TestNewFileStoreCreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "agent", "state")
	_, err := NewFileStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
