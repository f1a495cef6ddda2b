package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmitry/taskvault/internal/crypto"
	"github.com/rdmitry/taskvault/models"
)

func testCipher(t *testing.T) crypto.Cipher {
	t.Helper()
	salt, err := crypto.GenerateSalt()
	require.NoError(t, err)
	return crypto.NewCipher("test-passphrase", salt)
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	blobs := NewMemory()
	s := NewSnapshotStore(blobs, testCipher(t))
	ctx := context.Background()

	rec := models.NewRecord("почта ✉️")
	snap := models.Snapshot{
		Version:  models.SchemaVersion,
		LastSync: time.Now().UTC().Truncate(time.Second),
		Records:  []models.Record{rec},
		Settings: map[string]string{"theme": "dark"},
	}

	require.NoError(t, s.Save(ctx, snap))

	// At rest the blob must not contain the plaintext record.
	atRest, err := blobs.GetBlob(ctx, KeySnapshot)
	require.NoError(t, err)
	assert.NotContains(t, string(atRest), "почта")

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Version, got.Version)
	require.Len(t, got.Records, 1)
	assert.True(t, rec.Equal(got.Records[0]))
	assert.Equal(t, "dark", got.Settings["theme"])
}

func TestSnapshotStore_Load_Empty(t *testing.T) {
	s := NewSnapshotStore(NewMemory(), testCipher(t))

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SchemaVersion, snap.Version)
	assert.Empty(t, snap.Records)
}

func TestSnapshotStore_Load_WrongKey(t *testing.T) {
	blobs := NewMemory()
	require.NoError(t, NewSnapshotStore(blobs, testCipher(t)).Save(context.Background(), models.EmptySnapshot()))

	// A different passphrase cannot open the cached blob.
	_, err := NewSnapshotStore(blobs, testCipher(t)).Load(context.Background())
	require.Error(t, err)
}

func TestStateCache_RoundTrip(t *testing.T) {
	c := NewStateCache(NewMemory())
	ctx := context.Background()

	_, ok := c.Load(ctx)
	assert.False(t, ok)

	state := models.SyncState{
		Status:        models.StatusSuccess,
		LastSyncTime:  time.Now().UTC().Truncate(time.Second),
		ConflictCount: 2,
	}
	require.NoError(t, c.Save(ctx, state))

	got, ok := c.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, state, got)
}
