package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rdmitry/taskvault/internal/crypto"
	"github.com/rdmitry/taskvault/internal/logger"
	"github.com/rdmitry/taskvault/internal/mock"
	"github.com/rdmitry/taskvault/internal/reconcile"
	"github.com/rdmitry/taskvault/internal/remote"
	"github.com/rdmitry/taskvault/internal/store"
	"github.com/rdmitry/taskvault/internal/tombstone"
	"github.com/rdmitry/taskvault/models"
)

const testObjectPath = "taskvault/dataset.json"

type protocolFixture struct {
	protocol  *Protocol
	client    *mock.MockClient
	snapshots *store.SnapshotStore
	tombs     *tombstone.Tracker
}

func newProtocolFixture(t *testing.T, ctrl *gomock.Controller, retryBudget int) *protocolFixture {
	t.Helper()

	blobs := store.NewMemory()
	salt, err := crypto.GenerateSalt()
	require.NoError(t, err)

	snapshots := store.NewSnapshotStore(blobs, crypto.NewCipher("test-passphrase", salt))
	tombs, err := tombstone.NewTracker(context.Background(), blobs, 7*24*time.Hour, logger.Nop())
	require.NoError(t, err)

	client := mock.NewMockClient(ctrl)
	protocol := NewProtocol(
		client,
		testObjectPath,
		snapshots,
		reconcile.NewEngine(time.Hour, logger.Nop()),
		tombs,
		retryBudget,
		time.Millisecond,
		logger.Nop(),
	)

	return &protocolFixture{protocol: protocol, client: client, snapshots: snapshots, tombs: tombs}
}

func recordAt(id, text string, at time.Time) models.Record {
	return models.Record{ID: id, Text: text, CreatedAt: at, UpdatedAt: at}
}

func snapshotWith(lastSync time.Time, records ...models.Record) models.Snapshot {
	return models.Snapshot{
		Version:  models.SchemaVersion,
		LastSync: lastSync,
		Records:  records,
	}
}

func encode(t *testing.T, snap models.Snapshot) []byte {
	t.Helper()
	content, err := remote.EncodeSnapshot(snap)
	require.NoError(t, err)
	return content
}

func TestProtocol_SyncOnce_MergesBothSides(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 3)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	localOnly := recordAt("local-1", "купить молоко", base)
	remoteOnly := recordAt("remote-1", "call the bank", base.Add(time.Minute))

	require.NoError(t, fx.snapshots.Save(ctx, snapshotWith(base, localOnly)))

	fx.client.EXPECT().
		Get(ctx, testObjectPath).
		Return(remote.Object{
			Content:      encode(t, snapshotWith(base, remoteOnly)),
			VersionToken: `"v1"`,
		}, nil)
	fx.client.EXPECT().
		Put(ctx, testObjectPath, gomock.Any(), `"v1"`).
		Return(`"v2"`, nil)

	result, err := fx.protocol.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Empty(t, result.Conflicts)

	require.Len(t, result.Merged.Records, 2)
	assert.Equal(t, "local-1", result.Merged.Records[0].ID)
	assert.Equal(t, "remote-1", result.Merged.Records[1].ID)

	cached, err := fx.snapshots.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.Merged.Records, cached.Records)
	assert.True(t, cached.LastSync.Equal(result.Merged.LastSync))
}

func TestProtocol_SyncOnce_MissingRemoteObject(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 3)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	rec := recordAt("only-local", "first sync ever", base)
	require.NoError(t, fx.snapshots.Save(ctx, snapshotWith(base, rec)))

	fx.client.EXPECT().Get(ctx, testObjectPath).Return(remote.Object{}, remote.ErrNotFound)
	// An absent object means an unconditional write: no token to match.
	fx.client.EXPECT().
		Put(ctx, testObjectPath, gomock.Any(), "").
		Return(`"v1"`, nil)

	result, err := fx.protocol.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	require.Len(t, result.Merged.Records, 1)
	assert.Equal(t, "only-local", result.Merged.Records[0].ID)
}

func TestProtocol_SyncOnce_StaleTokenRerunsWholeCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 3)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, fx.snapshots.Save(ctx, snapshotWith(base, recordAt("a", "ours", base))))

	interloper := recordAt("b", "theirs", base.Add(time.Minute))

	gomock.InOrder(
		fx.client.EXPECT().
			Get(ctx, testObjectPath).
			Return(remote.Object{Content: encode(t, snapshotWith(base)), VersionToken: `"v1"`}, nil),
		fx.client.EXPECT().
			Put(ctx, testObjectPath, gomock.Any(), `"v1"`).
			Return("", remote.ErrVersionConflict),
		// The retry re-fetches and sees what the other replica wrote.
		fx.client.EXPECT().
			Get(ctx, testObjectPath).
			Return(remote.Object{Content: encode(t, snapshotWith(base, interloper)), VersionToken: `"v2"`}, nil),
		fx.client.EXPECT().
			Put(ctx, testObjectPath, gomock.Any(), `"v2"`).
			Return(`"v3"`, nil),
	)

	result, err := fx.protocol.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)

	got := make([]string, 0, len(result.Merged.Records))
	for _, rec := range result.Merged.Records {
		got = append(got, rec.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, got)
}

func TestProtocol_SyncOnce_RetryBudgetExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 2)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, fx.snapshots.Save(ctx, snapshotWith(base, recordAt("a", "ours", base))))

	fx.client.EXPECT().
		Get(ctx, testObjectPath).
		Return(remote.Object{Content: encode(t, snapshotWith(base)), VersionToken: `"v1"`}, nil).
		Times(2)
	fx.client.EXPECT().
		Put(ctx, testObjectPath, gomock.Any(), `"v1"`).
		Return("", remote.ErrVersionConflict).
		Times(2)

	_, err := fx.protocol.SyncOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.ErrorIs(t, err, remote.ErrVersionConflict)
}

func TestProtocol_SyncOnce_ConflictStopsBeforeWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 3)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	local := recordAt("same-id", "version A", base)
	remoteRec := recordAt("same-id", "version B", base.Add(time.Minute))

	localSnap := snapshotWith(base, local)
	require.NoError(t, fx.snapshots.Save(ctx, localSnap))

	// No Put expectation: a conflicted cycle must not touch the remote
	// object.
	fx.client.EXPECT().
		Get(ctx, testObjectPath).
		Return(remote.Object{Content: encode(t, snapshotWith(base, remoteRec)), VersionToken: `"v1"`}, nil)

	result, err := fx.protocol.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, result.Outcome)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "same-id", result.Conflicts[0].ID)

	cached, err := fx.snapshots.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, localSnap, cached, "local cache must stay untouched on conflict")
}

func TestProtocol_SyncOnce_UndecodableRemoteRecoversFromCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 3)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	rec := recordAt("survivor", "still here", base)
	require.NoError(t, fx.snapshots.Save(ctx, snapshotWith(base, rec)))

	fx.client.EXPECT().
		Get(ctx, testObjectPath).
		Return(remote.Object{Content: []byte("{not json"), VersionToken: `"v9"`}, nil)
	// The fetched token is kept so the write repairs the broken object.
	fx.client.EXPECT().
		Put(ctx, testObjectPath, gomock.Any(), `"v9"`).
		Return(`"v10"`, nil)

	result, err := fx.protocol.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	require.Len(t, result.Merged.Records, 1)
	assert.Equal(t, "survivor", result.Merged.Records[0].ID)
}

func TestProtocol_SyncOnce_TombstoneSuppressesRemoteCopy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 3)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	deleted := recordAt("gone", "deleted locally", base)

	require.NoError(t, fx.snapshots.Save(ctx, snapshotWith(base)))
	require.NoError(t, fx.tombs.MarkDeleted(ctx, deleted.ID))

	fx.client.EXPECT().
		Get(ctx, testObjectPath).
		Return(remote.Object{Content: encode(t, snapshotWith(base, deleted)), VersionToken: `"v1"`}, nil)
	fx.client.EXPECT().
		Put(ctx, testObjectPath, gomock.Any(), `"v1"`).
		Return(`"v2"`, nil)

	result, err := fx.protocol.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Merged.Records, "tombstoned id must not resurrect from the remote side")
}

func TestProtocol_ResolveConflicts_WritesBothStores(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 3)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	local := recordAt("same-id", "version A", base)
	remoteRec := recordAt("same-id", "version B", base.Add(time.Minute))
	require.NoError(t, fx.snapshots.Save(ctx, snapshotWith(base, local)))

	var written []byte
	fx.client.EXPECT().
		Get(ctx, testObjectPath).
		Return(remote.Object{Content: encode(t, snapshotWith(base, remoteRec)), VersionToken: `"v1"`}, nil)
	fx.client.EXPECT().
		Put(ctx, testObjectPath, gomock.Any(), `"v1"`).
		DoAndReturn(func(_ context.Context, _ string, content []byte, _ string) (string, error) {
			written = content
			return `"v2"`, nil
		})

	conflicts := []models.Conflict{reconcile.Describe(local, remoteRec)}
	err := fx.protocol.ResolveConflicts(ctx, conflicts, []models.ResolutionChoice{models.ResolutionRemote})
	require.NoError(t, err)

	cached, err := fx.snapshots.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cached.Records, 1)
	assert.Equal(t, "version B", cached.Records[0].Text)

	pushed, err := remote.DecodeSnapshot(written)
	require.NoError(t, err)
	require.Len(t, pushed.Records, 1)
	assert.Equal(t, "version B", pushed.Records[0].Text)
}

func TestProtocol_ResolveConflicts_KeepLocalConverges(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 3)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	local := recordAt("same-id", "version A", base)
	remoteRec := recordAt("same-id", "version B", base.Add(time.Minute))
	require.NoError(t, fx.snapshots.Save(ctx, snapshotWith(base, local)))

	remoteContent := encode(t, snapshotWith(base, remoteRec))
	var resolvedContent []byte

	gomock.InOrder(
		fx.client.EXPECT().
			Get(ctx, testObjectPath).
			Return(remote.Object{Content: remoteContent, VersionToken: `"v1"`}, nil),
		fx.client.EXPECT().
			Get(ctx, testObjectPath).
			Return(remote.Object{Content: remoteContent, VersionToken: `"v1"`}, nil),
		fx.client.EXPECT().
			Put(ctx, testObjectPath, gomock.Any(), `"v1"`).
			DoAndReturn(func(_ context.Context, _ string, content []byte, _ string) (string, error) {
				resolvedContent = content
				return `"v2"`, nil
			}),
		fx.client.EXPECT().
			Get(ctx, testObjectPath).
			DoAndReturn(func(context.Context, string) (remote.Object, error) {
				return remote.Object{Content: resolvedContent, VersionToken: `"v2"`}, nil
			}),
		fx.client.EXPECT().
			Put(ctx, testObjectPath, gomock.Any(), `"v2"`).
			Return(`"v3"`, nil),
	)

	result, err := fx.protocol.SyncOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomeConflict, result.Outcome)
	require.Len(t, result.Conflicts, 1)

	err = fx.protocol.ResolveConflicts(ctx, result.Conflicts, []models.ResolutionChoice{models.ResolutionLocal})
	require.NoError(t, err)

	// The cycle after a keep-local resolution must not re-detect the
	// settled conflict against the updated remote object.
	result, err = fx.protocol.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Empty(t, result.Conflicts)
	require.Len(t, result.Merged.Records, 1)
	assert.Equal(t, "version A", result.Merged.Records[0].Text)
}

func TestProtocol_ResolveConflicts_StaleTokenReruns(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 3)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	local := recordAt("same-id", "version A", base)
	remoteRec := recordAt("same-id", "version B", base.Add(time.Minute))
	require.NoError(t, fx.snapshots.Save(ctx, snapshotWith(base, local)))

	remoteContent := encode(t, snapshotWith(base, remoteRec))

	gomock.InOrder(
		fx.client.EXPECT().
			Get(ctx, testObjectPath).
			Return(remote.Object{Content: remoteContent, VersionToken: `"v1"`}, nil),
		fx.client.EXPECT().
			Put(ctx, testObjectPath, gomock.Any(), `"v1"`).
			Return("", remote.ErrVersionConflict),
		fx.client.EXPECT().
			Get(ctx, testObjectPath).
			Return(remote.Object{Content: remoteContent, VersionToken: `"v2"`}, nil),
		fx.client.EXPECT().
			Put(ctx, testObjectPath, gomock.Any(), `"v2"`).
			Return(`"v3"`, nil),
	)

	conflicts := []models.Conflict{reconcile.Describe(local, remoteRec)}
	err := fx.protocol.ResolveConflicts(ctx, conflicts, []models.ResolutionChoice{models.ResolutionLocal})
	require.NoError(t, err)

	cached, err := fx.snapshots.Load(ctx)
	require.NoError(t, err)
	require.Len(t, cached.Records, 1)
	assert.Equal(t, "version A", cached.Records[0].Text)
}

func TestProtocol_ResolveConflicts_NewConflictAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 3)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	localX := recordAt("x", "x local", base)
	localY := recordAt("y", "y original", base)
	remoteX := recordAt("x", "x remote", base.Add(time.Minute))
	remoteY := recordAt("y", "y changed meanwhile", base.Add(time.Minute))
	require.NoError(t, fx.snapshots.Save(ctx, snapshotWith(base, localX, localY)))

	// No Put expectation: choices covering only x must not settle the
	// newly conflicted y behind the user's back.
	fx.client.EXPECT().
		Get(ctx, testObjectPath).
		Return(remote.Object{Content: encode(t, snapshotWith(base, remoteX, remoteY)), VersionToken: `"v2"`}, nil)

	conflicts := []models.Conflict{reconcile.Describe(localX, remoteX)}
	err := fx.protocol.ResolveConflicts(ctx, conflicts, []models.ResolutionChoice{models.ResolutionLocal})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvedConflicts)
}

func TestProtocol_ResolveConflicts_ChoiceCountMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	fx := newProtocolFixture(t, ctrl, 3)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, fx.snapshots.Save(ctx, snapshotWith(base)))

	conflicts := []models.Conflict{
		reconcile.Describe(recordAt("x", "a", base), recordAt("x", "b", base)),
	}

	err := fx.protocol.ResolveConflicts(ctx, conflicts, nil)
	assert.ErrorIs(t, err, reconcile.ErrResolutionMismatch)
}
