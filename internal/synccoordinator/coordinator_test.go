package synccoordinator_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/synccoordinator"
)

type fakeClient struct {
	clientId     model.ClientId
	inboxId      model.InboxId
	bulkSyncHits atomic.Int32
	bulkSyncErr  error
}

func (f *fakeClient) ClientId() model.ClientId { return f.clientId }
func (f *fakeClient) InboxId() model.InboxId   { return f.inboxId }

func (f *fakeClient) StreamConversations(ctx context.Context, onSubscribed func()) error {
	onSubscribed()
	<-ctx.Done()
	return nil
}

func (f *fakeClient) StreamMessages(ctx context.Context, onSubscribed func()) error {
	onSubscribed()
	<-ctx.Done()
	return nil
}

func (f *fakeClient) SyncAllConversations(ctx context.Context) error {
	f.bulkSyncHits.Add(1)
	return f.bulkSyncErr
}

func (f *fakeClient) UpdateAddMemberPolicy(ctx context.Context, id model.ConversationId, policy model.AddMemberPolicy) error {
	return nil
}
func (f *fakeClient) RotateInviteTag(ctx context.Context, id model.ConversationId) (string, error) {
	return "tag", nil
}
func (f *fakeClient) Sync(ctx context.Context, id model.ConversationId) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitForState(t *testing.T, c *synccoordinator.Coordinator, want synccoordinator.State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if c.State() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for state %s, currently %s", want, c.State())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestStartReachesReadyExactlyOnceAndBulkSyncRunsOnce(t *testing.T) {
	c := synccoordinator.New(testLogger())
	defer c.Close()

	client := &fakeClient{clientId: "c1", inboxId: "i1"}
	require.NoError(t, c.Start(context.Background(), client))
	waitForState(t, c, synccoordinator.Ready)
	require.True(t, c.IsSyncReady())
	require.Equal(t, int32(1), client.bulkSyncHits.Load())

	// Idempotent start for the same client: no duplicate bulk sync.
	require.NoError(t, c.Start(context.Background(), client))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), client.bulkSyncHits.Load())
	require.Equal(t, synccoordinator.Ready, c.State())
}

func TestStopReachesIdleBeforeReturning(t *testing.T) {
	c := synccoordinator.New(testLogger())
	defer c.Close()

	client := &fakeClient{clientId: "c1", inboxId: "i1"}
	require.NoError(t, c.Start(context.Background(), client))
	waitForState(t, c, synccoordinator.Ready)

	c.Stop()
	require.Equal(t, synccoordinator.Idle, c.State())
	require.False(t, c.IsSyncReady())
}

func TestStopThenStartCallsSyncAllConversationsExactlyOnce(t *testing.T) {
	c := synccoordinator.New(testLogger())
	defer c.Close()

	client := &fakeClient{clientId: "c1", inboxId: "i1"}
	require.NoError(t, c.Start(context.Background(), client))
	waitForState(t, c, synccoordinator.Ready)
	c.Stop()
	require.Equal(t, int32(1), client.bulkSyncHits.Load())

	require.NoError(t, c.Start(context.Background(), client))
	waitForState(t, c, synccoordinator.Ready)
	require.Equal(t, int32(2), client.bulkSyncHits.Load())
}

func TestPauseDoesNotRerunBulkSyncOnResume(t *testing.T) {
	c := synccoordinator.New(testLogger())
	defer c.Close()

	client := &fakeClient{clientId: "c1", inboxId: "i1"}
	require.NoError(t, c.Start(context.Background(), client))
	waitForState(t, c, synccoordinator.Ready)

	c.Pause()
	waitForState(t, c, synccoordinator.Paused)
	require.False(t, c.IsSyncReady())

	c.Resume()
	waitForState(t, c, synccoordinator.Ready)
	require.Equal(t, int32(1), client.bulkSyncHits.Load())
}

func TestIsSyncReadyFalseBeforeFirstReady(t *testing.T) {
	c := synccoordinator.New(testLogger())
	defer c.Close()
	require.False(t, c.IsSyncReady())
	require.Equal(t, synccoordinator.Idle, c.State())
}
