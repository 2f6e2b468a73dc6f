package explosion_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xmtplabs/convos-core/internal/domain/event"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/eventbus"
	"github.com/xmtplabs/convos-core/internal/explosion"
	"github.com/xmtplabs/convos-core/internal/port"
)

type fakeNotifier struct {
	mu    sync.Mutex
	added []port.NotificationRequest
}

func (n *fakeNotifier) Add(ctx context.Context, req port.NotificationRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.added = append(n.added, req)
	return nil
}

func (n *fakeNotifier) Remove(ctx context.Context, identifiers ...string) error { return nil }

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.added)
}

type fakeConvRepo struct {
	mu    sync.Mutex
	convs map[model.ConversationId]model.ConversationMetadata
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{convs: make(map[model.ConversationId]model.ConversationMetadata)}
}

func (r *fakeConvRepo) Fetch(ctx context.Context, id model.ConversationId) (model.ConversationMetadata, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	return c, ok, nil
}

func (r *fakeConvRepo) DetailedQuery(ctx context.Context, filter port.ConversationFilter) ([]model.ConversationMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ConversationMetadata
	for _, c := range r.convs {
		if filter.HasExpiresAt != nil && (*filter.HasExpiresAt) != (c.ExpiresAt != nil) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeConvRepo) Save(ctx context.Context, meta model.ConversationMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[meta.ConversationId] = meta
	return nil
}

func (r *fakeConvRepo) MemberRole(ctx context.Context, id model.ConversationId, memberInboxId model.InboxId) (model.MemberRole, bool, error) {
	return 0, false, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScheduleArmsReminderAndExplosionAlarms(t *testing.T) {
	bus := eventbus.New(testLogger())
	defer bus.Close()
	notifier := &fakeNotifier{}
	repo := newFakeConvRepo()

	m, err := explosion.New(testLogger(), notifier, repo, bus, time.Hour)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Schedule(context.Background(), model.ConversationId("c1"), time.Now().Add(2*time.Hour)))
	require.True(t, m.HasJobs("c1"))
}

func TestConversationExpiredEventCancelsArmedAlarms(t *testing.T) {
	bus := eventbus.New(testLogger())
	defer bus.Close()
	notifier := &fakeNotifier{}
	repo := newFakeConvRepo()

	m, err := explosion.New(testLogger(), notifier, repo, bus, time.Hour)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	id := model.ConversationId("c1")
	require.NoError(t, m.Schedule(ctx, id, time.Now().Add(2*time.Hour)))

	require.NoError(t, bus.Publish(ctx, event.NewExpiredEvent(id)))

	require.Eventually(t, func() bool {
		return !m.HasJobs(id)
	}, time.Second, 10*time.Millisecond)
}

func TestScheduledExplosionEventArmsAlarmFromAnotherComponent(t *testing.T) {
	bus := eventbus.New(testLogger())
	defer bus.Close()
	notifier := &fakeNotifier{}
	repo := newFakeConvRepo()

	m, err := explosion.New(testLogger(), notifier, repo, bus, time.Hour)
	require.NoError(t, err)
	defer m.Close()

	id := model.ConversationId("c1")
	expiresAt := time.Now().Add(2 * time.Hour)
	require.NoError(t, bus.Publish(context.Background(), event.NewScheduledExplosionEvent(id, expiresAt)))

	require.Eventually(t, func() bool {
		return m.HasJobs(id)
	}, time.Second, 10*time.Millisecond)
}

func TestRescheduleAllRearmsFutureExpiries(t *testing.T) {
	bus := eventbus.New(testLogger())
	defer bus.Close()
	notifier := &fakeNotifier{}
	repo := newFakeConvRepo()

	future := time.Now().Add(3 * time.Hour)
	require.NoError(t, repo.Save(context.Background(), model.ConversationMetadata{
		ConversationId: "c1",
		ExpiresAt:      &future,
	}))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Save(context.Background(), model.ConversationMetadata{
		ConversationId: "c2",
		ExpiresAt:      &past,
	}))

	m, err := explosion.New(testLogger(), notifier, repo, bus, time.Hour)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.RescheduleAll(context.Background()))
	require.True(t, m.HasJobs("c1"))
	require.False(t, m.HasJobs("c2"))
}
