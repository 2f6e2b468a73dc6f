package session_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/lifecycle"
	"github.com/xmtplabs/convos-core/internal/port"
	"github.com/xmtplabs/convos-core/internal/session"
	"github.com/xmtplabs/convos-core/internal/unusedcache"
)

type fakeHandle struct {
	clientId model.ClientId
	inboxId  model.InboxId
}

func (h *fakeHandle) ClientId() model.ClientId { return h.clientId }
func (h *fakeHandle) InboxId() model.InboxId   { return h.inboxId }
func (h *fakeHandle) StreamConversations(ctx context.Context, onSubscribed func()) error {
	onSubscribed()
	<-ctx.Done()
	return nil
}
func (h *fakeHandle) StreamMessages(ctx context.Context, onSubscribed func()) error {
	onSubscribed()
	<-ctx.Done()
	return nil
}
func (h *fakeHandle) SyncAllConversations(ctx context.Context) error { return nil }
func (h *fakeHandle) UpdateAddMemberPolicy(ctx context.Context, id model.ConversationId, policy model.AddMemberPolicy) error {
	return nil
}
func (h *fakeHandle) RotateInviteTag(ctx context.Context, id model.ConversationId) (string, error) {
	return "", nil
}
func (h *fakeHandle) Sync(ctx context.Context, id model.ConversationId) error { return nil }

type fakeBackend struct{}

func (fakeBackend) CreateIdentity(ctx context.Context) (model.InboxId, error) {
	return "inbox-new", nil
}
func (fakeBackend) OpenClient(ctx context.Context, clientId model.ClientId, key []byte, dir string) (port.ClientHandle, error) {
	return &fakeHandle{clientId: clientId, inboxId: model.InboxId("inbox-for-" + string(clientId))}, nil
}

type fakeIdentityStore struct{}

func (fakeIdentityStore) GenerateKeys(ctx context.Context) (port.KeyPair, error) {
	return port.KeyPair{}, nil
}
func (fakeIdentityStore) Save(ctx context.Context, inboxId model.InboxId, clientId model.ClientId, keys port.KeyPair) error {
	return nil
}
func (fakeIdentityStore) Load(ctx context.Context, clientId model.ClientId) (port.KeyPair, error) {
	return port.KeyPair{}, nil
}
func (fakeIdentityStore) Delete(ctx context.Context, clientId model.ClientId) error { return nil }

type fakeActivityRepo struct{}

func (fakeActivityRepo) All(ctx context.Context) ([]model.InboxActivity, error) { return nil, nil }
func (fakeActivityRepo) For(ctx context.Context, clientId model.ClientId) (model.InboxActivity, error) {
	return model.InboxActivity{}, nil
}
func (fakeActivityRepo) Top(ctx context.Context, n int) ([]model.InboxActivity, error) {
	return nil, nil
}
func (fakeActivityRepo) LeastActive(ctx context.Context, excluding []model.ClientId) (model.InboxActivity, bool, error) {
	return model.InboxActivity{}, false, nil
}

type fakePendingRepo struct{}

func (fakePendingRepo) PendingInvites(ctx context.Context) ([]model.PendingInviteInfo, error) {
	return nil, nil
}
func (fakePendingRepo) HasPendingInvites(ctx context.Context, clientId model.ClientId) (bool, error) {
	return false, nil
}
func (fakePendingRepo) StalePendingInviteClientIds(ctx context.Context, olderThan time.Duration) ([]model.ClientId, error) {
	return nil, nil
}

type fakeKeychain struct{ values map[string]port.UnusedInboxMarker }

func newFakeKeychain() *fakeKeychain { return &fakeKeychain{values: map[string]port.UnusedInboxMarker{}} }
func (k *fakeKeychain) Get(ctx context.Context, key string) (port.UnusedInboxMarker, bool, error) {
	v, ok := k.values[key]
	return v, ok, nil
}
func (k *fakeKeychain) Set(ctx context.Context, key string, marker port.UnusedInboxMarker) error {
	k.values[key] = marker
	return nil
}
func (k *fakeKeychain) Delete(ctx context.Context, key string) error {
	delete(k.values, key)
	return nil
}

type fakeLocator struct {
	clientId model.ClientId
	inboxId  model.InboxId
}

func (l fakeLocator) OwningInbox(ctx context.Context, conversationId model.ConversationId) (model.ClientId, model.InboxId, error) {
	return l.clientId, l.inboxId, nil
}

type fakeStore struct{ deleted []model.ClientId }

func (s *fakeStore) DeleteAllRows(ctx context.Context, clientId model.ClientId) error {
	s.deleted = append(s.deleted, clientId)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestLifecycle(t *testing.T) *lifecycle.Manager {
	t.Helper()
	backend := fakeBackend{}
	cache := unusedcache.New(testLogger(), backend, newFakeKeychain(), fakeIdentityStore{})
	return lifecycle.New(testLogger(), backend, fakeIdentityStore{}, fakeActivityRepo{}, fakePendingRepo{}, cache, t.TempDir(), nil)
}

func TestWakeInboxForNotificationWakesOwningInbox(t *testing.T) {
	lc := newTestLifecycle(t)
	locator := fakeLocator{clientId: "c1", inboxId: "i1"}
	s := session.New(lc, locator)

	entry, err := s.WakeInboxForNotification(context.Background(), "conv1")
	require.NoError(t, err)
	require.Equal(t, model.ClientId("c1"), entry.ClientId)
	require.True(t, lc.IsAwake("c1"))
}

func TestShouldDisplayNotificationSuppressesOnlyForActiveInbox(t *testing.T) {
	lc := newTestLifecycle(t)
	locator := fakeLocator{clientId: "c1", inboxId: "i1"}
	s := session.New(lc, locator)

	show, err := s.ShouldDisplayNotification(context.Background(), "conv1")
	require.NoError(t, err)
	require.True(t, show, "no active client: always display")

	active := model.ClientId("c2")
	lc.SetActiveClientId(&active)
	show, err = s.ShouldDisplayNotification(context.Background(), "conv1")
	require.NoError(t, err)
	require.True(t, show, "different active inbox: still display")

	active = "c1"
	lc.SetActiveClientId(&active)
	show, err = s.ShouldDisplayNotification(context.Background(), "conv1")
	require.NoError(t, err)
	require.False(t, show, "same active inbox: suppress")
}

func TestDeleteInboxForceRemovesAndClearsRows(t *testing.T) {
	lc := newTestLifecycle(t)
	locator := fakeLocator{clientId: "c1", inboxId: "i1"}
	s := session.New(lc, locator)
	_, err := lc.Wake(context.Background(), "c1", "i1", model.ReasonUserInteraction)
	require.NoError(t, err)

	store := &fakeStore{}
	require.NoError(t, s.DeleteInbox(context.Background(), "c1", store))
	require.False(t, lc.IsAwake("c1"))
	require.Equal(t, []model.ClientId{"c1"}, store.deleted)
}
