package conversation_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xmtplabs/convos-core/internal/conversation"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/eventbus"
	"github.com/xmtplabs/convos-core/internal/port"
)

type fakeClient struct {
	addMemberPolicy model.AddMemberPolicy
	inviteTag       string
	syncCount       int
}

func (c *fakeClient) ClientId() model.ClientId { return "c1" }
func (c *fakeClient) InboxId() model.InboxId   { return "i1" }
func (c *fakeClient) StreamConversations(ctx context.Context, onSubscribed func()) error {
	return nil
}
func (c *fakeClient) StreamMessages(ctx context.Context, onSubscribed func()) error { return nil }
func (c *fakeClient) SyncAllConversations(ctx context.Context) error                { return nil }
func (c *fakeClient) UpdateAddMemberPolicy(ctx context.Context, id model.ConversationId, policy model.AddMemberPolicy) error {
	c.addMemberPolicy = policy
	return nil
}
func (c *fakeClient) RotateInviteTag(ctx context.Context, id model.ConversationId) (string, error) {
	c.inviteTag = "tag-2"
	return c.inviteTag, nil
}
func (c *fakeClient) Sync(ctx context.Context, id model.ConversationId) error {
	c.syncCount++
	return nil
}

type fakeRepo struct {
	byId  map[model.ConversationId]model.ConversationMetadata
	roles map[model.ConversationId]map[model.InboxId]model.MemberRole
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byId:  make(map[model.ConversationId]model.ConversationMetadata),
		roles: make(map[model.ConversationId]map[model.InboxId]model.MemberRole),
	}
}

func (r *fakeRepo) Fetch(ctx context.Context, id model.ConversationId) (model.ConversationMetadata, bool, error) {
	m, ok := r.byId[id]
	return m, ok, nil
}

func (r *fakeRepo) DetailedQuery(ctx context.Context, filter port.ConversationFilter) ([]model.ConversationMetadata, error) {
	return nil, nil
}

func (r *fakeRepo) Save(ctx context.Context, meta model.ConversationMetadata) error {
	r.byId[meta.ConversationId] = meta
	return nil
}

func (r *fakeRepo) MemberRole(ctx context.Context, id model.ConversationId, inboxId model.InboxId) (model.MemberRole, bool, error) {
	roles, ok := r.roles[id]
	if !ok {
		return 0, false, nil
	}
	role, ok := roles[inboxId]
	return role, ok, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLockConversationIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	repo.byId["conv1"] = model.ConversationMetadata{ConversationId: "conv1"}
	bus := eventbus.New(testLogger())
	defer bus.Close()
	w, err := conversation.New(testLogger(), repo, bus, 16)
	require.NoError(t, err)

	client := &fakeClient{}
	require.NoError(t, w.LockConversation(context.Background(), client, "conv1"))
	require.Equal(t, model.AddMemberDeny, client.addMemberPolicy)
	require.True(t, repo.byId["conv1"].IsLocked)

	// idempotent: second lock should not rotate the tag again.
	client.inviteTag = ""
	require.NoError(t, w.LockConversation(context.Background(), client, "conv1"))
	require.Empty(t, client.inviteTag)
}

func TestProcessExplodeSettingsFromSelf(t *testing.T) {
	repo := newFakeRepo()
	bus := eventbus.New(testLogger())
	defer bus.Close()
	w, err := conversation.New(testLogger(), repo, bus, 16)
	require.NoError(t, err)

	result, err := w.ProcessExplodeSettings(context.Background(), "conv1", "i1", "i1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, model.ExplodeFromSelf, result.Outcome)
}

func TestProcessExplodeSettingsUnauthorizedBelowAdmin(t *testing.T) {
	repo := newFakeRepo()
	repo.byId["conv1"] = model.ConversationMetadata{ConversationId: "conv1"}
	repo.roles["conv1"] = map[model.InboxId]model.MemberRole{"sender": model.RoleMember}
	bus := eventbus.New(testLogger())
	defer bus.Close()
	w, err := conversation.New(testLogger(), repo, bus, 16)
	require.NoError(t, err)

	result, err := w.ProcessExplodeSettings(context.Background(), "conv1", "sender", "current", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, model.ExplodeUnauthorized, result.Outcome)
}

func TestProcessExplodeSettingsScheduledForFutureExpiry(t *testing.T) {
	repo := newFakeRepo()
	repo.byId["conv1"] = model.ConversationMetadata{ConversationId: "conv1"}
	repo.roles["conv1"] = map[model.InboxId]model.MemberRole{"sender": model.RoleAdmin}
	bus := eventbus.New(testLogger())
	defer bus.Close()
	w, err := conversation.New(testLogger(), repo, bus, 16)
	require.NoError(t, err)

	expiresAt := time.Now().Add(2 * time.Hour)
	result, err := w.ProcessExplodeSettings(context.Background(), "conv1", "sender", "current", expiresAt)
	require.NoError(t, err)
	require.Equal(t, model.ExplodeScheduled, result.Outcome)
	require.NotNil(t, repo.byId["conv1"].ExpiresAt)
}

func TestProcessExplodeSettingsAlreadyExpiredWhenMissing(t *testing.T) {
	repo := newFakeRepo()
	bus := eventbus.New(testLogger())
	defer bus.Close()
	w, err := conversation.New(testLogger(), repo, bus, 16)
	require.NoError(t, err)

	result, err := w.ProcessExplodeSettings(context.Background(), "missing", "sender", "current", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, model.ExplodeAlreadyExpired, result.Outcome)
}
