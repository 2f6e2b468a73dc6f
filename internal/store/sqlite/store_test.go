package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/store/sqlite"
)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConversationRepoSaveThenFetchRoundTrips(t *testing.T) {
	s := openTestStore(t)
	repo := s.ConversationRepo()

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	meta := model.ConversationMetadata{
		ConversationId: "conv1",
		IsLocked:       true,
		InviteTag:      "tag-1",
		ExpiresAt:      &expires,
		Name:           "Friends",
	}
	require.NoError(t, repo.Save(context.Background(), meta))

	got, ok, err := repo.Fetch(context.Background(), "conv1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, meta.ConversationId, got.ConversationId)
	require.True(t, got.IsLocked)
	require.Equal(t, "tag-1", got.InviteTag)
	require.NotNil(t, got.ExpiresAt)
	require.True(t, got.ExpiresAt.Equal(expires))
}

func TestConversationRepoFetchMissingReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.ConversationRepo().Fetch(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConversationRepoSaveIsUpsert(t *testing.T) {
	s := openTestStore(t)
	repo := s.ConversationRepo()

	require.NoError(t, repo.Save(context.Background(), model.ConversationMetadata{ConversationId: "conv1", IsLocked: false}))
	require.NoError(t, repo.Save(context.Background(), model.ConversationMetadata{ConversationId: "conv1", IsLocked: true, InviteTag: "tag-2"}))

	got, ok, err := repo.Fetch(context.Background(), "conv1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.IsLocked)
	require.Equal(t, "tag-2", got.InviteTag)
}
