package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xmtplabs/convos-core/internal/domain/model"
)

func seedActivity(t *testing.T, s *Store, clientId, inboxId string, lastActivity *time.Time, createdAt time.Time) {
	t.Helper()
	var lastUnix any
	if lastActivity != nil {
		lastUnix = lastActivity.Unix()
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO inbox_activity (client_id, inbox_id, last_activity_unix, created_at_unix) VALUES (?, ?, ?, ?)`,
		clientId, inboxId, lastUnix, createdAt.Unix())
	require.NoError(t, err)
}

func seedPendingInvite(t *testing.T, s *Store, clientId, inboxId, pendingIds string) {
	t.Helper()
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO pending_invite (client_id, inbox_id, pending_conversation_ids) VALUES (?, ?, ?)`,
		clientId, inboxId, pendingIds)
	require.NoError(t, err)
}

func TestActivityRepoAllReturnsEveryRow(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	now := time.Now()
	seedActivity(t, s, "c1", "i1", &now, now.Add(-time.Hour))
	seedActivity(t, s, "c2", "i2", nil, now)

	all, err := s.ActivityRepo().All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestActivityRepoLeastActiveExcludesGivenClients(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now().Add(-time.Minute)
	seedActivity(t, s, "c1", "i1", &old, old)
	seedActivity(t, s, "c2", "i2", &recent, recent)

	least, ok, err := s.ActivityRepo().LeastActive(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c1", string(least.ClientId))

	least2, ok, err := s.ActivityRepo().LeastActive(context.Background(), []model.ClientId{"c1"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c2", string(least2.ClientId))
}

func TestPendingInviteRepoHasPendingInvites(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	seedPendingInvite(t, s, "c1", "i1", "conv1,conv2")
	seedPendingInvite(t, s, "c2", "i2", "")

	has, err := s.PendingInviteRepo().HasPendingInvites(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, has)

	has, err = s.PendingInviteRepo().HasPendingInvites(context.Background(), "c2")
	require.NoError(t, err)
	require.False(t, has)
}
