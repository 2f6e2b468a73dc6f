// Package sqlite backs the core's repository ports with a
// concrete local store, using modernc.org/sqlite's pure-Go driver so
// this module never needs cgo to run its own tests or a demo binary.
// Production inboxes keep their own per-client database file outside
// this core's scope; this package exists to exercise the repository
// contracts with something real.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/port"
)

// Store opens one sqlite database and exposes it as the three
// repository ports the core consumes: read-only activity and
// pending-invite views, and a read/write conversation view.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and migrates the schema at dsn, a
// modernc.org/sqlite data source name (e.g. "file:/path/to/inbox.db").
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ActivityRepo returns the InboxActivityRepo view over this store.
func (s *Store) ActivityRepo() port.InboxActivityRepo { return activityRepo{db: s.db} }

// PendingInviteRepo returns the PendingInviteRepo view over this store.
func (s *Store) PendingInviteRepo() port.PendingInviteRepo { return pendingInviteRepo{db: s.db} }

// ConversationRepo returns the ConversationRepo view over this store.
func (s *Store) ConversationRepo() port.ConversationRepo { return conversationRepo{db: s.db} }

type activityRepo struct{ db *sql.DB }

func (r activityRepo) All(ctx context.Context) ([]model.InboxActivity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT client_id, inbox_id, last_activity_unix, conversation_count, created_at_unix FROM inbox_activity`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query inbox_activity: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

func (r activityRepo) For(ctx context.Context, clientId model.ClientId) (model.InboxActivity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT client_id, inbox_id, last_activity_unix, conversation_count, created_at_unix FROM inbox_activity WHERE client_id = ?`, string(clientId))
	a, err := scanActivity(row)
	if err != nil {
		return model.InboxActivity{}, fmt.Errorf("sqlite: load activity for %s: %w", clientId, err)
	}
	return a, nil
}

func (r activityRepo) Top(ctx context.Context, n int) ([]model.InboxActivity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT client_id, inbox_id, last_activity_unix, conversation_count, created_at_unix FROM inbox_activity ORDER BY last_activity_unix DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query top activity: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

func (r activityRepo) LeastActive(ctx context.Context, excluding []model.ClientId) (model.InboxActivity, bool, error) {
	placeholders := make([]string, len(excluding))
	args := make([]any, len(excluding))
	for i, id := range excluding {
		placeholders[i] = "?"
		args[i] = string(id)
	}
	query := `SELECT client_id, inbox_id, last_activity_unix, conversation_count, created_at_unix FROM inbox_activity`
	if len(placeholders) > 0 {
		query += ` WHERE client_id NOT IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY last_activity_unix ASC LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, args...)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return model.InboxActivity{}, false, nil
	}
	if err != nil {
		return model.InboxActivity{}, false, fmt.Errorf("sqlite: least-active query: %w", err)
	}
	return a, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (model.InboxActivity, error) {
	var (
		clientId, inboxId string
		lastActivityUnix  sql.NullInt64
		conversationCount int
		createdAtUnix     int64
	)
	if err := row.Scan(&clientId, &inboxId, &lastActivityUnix, &conversationCount, &createdAtUnix); err != nil {
		return model.InboxActivity{}, err
	}
	a := model.InboxActivity{
		ClientId:          model.ClientId(clientId),
		InboxId:           model.InboxId(inboxId),
		ConversationCount: conversationCount,
		CreatedAt:         time.Unix(createdAtUnix, 0).UTC(),
	}
	if lastActivityUnix.Valid {
		t := time.Unix(lastActivityUnix.Int64, 0).UTC()
		a.LastActivity = &t
	}
	return a, nil
}

func scanActivities(rows *sql.Rows) ([]model.InboxActivity, error) {
	var out []model.InboxActivity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan inbox_activity row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type pendingInviteRepo struct{ db *sql.DB }

func (r pendingInviteRepo) PendingInvites(ctx context.Context) ([]model.PendingInviteInfo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT client_id, inbox_id, pending_conversation_ids FROM pending_invite`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query pending_invite: %w", err)
	}
	defer rows.Close()

	var out []model.PendingInviteInfo
	for rows.Next() {
		var clientId, inboxId, joined string
		if err := rows.Scan(&clientId, &inboxId, &joined); err != nil {
			return nil, fmt.Errorf("sqlite: scan pending_invite row: %w", err)
		}
		out = append(out, model.PendingInviteInfo{
			ClientId:               model.ClientId(clientId),
			InboxId:                model.InboxId(inboxId),
			PendingConversationIds: splitConversationIds(joined),
		})
	}
	return out, rows.Err()
}

func (r pendingInviteRepo) HasPendingInvites(ctx context.Context, clientId model.ClientId) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_invite WHERE client_id = ? AND pending_conversation_ids != ''`, string(clientId)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: check pending invites for %s: %w", clientId, err)
	}
	return count > 0, nil
}

func (r pendingInviteRepo) StalePendingInviteClientIds(ctx context.Context, olderThan time.Duration) ([]model.ClientId, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.client_id FROM pending_invite p
		JOIN inbox_activity a ON a.client_id = p.client_id
		WHERE p.pending_conversation_ids != '' AND a.created_at_unix < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query stale pending invites: %w", err)
	}
	defer rows.Close()

	var out []model.ClientId
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan stale pending invite row: %w", err)
		}
		out = append(out, model.ClientId(id))
	}
	return out, rows.Err()
}

func splitConversationIds(joined string) []model.ConversationId {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	out := make([]model.ConversationId, 0, len(parts))
	for _, p := range parts {
		out = append(out, model.ConversationId(p))
	}
	return out
}

type conversationRepo struct{ db *sql.DB }

func (r conversationRepo) Fetch(ctx context.Context, id model.ConversationId) (model.ConversationMetadata, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT conversation_id, is_locked, invite_tag, expires_at_unix, name, description, image_url, compact_blob
		FROM conversation_metadata WHERE conversation_id = ?`, string(id))
	meta, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return model.ConversationMetadata{}, false, nil
	}
	if err != nil {
		return model.ConversationMetadata{}, false, fmt.Errorf("sqlite: fetch conversation %s: %w", id, err)
	}
	return meta, true, nil
}

func (r conversationRepo) DetailedQuery(ctx context.Context, filter port.ConversationFilter) ([]model.ConversationMetadata, error) {
	query := `SELECT conversation_id, is_locked, invite_tag, expires_at_unix, name, description, image_url, compact_blob FROM conversation_metadata WHERE 1=1`
	var args []any

	if filter.OwnerInboxId != "" {
		query += ` AND owner_inbox_id = ?`
		args = append(args, string(filter.OwnerInboxId))
	}
	if filter.HasExpiresAt != nil {
		if *filter.HasExpiresAt {
			query += ` AND expires_at_unix IS NOT NULL`
		} else {
			query += ` AND expires_at_unix IS NULL`
		}
	}
	if filter.ExpiresBefore != nil {
		query += ` AND expires_at_unix < ?`
		args = append(args, filter.ExpiresBefore.Unix())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: detailed conversation query: %w", err)
	}
	defer rows.Close()

	var out []model.ConversationMetadata
	for rows.Next() {
		meta, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan conversation row: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

func (r conversationRepo) Save(ctx context.Context, meta model.ConversationMetadata) error {
	var expiresAt sql.NullInt64
	if meta.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: meta.ExpiresAt.Unix(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_metadata (conversation_id, owner_inbox_id, is_locked, invite_tag, expires_at_unix, name, description, image_url, compact_blob)
		VALUES (?, '', ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			is_locked = excluded.is_locked,
			invite_tag = excluded.invite_tag,
			expires_at_unix = excluded.expires_at_unix,
			name = excluded.name,
			description = excluded.description,
			image_url = excluded.image_url,
			compact_blob = excluded.compact_blob`,
		string(meta.ConversationId), meta.IsLocked, meta.InviteTag, expiresAt,
		meta.Name, meta.Description, meta.ImageURLString, meta.CompactBlob,
	)
	if err != nil {
		return fmt.Errorf("sqlite: save conversation %s: %w", meta.ConversationId, err)
	}
	return nil
}

func (r conversationRepo) MemberRole(ctx context.Context, id model.ConversationId, memberInboxId model.InboxId) (model.MemberRole, bool, error) {
	var role int
	err := r.db.QueryRowContext(ctx, `SELECT role FROM conversation_member WHERE conversation_id = ? AND member_inbox_id = ?`, string(id), string(memberInboxId)).Scan(&role)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlite: member role for %s/%s: %w", id, memberInboxId, err)
	}
	return model.MemberRole(role), true, nil
}

func scanConversation(row rowScanner) (model.ConversationMetadata, error) {
	var (
		id, inviteTag, name, description, imageURL string
		isLocked                                    bool
		expiresAtUnix                                sql.NullInt64
		compactBlob                                  []byte
	)
	if err := row.Scan(&id, &isLocked, &inviteTag, &expiresAtUnix, &name, &description, &imageURL, &compactBlob); err != nil {
		return model.ConversationMetadata{}, err
	}
	meta := model.ConversationMetadata{
		ConversationId: model.ConversationId(id),
		IsLocked:       isLocked,
		InviteTag:      inviteTag,
		Name:           name,
		Description:    description,
		ImageURLString: imageURL,
		CompactBlob:    compactBlob,
	}
	if expiresAtUnix.Valid {
		t := time.Unix(expiresAtUnix.Int64, 0).UTC()
		meta.ExpiresAt = &t
	}
	return meta, nil
}
