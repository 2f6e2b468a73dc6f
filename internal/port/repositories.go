package port

import (
	"context"
	"time"

	"github.com/xmtplabs/convos-core/internal/domain/model"
)

// InboxActivityRepo is the read-through projection the Lifecycle
// Manager uses for all recency decisions. Backed by the local
// conversation/message tables, which stay out of scope for this core.
type InboxActivityRepo interface {
	All(ctx context.Context) ([]model.InboxActivity, error)
	For(ctx context.Context, clientId model.ClientId) (model.InboxActivity, error)
	Top(ctx context.Context, n int) ([]model.InboxActivity, error)
	LeastActive(ctx context.Context, excluding []model.ClientId) (model.InboxActivity, bool, error)
}

// PendingInviteRepo resolves which inboxes carry a draft conversation
// that has not yet been published.
type PendingInviteRepo interface {
	PendingInvites(ctx context.Context) ([]model.PendingInviteInfo, error)
	HasPendingInvites(ctx context.Context, clientId model.ClientId) (bool, error)
	StalePendingInviteClientIds(ctx context.Context, olderThan time.Duration) ([]model.ClientId, error)
}

// ConversationRepo is the read/write projection the Conversation
// Metadata Writer and Scheduled Explosion Manager consult.
type ConversationRepo interface {
	Fetch(ctx context.Context, id model.ConversationId) (model.ConversationMetadata, bool, error)
	DetailedQuery(ctx context.Context, filter ConversationFilter) ([]model.ConversationMetadata, error)
	Save(ctx context.Context, meta model.ConversationMetadata) error
	MemberRole(ctx context.Context, id model.ConversationId, memberInboxId model.InboxId) (model.MemberRole, bool, error)
}

// ConversationFilter narrows DetailedQuery; a zero value matches all
// conversations the owning inbox knows about.
type ConversationFilter struct {
	OwnerInboxId  model.InboxId
	HasExpiresAt  *bool
	ExpiresBefore *time.Time
}
