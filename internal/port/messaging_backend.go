// Package port declares the capability sets the core consumes but
// does not implement: the messaging SDK, identity/keychain storage,
// network and lifecycle observables, notifications, and the read-only
// repositories. Every external collaborator in spec §6 is described
// here as an interface; production wiring supplies real adapters,
// tests supply fakes honouring the same contracts (spec §9).
package port

import (
	"context"

	"github.com/xmtplabs/convos-core/internal/domain/model"
)

// ClientHandle is the opaque, live connection to a single inbox's
// backend session: its streaming subscriptions plus the methods the
// core drives during starting/ready/paused transitions.
type ClientHandle interface {
	ClientId() model.ClientId
	InboxId() model.InboxId

	// StreamConversations and StreamMessages open the two continuous
	// subscriptions a Per-Inbox Sync Coordinator supervises. Each calls
	// onSubscribed exactly once, as soon as the subscription handshake
	// completes, then keeps delivering until ctx is cancelled or an
	// error occurs.
	StreamConversations(ctx context.Context, onSubscribed func()) error
	StreamMessages(ctx context.Context, onSubscribed func()) error

	// SyncAllConversations performs the one-time bulk catch-up run
	// after a coordinator enters "starting". Its failure does not
	// block readiness (spec §4.3).
	SyncAllConversations(ctx context.Context) error

	UpdateAddMemberPolicy(ctx context.Context, id model.ConversationId, policy model.AddMemberPolicy) error
	RotateInviteTag(ctx context.Context, id model.ConversationId) (string, error)
	Sync(ctx context.Context, id model.ConversationId) error
}

// MessagingBackend mints and (re)opens per-inbox client sessions. It
// is the narrow port onto the out-of-scope messaging protocol SDK.
type MessagingBackend interface {
	CreateIdentity(ctx context.Context) (model.InboxId, error)
	OpenClient(ctx context.Context, clientId model.ClientId, dbEncryptionKey []byte, dbDirectory string) (ClientHandle, error)
}
