package port

import "context"

// UnusedInboxMarker is the sole persistent state this core owns:
// the {clientId, inboxId} pair for the Unused-Inbox Cache's single
// reservation, stored as opaque bytes in the keychain (spec §6).
type UnusedInboxMarker struct {
	ClientId string
	InboxId  string
}

// KeychainService is the process-wide secure key/value store. The
// Unused-Inbox Cache owns exactly one key within it.
type KeychainService interface {
	Get(ctx context.Context, key string) (UnusedInboxMarker, bool, error)
	Set(ctx context.Context, key string, marker UnusedInboxMarker) error
	Delete(ctx context.Context, key string) error
}

// UnusedInboxMarkerKey is the single key the Unused-Inbox Cache uses.
const UnusedInboxMarkerKey = "core.unused_inbox_marker"
