package port

import (
	"context"

	"github.com/xmtplabs/convos-core/internal/domain/model"
)

// KeyPair is an opaque signing key pair minted for a new local
// installation. The core never inspects its bytes.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// IdentityStore generates, persists, and retires the local key
// material backing a ClientId/InboxId pair.
type IdentityStore interface {
	GenerateKeys(ctx context.Context) (KeyPair, error)
	Save(ctx context.Context, inboxId model.InboxId, clientId model.ClientId, keys KeyPair) error
	Load(ctx context.Context, clientId model.ClientId) (KeyPair, error)
	Delete(ctx context.Context, clientId model.ClientId) error
}
