// Package unusedcache implements the Unused-Inbox Cache of spec §4.2:
// a single pre-warmed, not-yet-assigned inbox identity held in memory
// and mirrored to the keychain, so that creating a new conversation
// never blocks on identity generation, and so that at most one caller
// ever consumes a given reservation.
package unusedcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/port"
)

// Reservation is an unused, already-created inbox identity waiting to
// be claimed by the next new-conversation flow.
type Reservation struct {
	ClientId model.ClientId
	InboxId  model.InboxId
}

// Cache owns the single reservation slot.
type Cache struct {
	logger    *slog.Logger
	backend   port.MessagingBackend
	keychain  port.KeychainService
	identity  port.IdentityStore

	mu      sync.Mutex
	current *Reservation
}

func New(logger *slog.Logger, backend port.MessagingBackend, keychain port.KeychainService, identity port.IdentityStore) *Cache {
	return &Cache{
		logger:   logger,
		backend:  backend,
		keychain: keychain,
		identity: identity,
	}
}

// PrepareIfNeeded ensures a reservation exists, restoring one from the
// keychain if the process was restarted, or minting a fresh identity
// otherwise. Safe to call repeatedly; a no-op once a reservation is
// held.
func (c *Cache) PrepareIfNeeded(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	marker, ok, err := c.keychain.Get(ctx, port.UnusedInboxMarkerKey)
	if err != nil {
		return fmt.Errorf("unusedcache: read keychain: %w", err)
	}
	if ok {
		c.mu.Lock()
		if c.current == nil {
			c.current = &Reservation{
				ClientId: model.ClientId(marker.ClientId),
				InboxId:  model.InboxId(marker.InboxId),
			}
		}
		c.mu.Unlock()
		return nil
	}

	return c.mintAndStore(ctx)
}

func (c *Cache) mintAndStore(ctx context.Context) error {
	inboxId, err := c.backend.CreateIdentity(ctx)
	if err != nil {
		return fmt.Errorf("unusedcache: create identity: %w", err)
	}
	clientId := model.ClientId(uuid.NewString())

	if err := c.keychain.Set(ctx, port.UnusedInboxMarkerKey, port.UnusedInboxMarker{
		ClientId: string(clientId),
		InboxId:  string(inboxId),
	}); err != nil {
		return fmt.Errorf("unusedcache: persist marker: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		c.current = &Reservation{ClientId: clientId, InboxId: inboxId}
	}
	return nil
}

// ConsumeOrCreate hands the caller the current reservation, clearing
// it so that no other caller can be handed the same pair, and mints a
// fresh one on the spot if none was prepared yet. The whole decision
// is made under the cache's lock, which is what guarantees distinct
// callers never observe the same reservation (spec §8).
func (c *Cache) ConsumeOrCreate(ctx context.Context) (Reservation, error) {
	c.mu.Lock()
	if c.current != nil {
		r := *c.current
		c.current = nil
		c.mu.Unlock()

		if err := c.keychain.Delete(ctx, port.UnusedInboxMarkerKey); err != nil {
			c.logger.Warn("UNUSED_CACHE_CLEAR_FAILED", "error", err)
		}
		return r, nil
	}
	c.mu.Unlock()

	inboxId, err := c.backend.CreateIdentity(ctx)
	if err != nil {
		return Reservation{}, fmt.Errorf("unusedcache: create identity on demand: %w", err)
	}
	return Reservation{ClientId: model.ClientId(uuid.NewString()), InboxId: inboxId}, nil
}

// Clear discards any held reservation without consuming it, used when
// the app detects the reservation is stale.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	return c.keychain.Delete(ctx, port.UnusedInboxMarkerKey)
}

func (c *Cache) IsUnusedInbox(inboxId model.InboxId) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.InboxId == inboxId
}

func (c *Cache) HasUnused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}
