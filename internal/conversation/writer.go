// Package conversation implements the Conversation Metadata Writer of
// spec §4.4: lock/unlock and the explode authorization/side-effect
// pipeline, kept coherent across the messaging backend, the local
// database projection, and the public invite.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xmtplabs/convos-core/internal/domain/event"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/eventbus"
	"github.com/xmtplabs/convos-core/internal/port"
)

// compactFrame is the small, wire-friendly projection of a
// conversation's access-control state (profiles are added by the codec
// layer outside this core); it is what gets encoded into
// model.ConversationMetadata.CompactBlob.
type compactFrame struct {
	InviteTag     string `json:"inviteTag"`
	IsLocked      bool   `json:"isLocked"`
	ExpiresAtUnix *int64 `json:"expiresAtUnix,omitempty"`
}

func encodeCompactBlob(meta model.ConversationMetadata) ([]byte, error) {
	frame := compactFrame{InviteTag: meta.InviteTag, IsLocked: meta.IsLocked}
	if meta.ExpiresAt != nil {
		unix := meta.ExpiresAt.Unix()
		frame.ExpiresAtUnix = &unix
	}
	blob, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("conversation: encode compact blob: %w", err)
	}
	return blob, nil
}

// Writer applies sensitive conversation-level state changes for a
// single inbox's client handle.
type Writer struct {
	logger *slog.Logger
	repo   port.ConversationRepo
	bus    eventbus.Dispatcher

	// compactCache holds the last-written compact metadata blob per
	// conversation, avoiding a repository round trip for UI reads that
	// immediately follow a lock/unlock/explode write.
	compactCache *lru.Cache[model.ConversationId, []byte]
}

// New constructs a Writer. cacheSize bounds the compact-metadata
// cache; the caller's usual working set of open conversations.
func New(logger *slog.Logger, repo port.ConversationRepo, bus eventbus.Dispatcher, cacheSize int) (*Writer, error) {
	cache, err := lru.New[model.ConversationId, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("conversation: build compact cache: %w", err)
	}
	return &Writer{logger: logger, repo: repo, bus: bus, compactCache: cache}, nil
}

// CompactMetadata returns the encoded compact-metadata frame for id,
// the cache-aside read the wire codec layer outside this core calls
// after a lock/unlock/explode write.
func (w *Writer) CompactMetadata(ctx context.Context, id model.ConversationId) ([]byte, bool, error) {
	if cached, ok := w.compactCache.Get(id); ok {
		return cached, true, nil
	}

	meta, ok, err := w.repo.Fetch(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("conversation: fetch %s: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}

	blob, err := encodeCompactBlob(meta)
	if err != nil {
		return nil, false, err
	}
	w.compactCache.Add(id, blob)
	return blob, true, nil
}

// LockConversation denies new members, rotates the invite tag, and
// regenerates the public invite slug. Idempotent on an already-locked
// conversation; preserves every member's role.
func (w *Writer) LockConversation(ctx context.Context, client port.ClientHandle, id model.ConversationId) error {
	meta, ok, err := w.repo.Fetch(ctx, id)
	if err != nil {
		return fmt.Errorf("conversation: fetch %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("conversation: %s not found", id)
	}
	if meta.IsLocked {
		return nil
	}

	if err := client.UpdateAddMemberPolicy(ctx, id, model.AddMemberDeny); err != nil {
		return fmt.Errorf("conversation: deny add-member for %s: %w", id, err)
	}
	tag, err := client.RotateInviteTag(ctx, id)
	if err != nil {
		return fmt.Errorf("conversation: rotate invite tag for %s: %w", id, err)
	}
	if err := client.Sync(ctx, id); err != nil {
		return fmt.Errorf("conversation: sync %s: %w", id, err)
	}

	meta.IsLocked = true
	meta.InviteTag = tag
	blob, err := encodeCompactBlob(meta)
	if err != nil {
		return err
	}
	meta.CompactBlob = blob
	if err := w.repo.Save(ctx, meta); err != nil {
		return fmt.Errorf("conversation: persist lock for %s: %w", id, err)
	}
	w.compactCache.Add(id, blob)
	w.logger.Info("CONVERSATION_LOCKED", "conversationId", id)
	return nil
}

// UnlockConversation allows new members again. Invite regeneration is
// left to a subsequent explicit lock.
func (w *Writer) UnlockConversation(ctx context.Context, client port.ClientHandle, id model.ConversationId) error {
	meta, ok, err := w.repo.Fetch(ctx, id)
	if err != nil {
		return fmt.Errorf("conversation: fetch %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("conversation: %s not found", id)
	}
	if !meta.IsLocked {
		return nil
	}

	if err := client.UpdateAddMemberPolicy(ctx, id, model.AddMemberAllow); err != nil {
		return fmt.Errorf("conversation: allow add-member for %s: %w", id, err)
	}
	if err := client.Sync(ctx, id); err != nil {
		return fmt.Errorf("conversation: sync %s: %w", id, err)
	}

	meta.IsLocked = false
	blob, err := encodeCompactBlob(meta)
	if err != nil {
		return err
	}
	meta.CompactBlob = blob
	if err := w.repo.Save(ctx, meta); err != nil {
		return fmt.Errorf("conversation: persist unlock for %s: %w", id, err)
	}
	w.compactCache.Add(id, blob)
	w.logger.Info("CONVERSATION_UNLOCKED", "conversationId", id)
	return nil
}

// ProcessExplodeSettings applies spec §4.4's explode authorization
// matrix and publishes the corresponding observable event.
func (w *Writer) ProcessExplodeSettings(
	ctx context.Context,
	id model.ConversationId,
	senderInboxId model.InboxId,
	currentInboxId model.InboxId,
	expiresAt time.Time,
) (model.ExplodeResult, error) {
	if senderInboxId == currentInboxId {
		return model.ExplodeResultFromSelf(), nil
	}

	meta, ok, err := w.repo.Fetch(ctx, id)
	if err != nil {
		return model.ExplodeResult{}, fmt.Errorf("conversation: fetch %s: %w", id, err)
	}
	if !ok || meta.ExpiresAt != nil {
		return model.ExplodeResultAlreadyExpired(), nil
	}

	role, isMember, err := w.repo.MemberRole(ctx, id, senderInboxId)
	if err != nil {
		return model.ExplodeResult{}, fmt.Errorf("conversation: member role for %s: %w", id, err)
	}
	if !isMember || !role.AuthorizedForExplode() {
		return model.ExplodeResultUnauthorized(), nil
	}

	now := time.Now()
	if expiresAt.After(now) {
		at := expiresAt
		meta.ExpiresAt = &at
		blob, err := encodeCompactBlob(meta)
		if err != nil {
			return model.ExplodeResult{}, err
		}
		meta.CompactBlob = blob
		if err := w.repo.Save(ctx, meta); err != nil {
			return model.ExplodeResult{}, fmt.Errorf("conversation: persist scheduled explode for %s: %w", id, err)
		}
		w.compactCache.Add(id, blob)
		if err := w.bus.Publish(ctx, event.NewScheduledExplosionEvent(id, expiresAt)); err != nil {
			w.logger.Warn("EXPLODE_EVENT_PUBLISH_FAILED", "conversationId", id, "error", err)
		}
		return model.ExplodeResultScheduled(expiresAt), nil
	}

	meta.ExpiresAt = &now
	blob, err := encodeCompactBlob(meta)
	if err != nil {
		return model.ExplodeResult{}, err
	}
	meta.CompactBlob = blob
	if err := w.repo.Save(ctx, meta); err != nil {
		return model.ExplodeResult{}, fmt.Errorf("conversation: persist applied explode for %s: %w", id, err)
	}
	w.compactCache.Add(id, blob)
	if err := w.bus.Publish(ctx, event.NewExpiredEvent(id)); err != nil {
		w.logger.Warn("EXPLODE_EVENT_PUBLISH_FAILED", "conversationId", id, "error", err)
	}
	return model.ExplodeResultApplied(), nil
}
