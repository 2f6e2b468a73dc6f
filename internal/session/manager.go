// Package session implements the Session Manager of spec §4.6: a thin
// router from push notifications and top-level user actions onto the
// Inbox Lifecycle Manager, with no state of its own.
package session

import (
	"context"
	"fmt"

	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/lifecycle"
)

// ConversationLocator resolves a conversation to the inbox that owns
// it, the narrow lookup the Session Manager needs to route a push
// notification.
type ConversationLocator interface {
	OwningInbox(ctx context.Context, conversationId model.ConversationId) (clientId model.ClientId, inboxId model.InboxId, err error)
}

// Manager routes incoming notifications and user-facing inbox actions
// to the Lifecycle Manager. It holds no state of its own.
type Manager struct {
	lifecycle *lifecycle.Manager
	locator   ConversationLocator
}

func New(lifecycleMgr *lifecycle.Manager, locator ConversationLocator) *Manager {
	return &Manager{lifecycle: lifecycleMgr, locator: locator}
}

// WakeInboxForNotification resolves conversationId to its owning inbox
// and ensures that inbox is awake.
func (m *Manager) WakeInboxForNotification(ctx context.Context, conversationId model.ConversationId) (*lifecycle.AwakeEntry, error) {
	clientId, inboxId, err := m.locator.OwningInbox(ctx, conversationId)
	if err != nil {
		return nil, fmt.Errorf("session: locate owning inbox for %s: %w", conversationId, err)
	}
	return m.lifecycle.GetOrWake(ctx, clientId, inboxId)
}

// ShouldDisplayNotification suppresses a notification only when the
// user is currently viewing the exact inbox the conversation belongs
// to; any other state (no active inbox, or a different active inbox)
// still displays it.
func (m *Manager) ShouldDisplayNotification(ctx context.Context, conversationId model.ConversationId) (bool, error) {
	clientId, _, err := m.locator.OwningInbox(ctx, conversationId)
	if err != nil {
		return false, fmt.Errorf("session: locate owning inbox for %s: %w", conversationId, err)
	}
	active := m.lifecycle.ActiveClientId()
	if active == nil {
		return true, nil
	}
	return *active != clientId, nil
}

// AddInbox delegates to createNewInbox.
func (m *Manager) AddInbox(ctx context.Context) (*lifecycle.AwakeEntry, error) {
	return m.lifecycle.CreateNewInbox(ctx)
}

// DeleteInboxStore is the local-database cleanup step DeleteInbox
// performs after the Lifecycle Manager has torn the inbox down; the
// concrete conversation/message table deletions stay outside this
// core's scope (spec §1), so this is the seam a caller's storage layer
// implements.
type DeleteInboxStore interface {
	DeleteAllRows(ctx context.Context, clientId model.ClientId) error
}

// DeleteInbox force-removes clientId from the Lifecycle Manager, which
// stops and closes its coordinator, then clears the local database
// rows through store.
func (m *Manager) DeleteInbox(ctx context.Context, clientId model.ClientId, store DeleteInboxStore) error {
	m.lifecycle.ForceRemove(clientId)
	if err := store.DeleteAllRows(ctx, clientId); err != nil {
		return fmt.Errorf("session: delete local rows for %s: %w", clientId, err)
	}
	return nil
}
