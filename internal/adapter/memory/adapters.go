// Package memory provides minimal, process-local stand-ins for the
// ports this core deliberately leaves out of scope (the messaging
// protocol SDK, OS keychain, network/app-lifecycle observables, and
// notification scheduling). They exist so cmd can boot a runnable
// demo process; a real deployment supplies real adapters for every
// port in this package instead.
package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/port"
)

// Keychain is an in-process KeychainService; real deployments back
// this with an OS keychain/secret store.
type Keychain struct {
	mu     sync.Mutex
	values map[string]port.UnusedInboxMarker
}

func NewKeychain() *Keychain {
	return &Keychain{values: make(map[string]port.UnusedInboxMarker)}
}

func (k *Keychain) Get(ctx context.Context, key string) (port.UnusedInboxMarker, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.values[key]
	return v, ok, nil
}

func (k *Keychain) Set(ctx context.Context, key string, marker port.UnusedInboxMarker) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.values[key] = marker
	return nil
}

func (k *Keychain) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.values, key)
	return nil
}

// IdentityStore mints random key material and keeps it in memory.
type IdentityStore struct {
	mu   sync.Mutex
	keys map[model.ClientId]port.KeyPair
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{keys: make(map[model.ClientId]port.KeyPair)}
}

func (s *IdentityStore) GenerateKeys(ctx context.Context) (port.KeyPair, error) {
	priv := make([]byte, 32)
	if _, err := rand.Read(priv); err != nil {
		return port.KeyPair{}, fmt.Errorf("memory: generate key material: %w", err)
	}
	pub := make([]byte, 32)
	if _, err := rand.Read(pub); err != nil {
		return port.KeyPair{}, fmt.Errorf("memory: generate key material: %w", err)
	}
	return port.KeyPair{Public: pub, Private: priv}, nil
}

func (s *IdentityStore) Save(ctx context.Context, inboxId model.InboxId, clientId model.ClientId, keys port.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[clientId] = keys
	return nil
}

func (s *IdentityStore) Load(ctx context.Context, clientId model.ClientId) (port.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.keys[clientId]
	if !ok {
		return port.KeyPair{}, fmt.Errorf("memory: no key material for %s", clientId)
	}
	return keys, nil
}

func (s *IdentityStore) Delete(ctx context.Context, clientId model.ClientId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, clientId)
	return nil
}

// NetworkMonitor reports a single, permanently-connected state; a
// real deployment wires this to the OS's reachability APIs.
type NetworkMonitor struct{ ch chan port.NetworkState }

func NewNetworkMonitor() *NetworkMonitor {
	ch := make(chan port.NetworkState, 1)
	ch <- port.NetworkConnectedWifi
	return &NetworkMonitor{ch: ch}
}

func (m *NetworkMonitor) Subscribe() <-chan port.NetworkState { return m.ch }

// AppLifecycle never reports a foreground transition; it offers no
// way to inject one.
type AppLifecycle struct{ ch chan port.AppLifecycleEvent }

func NewAppLifecycle() *AppLifecycle {
	return &AppLifecycle{ch: make(chan port.AppLifecycleEvent, 1)}
}

func (a *AppLifecycle) Subscribe() <-chan port.AppLifecycleEvent { return a.ch }

// NotificationCenter logs requested alarms instead of scheduling OS
// notifications.
type NotificationCenter struct{ logger *slog.Logger }

func NewNotificationCenter(logger *slog.Logger) *NotificationCenter {
	return &NotificationCenter{logger: logger}
}

func (n *NotificationCenter) Add(ctx context.Context, req port.NotificationRequest) error {
	n.logger.Info("NOTIFICATION_SCHEDULED", "identifier", req.Identifier, "title", req.Title, "body", req.Body)
	return nil
}

func (n *NotificationCenter) Remove(ctx context.Context, identifiers ...string) error {
	n.logger.Info("NOTIFICATION_CANCELED", "identifiers", identifiers)
	return nil
}

// Backend is a no-op MessagingBackend: it mints local identities and
// hands back a ClientHandle whose streams block until cancelled. It
// demonstrates the Lifecycle Manager and Sync Coordinator wiring
// without a real messaging protocol SDK, which spec §1 keeps out of
// scope.
type Backend struct{}

func NewBackend() Backend { return Backend{} }

func (Backend) CreateIdentity(ctx context.Context) (model.InboxId, error) {
	return model.InboxId(uuid.NewString()), nil
}

func (Backend) OpenClient(ctx context.Context, clientId model.ClientId, dbEncryptionKey []byte, dbDirectory string) (port.ClientHandle, error) {
	return &clientHandle{clientId: clientId, inboxId: model.InboxId(uuid.NewString())}, nil
}

type clientHandle struct {
	clientId model.ClientId
	inboxId  model.InboxId
}

func (h *clientHandle) ClientId() model.ClientId { return h.clientId }
func (h *clientHandle) InboxId() model.InboxId   { return h.inboxId }

func (h *clientHandle) StreamConversations(ctx context.Context, onSubscribed func()) error {
	onSubscribed()
	<-ctx.Done()
	return ctx.Err()
}

func (h *clientHandle) StreamMessages(ctx context.Context, onSubscribed func()) error {
	onSubscribed()
	<-ctx.Done()
	return ctx.Err()
}

func (h *clientHandle) SyncAllConversations(ctx context.Context) error { return nil }

func (h *clientHandle) UpdateAddMemberPolicy(ctx context.Context, id model.ConversationId, policy model.AddMemberPolicy) error {
	return nil
}

func (h *clientHandle) RotateInviteTag(ctx context.Context, id model.ConversationId) (string, error) {
	return uuid.NewString(), nil
}

func (h *clientHandle) Sync(ctx context.Context, id model.ConversationId) error { return nil }
