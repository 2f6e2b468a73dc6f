// Package lifecycle implements the Inbox Lifecycle Manager of spec
// §4.1: the capacity-bounded LRU scheduler that decides which inboxes
// are awake (streaming) and which are sleeping (cold).
//
// The manager follows the "(b) async mutex guarding a plain struct"
// option spec §9 sanctions for actors in a systems language without
// native cooperative suspension: a single mutex guards the awake and
// sleeping sets, every method releases it before a suspending call
// (starting/stopping a coordinator, reading a repository) and
// re-validates state after reacquiring it, exactly as spec §4.1's
// concurrency section requires.
package lifecycle

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/port"
	"github.com/xmtplabs/convos-core/internal/unusedcache"
)

// Manager owns the awake/sleeping partition of all known inboxes.
type Manager struct {
	logger        *slog.Logger
	backend       port.MessagingBackend
	identityStore port.IdentityStore
	activityRepo  port.InboxActivityRepo
	pendingRepo   port.PendingInviteRepo
	unusedCache   *unusedcache.Cache
	dbBaseDir     string
	metrics       *metrics
	cfg           config

	mu                  sync.Mutex
	awake               map[model.ClientId]*AwakeEntry
	sleeping            map[model.ClientId]*SleepingEntry
	activeClientId      *model.ClientId
	stalePendingInvites []model.ClientId
}

// New constructs a Manager. reg may be nil to skip metrics
// registration (e.g. in unit tests). dbBaseDir is the parent directory
// under which each inbox's local store directory is namespaced by
// ClientId.
func New(
	logger *slog.Logger,
	backend port.MessagingBackend,
	identityStore port.IdentityStore,
	activityRepo port.InboxActivityRepo,
	pendingRepo port.PendingInviteRepo,
	unusedCache *unusedcache.Cache,
	dbBaseDir string,
	reg prometheus.Registerer,
	opts ...Option,
) *Manager {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Manager{
		logger:        logger,
		backend:       backend,
		identityStore: identityStore,
		activityRepo:  activityRepo,
		pendingRepo:   pendingRepo,
		unusedCache:   unusedCache,
		dbBaseDir:     dbBaseDir,
		metrics:       newMetrics(reg),
		cfg:           cfg,
		awake:         make(map[model.ClientId]*AwakeEntry),
		sleeping:      make(map[model.ClientId]*SleepingEntry),
	}
}

// --- read accessors (spec §4.1) ---

func (m *Manager) AwakeClientIds() []model.ClientId {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ClientId, 0, len(m.awake))
	for id := range m.awake {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Manager) SleepingClientIds() []model.ClientId {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ClientId, 0, len(m.sleeping))
	for id := range m.sleeping {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Manager) IsAwake(id model.ClientId) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.awake[id]
	return ok
}

func (m *Manager) IsSleeping(id model.ClientId) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sleeping[id]
	return ok
}

func (m *Manager) ActiveClientId() *model.ClientId {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeClientId == nil {
		return nil
	}
	id := *m.activeClientId
	return &id
}

func (m *Manager) SleepTime(id model.ClientId) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sleeping[id]
	if !ok {
		return time.Time{}, false
	}
	return e.WentToSleepAt, true
}

// StalePendingInviteClientIds returns the client ids flagged as stale
// pending invites by the last InitializeOnAppLaunch call. Actual
// deletion is deferred to an external sweeper (spec §9).
func (m *Manager) StalePendingInviteClientIds() []model.ClientId {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ClientId(nil), m.stalePendingInvites...)
}

// SetActiveClientId records the foregrounded client. A non-nil active
// client is pinned awake and excluded from eviction.
func (m *Manager) SetActiveClientId(id *model.ClientId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == nil {
		m.activeClientId = nil
		return
	}
	v := *id
	m.activeClientId = &v
}

func (m *Manager) refreshMetricsLocked() {
	m.metrics.refresh(len(m.awake), len(m.sleeping))
}

// StopAll empties both sets and stops every coordinator.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	entries := make([]*AwakeEntry, 0, len(m.awake))
	for _, e := range m.awake {
		entries = append(entries, e)
	}
	m.awake = make(map[model.ClientId]*AwakeEntry)
	m.sleeping = make(map[model.ClientId]*SleepingEntry)
	m.activeClientId = nil
	m.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, len(entries))
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e *AwakeEntry) {
			defer wg.Done()
			e.Coordinator.Stop()
			e.Coordinator.Close()
		}(i, e)
	}
	wg.Wait()

	m.mu.Lock()
	m.refreshMetricsLocked()
	m.mu.Unlock()

	return combineErrors(errs)
}

// ForceRemove unconditionally removes the client from both sets,
// clears activeClientId if it matched, and cancels any sleep timer.
func (m *Manager) ForceRemove(clientId model.ClientId) {
	m.mu.Lock()
	entry, wasAwake := m.awake[clientId]
	delete(m.awake, clientId)
	delete(m.sleeping, clientId)
	if m.activeClientId != nil && *m.activeClientId == clientId {
		m.activeClientId = nil
	}
	m.refreshMetricsLocked()
	m.mu.Unlock()

	if wasAwake {
		entry.Coordinator.Stop()
		entry.Coordinator.Close()
	}
}
