package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/port"
	"github.com/xmtplabs/convos-core/internal/synccoordinator"
)

func indexActivities(activities []model.InboxActivity) map[model.ClientId]model.InboxActivity {
	out := make(map[model.ClientId]model.InboxActivity, len(activities))
	for _, a := range activities {
		out[a.ClientId] = a
	}
	return out
}

// openClient loads the client's key material and asks the backend for
// a live session. It never touches the awake/sleeping maps.
func (m *Manager) openClient(ctx context.Context, clientId model.ClientId) (port.ClientHandle, error) {
	keys, err := m.identityStore.Load(ctx, clientId)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: load keys for %s: %w", clientId, err)
	}
	dir := filepath.Join(m.dbBaseDir, string(clientId))
	client, err := m.backend.OpenClient(ctx, clientId, keys.Private, dir)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: open client for %s: %w", clientId, err)
	}
	return client, nil
}

// Wake admits clientId to the awake set, evicting the single least-
// recently-active eligible client if admission would exceed capacity.
// Idempotent on an already-awake client (spec §4.1).
func (m *Manager) Wake(ctx context.Context, clientId model.ClientId, inboxId model.InboxId, reason model.WakeReason) (*AwakeEntry, error) {
	return m.wakeInternal(ctx, clientId, inboxId, reason, false)
}

// GetOrWake returns the existing awake coordinator if any, otherwise
// wakes under the same eviction rules as Wake.
func (m *Manager) GetOrWake(ctx context.Context, clientId model.ClientId, inboxId model.InboxId) (*AwakeEntry, error) {
	m.mu.Lock()
	if e, ok := m.awake[clientId]; ok {
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()
	return m.wakeInternal(ctx, clientId, inboxId, model.ReasonUserInteraction, false)
}

// CreateNewInbox consumes (or mints) the Unused-Inbox Cache's
// reservation, registers it directly in the awake set pinned by a
// construction window, and sets it as the active client.
func (m *Manager) CreateNewInbox(ctx context.Context) (*AwakeEntry, error) {
	reservation, err := m.unusedCache.ConsumeOrCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: consume unused inbox: %w", err)
	}

	entry, err := m.wakeInternal(ctx, reservation.ClientId, reservation.InboxId, model.ReasonUserInteraction, true)
	if err != nil {
		return nil, err
	}

	id := entry.ClientId
	m.SetActiveClientId(&id)
	return entry, nil
}

// wakeInternal is the shared admission path for Wake, GetOrWake,
// CreateNewInbox, and Rebalance's wake-side reconciliation.
func (m *Manager) wakeInternal(ctx context.Context, clientId model.ClientId, inboxId model.InboxId, reason model.WakeReason, markConstruction bool) (*AwakeEntry, error) {
	m.mu.Lock()
	if e, ok := m.awake[clientId]; ok {
		m.mu.Unlock()
		return e, nil
	}
	activeId := m.activeClientId
	cfg := m.cfg
	needsEviction := len(m.awake)+1 > cfg.maxAwakeInboxes
	var evictionCandidates []*AwakeEntry
	if needsEviction {
		now := time.Now()
		for id, e := range m.awake {
			if activeId != nil && id == *activeId {
				continue
			}
			if e.inConstruction(now) {
				continue
			}
			evictionCandidates = append(evictionCandidates, e)
		}
	}
	m.mu.Unlock()

	var victimId *model.ClientId
	if len(evictionCandidates) > 0 {
		activities, err := m.activityRepo.All(ctx)
		if err != nil {
			m.logger.Warn("EVICTION_ACTIVITY_LOOKUP_FAILED", "error", err)
		} else {
			activityById := indexActivities(activities)

			pending, err := m.pendingRepo.PendingInvites(ctx)
			if err != nil {
				m.logger.Warn("EVICTION_PENDING_INVITE_LOOKUP_FAILED", "error", err)
				pending = nil
			}
			pinned := pendingInvitePins(pending, activityById, cfg.maxAwakePendingInvites)

			now := time.Now()
			cands := make([]candidate, 0, len(evictionCandidates))
			for _, e := range evictionCandidates {
				if _, isPinned := pinned[e.ClientId]; isPinned {
					continue
				}
				a, ok := activityById[e.ClientId]
				var aPtr *model.InboxActivity
				if ok {
					aPtr = &a
				}
				cands = append(cands, candidate{entry: e, activity: aPtr})
			}
			if victim := pickEvictionVictim(cands, activeId, cfg.newInboxProtectionWindow, now); victim != nil {
				id := victim.ClientId
				victimId = &id
			}
		}
	}

	client, err := m.openClient(ctx, clientId)
	if err != nil {
		return nil, err
	}

	coordinator := synccoordinator.New(m.logger)
	if err := coordinator.Start(ctx, client); err != nil {
		coordinator.Close()
		return nil, fmt.Errorf("lifecycle: start coordinator for %s: %w", clientId, err)
	}

	entry := &AwakeEntry{ClientId: clientId, InboxId: inboxId, Coordinator: coordinator}
	if markConstruction {
		entry.inConstructionUntil = time.Now().Add(cfg.newInboxConstructionWindow)
	}

	m.mu.Lock()
	if existing, ok := m.awake[clientId]; ok {
		// Lost the race to a concurrent wake; discard this activation.
		m.mu.Unlock()
		coordinator.Stop()
		coordinator.Close()
		return existing, nil
	}

	var evicted *AwakeEntry
	if victimId != nil {
		if v, ok := m.awake[*victimId]; ok {
			delete(m.awake, *victimId)
			evicted = v
		}
	}
	delete(m.sleeping, clientId)
	m.awake[clientId] = entry
	m.refreshMetricsLocked()
	m.mu.Unlock()

	if evicted != nil {
		evicted.Coordinator.Stop()
		evicted.Coordinator.Close()

		m.mu.Lock()
		m.sleeping[evicted.ClientId] = &SleepingEntry{
			ClientId:      evicted.ClientId,
			InboxId:       evicted.InboxId,
			WentToSleepAt: time.Now(),
		}
		m.metrics.recordEviction()
		m.refreshMetricsLocked()
		m.mu.Unlock()
	}

	m.logger.Info("INBOX_WOKEN", "clientId", clientId, "reason", reason.String())
	return entry, nil
}

// Sleep transitions clientId to the sleeping set, unless it is the
// active client or sleeping it would push the pending-invite awake
// count below the configured cap (spec §4.1).
func (m *Manager) Sleep(ctx context.Context, clientId model.ClientId) error {
	m.mu.Lock()
	_, awake := m.awake[clientId]
	activeId := m.activeClientId
	m.mu.Unlock()
	if !awake {
		return nil
	}
	if activeId != nil && *activeId == clientId {
		return nil
	}

	hasPending, err := m.pendingRepo.HasPendingInvites(ctx, clientId)
	if err != nil {
		return fmt.Errorf("lifecycle: check pending invites for %s: %w", clientId, err)
	}
	if hasPending {
		pending, err := m.pendingRepo.PendingInvites(ctx)
		if err != nil {
			return fmt.Errorf("lifecycle: list pending invites: %w", err)
		}
		m.mu.Lock()
		count := 0
		for _, p := range pending {
			if _, ok := m.awake[p.ClientId]; ok {
				count++
			}
		}
		cap_ := m.cfg.maxAwakePendingInvites
		m.mu.Unlock()
		if count <= cap_ {
			return nil
		}
	}

	return m.sleepInternal(ctx, clientId)
}

// sleepInternal performs the raw awake-to-sleeping transition with no
// no-op rules; callers (Sleep, Rebalance) are responsible for deciding
// whether a client is eligible to sleep.
func (m *Manager) sleepInternal(ctx context.Context, clientId model.ClientId) error {
	m.mu.Lock()
	entry, ok := m.awake[clientId]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	entry.Coordinator.Stop()

	m.mu.Lock()
	cur, ok := m.awake[clientId]
	if !ok || cur != entry {
		m.mu.Unlock()
		entry.Coordinator.Close()
		return nil
	}
	delete(m.awake, clientId)
	m.sleeping[clientId] = &SleepingEntry{
		ClientId:      clientId,
		InboxId:       entry.InboxId,
		WentToSleepAt: time.Now(),
	}
	m.refreshMetricsLocked()
	m.mu.Unlock()

	entry.Coordinator.Close()
	m.logger.Info("INBOX_SLEPT", "clientId", clientId)
	return nil
}

// InitializeOnAppLaunch runs the three launch-time steps of spec
// §4.1: flag stale pending invites, populate the awake set with
// activeClientId unset, and stamp every sleeping client's
// wentToSleepAt so the external sleeping-inbox poller has a baseline.
func (m *Manager) InitializeOnAppLaunch(ctx context.Context) error {
	stale, err := m.pendingRepo.StalePendingInviteClientIds(ctx, m.cfg.stalePendingInviteInterval)
	if err != nil {
		return fmt.Errorf("lifecycle: list stale pending invites: %w", err)
	}
	m.mu.Lock()
	m.stalePendingInvites = stale
	m.mu.Unlock()

	m.SetActiveClientId(nil)
	if err := m.Rebalance(ctx); err != nil {
		return fmt.Errorf("lifecycle: initial rebalance: %w", err)
	}

	now := time.Now()
	m.mu.Lock()
	for _, e := range m.sleeping {
		e.WentToSleepAt = now
	}
	m.mu.Unlock()
	return nil
}
