package lifecycle

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/xmtplabs/convos-core/internal/domain/model"
)

// pendingInvitePins selects, from the supplied pending-invite clients,
// the subset pinned awake by the maxAwakePendingInvites cap: the most
// recently active ones first, per spec §4.1's pending-invite cap.
func pendingInvitePins(pending []model.PendingInviteInfo, activities map[model.ClientId]model.InboxActivity, cap_ int) map[model.ClientId]struct{} {
	ids := make([]model.ClientId, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ClientId)
	}

	sort.Slice(ids, func(i, j int) bool {
		si := pendingRecencyScore(ids[i], activities)
		sj := pendingRecencyScore(ids[j], activities)
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})

	if cap_ < 0 {
		cap_ = 0
	}
	if cap_ > len(ids) {
		cap_ = len(ids)
	}

	pinned := make(map[model.ClientId]struct{}, cap_)
	for _, id := range ids[:cap_] {
		pinned[id] = struct{}{}
	}
	return pinned
}

func pendingRecencyScore(id model.ClientId, activities map[model.ClientId]model.InboxActivity) int64 {
	a, ok := activities[id]
	if !ok || a.LastActivity == nil {
		return math.MinInt64
	}
	return a.LastActivity.Unix()
}

// targetSetInputs bundles the snapshot Rebalance needs to compute the
// target awake set without holding the manager's lock.
type targetSetInputs struct {
	now                    time.Time
	activeClientId         *model.ClientId
	inConstruction         map[model.ClientId]struct{}
	pendingInvites         []model.PendingInviteInfo
	activities             []model.InboxActivity
	maxAwakeInboxes        int
	maxAwakePendingInvites int
	protectionWindow       time.Duration
	isReservedInbox        func(model.InboxId) bool
}

// computeTargetSet implements spec §4.1's four-step rebalance target
// computation as a pure function over a consistent snapshot.
func computeTargetSet(in targetSetInputs) map[model.ClientId]struct{} {
	activityByClient := make(map[model.ClientId]model.InboxActivity, len(in.activities))
	for _, a := range in.activities {
		activityByClient[a.ClientId] = a
	}

	target := make(map[model.ClientId]struct{})
	if in.activeClientId != nil {
		target[*in.activeClientId] = struct{}{}
	}
	for id := range in.inConstruction {
		target[id] = struct{}{}
	}
	for id := range pendingInvitePins(in.pendingInvites, activityByClient, in.maxAwakePendingInvites) {
		target[id] = struct{}{}
	}

	type scored struct {
		id    model.ClientId
		score int64
	}
	fillCandidates := make([]scored, 0, len(in.activities))
	for _, a := range in.activities {
		if _, already := target[a.ClientId]; already {
			continue
		}
		if in.isReservedInbox != nil && in.isReservedInbox(a.InboxId) {
			continue
		}
		score := evictionScore(&a, in.protectionWindow, in.now)
		if score == math.MaxInt64 {
			// Protected new inbox with no activity yet: not pulled in
			// by recency, left to construction-window pinning.
			continue
		}
		fillCandidates = append(fillCandidates, scored{id: a.ClientId, score: score})
	}

	sort.Slice(fillCandidates, func(i, j int) bool {
		if fillCandidates[i].score != fillCandidates[j].score {
			return fillCandidates[i].score > fillCandidates[j].score
		}
		return fillCandidates[i].id < fillCandidates[j].id
	})

	remaining := in.maxAwakeInboxes - len(target)
	for _, c := range fillCandidates {
		if remaining <= 0 {
			break
		}
		target[c.id] = struct{}{}
		remaining--
	}

	return target
}

// Rebalance reconciles the awake/sleeping partition against the
// current target set computed from activity and pending-invite
// recency (spec §4.1).
func (m *Manager) Rebalance(ctx context.Context) error {
	now := time.Now()

	m.mu.Lock()
	inConstruction := make(map[model.ClientId]struct{})
	currentlyAwake := make(map[model.ClientId]*AwakeEntry, len(m.awake))
	for id, e := range m.awake {
		currentlyAwake[id] = e
		if e.inConstruction(now) {
			inConstruction[id] = struct{}{}
		}
	}
	currentlySleeping := make(map[model.ClientId]*SleepingEntry, len(m.sleeping))
	for id, e := range m.sleeping {
		currentlySleeping[id] = e
	}
	activeClientId := m.activeClientId
	cfg := m.cfg
	m.mu.Unlock()

	activities, err := m.activityRepo.All(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle: load activity for rebalance: %w", err)
	}
	pendingInvites, err := m.pendingRepo.PendingInvites(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle: load pending invites for rebalance: %w", err)
	}

	target := computeTargetSet(targetSetInputs{
		now:                    now,
		activeClientId:         activeClientId,
		inConstruction:         inConstruction,
		pendingInvites:         pendingInvites,
		activities:             activities,
		maxAwakeInboxes:        cfg.maxAwakeInboxes,
		maxAwakePendingInvites: cfg.maxAwakePendingInvites,
		protectionWindow:       cfg.newInboxProtectionWindow,
		isReservedInbox:        m.unusedCache.IsUnusedInbox,
	})

	activityById := make(map[model.ClientId]model.InboxActivity, len(activities))
	for _, a := range activities {
		activityById[a.ClientId] = a
	}

	for id := range currentlyAwake {
		if _, keep := target[id]; !keep {
			if err := m.sleepInternal(ctx, id); err != nil {
				m.logger.Warn("REBALANCE_SLEEP_FAILED", "clientId", id, "error", err)
			}
		}
	}
	for id := range target {
		if _, awake := currentlyAwake[id]; awake {
			continue
		}
		a, ok := activityById[id]
		if !ok {
			continue
		}
		if _, err := m.wakeInternal(ctx, id, a.InboxId, model.ReasonActivityRanking, false); err != nil {
			m.logger.Warn("REBALANCE_WAKE_FAILED", "clientId", id, "error", err)
		}
	}

	return nil
}
