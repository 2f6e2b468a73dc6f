package lifecycle

import (
	"math"
	"time"

	"github.com/xmtplabs/convos-core/internal/domain/model"
)

// evictionScore ranks an awake entry for LRU eviction: lower scores are
// evicted first. A nil LastActivity is "infinity" (protected) while the
// entry is within newInboxProtectionWindow of now, and "negative
// infinity" (evict first) once that window has passed, per spec §4.1.
func evictionScore(activity *model.InboxActivity, protectionWindow time.Duration, now time.Time) int64 {
	if activity == nil || activity.LastActivity == nil {
		createdAt := time.Time{}
		if activity != nil {
			createdAt = activity.CreatedAt
		}
		if now.Sub(createdAt) <= protectionWindow {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return activity.LastActivity.Unix()
}

// candidate pairs an awake entry with the activity snapshot used to
// score it.
type candidate struct {
	entry    *AwakeEntry
	activity *model.InboxActivity
}

// pickEvictionVictim selects the lowest-scored non-pinned, non-in-
// construction awake entry. Ties break by earliest CreatedAt, then by
// lexicographically smallest ClientId. Returns nil if every awake entry
// is pinned, in construction, or candidates is empty.
func pickEvictionVictim(candidates []candidate, activeClientId *model.ClientId, protectionWindow time.Duration, now time.Time) *AwakeEntry {
	var best *candidate
	var bestScore int64

	for i := range candidates {
		c := &candidates[i]
		if activeClientId != nil && c.entry.ClientId == *activeClientId {
			continue
		}
		if c.entry.inConstruction(now) {
			continue
		}

		score := evictionScore(c.activity, protectionWindow, now)
		if best == nil {
			best, bestScore = c, score
			continue
		}

		switch {
		case score < bestScore:
			best, bestScore = c, score
		case score == bestScore:
			if less(c, best) {
				best, bestScore = c, score
			}
		}
	}

	if best == nil {
		return nil
	}
	return best.entry
}

func less(a, b *candidate) bool {
	aCreated, bCreated := createdAt(a), createdAt(b)
	if !aCreated.Equal(bCreated) {
		return aCreated.Before(bCreated)
	}
	return a.entry.ClientId < b.entry.ClientId
}

func createdAt(c *candidate) time.Time {
	if c.activity == nil {
		return time.Time{}
	}
	return c.activity.CreatedAt
}
