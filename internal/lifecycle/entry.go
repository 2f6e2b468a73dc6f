package lifecycle

import (
	"time"

	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/synccoordinator"
)

// AwakeEntry is one running inbox: its coordinator plus the bookkeeping
// needed for the construction-window protection of spec §4.1.
type AwakeEntry struct {
	ClientId            model.ClientId
	InboxId             model.InboxId
	Coordinator         *synccoordinator.Coordinator
	inConstructionUntil time.Time // zero value means "not in construction"
}

func (e *AwakeEntry) inConstruction(now time.Time) bool {
	return !e.inConstructionUntil.IsZero() && now.Before(e.inConstructionUntil)
}

// SleepingEntry is a cold but remembered inbox, polled by the external
// sleeping-inbox message checker (spec §3).
type SleepingEntry struct {
	ClientId      model.ClientId
	InboxId       model.InboxId
	WentToSleepAt time.Time
}
