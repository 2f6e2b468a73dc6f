package model

import "time"

// InboxActivity is a read-only projection rebuilt from the conversation
// and message tables of a single inbox's local database. It is the
// sole source of truth the Lifecycle Manager uses for recency
// decisions.
type InboxActivity struct {
	ClientId         ClientId
	InboxId          InboxId
	LastActivity     *time.Time // nil iff no non-system message has been observed
	ConversationCount int
	CreatedAt        time.Time
}

// HasActivity reports whether this inbox has ever observed a
// non-system message.
func (a InboxActivity) HasActivity() bool {
	return a.LastActivity != nil
}
