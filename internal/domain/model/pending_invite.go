package model

// PendingInviteInfo is a read-only projection describing an inbox that
// has created a draft conversation it has not yet published or
// consummated. Such inboxes are preferentially kept awake so the
// draft can be completed.
type PendingInviteInfo struct {
	ClientId               ClientId
	InboxId                InboxId
	PendingConversationIds []ConversationId
}
