package model

import "time"

// AddMemberPolicy mirrors the messaging backend's group policy for
// admitting new members.
type AddMemberPolicy int

const (
	AddMemberAllow AddMemberPolicy = iota + 1
	AddMemberDeny
)

// MemberRole ranks a conversation participant's privileges, from
// least (RoleMember) to most (RoleCreator). The explode-authorization
// check below names the authorized roles explicitly rather than
// comparing numeric values.
type MemberRole int

const (
	RoleMember MemberRole = iota + 1
	RoleAdmin
	RoleSuperAdmin
	RoleCreator
)

// atLeastAdmin reports whether the role is admin, super-admin, or the
// conversation's original creator.
func (r MemberRole) atLeastAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin || r == RoleCreator
}

// AuthorizedForExplode reports whether this role may schedule or apply
// a conversation explosion, per spec §4.4.
func (r MemberRole) AuthorizedForExplode() bool {
	return r.atLeastAdmin()
}

// ConversationMetadata is the local projection of a conversation's
// access-control and invite state, owned by the inbox holding the
// conversation.
type ConversationMetadata struct {
	ConversationId ConversationId
	IsLocked       bool
	InviteTag      string
	ExpiresAt      *time.Time
	Name           string
	Description    string
	ImageURLString string

	// CompactBlob is the encoded compact-metadata frame (invite tag,
	// lock flag, expiresAt; profiles are added by the wire codec that
	// sits outside this core); kept here only as the bytes the
	// Conversation Metadata Writer produces and caches.
	CompactBlob []byte
}
