// Package model holds the core entities of the multi-inbox runtime:
// identifiers, activity projections, and conversation metadata.
package model

// ClientId identifies a local installation of an inbox: a database
// file plus a signing key pair. Stable within the process lifetime of
// that installation.
type ClientId string

// InboxId is the protocol-level identity. Multiple ClientIds can share
// an InboxId only in edge cases such as a reinstall.
type InboxId string

// ConversationId identifies a conversation. A conversation belongs to
// exactly one InboxId.
type ConversationId string

func (c ClientId) String() string       { return string(c) }
func (i InboxId) String() string        { return string(i) }
func (c ConversationId) String() string { return string(c) }
