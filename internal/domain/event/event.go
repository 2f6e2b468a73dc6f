// Package event defines the observable events the core publishes:
// conversationScheduledExplosion and conversationExpired (spec §6).
package event

import (
	"time"

	"github.com/xmtplabs/convos-core/internal/domain/model"
)

// Kind discriminates the observable event types the core emits.
type Kind int16

const (
	ConversationScheduledExplosion Kind = iota + 1
	ConversationExpired
)

func (k Kind) String() string {
	switch k {
	case ConversationScheduledExplosion:
		return "conversationScheduledExplosion"
	case ConversationExpired:
		return "conversationExpired"
	default:
		return "unknown"
	}
}

// Eventer is the contract every observable domain event satisfies.
type Eventer interface {
	GetKind() Kind
	GetConversationId() model.ConversationId
	GetRoutingKey() string
}

// ScheduledExplosionEvent fires when processExplodeSettings schedules
// a future explosion.
type ScheduledExplosionEvent struct {
	ConversationId model.ConversationId
	ExpiresAt      time.Time
}

func NewScheduledExplosionEvent(id model.ConversationId, at time.Time) ScheduledExplosionEvent {
	return ScheduledExplosionEvent{ConversationId: id, ExpiresAt: at}
}

func (e ScheduledExplosionEvent) GetKind() Kind                             { return ConversationScheduledExplosion }
func (e ScheduledExplosionEvent) GetConversationId() model.ConversationId   { return e.ConversationId }
func (e ScheduledExplosionEvent) GetRoutingKey() string {
	return "conversation." + e.ConversationId.String() + ".scheduled_explosion"
}

// ExpiredEvent fires when a conversation has been written as expired,
// either immediately (applied) or by the Scheduled Explosion Manager's
// alarm firing.
type ExpiredEvent struct {
	ConversationId model.ConversationId
}

func NewExpiredEvent(id model.ConversationId) ExpiredEvent {
	return ExpiredEvent{ConversationId: id}
}

func (e ExpiredEvent) GetKind() Kind                           { return ConversationExpired }
func (e ExpiredEvent) GetConversationId() model.ConversationId { return e.ConversationId }
func (e ExpiredEvent) GetRoutingKey() string {
	return "conversation." + e.ConversationId.String() + ".expired"
}
