package port

import "context"

// NotificationRequest is a local alarm/notification request, as used
// by the Scheduled Explosion Manager to schedule reminder and
// explosion alarms (spec §4.5).
type NotificationRequest struct {
	Identifier       string
	Title            string
	Body             string
	ThreadIdentifier string
	FireAt           int64 // unix seconds
	UserInfo         map[string]any
}

// UserNotificationCenter schedules and cancels local alarms. It is the
// narrow port onto OS notification scheduling, explicitly out of scope
// for this core beyond this interface (spec §1).
type UserNotificationCenter interface {
	Add(ctx context.Context, req NotificationRequest) error
	Remove(ctx context.Context, identifiers ...string) error
}
