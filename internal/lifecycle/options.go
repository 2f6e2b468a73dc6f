package lifecycle

import "time"

// config holds the Tunable Configuration block of spec §6.
type config struct {
	maxAwakeInboxes            int
	maxAwakePendingInvites     int
	newInboxProtectionWindow   time.Duration
	newInboxConstructionWindow time.Duration
	stalePendingInviteInterval time.Duration
}

func defaultConfig() config {
	return config{
		maxAwakeInboxes:            50,
		maxAwakePendingInvites:     3,
		newInboxProtectionWindow:   5 * time.Minute,
		newInboxConstructionWindow: 3 * time.Second, // see SPEC_FULL.md §D
		stalePendingInviteInterval: 7 * 24 * time.Hour,
	}
}

// Option configures a Manager at construction time.
type Option func(*config)

func WithMaxAwakeInboxes(n int) Option {
	return func(c *config) { c.maxAwakeInboxes = n }
}

func WithMaxAwakePendingInvites(n int) Option {
	return func(c *config) { c.maxAwakePendingInvites = n }
}

func WithNewInboxProtectionWindow(d time.Duration) Option {
	return func(c *config) { c.newInboxProtectionWindow = d }
}

func WithNewInboxConstructionWindow(d time.Duration) Option {
	return func(c *config) { c.newInboxConstructionWindow = d }
}

func WithStalePendingInviteInterval(d time.Duration) Option {
	return func(c *config) { c.stalePendingInviteInterval = d }
}
