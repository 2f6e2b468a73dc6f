// Package explosion implements the Scheduled Explosion Manager of
// spec §4.5: one local alarm pair per exploding conversation, kept in
// sync with conversationExpired events and re-derived from persisted
// state by RescheduleAll (alarms never survive cold starts). cmd runs
// RescheduleAll once at app start; this package does not subscribe to
// AppLifecycle foreground events.
package explosion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-co-op/gocron/v2"
	"github.com/xmtplabs/convos-core/internal/domain/event"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/eventbus"
	"github.com/xmtplabs/convos-core/internal/port"
)

func reminderJobName(id model.ConversationId) string {
	return "explosion-reminder-" + id.String()
}

func explosionJobName(id model.ConversationId) string {
	return "explosion-" + id.String()
}

// Manager owns the gocron scheduler backing every pending explosion
// alarm and mirrors each alarm into the UserNotificationCenter port.
type Manager struct {
	logger    *slog.Logger
	scheduler gocron.Scheduler
	notifier  port.UserNotificationCenter
	convRepo  port.ConversationRepo
	bus       eventbus.Dispatcher

	mu           sync.Mutex
	jobsByConvId map[model.ConversationId][]gocron.Job

	reminderLeadTime time.Duration

	cancelSubscription context.CancelFunc
}

// New constructs a Manager, starts its scheduler, and subscribes to
// every conversationExpired event so an explosion observed via another
// path (another device, a direct write) still cancels this device's
// alarms. reminderLeadTime is how long before expiresAt the reminder
// alarm fires.
func New(logger *slog.Logger, notifier port.UserNotificationCenter, convRepo port.ConversationRepo, bus eventbus.Dispatcher, reminderLeadTime time.Duration) (*Manager, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("explosion: build scheduler: %w", err)
	}
	scheduler.Start()

	m := &Manager{
		logger:           logger,
		scheduler:        scheduler,
		notifier:         notifier,
		convRepo:         convRepo,
		bus:              bus,
		jobsByConvId:     make(map[model.ConversationId][]gocron.Job),
		reminderLeadTime: reminderLeadTime,
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelSubscription = cancel

	expired, err := bus.Subscribe(ctx, event.ConversationExpired)
	if err != nil {
		cancel()
		scheduler.Shutdown()
		return nil, fmt.Errorf("explosion: subscribe to conversationExpired: %w", err)
	}
	go m.consumeExpired(expired)

	scheduled, err := bus.Subscribe(ctx, event.ConversationScheduledExplosion)
	if err != nil {
		cancel()
		scheduler.Shutdown()
		return nil, fmt.Errorf("explosion: subscribe to conversationScheduledExplosion: %w", err)
	}
	go m.consumeScheduled(scheduled)

	return m, nil
}

func (m *Manager) consumeExpired(msgs <-chan *message.Message) {
	for msg := range msgs {
		var ev event.ExpiredEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			m.logger.Warn("EXPLOSION_EVENT_DECODE_FAILED", "error", err)
			msg.Nack()
			continue
		}
		m.HandleExpired(msg, ev.ConversationId)
	}
}

func (m *Manager) consumeScheduled(msgs <-chan *message.Message) {
	for msg := range msgs {
		var ev event.ScheduledExplosionEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			m.logger.Warn("EXPLOSION_SCHEDULED_EVENT_DECODE_FAILED", "error", err)
			msg.Nack()
			continue
		}
		if err := m.Schedule(msg.Context(), ev.ConversationId, ev.ExpiresAt); err != nil {
			m.logger.Warn("EXPLOSION_SCHEDULE_FAILED", "conversationId", ev.ConversationId, "error", err)
			msg.Nack()
			continue
		}
		msg.Ack()
	}
}

// Close stops the scheduler and the conversationExpired subscription.
// Alarms are not persisted; a subsequent RescheduleAll call after
// restart rebuilds them from convRepo.
func (m *Manager) Close() error {
	m.cancelSubscription()
	return m.scheduler.Shutdown()
}

// Schedule arms the reminder (if more than reminderLeadTime remains)
// and explosion alarms for a conversation whose expiresAt was just
// set.
func (m *Manager) Schedule(ctx context.Context, id model.ConversationId, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked(id)

	var jobs []gocron.Job
	now := time.Now()

	if remaining := expiresAt.Sub(now); remaining > m.reminderLeadTime {
		job, err := m.scheduler.NewJob(
			gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(expiresAt.Add(-m.reminderLeadTime))),
			gocron.NewTask(func() { m.fireReminder(id) }),
			gocron.WithName(reminderJobName(id)),
		)
		if err != nil {
			return fmt.Errorf("explosion: schedule reminder for %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}

	explodeJob, err := m.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(expiresAt)),
		gocron.NewTask(func() { m.fireExplosion(id) }),
		gocron.WithName(explosionJobName(id)),
	)
	if err != nil {
		return fmt.Errorf("explosion: schedule explosion for %s: %w", id, err)
	}
	jobs = append(jobs, explodeJob)

	m.jobsByConvId[id] = jobs
	return nil
}

// Cancel removes both alarms for a conversation, used when
// conversationExpired fires.
func (m *Manager) Cancel(id model.ConversationId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked(id)
}

// HasJobs reports whether any alarm is still armed for id.
func (m *Manager) HasJobs(id model.ConversationId) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobsByConvId[id]) > 0
}

// cancelLocked assumes mu is already held.
func (m *Manager) cancelLocked(id model.ConversationId) {
	for _, job := range m.jobsByConvId[id] {
		if err := m.scheduler.RemoveJob(job.ID()); err != nil {
			m.logger.Warn("EXPLOSION_JOB_REMOVE_FAILED", "conversationId", id, "error", err)
		}
	}
	delete(m.jobsByConvId, id)
}

func (m *Manager) fireReminder(id model.ConversationId) {
	err := m.notifier.Add(context.Background(), port.NotificationRequest{
		Identifier:       reminderJobName(id),
		Title:            "Conversation exploding soon",
		Body:             fmt.Sprintf("Will explode in %s", m.reminderLeadTime),
		ThreadIdentifier: id.String(),
		UserInfo:         map[string]any{"isExplosionReminder": true},
	})
	if err != nil {
		m.logger.Warn("EXPLOSION_REMINDER_NOTIFY_FAILED", "conversationId", id, "error", err)
	}
}

func (m *Manager) fireExplosion(id model.ConversationId) {
	ctx := context.Background()
	err := m.notifier.Add(ctx, port.NotificationRequest{
		Identifier:       explosionJobName(id),
		Title:            "Conversation exploded",
		Body:             "Boom!",
		ThreadIdentifier: id.String(),
		UserInfo:         map[string]any{"isExplosion": true},
	})
	if err != nil {
		m.logger.Warn("EXPLOSION_NOTIFY_FAILED", "conversationId", id, "error", err)
	}
	if pubErr := m.bus.Publish(ctx, event.NewExpiredEvent(id)); pubErr != nil {
		m.logger.Warn("EXPLOSION_EVENT_PUBLISH_FAILED", "conversationId", id, "error", pubErr)
	}
}

// HandleExpired is the conversationExpired subscriber: it cancels any
// still-armed alarms for the conversation (it may have exploded via a
// path other than this manager's own alarm, e.g. another device).
func (m *Manager) HandleExpired(msg *message.Message, id model.ConversationId) {
	m.Cancel(id)
	msg.Ack()
}

// RescheduleAll re-derives every alarm from persisted conversations,
// since alarms do not survive cold starts. cmd calls it once at app
// start; no foreground event triggers it.
func (m *Manager) RescheduleAll(ctx context.Context) error {
	hasExpiresAt := true
	convs, err := m.convRepo.DetailedQuery(ctx, port.ConversationFilter{HasExpiresAt: &hasExpiresAt})
	if err != nil {
		return fmt.Errorf("explosion: query conversations with expiresAt: %w", err)
	}

	now := time.Now()
	for _, c := range convs {
		if c.ExpiresAt == nil {
			continue
		}
		if c.ExpiresAt.Before(now) {
			continue
		}
		if err := m.Schedule(ctx, c.ConversationId, *c.ExpiresAt); err != nil {
			m.logger.Warn("EXPLOSION_RESCHEDULE_FAILED", "conversationId", c.ConversationId, "error", err)
		}
	}
	return nil
}
