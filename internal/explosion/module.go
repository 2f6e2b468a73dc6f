package explosion

import (
	"context"
	"log/slog"

	"github.com/xmtplabs/convos-core/internal/config"
	"github.com/xmtplabs/convos-core/internal/eventbus"
	"github.com/xmtplabs/convos-core/internal/port"
	"go.uber.org/fx"
)

var Module = fx.Module("explosion",
	fx.Provide(func(
		logger *slog.Logger,
		notifier port.UserNotificationCenter,
		convRepo port.ConversationRepo,
		bus eventbus.Dispatcher,
		cfg *config.Config,
	) (*Manager, error) {
		return New(logger, notifier, convRepo, bus, cfg.ExplosionReminderLeadTime)
	}),
	fx.Invoke(func(lc fx.Lifecycle, m *Manager) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error { return m.Close() },
		})
	}),
)
