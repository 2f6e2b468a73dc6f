package lifecycle

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmtplabs/convos-core/internal/config"
	"github.com/xmtplabs/convos-core/internal/port"
	"github.com/xmtplabs/convos-core/internal/unusedcache"
	"go.uber.org/fx"
)

var Module = fx.Module("lifecycle",
	fx.Provide(
		func(
			logger *slog.Logger,
			backend port.MessagingBackend,
			identityStore port.IdentityStore,
			activityRepo port.InboxActivityRepo,
			pendingRepo port.PendingInviteRepo,
			unusedCache *unusedcache.Cache,
			cfg *config.Config,
			reg prometheus.Registerer,
		) *Manager {
			return New(
				logger,
				backend,
				identityStore,
				activityRepo,
				pendingRepo,
				unusedCache,
				cfg.DBBaseDir,
				reg,
				WithMaxAwakeInboxes(cfg.MaxAwakeInboxes),
				WithMaxAwakePendingInvites(cfg.MaxAwakePendingInvites),
				WithNewInboxProtectionWindow(cfg.NewInboxProtectionWindow),
				WithNewInboxConstructionWindow(cfg.NewInboxConstructionWindow),
				WithStalePendingInviteInterval(cfg.StalePendingInviteInterval),
			)
		},
	),
)
