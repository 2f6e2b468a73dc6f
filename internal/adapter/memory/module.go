package memory

import (
	"log/slog"

	"github.com/xmtplabs/convos-core/internal/port"
	"go.uber.org/fx"
)

// Module provides the dev-only stand-ins this package defines, each
// bound to the port it fills in. A real deployment replaces this
// module with one that supplies genuine adapters instead.
var Module = fx.Module("memory-adapters",
	fx.Provide(
		fx.Annotate(NewKeychain, fx.As(new(port.KeychainService))),
		fx.Annotate(NewIdentityStore, fx.As(new(port.IdentityStore))),
		fx.Annotate(NewNetworkMonitor, fx.As(new(port.NetworkMonitor))),
		fx.Annotate(NewAppLifecycle, fx.As(new(port.AppLifecycle))),
		fx.Annotate(
			func(logger *slog.Logger) *NotificationCenter { return NewNotificationCenter(logger) },
			fx.As(new(port.UserNotificationCenter)),
		),
	),
)
