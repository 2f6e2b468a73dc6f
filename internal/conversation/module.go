package conversation

import (
	"log/slog"

	"github.com/xmtplabs/convos-core/internal/eventbus"
	"github.com/xmtplabs/convos-core/internal/port"
	"go.uber.org/fx"
)

const defaultCompactCacheSize = 256

var Module = fx.Module("conversation",
	fx.Provide(func(logger *slog.Logger, repo port.ConversationRepo, bus eventbus.Dispatcher) (*Writer, error) {
		return New(logger, repo, bus, defaultCompactCacheSize)
	}),
)
