package backend

import (
	"log/slog"

	"github.com/xmtplabs/convos-core/internal/adapter/memory"
	"github.com/xmtplabs/convos-core/internal/port"
	"go.uber.org/fx"
)

var Module = fx.Module("backend",
	fx.Provide(
		fx.Annotate(
			func(logger *slog.Logger) *Guarded {
				return New(memory.NewBackend(), logger)
			},
			fx.As(new(port.MessagingBackend)),
		),
	),
)
