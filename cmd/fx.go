package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xmtplabs/convos-core/internal/adapter/memory"
	"github.com/xmtplabs/convos-core/internal/backend"
	"github.com/xmtplabs/convos-core/internal/config"
	"github.com/xmtplabs/convos-core/internal/conversation"
	"github.com/xmtplabs/convos-core/internal/eventbus"
	"github.com/xmtplabs/convos-core/internal/explosion"
	"github.com/xmtplabs/convos-core/internal/lifecycle"
	"github.com/xmtplabs/convos-core/internal/store/sqlite"
	"github.com/xmtplabs/convos-core/internal/unusedcache"
	"go.uber.org/fx"
)

// ProvideLogger builds the process-wide structured logger, written to
// stderr as JSON so it composes with whatever log shipper the host
// deployment already runs.
func ProvideLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// ProvideMetricsRegistry gives every component a shared prometheus
// registry to register its collectors against.
func ProvideMetricsRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideSQLiteDSN namespaces the sqlite file under the configured
// base directory.
func ProvideSQLiteDSN(cfg *config.Config) sqlite.DSN {
	return sqlite.DSN("file:" + cfg.DBBaseDir + "/core.db?_pragma=busy_timeout(5000)")
}

// NewApp wires the full composition root: configuration, the
// dev-only adapter stand-ins, the local repository store, and the
// five core components (Lifecycle Manager, Unused-Inbox Cache,
// Conversation Metadata Writer, Scheduled Explosion Manager, event
// bus), following the teacher's fx.New(...) composition shape.
func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideMetricsRegistry,
			func(reg *prometheus.Registry) prometheus.Registerer { return reg },
			ProvideSQLiteDSN,
		),
		memory.Module,
		backend.Module,
		sqlite.Module,
		eventbus.Module,
		unusedcache.Module,
		lifecycle.Module,
		conversation.Module,
		explosion.Module,
		fx.Invoke(func(lc fx.Lifecycle, m *lifecycle.Manager, em *explosion.Manager, _ *conversation.Writer) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if err := m.InitializeOnAppLaunch(ctx); err != nil {
						return err
					}
					return em.RescheduleAll(ctx)
				},
				OnStop: func(ctx context.Context) error { return m.StopAll() },
			})
		}),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, reg *prometheus.Registry, logger *slog.Logger) {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
							logger.Error("METRICS_SERVER_FAILED", "error", err)
						}
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error { return srv.Shutdown(ctx) },
			})
		}),
	)
}
