// Package backend wraps the MessagingBackend port with a circuit
// breaker so a flapping SDK does not spin coordinators into tight
// retry loops (spec §7, BackendFailure).
package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xmtplabs/convos-core/internal/domain/model"
	"github.com/xmtplabs/convos-core/internal/port"
)

// Guarded decorates a port.MessagingBackend with a circuit breaker.
// OpenClient and CreateIdentity are one-shot user-facing calls (spec
// §7 propagation policy): their failures trip the breaker and
// propagate to the caller rather than being retried internally.
type Guarded struct {
	inner   port.MessagingBackend
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// New wraps backend behind a breaker with production-ready defaults:
// trip after 5 consecutive failures, half-open after 30s.
func New(inner port.MessagingBackend, logger *slog.Logger) *Guarded {
	settings := gobreaker.Settings{
		Name:        "messaging-backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("BACKEND_CIRCUIT_STATE_CHANGE", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Guarded{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

func (g *Guarded) CreateIdentity(ctx context.Context) (model.InboxId, error) {
	res, err := g.breaker.Execute(func() (any, error) {
		return g.inner.CreateIdentity(ctx)
	})
	if err != nil {
		return "", err
	}
	return res.(model.InboxId), nil
}

func (g *Guarded) OpenClient(ctx context.Context, clientId model.ClientId, dbEncryptionKey []byte, dbDirectory string) (port.ClientHandle, error) {
	res, err := g.breaker.Execute(func() (any, error) {
		return g.inner.OpenClient(ctx, clientId, dbEncryptionKey, dbDirectory)
	})
	if err != nil {
		return nil, err
	}
	return res.(port.ClientHandle), nil
}
