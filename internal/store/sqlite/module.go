package sqlite

import (
	"github.com/xmtplabs/convos-core/internal/port"
	"go.uber.org/fx"
)

// DSN is the sqlite data source name, supplied by cmd's config
// provider; kept as its own type so fx does not ambiguously match it
// against any other string dependency in the graph.
type DSN string

var Module = fx.Module("sqlite-store",
	fx.Provide(
		func(dsn DSN) (*Store, error) { return Open(string(dsn)) },
		func(s *Store) port.InboxActivityRepo { return s.ActivityRepo() },
		func(s *Store) port.PendingInviteRepo { return s.PendingInviteRepo() },
		func(s *Store) port.ConversationRepo { return s.ConversationRepo() },
	),
)
