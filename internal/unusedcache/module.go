package unusedcache

import "go.uber.org/fx"

var Module = fx.Module("unusedcache",
	fx.Provide(New),
)
