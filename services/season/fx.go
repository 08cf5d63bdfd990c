package season

import (
	"go.uber.org/fx"
)

var Module = fx.Module("season.service",
	fx.Provide(NewService),
)
