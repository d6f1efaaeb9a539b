package posting

import (
	"github.com/kudibooks/kudibooks/internal/posting/service"
	"go.uber.org/fx"
)

var Module = fx.Module("posting",
	fx.Provide(service.NewService),
)
