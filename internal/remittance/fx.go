package remittance

import (
	"github.com/kudibooks/kudibooks/internal/remittance/service"
	"go.uber.org/fx"
)

var Module = fx.Module("remittance",
	fx.Provide(service.NewService),
)
