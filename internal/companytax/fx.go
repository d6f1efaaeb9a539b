package companytax

import (
	"github.com/kudibooks/kudibooks/internal/companytax/service"
	"go.uber.org/fx"
)

var Module = fx.Module("companytax",
	fx.Provide(service.NewEngine),
)
