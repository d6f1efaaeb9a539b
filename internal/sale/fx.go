package sale

import (
	"github.com/kudibooks/kudibooks/internal/sale/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("sale",
	fx.Provide(repository.NewRepository),
)
