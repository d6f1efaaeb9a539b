package payrolltax

import (
	"github.com/kudibooks/kudibooks/internal/payrolltax/repository"
	"github.com/kudibooks/kudibooks/internal/payrolltax/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payrolltax",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewEngine),
)
