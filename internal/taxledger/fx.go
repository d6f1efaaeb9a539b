package taxledger

import (
	"github.com/kudibooks/kudibooks/internal/taxledger/repository"
	"github.com/kudibooks/kudibooks/internal/taxledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("taxledger",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
