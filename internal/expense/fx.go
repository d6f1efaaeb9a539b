package expense

import (
	"github.com/kudibooks/kudibooks/internal/expense/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("expense",
	fx.Provide(repository.NewRepository),
)
