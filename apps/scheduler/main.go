package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/kudibooks/kudibooks/internal/audit"
	"github.com/kudibooks/kudibooks/internal/clock"
	"github.com/kudibooks/kudibooks/internal/companytax"
	"github.com/kudibooks/kudibooks/internal/config"
	"github.com/kudibooks/kudibooks/internal/expense"
	"github.com/kudibooks/kudibooks/internal/migration"
	"github.com/kudibooks/kudibooks/internal/sale"
	"github.com/kudibooks/kudibooks/internal/scheduler"
	"github.com/kudibooks/kudibooks/internal/taxledger"
	"github.com/kudibooks/kudibooks/pkg/db"
	"github.com/kudibooks/kudibooks/pkg/log"
	"go.uber.org/fx"
)

// Standalone sweep worker: runs the tax aggregate refresh loop without
// serving HTTP. The sweep is idempotent, so it coexists with the
// inline refresh done by the API on every posting.
func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain services required by the sweep
		taxledger.Module,
		companytax.Module,
		audit.Module,
		sale.Module,
		expense.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
