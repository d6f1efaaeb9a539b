package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/kudibooks/kudibooks/internal/clock"
	"github.com/kudibooks/kudibooks/internal/config"
	"github.com/kudibooks/kudibooks/internal/migration"
	"github.com/kudibooks/kudibooks/internal/scheduler"
	"github.com/kudibooks/kudibooks/internal/seed"
	"github.com/kudibooks/kudibooks/internal/server"
	"github.com/kudibooks/kudibooks/pkg/db"
	"github.com/kudibooks/kudibooks/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Functional domains
		migration.Module,
		seed.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
