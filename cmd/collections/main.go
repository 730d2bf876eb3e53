package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/collections/internal/cache"
	"github.com/smallbiznis/collections/internal/clock"
	"github.com/smallbiznis/collections/internal/collections"
	"github.com/smallbiznis/collections/internal/config"
	"github.com/smallbiznis/collections/internal/migration"
	"github.com/smallbiznis/collections/internal/observability"
	"github.com/smallbiznis/collections/internal/ratelimit"
	"github.com/smallbiznis/collections/internal/server"
	"github.com/smallbiznis/collections/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,

		collections.Module,
		server.Module,
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
