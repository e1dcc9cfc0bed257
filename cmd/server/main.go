package main

import (
	"github.com/redstring/corkboard/internal/server"
	"github.com/redstring/corkboard/internal/util"
	"github.com/redstring/corkboard/pkg/logger"
	"github.com/redstring/corkboard/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
