package main

import (
	"github.com/tuchaVshortah/financial-kg-agent/internal/server"
	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger/console"

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
