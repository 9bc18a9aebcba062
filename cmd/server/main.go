package main

import (
	"muhasibi/internal/server"
	"muhasibi/internal/util"
	"muhasibi/pkg/logger"
	"muhasibi/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.New(console.Params{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
