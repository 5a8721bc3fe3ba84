package main

import (
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/cli"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/server"
)

var config = &cli.DefaultConfig

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalln(err)
	}
	defer logger.Sync()

	runserver := func() {
		if config.ConfigFile != "" {
			if err := config.LoadFile(config.ConfigFile); err != nil {
				logger.Fatal("invalid config file", zap.Error(err))
			}
		}
		if err := server.Run(config, logger); err != nil {
			logger.Fatal("server terminated", zap.Error(err))
		}
	}

	ctx := cli.DefineFlags(config, logger, runserver)
	subcmd, err := ctx.Parse(os.Args)
	if err != nil {
		log.Fatalln(err)
	}

	if subcmd == nil {
		ctx.PrintUsage(os.Stdout)
		os.Exit(1)
	}
	subcmd.Handler()
}
