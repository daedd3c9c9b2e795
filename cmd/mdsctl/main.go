package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"mds-backend/internal/config"
	"mds-backend/internal/logger"
)

func main() {
	// neither command needs a store; token reports a missing secret itself
	cfg, _ := config.Load()
	if err := logger.Init(cfg.Server.Environment); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&tokenCmd{cfg: cfg.JWT, out: os.Stdout}, "auth")
	subcommands.Register(&validateCmd{in: os.Stdin, out: os.Stdout}, "payloads")

	flag.Parse()
	status := subcommands.Execute(context.Background())
	logger.Sync()
	os.Exit(int(status))
}
