package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/avyn/avstream/app/cli"
	"github.com/avyn/avstream/log"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	logger := log.New("Core").WithOutput(log.NewConsoleWriter(os.Stderr, log.Lwarn, true))

	app, err := cli.New(os.LookupEnv, os.Stdout, os.Stderr)
	if err != nil {
		logger.Error().WithError(err).Log("Failed to start")
		os.Exit(1)
	}

	// Stop the running command on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err = app.Run(ctx, os.Args[1:])

	stop()
	app.Close()

	if err != nil {
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}

		os.Exit(1)
	}
}
