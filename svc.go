package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

func GetDaemonCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "daemon",
		Aliases: []string{"d"},
		Usage:   "Run the application as a daemon, producing blocks and serving metrics",
		Action:  runAsDaemon,
	}
}

func runAsDaemon(ctx context.Context, _ *cli.Command) error {
	var wg sync.WaitGroup

	cfg, err := LoadDaemonConfig()
	if err != nil {
		return err
	}
	// global flags win over the environment
	if App.dataDir != "" {
		cfg.DataDir = App.dataDir
	}
	if App.configFile != "" || App.dataDir != "" {
		cfg.ConfigFile = App.deploymentPathIn(cfg.DataDir)
	}
	cfg.StoreTimeout = App.storeTimeout

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop the server.
	errc := make(chan error)

	// Setup interrupt handler. This optional step configures the process so
	// that SIGINT and SIGTERM signals cause the services to stop gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	ctx, cancel := context.WithCancel(ctx)

	newDaemon(App.logger, cfg).start(ctx, &wg)

	misc.Infof(App.logger, "exiting (%v)", <-errc) // wait for termination signal

	// Send cancellation signal to the goroutines.
	cancel()
	misc.Infof(App.logger, "waiting on background tasks..")
	wg.Wait()

	misc.Infof(App.logger, "exited")
	return nil
}
