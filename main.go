package main

import (
	"context"
	"os"

	"github.com/TxnLab/autofarm-diamond/internal/lib/misc"
)

// App is the process wide cli application, set up once at startup.
var App *FarmApp

func main() {
	App = initApp()
	if err := App.cliCmd.Run(context.Background(), os.Args); err != nil {
		misc.Errorf(App.logger, "Error: %v", err)
		os.Exit(1)
	}
}
