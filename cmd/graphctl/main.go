// Command graphctl runs engine operations against the configured store from
// the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"districtgraph/infrastructure/config"
	"districtgraph/infrastructure/di"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	root := newRootCmd(func(ctx context.Context) (Engine, func(), error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, nil, err
		}
		container, cleanup, err := di.InitializeContainer(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return container.Engine, func() {
			_ = container.Logger.Sync()
			cleanup()
		}, nil
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
