// Package app provides the clustering command.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/sentinel-cluster/cmd/clustering/app/options"
	clusteringsvc "github.com/kart-io/sentinel-cluster/internal/clustering"
	"github.com/kart-io/sentinel-cluster/pkg/infra/app"
)

const commandDesc = `Sentinel Clustering

Groups user conversations of a project by intent.

One run:
  - loads messages, sessions or users matching the request filters
  - condenses each item with a chat model and embeds the condensed text
  - clusters the vectors (dbscan, agglomerative or kmeans)
  - names and describes every cluster with a chat model
  - stores clusters and a 3D projection in MongoDB`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(clusteringsvc.Name),
		app.WithShortDescription("Cluster user conversations by intent"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.ServerOptions) app.RunFunc {
	return func(ctx context.Context) error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}
