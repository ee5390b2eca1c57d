// Package main is the entry point for the Sentinel clustering job.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/sentinel-cluster/cmd/clustering/app"
)

func main() {
	app.NewApp().Run()
}
