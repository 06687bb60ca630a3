// Command fixture is a reference server under test for the harness.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/bodyleak/internal/buildinfo"
	"github.com/and161185/bodyleak/internal/config"
	"github.com/and161185/bodyleak/internal/fixture"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	buildinfo.PrintBuildInfo(buildVersion, buildDate, buildCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := config.NewFixtureConfig()
	if err != nil {
		log.Fatal(err)
	}
	defer config.Logger.Sync()

	if err := fixture.NewServer(config).Run(ctx); err != nil {
		config.Logger.Fatal(err)
	}
}
