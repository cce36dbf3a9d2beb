package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loom-dev/loom/internal/config"
	"github.com/loom-dev/loom/internal/dev"
	"github.com/loom-dev/loom/internal/pipeline"
	"github.com/loom-dev/loom/internal/process"
	"github.com/loom-dev/loom/internal/reload"
	"github.com/loom-dev/loom/internal/toolchain"
	"github.com/loom-dev/loom/internal/watch"
)

func devCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start watch mode",
		Long: `Build the project, start the server, and watch for changes.

On every change loom rebuilds only the affected categories, restarts
the server when its binary actually changed, and notifies connected
browsers. Style-only changes swap stylesheets in place.

Examples:
  loom dev
  loom dev --port=8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(port, host)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to serve on (default from loom.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from loom.json)")

	return cmd
}

func runDev(port int, host string) error {
	if err := toolchain.CheckGo(); err != nil {
		errorMsg("Go is not installed or not in PATH")
		info("Install Go from https://go.dev/dl/")
		return err
	}

	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Dev.Port = port
		cfg.Dev.AppPort = port + 1
	}
	if host != "" {
		cfg.Dev.Host = host
	}

	printBanner()
	fmt.Println("  dev")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n\n  Shutting down...")
		cancel()
	}()

	hub := reload.NewHub()
	defer hub.Close()

	supervisor := process.NewSupervisor(cfg.Dir(), []string{
		fmt.Sprintf("PORT=%d", cfg.Dev.AppPort),
		"LOOM_DEV=1",
	}, cfg.StopGrace())
	defer supervisor.Stop()

	orch := &dev.Orchestrator{
		Runner:     pipeline.NewRunner(cfg.OutputPath(), pipeline.DefaultSteps(cfg, false)),
		Supervisor: supervisor,
		Hub:        hub,
		Output:     cfg.OutputPath(),
	}

	info("Building...")
	outcome := orch.ColdBuild(ctx)
	if outcome.Status != pipeline.Succeeded {
		errorMsg("Initial build %s", outcome.Status)
	} else {
		success("Built in %s", outcome.Duration.Round(time.Millisecond))
	}

	watcher := watch.NewWatcher(watch.Config{
		Roots:   cfg.WatchRoots(),
		Exclude: []string{cfg.OutputPath()},
		Ignore:  cfg.Dev.Ignore,
		Classifier: &watch.Classifier{
			UIDir:     cfg.UIPath(),
			StylesDir: cfg.StylesPath(),
			AssetsDir: cfg.AssetsPath(),
		},
	})
	debouncer := watch.NewDebouncer(cfg.DebounceWindow(), watcher.Events())
	go debouncer.Run(ctx)

	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.Start(ctx) }()

	go orch.Run(ctx, debouncer.Intents())

	server := dev.NewServer(cfg, hub)
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	success("Serving on %s", cfg.DevURL())
	fmt.Println()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		return err
	case err := <-watchErr:
		// Watch mode cannot continue, but the built artifacts and the
		// running server stay up until shutdown.
		if err != nil {
			errorMsg("File watching stopped; rebuilds are disabled")
			<-ctx.Done()
			return err
		}
		return nil
	}
}
