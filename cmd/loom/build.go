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
	"github.com/loom-dev/loom/internal/pipeline"
	"github.com/loom-dev/loom/internal/toolchain"
)

func buildCmd() *cobra.Command {
	var (
		output  string
		release bool
		clean   bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build once and exit",
		Long: `Run every build step once, without watching or serving.

This compiles the UI to WebAssembly, emits its JavaScript glue,
compiles the server binary, processes styles, and mirrors static
assets into the output directory.

Examples:
  loom build
  loom build --release
  loom build --output=dist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(output, release, clean)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default from loom.json)")
	cmd.Flags().BoolVar(&release, "release", false, "Strip symbols and paths for deployment")
	cmd.Flags().BoolVar(&clean, "clean", false, "Clean the output directory first")

	return cmd
}

func runBuild(output string, release, clean bool) error {
	if err := toolchain.CheckGo(); err != nil {
		return err
	}

	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if output != "" {
		cfg.Build.Output = output
	}

	if clean {
		if err := os.RemoveAll(cfg.OutputPath()); err != nil {
			return err
		}
	}

	fmt.Println("  Building...")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	runner := pipeline.NewRunner(cfg.OutputPath(), pipeline.DefaultSteps(cfg, release))
	outcome := runner.Execute(ctx, 1, pipeline.AllCategories())

	for _, res := range outcome.Results {
		switch res.Status {
		case pipeline.StatusSuccess:
			success("%-8s %s", res.Name, res.Duration.Round(time.Millisecond))
		case pipeline.StatusSkipped:
			info("%-8s skipped", res.Name)
		case pipeline.StatusFailed:
			errorMsg("%-8s failed", res.Name)
		}
	}
	fmt.Println()

	if outcome.Status != pipeline.Succeeded {
		for _, res := range outcome.Results {
			if res.Err != nil {
				return res.Err
			}
		}
		return fmt.Errorf("build %s", outcome.Status)
	}

	success("Built %d artifacts in %s", len(outcome.Changed), outcome.Duration.Round(time.Millisecond))
	info("Output: " + cfg.OutputPath())
	return nil
}
