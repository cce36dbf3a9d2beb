// Package dev runs watch mode: the orchestration loop tying intents to
// build attempts, the server supervisor, the reload hub, and the dev HTTP
// surface in front of the app.
package dev

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/loom-dev/loom/internal/errors"
	"github.com/loom-dev/loom/internal/metrics"
	"github.com/loom-dev/loom/internal/pipeline"
	"github.com/loom-dev/loom/internal/process"
	"github.com/loom-dev/loom/internal/reload"
	"github.com/loom-dev/loom/internal/toolchain"
	"github.com/loom-dev/loom/internal/watch"
)

// Orchestrator owns the build loop. At most one build attempt is in flight;
// an intent arriving mid-attempt supersedes it: the attempt is canceled,
// waited out, and a fresh attempt covering both intents starts. Only the
// latest attempt's outcome is ever finalized.
type Orchestrator struct {
	Runner     *pipeline.Runner
	Supervisor *process.Supervisor
	Hub        *reload.Hub

	// Output is the committed output directory, where the server binary
	// lands.
	Output string

	attempt uint64
}

type attemptResult struct {
	id      uint64
	outcome pipeline.Outcome
}

// ColdBuild runs the full step table once, synchronously, and finalizes the
// result. Watch mode calls this before the loop so the first page load has
// artifacts and a server.
func (o *Orchestrator) ColdBuild(ctx context.Context) pipeline.Outcome {
	o.attempt++
	outcome := o.Runner.Execute(ctx, o.attempt, pipeline.AllCategories())
	o.finalize(ctx, outcome)
	return outcome
}

// Run consumes intents until ctx is canceled or the channel closes. The
// supervised server is left running when the loop exits on a watcher
// failure; a canceled ctx stops it.
func (o *Orchestrator) Run(ctx context.Context, intents <-chan watch.Intent) {
	var (
		cancelCurrent context.CancelFunc
		inflight      chan attemptResult
		current       watch.CategorySet
		pending       watch.CategorySet
		havePending   bool
	)

	start := func(categories watch.CategorySet) {
		o.attempt++
		id := o.attempt
		current = categories
		actx, cancel := context.WithCancel(ctx)
		cancelCurrent = cancel
		inflight = make(chan attemptResult, 1)
		go func() {
			inflight <- attemptResult{id: id, outcome: o.Runner.Execute(actx, id, categories)}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			if cancelCurrent != nil {
				cancelCurrent()
				<-inflight
			}
			return

		case intent, ok := <-intents:
			if !ok {
				if cancelCurrent != nil {
					cancelCurrent()
					<-inflight
				}
				return
			}

			if inflight != nil {
				// Supersede: cancel the running attempt. Its work
				// never commits, so the replacing attempt covers
				// both the canceled categories and the new ones.
				slog.Info("change during build, superseding", "categories", intent.Categories.String())
				metrics.IntentsSuperseded.Inc()
				pending = pending.Union(current).Union(intent.Categories)
				havePending = true
				cancelCurrent()
				continue
			}

			slog.Info("building", "categories", intent.Categories.String())
			start(intent.Categories)

		case res := <-inflight:
			cancelCurrent()
			cancelCurrent = nil
			inflight = nil

			if res.id == o.attempt {
				o.finalize(ctx, res.outcome)
			}

			if havePending {
				categories := pending
				pending = watch.CategorySet(0)
				havePending = false
				slog.Info("building", "categories", categories.String())
				start(categories)
			}

		case ev := <-o.Supervisor.Exits():
			// No relaunch here; the next successful build brings the
			// server back.
			errors.PrintError(ev.Err)
		}
	}
}

// finalize applies a completed attempt's outcome: commit fingerprints,
// restart the server if its binary changed, notify browsers. Failed and
// canceled attempts change nothing.
func (o *Orchestrator) finalize(ctx context.Context, outcome pipeline.Outcome) {
	switch outcome.Status {
	case pipeline.Canceled:
		slog.Debug("build canceled", "duration", outcome.Duration)
		return

	case pipeline.Failed:
		for _, res := range outcome.Results {
			if res.Status == pipeline.StatusFailed && res.Err != nil {
				errors.PrintError(res.Err)
			}
		}
		slog.Error("build failed, keeping previous artifacts", "duration", outcome.Duration)
		return
	}

	o.Runner.CommitOutcome(outcome)
	slog.Info("build succeeded", "duration", outcome.Duration, "changed", len(outcome.Changed))

	if outcome.ChangedIn(watch.CategoryServer) || o.Supervisor.State() == process.Stopped {
		digest, ok := outcome.ArtifactDigest(toolchain.ServerArtifact)
		if !ok {
			digest, _ = o.Runner.Registry.Get(toolchain.ServerArtifact)
		}
		binary := filepath.Join(o.Output, toolchain.ServerArtifact)
		if err := o.Supervisor.RestartIfChanged(ctx, binary, digest); err != nil {
			errors.PrintError(err)
		}
	}

	if len(outcome.Changed) == 0 {
		return
	}
	if outcome.ChangedOnly(watch.CategoryStyle) {
		o.Hub.Broadcast(reload.Directive{Kind: reload.KindStyle, Path: toolchain.StyleArtifact})
	} else {
		o.Hub.Broadcast(reload.Directive{Kind: reload.KindReload})
	}
}
