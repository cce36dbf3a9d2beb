package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loom-dev/loom/internal/errors"
	"github.com/loom-dev/loom/internal/hash"
	"github.com/loom-dev/loom/internal/metrics"
	"github.com/loom-dev/loom/internal/watch"
)

// stageDirName is the hidden directory under the output tree where in-flight
// step outputs land before they are committed.
const stageDirName = ".stage"

var tracer = otel.Tracer("loom/pipeline")

// Runner executes build attempts against a fixed step table. It is the only
// writer to the output directory.
type Runner struct {
	// Output is the committed output directory.
	Output string

	// Steps is the step table.
	Steps []Step

	// Registry holds last-successful artifact digests. Commit after a
	// succeeded attempt is the caller's call, via CommitOutcome.
	Registry *hash.Registry
}

// NewRunner creates a runner over the given step table.
func NewRunner(output string, steps []Step) *Runner {
	return &Runner{
		Output:   output,
		Steps:    steps,
		Registry: hash.NewRegistry(),
	}
}

// Execute runs one build attempt for the given change categories. Steps
// whose category is outside the set do not run; dependents of selected steps
// are pulled in. Independent steps run concurrently; a failed step skips its
// dependents but does not stop the others. Cancellation via ctx skips any
// step that has not yet committed.
func (r *Runner) Execute(ctx context.Context, attempt uint64, categories watch.CategorySet) Outcome {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "build",
		trace.WithAttributes(
			attribute.Int64("attempt", int64(attempt)),
			attribute.String("categories", categories.String()),
		))
	defer span.End()

	selected := r.selectSteps(categories)
	if len(selected) == 0 {
		return Outcome{Status: Succeeded, Duration: time.Since(start)}
	}

	stage := filepath.Join(r.Output, stageDirName, fmt.Sprintf("a%d", attempt))
	if err := os.MkdirAll(stage, 0755); err != nil {
		return r.finish(start, r.failAll(selected, errors.New("E310").Wrap(err)))
	}
	defer os.RemoveAll(stage)

	var (
		mu       sync.Mutex
		statuses = make(map[string]StepStatus, len(selected))
		done     = make(map[string]chan struct{}, len(selected))
	)
	for _, s := range selected {
		done[s.Name] = make(chan struct{})
	}
	isSelected := func(name string) bool { _, ok := done[name]; return ok }

	results := make(chan StepResult, len(selected))
	for _, step := range selected {
		step := step
		go func() {
			defer close(done[step.Name])

			// Needs outside the selection were built by an earlier
			// attempt; only in-flight dependencies gate this step.
			blocked := false
			for _, need := range step.Needs {
				if !isSelected(need) {
					continue
				}
				<-done[need]
				mu.Lock()
				st := statuses[need]
				mu.Unlock()
				if st != StatusSuccess {
					blocked = true
				}
			}

			var res StepResult
			if blocked {
				res = StepResult{Name: step.Name, Status: StatusSkipped}
			} else {
				res = r.runStep(ctx, step, filepath.Join(stage, step.Name))
			}

			mu.Lock()
			statuses[step.Name] = res.Status
			mu.Unlock()
			results <- res
		}()
	}

	outcome := Outcome{Status: Succeeded}
	for range selected {
		res := <-results
		outcome.Results = append(outcome.Results, res)
		metrics.StepsTotal.WithLabelValues(res.Name, res.Status.String()).Inc()
		if res.Status == StatusFailed {
			outcome.Status = Failed
		}
	}

	if ctx.Err() != nil {
		outcome.Status = Canceled
	}

	if outcome.Status != Failed {
		outcome.Changed = r.changedArtifacts(selected, statuses)
	}

	return r.finish(start, outcome)
}

// CommitOutcome records the digests of a succeeded attempt's artifacts so
// the next attempt compares against them. Call only for Succeeded outcomes.
func (r *Runner) CommitOutcome(o Outcome) {
	for _, a := range o.Changed {
		r.Registry.Commit(a.Path, a.Digest)
	}
}

func (r *Runner) selectSteps(categories watch.CategorySet) []Step {
	selected := make(map[string]bool, len(r.Steps))
	for _, s := range r.Steps {
		if categories.Has(s.Category) {
			selected[s.Name] = true
		}
	}

	// Pull in dependents of selected steps until the set is stable.
	for grew := true; grew; {
		grew = false
		for _, s := range r.Steps {
			if selected[s.Name] {
				continue
			}
			for _, need := range s.Needs {
				if selected[need] {
					selected[s.Name] = true
					grew = true
					break
				}
			}
		}
	}

	var out []Step
	for _, s := range r.Steps {
		if selected[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

func (r *Runner) runStep(ctx context.Context, step Step, dir string) StepResult {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "step."+step.Name)
	defer span.End()

	if ctx.Err() != nil {
		return StepResult{Name: step.Name, Status: StatusSkipped}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return StepResult{
			Name:     step.Name,
			Status:   StatusFailed,
			Err:      errors.New("E310").Wrap(err),
			Duration: time.Since(start),
		}
	}

	if err := step.Run(ctx, dir); err != nil {
		if ctx.Err() != nil {
			return StepResult{Name: step.Name, Status: StatusSkipped, Duration: time.Since(start)}
		}
		le, ok := err.(*errors.LoomError)
		if !ok {
			le = errors.Newf(errors.CategoryStep, "step %s failed", step.Name).Wrap(err)
		}
		le = le.WithStep(step.Name)
		slog.Error("step failed", "step", step.Name, "error", err)
		return StepResult{Name: step.Name, Status: StatusFailed, Err: le, Duration: time.Since(start)}
	}

	// The supersede check. A canceled attempt must leave the committed
	// output exactly as the previous successful build wrote it.
	if ctx.Err() != nil {
		return StepResult{Name: step.Name, Status: StatusSkipped, Duration: time.Since(start)}
	}

	if err := r.commit(step, dir); err != nil {
		return StepResult{Name: step.Name, Status: StatusFailed, Err: err, Duration: time.Since(start)}
	}

	return StepResult{Name: step.Name, Status: StatusSuccess, Duration: time.Since(start)}
}

// commit moves a step's staged artifacts into the output tree.
func (r *Runner) commit(step Step, stagedDir string) error {
	for _, rel := range step.Artifacts {
		src := filepath.Join(stagedDir, rel)
		dst := filepath.Join(r.Output, rel)

		if _, err := os.Stat(src); err != nil {
			return errors.New("E310").
				WithDetail(fmt.Sprintf("step %s did not produce %s", step.Name, rel)).
				Wrap(err)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return errors.New("E310").Wrap(err)
		}

		// Directory artifacts are swapped whole so deletions in the
		// source are reflected.
		if fi, err := os.Stat(src); err == nil && fi.IsDir() {
			if err := os.RemoveAll(dst); err != nil {
				return errors.New("E310").Wrap(err)
			}
		}
		if err := os.Rename(src, dst); err != nil {
			return errors.New("E310").Wrap(err)
		}
	}
	return nil
}

func (r *Runner) changedArtifacts(selected []Step, statuses map[string]StepStatus) []Artifact {
	var changed []Artifact
	for _, step := range selected {
		if statuses[step.Name] != StatusSuccess {
			continue
		}
		for _, rel := range step.Artifacts {
			path := filepath.Join(r.Output, rel)

			var digest string
			var err error
			if fi, serr := os.Stat(path); serr == nil && fi.IsDir() {
				digest, err = hash.Dir(path)
			} else {
				digest, err = hash.File(path)
			}
			if err != nil {
				slog.Warn("could not fingerprint artifact", "path", rel, "error", err)
				continue
			}

			if r.Registry.Changed(rel, digest) {
				changed = append(changed, Artifact{Path: rel, Digest: digest, Category: step.Category})
			}
		}
	}
	return changed
}

func (r *Runner) failAll(selected []Step, err error) Outcome {
	o := Outcome{Status: Failed}
	for _, s := range selected {
		o.Results = append(o.Results, StepResult{Name: s.Name, Status: StatusFailed, Err: err})
		metrics.StepsTotal.WithLabelValues(s.Name, StatusFailed.String()).Inc()
	}
	return o
}

func (r *Runner) finish(start time.Time, o Outcome) Outcome {
	o.Duration = time.Since(start)
	metrics.BuildsTotal.WithLabelValues(o.Status.String()).Inc()
	metrics.BuildDuration.Observe(o.Duration.Seconds())
	return o
}
