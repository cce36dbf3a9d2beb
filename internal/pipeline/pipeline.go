// Package pipeline runs the build steps for one build attempt: step
// selection from a change intent, dependency ordering, staged outputs with
// commit-after-cancel-check, and artifact fingerprinting.
package pipeline

import (
	"context"
	"time"

	"github.com/loom-dev/loom/internal/watch"
)

// StepFunc performs a step's work, writing outputs into dir.
type StepFunc func(ctx context.Context, dir string) error

// Step is one entry in the build step table. The table is fixed at startup;
// intents select from it, they never add to it.
type Step struct {
	// Name identifies the step in results, logs, and Needs references.
	Name string

	// Category is the change category that selects this step.
	Category watch.Category

	// Needs names steps that must succeed before this one runs. A failed
	// or skipped dependency skips this step.
	Needs []string

	// Artifacts are the output paths this step produces, relative to the
	// output directory. Directories are fingerprinted as trees.
	Artifacts []string

	// Run does the work.
	Run StepFunc
}

// StepStatus is the outcome of a single step.
type StepStatus int

const (
	StatusSuccess StepStatus = iota
	StatusFailed
	StatusSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// StepResult records how one step ended.
type StepResult struct {
	Name     string
	Status   StepStatus
	Err      error
	Duration time.Duration
}

// Artifact is a committed output whose content differs from the last
// successful build.
type Artifact struct {
	// Path is relative to the output directory.
	Path string

	// Digest is the artifact's content digest.
	Digest string

	// Category is the change category of the step that produced it.
	Category watch.Category
}

// Status is the overall outcome of a build attempt.
type Status int

const (
	Succeeded Status = iota
	Failed
	Canceled
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

// Outcome is the result of one build attempt.
type Outcome struct {
	Status   Status
	Results  []StepResult
	Changed  []Artifact
	Duration time.Duration
}

// ChangedOnly reports whether every changed artifact belongs to category c.
// False when nothing changed.
func (o Outcome) ChangedOnly(c watch.Category) bool {
	if len(o.Changed) == 0 {
		return false
	}
	for _, a := range o.Changed {
		if a.Category != c {
			return false
		}
	}
	return true
}

// ChangedIn reports whether any changed artifact belongs to category c.
func (o Outcome) ChangedIn(c watch.Category) bool {
	for _, a := range o.Changed {
		if a.Category == c {
			return true
		}
	}
	return false
}

// ArtifactDigest returns the digest of the named changed artifact, if any.
func (o Outcome) ArtifactDigest(path string) (string, bool) {
	for _, a := range o.Changed {
		if a.Path == path {
			return a.Digest, true
		}
	}
	return "", false
}
