//go:build !windows

package dev

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-dev/loom/internal/errors"
	"github.com/loom-dev/loom/internal/pipeline"
	"github.com/loom-dev/loom/internal/process"
	"github.com/loom-dev/loom/internal/reload"
	"github.com/loom-dev/loom/internal/watch"
)

type harness struct {
	orch    *Orchestrator
	hub     *reload.Hub
	sup     *process.Supervisor
	out     string
	intents chan watch.Intent
	stop    func()
}

func newHarness(t *testing.T, steps []pipeline.Step) *harness {
	t.Helper()
	out := t.TempDir()
	hub := reload.NewHub()
	sup := process.NewSupervisor(out, nil, time.Second)

	orch := &Orchestrator{
		Runner:     pipeline.NewRunner(out, steps),
		Supervisor: sup,
		Hub:        hub,
		Output:     out,
	}

	ctx, cancel := context.WithCancel(context.Background())
	intents := make(chan watch.Intent, 4)
	done := make(chan struct{})
	go func() {
		orch.Run(ctx, intents)
		close(done)
	}()

	h := &harness{orch: orch, hub: hub, sup: sup, out: out, intents: intents}
	h.stop = func() {
		cancel()
		<-done
		sup.Stop()
		hub.Close()
	}
	t.Cleanup(h.stop)
	return h
}

// dialSession connects a fake browser to the hub and returns a directive
// reader.
func dialSession(t *testing.T, hub *reload.Hub) func(timeout time.Duration) (reload.Directive, bool) {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.SessionCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.NotZero(t, hub.SessionCount(), "session never registered")

	return func(timeout time.Duration) (reload.Directive, bool) {
		conn.SetReadDeadline(time.Now().Add(timeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return reload.Directive{}, false
		}
		var d reload.Directive
		require.NoError(t, json.Unmarshal(data, &d))
		return d, true
	}
}

// countingStep writes a new value on every run so the artifact always
// changes.
func countingStep(name, artifact string, cat watch.Category, runs *atomic.Int32) pipeline.Step {
	return pipeline.Step{
		Name:      name,
		Category:  cat,
		Artifacts: []string{artifact},
		Run: func(ctx context.Context, dir string) error {
			n := runs.Add(1)
			return os.WriteFile(filepath.Join(dir, artifact), []byte(artifact+string(rune('0'+n))), 0644)
		},
	}
}

func TestOrchestrator_StyleOnlyChangeSendsStyleDirective(t *testing.T) {
	var styleRuns atomic.Int32
	h := newHarness(t, []pipeline.Step{
		countingStep("style", "app.css", watch.CategoryStyle, &styleRuns),
	})
	read := dialSession(t, h.hub)

	h.intents <- watch.Intent{Categories: watch.NewCategorySet(watch.CategoryStyle)}

	d, ok := read(3 * time.Second)
	require.True(t, ok, "no directive received")
	assert.Equal(t, reload.KindStyle, d.Kind)
	assert.Equal(t, "app.css", d.Path)
}

func TestOrchestrator_MixedChangeSendsReload(t *testing.T) {
	var styleRuns, uiRuns atomic.Int32
	h := newHarness(t, []pipeline.Step{
		countingStep("style", "app.css", watch.CategoryStyle, &styleRuns),
		countingStep("ui", "app.wasm", watch.CategoryUI, &uiRuns),
	})
	read := dialSession(t, h.hub)

	h.intents <- watch.Intent{
		Categories: watch.NewCategorySet(watch.CategoryStyle, watch.CategoryUI),
	}

	d, ok := read(3 * time.Second)
	require.True(t, ok, "no directive received")
	assert.Equal(t, reload.KindReload, d.Kind)
}

func TestOrchestrator_FailedBuildSendsNothing(t *testing.T) {
	h := newHarness(t, []pipeline.Step{
		{
			Name: "style", Category: watch.CategoryStyle, Artifacts: []string{"app.css"},
			Run: func(ctx context.Context, dir string) error {
				return errors.New("E303").WithDetail("bad selector")
			},
		},
	})
	read := dialSession(t, h.hub)

	h.intents <- watch.Intent{Categories: watch.NewCategorySet(watch.CategoryStyle)}

	_, ok := read(500 * time.Millisecond)
	assert.False(t, ok, "failed build must not notify browsers")
}

func TestOrchestrator_UnchangedOutputSendsNothing(t *testing.T) {
	// The step writes the same bytes every run, so only the first build
	// changes anything.
	step := pipeline.Step{
		Name: "style", Category: watch.CategoryStyle, Artifacts: []string{"app.css"},
		Run: func(ctx context.Context, dir string) error {
			return os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{}"), 0644)
		},
	}
	h := newHarness(t, []pipeline.Step{step})
	read := dialSession(t, h.hub)

	h.intents <- watch.Intent{Categories: watch.NewCategorySet(watch.CategoryStyle)}
	_, ok := read(3 * time.Second)
	require.True(t, ok, "first build should notify")

	h.intents <- watch.Intent{Categories: watch.NewCategorySet(watch.CategoryStyle)}
	_, ok = read(500 * time.Millisecond)
	assert.False(t, ok, "identical output must not notify browsers")
}

func TestOrchestrator_SupersedeUnionsIntents(t *testing.T) {
	// The first server build blocks until it is canceled; the follow-up
	// build must then cover server and style together.
	var serverRuns, styleRuns atomic.Int32
	firstStarted := make(chan struct{})
	var once atomic.Bool

	steps := []pipeline.Step{
		{
			Name: "server", Category: watch.CategoryServer, Artifacts: []string{"server"},
			Run: func(ctx context.Context, dir string) error {
				serverRuns.Add(1)
				if once.CompareAndSwap(false, true) {
					close(firstStarted)
					<-ctx.Done()
					return ctx.Err()
				}
				return os.WriteFile(filepath.Join(dir, "server"), []byte("#!/bin/sh\nsleep 30\n"), 0755)
			},
		},
		countingStep("style", "app.css", watch.CategoryStyle, &styleRuns),
	}
	h := newHarness(t, steps)
	read := dialSession(t, h.hub)

	h.intents <- watch.Intent{Categories: watch.NewCategorySet(watch.CategoryServer)}
	select {
	case <-firstStarted:
	case <-time.After(3 * time.Second):
		t.Fatal("first attempt never started")
	}

	h.intents <- watch.Intent{Categories: watch.NewCategorySet(watch.CategoryStyle)}

	// The canceled attempt is discarded; the replacing attempt runs both
	// steps and its reload covers the union.
	d, ok := read(5 * time.Second)
	require.True(t, ok, "no directive after superseding build")
	assert.Equal(t, reload.KindReload, d.Kind)

	assert.EqualValues(t, 2, serverRuns.Load(), "server step should run in both attempts")
	assert.EqualValues(t, 1, styleRuns.Load(), "style step should only run in the replacing attempt")
	assert.Equal(t, process.Running, h.sup.State(), "succeeded server build should start the server")
}

func TestOrchestrator_ColdBuildStartsServer(t *testing.T) {
	out := t.TempDir()
	steps := []pipeline.Step{
		{
			Name: "server", Category: watch.CategoryServer, Artifacts: []string{"server"},
			Run: func(ctx context.Context, dir string) error {
				return os.WriteFile(filepath.Join(dir, "server"), []byte("#!/bin/sh\nsleep 30\n"), 0755)
			},
		},
	}
	sup := process.NewSupervisor(out, nil, time.Second)
	defer sup.Stop()
	hub := reload.NewHub()
	defer hub.Close()

	orch := &Orchestrator{
		Runner:     pipeline.NewRunner(out, steps),
		Supervisor: sup,
		Hub:        hub,
		Output:     out,
	}

	outcome := orch.ColdBuild(context.Background())
	require.Equal(t, pipeline.Succeeded, outcome.Status)
	assert.Equal(t, process.Running, sup.State())
}

func TestOrchestrator_FailedBuildKeepsServerRunning(t *testing.T) {
	var fail atomic.Bool
	steps := []pipeline.Step{
		{
			Name: "server", Category: watch.CategoryServer, Artifacts: []string{"server"},
			Run: func(ctx context.Context, dir string) error {
				if fail.Load() {
					return errors.New("E302").WithDetail("does not compile")
				}
				return os.WriteFile(filepath.Join(dir, "server"), []byte("#!/bin/sh\nsleep 30\n"), 0755)
			},
		},
	}
	h := newHarness(t, steps)

	h.intents <- watch.Intent{Categories: watch.NewCategorySet(watch.CategoryServer)}
	deadline := time.Now().Add(3 * time.Second)
	for h.sup.State() != process.Running && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, process.Running, h.sup.State())

	fail.Store(true)
	h.intents <- watch.Intent{Categories: watch.NewCategorySet(watch.CategoryServer)}
	time.Sleep(500 * time.Millisecond)

	assert.Equal(t, process.Running, h.sup.State(), "failed build must leave the server alone")
}
