package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/loom-dev/loom/internal/errors"
)

// Config configures the file watcher.
type Config struct {
	// Roots are the directories to watch, recursively.
	Roots []string

	// Exclude are directories whose events are suppressed entirely. The
	// build output directory belongs here so a build's own writes never
	// retrigger a build.
	Exclude []string

	// Ignore patterns to skip (plain segments or globs).
	Ignore []string

	// Classifier maps paths to change categories.
	Classifier *Classifier
}

// Watcher subscribes to native OS file-system notifications under the
// configured roots and emits classified change events.
type Watcher struct {
	config Config
	events chan Event
}

// NewWatcher creates a new file watcher.
func NewWatcher(config Config) *Watcher {
	if len(config.Ignore) == 0 {
		config.Ignore = DefaultIgnore
	}

	return &Watcher{
		config: config,
		events: make(chan Event, 64),
	}
}

// Events returns the channel classified change events are delivered on.
// The channel is closed when Start returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start establishes the OS watches and blocks delivering events until ctx is
// canceled. A setup failure (no root could be watched, or the notification
// mechanism is unavailable) is returned as a watch error; it is fatal to
// watch mode but must leave already-built artifacts and the running server
// untouched, which is the caller's responsibility.
func (w *Watcher) Start(ctx context.Context) error {
	defer close(w.events)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New("E201").Wrap(err)
	}
	defer fw.Close()

	watched := 0
	for _, root := range w.config.Roots {
		st, err := os.Stat(root)
		if err != nil || !st.IsDir() {
			slog.Debug("skipping missing watch root", "root", root)
			continue
		}
		if err := addDirsRecursive(fw, root, w.config.Ignore); err != nil {
			return errors.New("E201").WithDetail("could not watch " + root).Wrap(err)
		}
		watched++
	}
	if watched == 0 {
		return errors.New("E202").
			WithDetail("None of the configured watch roots exist").
			WithSuggestion("Check the paths section of loom.json")
	}

	slog.Info("watching for changes", "roots", len(w.config.Roots))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("E201").WithDetail("OS notification stream closed unexpectedly")
			}
			w.handle(ctx, fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("E201").WithDetail("OS notification stream closed unexpectedly")
			}
			// Per-event errors are not fatal; the watch stays up.
			slog.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}

	if w.excluded(ev.Name) {
		return
	}

	// New directories must be added to the watch before their contents
	// produce events.
	if ev.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if !matchIgnore(w.config.Ignore, ev.Name) {
				_ = addDirsRecursive(fw, ev.Name, w.config.Ignore)
			}
			return
		}
	}

	if isTempFile(ev.Name) || matchIgnore(w.config.Ignore, ev.Name) {
		return
	}

	category, ok := w.config.Classifier.Classify(ev.Name)
	if !ok {
		return
	}

	slog.Debug("change detected", "path", ev.Name, "category", category.String(), "op", ev.Op.String())

	select {
	case w.events <- Event{Path: ev.Name, Category: category, Time: time.Now()}:
	case <-ctx.Done():
	}
}

func (w *Watcher) excluded(path string) bool {
	for _, dir := range w.config.Exclude {
		if isWithinDir(path, dir) {
			return true
		}
	}
	return false
}

func addDirsRecursive(fw *fsnotify.Watcher, root string, ignore []string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && matchIgnore(ignore, path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			slog.Warn("watch add failed", "dir", path, "error", err)
		}
		return nil
	})
}
