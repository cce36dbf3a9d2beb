package watch

import (
	"context"
	"log/slog"
	"time"
)

// Debouncer coalesces bursts of change events into build intents. Editors
// and compilers produce event bursts (temp-file writes, multi-file saves);
// one intent per quiet period avoids redundant rebuilds.
type Debouncer struct {
	window  time.Duration
	events  <-chan Event
	intents chan Intent
}

// NewDebouncer creates a debouncer reading from events. The window timer is
// reset on each new event; when it expires one Intent covering the union of
// the categories seen is emitted and the debouncer returns to idle.
func NewDebouncer(window time.Duration, events <-chan Event) *Debouncer {
	if window <= 0 {
		window = 100 * time.Millisecond
	}
	return &Debouncer{
		window:  window,
		events:  events,
		intents: make(chan Intent, 1),
	}
}

// Intents returns the channel build intents are delivered on. The channel is
// closed when Run returns.
func (d *Debouncer) Intents() <-chan Intent {
	return d.intents
}

// Run consumes the event stream until ctx is canceled or the stream closes.
func (d *Debouncer) Run(ctx context.Context) {
	defer close(d.intents)

	var pending CategorySet

	timer := time.NewTimer(d.window)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-d.events:
			if !ok {
				// The stream only closes on watcher shutdown; changes
				// seen before that still deserve their intent.
				if !pending.Empty() {
					select {
					case d.intents <- Intent{Categories: pending, Triggered: time.Now()}:
					case <-ctx.Done():
					}
				}
				return
			}
			if pending.Empty() {
				timer.Reset(d.window)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(d.window)
			}
			pending = pending.Add(ev.Category)

		case <-timer.C:
			if pending.Empty() {
				continue
			}
			intent := Intent{Categories: pending, Triggered: time.Now()}
			pending = 0
			slog.Debug("build intent", "categories", intent.Categories.String())

			select {
			case d.intents <- intent:
			case <-ctx.Done():
				return
			}
		}
	}
}
