// Package watch turns native OS file-system notifications into build
// intents.
//
// The Watcher subscribes to the configured roots, filters out the output
// directory, hidden files, and editor temp artifacts, and classifies every
// surviving change as UI code, server code, style, or static asset. The
// Debouncer coalesces each burst of events into a single Intent covering
// the union of the categories seen; the orchestrator consumes intents.
package watch
