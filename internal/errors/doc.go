// Package errors provides structured, coded errors for loom.
//
// Every user-facing failure carries a stable code (e.g. E201) registered in
// registry.go, a category matching the component that detected it (watch,
// step, process, reload, config), and optional detail and suggestion text.
// Components recover failures at their own boundary, convert them into a
// LoomError, and hand the typed result to the orchestrator; nothing escapes
// as an unhandled abort except unrecoverable setup failures.
package errors
