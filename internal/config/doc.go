// Package config loads and validates the loom.json project configuration.
//
// The configuration is static: it is read once at startup and handed to the
// core components by value or pointer, never mutated afterwards. It supplies
// the watch roots, the output directory, the source tree layout, and the
// tunable timing constants (debounce window, process stop grace period).
package config
