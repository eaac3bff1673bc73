// Package bootstrap runs a command as a one-shot task with managed
// components: config defaults and validation, logger setup, ordered
// component start, configure callbacks, signal cancellation and
// reverse-order shutdown.
package bootstrap
