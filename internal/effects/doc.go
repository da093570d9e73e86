// Package effects runs the side effects of workflow transitions (audit
// entries, notifications) after the transition has committed.
//
// Dispatcher owns a bounded queue drained by a fixed pool of workers. Emit
// never blocks: when the queue is full the effect is dropped and logged. Each
// effect runs under its own timeout with a context detached from the caller's
// cancellation, so a client disconnecting after a successful sign does not
// abort the notification it caused. Failures are logged and counted, never
// returned to the caller.
//
// Inline runs effects synchronously on the caller's goroutine; the CLI and
// tests use it where deterministic completion matters more than latency.
package effects
