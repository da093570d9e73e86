// Package daemon coordinates the long-running corrflow process.
//
// It wires configuration, the SQLite store, the organization directory, the
// workflow engine and the correspondence service into a single lifecycle with
// flock-based locking to prevent multiple instances. Side effects (audit rows
// and notifications) run on an effects.Dispatcher that is drained after the
// HTTP server stops.
//
// The HTTP API is a chi router under /api. Every route except /api/health
// requires an HS256 bearer token whose id claim names an active user; the
// token is verified here but issued elsewhere. Requests are rate limited per
// client address, tagged with a request id, and bodies of write operations
// are validated against embedded JSON schemas before decoding.
//
// Keep orchestration and HTTP translation here: approval rules live in
// internal/workflow and authorization of individual operations lives in
// internal/correspondence.
package daemon
