// Package ipc exposes daemon status over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI.
//
// The socket carries operator queries only (status, database health, stop);
// correspondence operations go through the HTTP API or the CLI's direct store
// access. Reuse these types when adding endpoints so the protocol stays
// compatible with existing commands.
package ipc
