// Command corrflow is the operator CLI for the correspondence approval
// service.
//
// `corrflow serve` runs the daemon in the foreground. Read and sign commands
// open the SQLite database directly, so they work whether or not the daemon
// is running; `status` and `health` ask the running daemon over its Unix
// socket. Pass --json for machine-readable output.
package main
