// Package daemonctl starts and stops the corrflow daemon from the CLI.
//
// The CLI launches `corrflow serve` as a detached child, then polls the IPC
// socket until the daemon answers or the timeout expires. Shutdown goes the
// other way: request a stop over IPC and wait for the socket to disappear.
package daemonctl
