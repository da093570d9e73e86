// Package daemonrun hosts the foreground daemon runtime shared by
// `corrflow serve` and the corrflowd binary: signal handling, logger
// bootstrap with per-run rotation, a session id, the pid file and the IPC
// socket.
package daemonrun
