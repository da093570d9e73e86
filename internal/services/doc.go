// Package services defines shared utilities consumed by the workflow engine,
// the correspondence service, and the HTTP layer.
//
// Key responsibilities:
//   - Context helpers that stamp request, user, and correspondence identifiers
//     for logging and tracing.
//   - Structured error markers plus the Wrap helper, and the Kind/HTTPStatus
//     classifiers that translate failures into client-facing responses.
//
// Use these helpers when wiring new operations so operational behaviour (error
// handling, observability) stays uniform across the daemon and CLI.
package services
