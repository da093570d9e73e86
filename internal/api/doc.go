// Package api defines the wire-format types shared by the HTTP daemon, the IPC
// server and the CLI, and the converters from store records to them.
//
// DTOs use camelCase JSON tags. Enums (status, priority, stage status) are
// lowercase strings and timestamps are RFC3339 with milliseconds in UTC.
// Request types carry their own conversion to the service inputs, so the
// daemon and CLI decode the same payloads the same way.
package api
