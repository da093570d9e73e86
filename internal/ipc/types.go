package ipc

import "corrflow/internal/api"

// ServiceName is the RPC receiver name registered by the server.
const ServiceName = "Corrflow"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse wraps the daemon status DTO.
type StatusResponse struct {
	Status api.DaemonStatus `json:"status"`
}

// HealthRequest fetches database diagnostics.
type HealthRequest struct{}

// HealthResponse wraps the health DTO.
type HealthResponse struct {
	Health api.Health `json:"health"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}
