// Package server provides the HTTP server for the worker id coordinator.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// IncRequest holds the query parameters of GET /inc.
type IncRequest struct {
	// IPU is the host.principal identity asking for a candidate id.
	IPU string `validate:"required,max=255,printascii"`
}

// SyncRequest holds the query parameters of GET /sync.
type SyncRequest struct {
	// IPU is the host.principal identity reporting its ids.
	IPU string `validate:"required,max=255,printascii"`
	// IDs are the worker ids present on the host.
	IDs []int64 `validate:"max=8192,dive,min=0"`
}

// EntryResponse describes one identity in GET /roster.
type EntryResponse struct {
	// IPU is the host.principal identity.
	IPU string `json:"ipu"`
	// Next is the lower bound for the next minted id.
	Next int64 `json:"next"`
	// IDs are the known worker ids.
	IDs []int64 `json:"ids"`
	// UpdatedAt is when the entry last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// RosterResponse is the HTTP response for GET /roster.
type RosterResponse struct {
	// Entries lists every known identity.
	Entries []EntryResponse `json:"entries"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
