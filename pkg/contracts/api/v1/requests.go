// Package api contains the HTTP request and response contracts, version v1.
package api

import (
	"time"
)

// ExpectationRequest is a header expectation submitted for ad hoc matching
type ExpectationRequest struct {
	Name       string   `json:"name" validate:"required"`
	Candidates []string `json:"candidates" validate:"required,min=1,dive,required"`
	Required   bool     `json:"required"`
	Match      string   `json:"match,omitempty" validate:"omitempty,oneof=all any"`
}

// MatchRequest asks which columns of a header row satisfy an expectation
// against one dataset's alias map
type MatchRequest struct {
	Columns     []string           `json:"columns" validate:"required,min=1"`
	Expectation ExpectationRequest `json:"expectation" validate:"required"`
}

// MatchResponse is the resolution of a MatchRequest
type MatchResponse struct {
	DatasetKey string            `json:"dataset_key"`
	Selected   map[string]string `json:"selected"`
	Missing    []string          `json:"missing"`
}

// ExportRequest selects the file format of a slot export
type ExportRequest struct {
	Format string `json:"format" query:"format" validate:"omitempty,oneof=csv xlsx CSV XLSX"`
}

// FileOutcome is the per-file result of a detection request
type FileOutcome struct {
	FileName    string      `json:"file_name"`
	Status      string      `json:"status"`
	DatasetKey  string      `json:"dataset_key,omitempty"`
	Error       string      `json:"error,omitempty"`
	Diagnostics interface{} `json:"diagnostics,omitempty"`
}

// Outcome status values of FileOutcome
const (
	FileStatusDetected = "detected"
	FileStatusRejected = "rejected"
	FileStatusSkipped  = "skipped"
)

// DetectResponse is the response of a batch detection request
type DetectResponse struct {
	Groups  map[string][]string `json:"groups"`
	Order   []string            `json:"order"`
	Files   []FileOutcome       `json:"files"`
	TraceID string              `json:"trace_id,omitempty"`
}

// HealthResponse is the body of the health endpoints
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]HealthCheck `json:"checks,omitempty"`
}

// HealthCheck is the outcome of one dependency check
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
