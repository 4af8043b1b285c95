// Package services implements the business logic layer of the intake service.
// It sits between the HTTP handlers and the detection, loading and storage
// packages.
//
// IngestService classifies uploaded files, places them into page input slots,
// persists slot statuses and evaluates page readiness. Every state change is
// logged, counted in the ingest metrics and published as a websocket event.
//
// HealthService reports liveness, readiness and version information.
//
// Services receive their dependencies through constructors and take a
// context.Context on every operation that reads files or storage.
package services
