// Package http implements the HTTP handlers of the intake service. Handlers
// are a thin layer between the chi router and the services package: they
// parse and validate requests, call a service and render the result.
//
// # Routes
//
//	GET    /api/health, /api/health/ready, /api/health/live, /api/version
//	GET    /api/schemas
//	GET    /api/schemas/{key}
//	POST   /api/schemas/{key}/match
//	POST   /api/ingest/detect
//	GET    /api/pages
//	GET    /api/pages/{page}
//	GET    /api/pages/{page}/readiness
//	POST   /api/pages/{page}/inputs/{slot}
//	DELETE /api/pages/{page}/inputs/{slot}
//	GET    /api/pages/{page}/inputs/{slot}/export?format=csv|xlsx
//	GET    /ws
//
// # Handler Structure
//
// Each resource handler is built with NewXHandler(service, ..., logger,
// errorHandler) and mounted through its Routes method. URL parameters are
// resolved once by a context middleware (PageCtx, SlotCtx, SchemaCtx) so the
// handlers below it can assume the resource exists.
//
// # Error Handling
//
// Every error goes through errors.ErrorHandler and is written as an RFC 7807
// problem:
//
//	{
//	    "type": "/errors/ingest/no-viable-schema",
//	    "title": "Unrecognized Dataset",
//	    "status": 422,
//	    "detail": "File 'loans.csv' resembles 'Instrument Reference' but is missing required headers: ...",
//	    "instance": "/api/pages/rating_migration/inputs/reference",
//	    "trace_id": "..."
//	}
//
// Detection problems of an upload placed in a page slot are not errors: they
// are recorded on the returned InputStatus so the input panel can show them.
//
// # Uploads
//
// Multipart bodies are bounded by Ingest.MaxUploadBytes. File names are
// reduced to their base name and validated before anything is stored.
package http
