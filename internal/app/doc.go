// Package app wires the intake service together and owns its lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, config.yaml, RISKDASH_* environment)
//	2. Initialize the slog logger and OpenTelemetry providers
//	3. Open the status store (memory or SQLite) and the upload cache
//	4. Start the websocket hub
//	5. Build the detection engine, loader and ingest service
//	6. Mount handlers and middleware on the chi router
//	7. Create the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, or until the listener fails. Stop then
// drains in-flight requests within Server.ShutdownTimeout, stops the hub and
// the cache sweeper, closes the status store and flushes telemetry.
//
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
