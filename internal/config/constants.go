package config

import "time"

// Application constants
const (
	AppName    = "Risk Dashboard Intake"
	AppVersion = "1.0.0"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// WebSocket
	WebSocketPingPeriod      = 30 * time.Second
	WebSocketPongWait        = 60 * time.Second
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// File Paths (relative to executable)
	DefaultDataDir = "data"
	DefaultLogsDir = "logs"

	// Ingestion
	DefaultMaxUploadBytes     = 256 << 20 // 256MB
	DefaultHeaderSampleSize   = 10
	DefaultIngestWorkers      = 4
	DefaultUploadCacheTTL     = 30 * time.Minute
	DefaultUploadCacheEntries = 64

	// Log Settings
	DefaultLogLevel = "info"
)
