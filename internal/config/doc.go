// Package config provides centralized configuration management for the
// intake service.
//
// # Configuration Sources
//
// Configuration is layered, later sources winning:
//
//	1. Default values
//	2. YAML file (config.yaml, configs/config.yaml or $RISKDASH_CONFIG_FILE)
//	3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern RISKDASH_<SECTION>_<FIELD>:
//
//	RISKDASH_SERVER_PORT=8080
//	RISKDASH_INGEST_MAX_UPLOAD_BYTES=268435456
//	RISKDASH_INGEST_WORKERS=4
//	RISKDASH_STORE_DRIVER=sqlite
//	RISKDASH_LOGGING_LEVEL=debug
//
// # Path Management
//
// Paths are resolved relative to the executable directory unless configured
// as absolute:
//
//	paths := cfg.ResolvedPaths()
//	stored := paths.GetUploadPath("macro_linkage_risk_metrics_timeseries_0a1b2c3d4e5f6789.csv")
package config
