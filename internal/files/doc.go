// Package files provides file system operations and discovery utilities
// for the intake service.
//
// Manager stores page uploads and exports under the data directory. Writes go
// through a temporary file and a rename.
//
// FindTabularFiles lists the CSV and workbook files of a directory for batch
// classification.
//
// Example usage:
//
//	manager := files.NewManager(cfg.ResolvedPaths(), logger)
//	path, err := manager.SaveUpload("macro_linkage_risk_metrics_timeseries_0a1b2c3d4e5f6789.csv", data)
//
//	found, err := files.FindTabularFiles("/srv/extracts")
package files
