package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"riskdash/internal/config"
	"riskdash/internal/detect"
	"riskdash/internal/exporter"
	"riskdash/internal/files"
	"riskdash/internal/infrastructure"
	"riskdash/internal/loader"
	"riskdash/internal/pages"
	"riskdash/internal/schema"
	"riskdash/internal/validation"
	"riskdash/pkg/contracts"
)

// errPageIncomplete is returned when -page is set and the page is not ready
var errPageIncomplete = errors.New("page inputs are incomplete")

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	// Logs go to the file so stdout only carries the report
	paths := cfg.ResolvedPaths()
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = paths.GetLogPath("detect.log")

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	err = run(context.Background(), os.Args[1:], cfg, os.Stdout, os.Stderr, logger)
	switch {
	case err == nil:
	case errors.Is(err, errPageIncomplete):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "detect:", err)
		os.Exit(1)
	}
}

// run classifies every tabular file of a directory and writes the detection
// report. With -page it also checks the files against that page's inputs.
func run(ctx context.Context, args []string, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", ".", "directory containing csv/xlsx extracts")
	out := fs.String("out", "", "report csv path, relative paths land in the exports directory (defaults to stdout)")
	pageKey := fs.String("page", "", "dashboard page to check the files against")
	version := fs.Bool("version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return nil
	}

	var page *pages.Page
	if *pageKey != "" {
		p, ok := pages.DefaultCatalog().Lookup(*pageKey)
		if !ok {
			return fmt.Errorf("unknown page %q", *pageKey)
		}
		page = p
	}

	validator := validation.NewFileValidator(logger)
	if _, err := validator.ValidateInputDirectory(*dir); err != nil {
		return err
	}
	csvWriter := exporter.NewCSVWriter(cfg.ResolvedPaths())
	if *out != "" {
		if err := validator.ValidateOutputDirectory(filepath.Dir(csvWriter.ResolvePath(*out))); err != nil {
			return err
		}
	}

	found, err := files.FindTabularFiles(*dir)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "Starting detection",
		slog.String("input_dir", *dir),
		slog.Int("files", len(found)),
		slog.String("page", *pageKey))

	uploads := make([]loader.Upload, 0, len(found))
	names := make([]string, 0, len(found))
	pathOf := make(map[string]string, len(found))
	for _, f := range found {
		if err := validator.ValidateTabularFile(f.Path); err != nil {
			logger.WarnContext(ctx, "Skipping file", slog.String("file", f.Name), slog.String("reason", err.Error()))
			continue
		}
		content, err := os.ReadFile(f.Path)
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Path, err)
		}
		uploads = append(uploads, loader.Upload{Name: f.Name, Content: content})
		names = append(names, f.Name)
		pathOf[f.Name] = f.Path
	}

	registry := schema.Default()
	engine := detect.NewEngine(registry, logger, cfg.Ingest.HeaderSampleSize)
	batch := loader.NewLoader(engine, logger, cfg.Ingest.Workers).Load(ctx, uploads)

	report := exporter.WriteOptions{
		Headers: exporter.ReportHeaders,
		Records: exporter.ReportRows(batch, names),
	}
	if *out == "" {
		if err := exporter.WriteCSVTo(stdout, report); err != nil {
			return err
		}
	} else {
		report.BOMPrefix = true
		if err := csvWriter.WriteCSV(*out, report); err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "Detection complete",
		slog.Int("detected", len(names)-len(batch.Failures)-len(batch.Skipped)),
		slog.Int("rejected", len(batch.Failures)),
		slog.Int("skipped", len(batch.Skipped)))

	if page == nil {
		return nil
	}
	return checkPage(page, registry, batch, pathOf, stderr)
}

// checkPage fills each input of page with the first file detected as its
// dataset and prints what is still missing.
func checkPage(page *pages.Page, registry *schema.Registry, batch *loader.Batch, pathOf map[string]string, w io.Writer) error {
	statuses := make(map[string]*pages.InputStatus, len(page.Inputs))
	for _, in := range page.Inputs {
		status := pages.NewInputStatus(page.Key, in)
		record, ok := batch.First(in.DatasetKey)
		if !ok {
			statuses[in.Key] = status
			continue
		}
		spec, ok := registry.Lookup(in.DatasetKey)
		if !ok {
			return fmt.Errorf("page %s input %s references unknown dataset %s", page.Key, in.Key, in.DatasetKey)
		}
		status.UploadedFile = record.FileName
		status.FilePath = pathOf[record.FileName]
		pages.ApplyBatch(status, spec, in, batch)
		statuses[in.Key] = status
	}

	state := pages.NewPanelState(page, statuses)
	for _, in := range page.Inputs {
		st := state.Status(in.Key)
		file := st.UploadedFile
		if file == "" {
			file = "-"
		}
		line := fmt.Sprintf("%s\t%s\t%s", in.Key, in.DatasetKey, file)
		if len(st.MissingHeaders) > 0 {
			line += "\tmissing: " + strings.Join(st.MissingHeaders, "; ")
		}
		fmt.Fprintln(w, line)
	}

	if !state.Ready() {
		fmt.Fprintln(w, state.IncompleteMessage())
		return errPageIncomplete
	}
	fmt.Fprintf(w, "%s inputs are complete.\n", page.Subject)
	return nil
}
