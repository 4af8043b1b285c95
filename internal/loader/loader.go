// Package loader turns uploaded byte blobs into classified, fully loaded tables
// grouped by dataset type.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"riskdash/internal/detect"
	apperrors "riskdash/internal/errors"
)

// Upload is one named file as received from the caller.
type Upload struct {
	Name    string
	Content []byte
}

// LoadedFile is an accepted file with its dataset key and diagnostics.
type LoadedFile struct {
	DatasetKey  string              `json:"dataset_key"`
	FileName    string              `json:"file_name"`
	Format      Format              `json:"format"`
	Table       *Table              `json:"-"`
	Diagnostics *detect.Diagnostics `json:"diagnostics"`
}

// Failure records a file that could not be accepted.
type Failure struct {
	FileName string `json:"file_name"`
	Err      error  `json:"-"`
}

// Message returns the user facing failure text.
func (f Failure) Message() string {
	return apperrors.UserMessage(f.Err)
}

// Batch is the outcome of loading several uploads. Files of the same dataset
// type are all retained, in upload order.
type Batch struct {
	Groups   map[string][]*LoadedFile
	Failures []Failure
	Skipped  []string

	order []string
}

// Keys returns the detected dataset keys in first-seen order.
func (b *Batch) Keys() []string {
	return append([]string(nil), b.order...)
}

// First returns the first file loaded for a dataset key.
func (b *Batch) First(key string) (*LoadedFile, bool) {
	files := b.Groups[key]
	if len(files) == 0 {
		return nil, false
	}
	return files[0], true
}

// FailureFor returns the failure recorded for a file name.
func (b *Batch) FailureFor(fileName string) (Failure, bool) {
	for _, f := range b.Failures {
		if f.FileName == fileName {
			return f, true
		}
	}
	return Failure{}, false
}

func (b *Batch) add(file *LoadedFile) {
	if _, ok := b.Groups[file.DatasetKey]; !ok {
		b.order = append(b.order, file.DatasetKey)
	}
	b.Groups[file.DatasetKey] = append(b.Groups[file.DatasetKey], file)
}

// Loader classifies and loads uploads.
type Loader struct {
	engine  *detect.Engine
	logger  *slog.Logger
	workers int
}

// NewLoader creates a loader. workers bounds how many files of one batch are
// parsed at the same time; values below one mean one.
func NewLoader(engine *detect.Engine, logger *slog.Logger, workers int) *Loader {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		engine:  engine,
		logger:  logger.With(slog.String("component", "loader")),
		workers: workers,
	}
}

// Engine returns the detection engine used by the loader.
func (l *Loader) Engine() *detect.Engine {
	return l.engine
}

// LoadOne classifies and loads a single upload. Empty content yields an
// ErrTypeEmptyFile error; every other failure carries the message shown to
// the user.
func (l *Loader) LoadOne(ctx context.Context, up Upload) (*LoadedFile, error) {
	if len(up.Content) == 0 {
		return nil, apperrors.NewEmptyFileError(up.Name)
	}

	format := FormatOf(up.Name)
	r := newReader(format, up.Content)

	headers, err := r.Header()
	if err != nil {
		return nil, apperrors.NewUnparseableError(
			fmt.Sprintf("Unable to read %s headers for file '%s'", formatLabel(format), up.Name), err).
			WithContext("file", up.Name)
	}

	res := l.engine.Detect(ctx, up.Name, headers)
	if failure := res.Failure; res.Outcome == detect.OutcomeFailure && failure != nil {
		return nil, apperrors.NewNoViableSchemaError(failure.Error()).
			WithContext("file", up.Name).
			WithContext("best_guess", failure.DatasetKey)
	}

	body, err := r.Body(len(headers))
	if err != nil {
		return nil, apperrors.NewUnparseableError(
			fmt.Sprintf("Unable to load %s for file '%s'", formatLabel(format), up.Name), err).
			WithContext("file", up.Name)
	}

	columns := make([]string, len(headers))
	for i, h := range headers {
		columns[i] = strings.TrimSpace(h)
	}
	table := &Table{Columns: columns, Rows: body}

	diag := res.Diagnostics
	diag.RowCount = table.RowCount()
	diag.Columns = append([]string(nil), columns...)

	return &LoadedFile{
		DatasetKey:  res.DatasetKey,
		FileName:    up.Name,
		Format:      format,
		Table:       table,
		Diagnostics: diag,
	}, nil
}

// Load processes every upload independently. A failing file is recorded in
// Batch.Failures and never stops the others; empty files are skipped with a
// warning.
func (l *Loader) Load(ctx context.Context, uploads []Upload) *Batch {
	type outcome struct {
		file *LoadedFile
		err  error
	}
	results := make([]outcome, len(uploads))

	var g errgroup.Group
	g.SetLimit(l.workers)
	for i, up := range uploads {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = outcome{err: err}
				return nil
			}
			file, err := l.LoadOne(ctx, up)
			results[i] = outcome{file: file, err: err}
			return nil
		})
	}
	_ = g.Wait()

	batch := &Batch{Groups: make(map[string][]*LoadedFile)}
	for i, res := range results {
		name := uploads[i].Name
		switch {
		case apperrors.IsType(res.err, apperrors.ErrTypeEmptyFile):
			l.logger.WarnContext(ctx, "file is empty, skipping", slog.String("file", name))
			batch.Skipped = append(batch.Skipped, name)
		case res.err != nil:
			l.logger.WarnContext(ctx, "file rejected",
				slog.String("file", name),
				slog.String("error", apperrors.UserMessage(res.err)))
			batch.Failures = append(batch.Failures, Failure{FileName: name, Err: res.err})
		default:
			batch.add(res.file)
		}
	}
	return batch
}

func formatLabel(f Format) string {
	if f == FormatXLSX {
		return "sheet"
	}
	return "CSV"
}
