package pages

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"riskdash/internal/loader"
	"riskdash/internal/resolve"
	"riskdash/internal/schema"
)

// InputStatus records the outcome of placing a file in a page slot.
type InputStatus struct {
	PageKey          string            `json:"page_key"`
	SlotKey          string            `json:"slot_key"`
	DatasetKey       string            `json:"dataset_key"`
	UploadedFile     string            `json:"uploaded_file,omitempty"`
	FilePath         string            `json:"file_path,omitempty"`
	Fingerprint      string            `json:"fingerprint,omitempty"`
	AvailableColumns []string          `json:"available_columns"`
	RowCount         int               `json:"row_count"`
	Errors           []string          `json:"errors"`
	MissingHeaders   []string          `json:"missing_headers"`
	SelectedColumns  map[string]string `json:"selected_columns"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewInputStatus returns the empty status of a slot with nothing uploaded.
func NewInputStatus(pageKey string, cfg PageInputConfig) *InputStatus {
	return &InputStatus{
		PageKey:          pageKey,
		SlotKey:          cfg.Key,
		DatasetKey:       cfg.DatasetKey,
		AvailableColumns: []string{},
		Errors:           []string{},
		MissingHeaders:   []string{},
		SelectedColumns:  map[string]string{},
	}
}

// IsLoaded reports whether a file is stored for the slot and loaded cleanly.
func (s *InputStatus) IsLoaded() bool {
	return s != nil && s.FilePath != "" && len(s.Errors) == 0
}

// IsReady reports whether the slot is loaded and no required header is missing.
func (s *InputStatus) IsReady() bool {
	return s.IsLoaded() && len(s.MissingHeaders) == 0
}

// Selected returns the column chosen for the first canonical field that was
// resolved, in the given order.
func (s *InputStatus) Selected(fields ...string) (string, bool) {
	for _, f := range fields {
		if column, ok := s.SelectedColumns[f]; ok && column != "" {
			return column, true
		}
	}
	return "", false
}

// Fingerprint returns the hex SHA-256 digest of content.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// StoredFileName is the name an upload is persisted under:
// <page>_<slot>_<first 16 digest chars><extension>, defaulting to .csv.
func StoredFileName(pageKey, slotKey, fingerprint, uploadName string) string {
	ext := filepath.Ext(uploadName)
	if ext == "" {
		ext = ".csv"
	}
	digest := fingerprint
	if len(digest) > 16 {
		digest = digest[:16]
	}
	return fmt.Sprintf("%s_%s_%s%s", pageKey, slotKey, digest, ext)
}

// ApplyBatch fills status from the result of loading the slot's file. The
// batch is expected to hold the single upload named status.UploadedFile.
func ApplyBatch(status *InputStatus, spec *schema.DatasetSpec, cfg PageInputConfig, batch *loader.Batch) {
	if failure, ok := batch.FailureFor(status.UploadedFile); ok {
		status.Errors = append(status.Errors, failure.Message())
		return
	}

	record, ok := batch.First(cfg.DatasetKey)
	if !ok {
		detected := strings.Join(batch.Keys(), ", ")
		if detected == "" {
			detected = "none"
		}
		status.Errors = append(status.Errors,
			fmt.Sprintf("Detected dataset type(s): %s. Expected '%s'.", detected, cfg.DatasetKey))
		return
	}

	status.AvailableColumns = append([]string(nil), record.Table.Columns...)
	status.RowCount = record.Table.RowCount()

	for _, exp := range cfg.Expectations {
		res := resolve.Match(spec, status.AvailableColumns, exp)
		for canonical, column := range res.Selected {
			status.SelectedColumns[canonical] = column
		}
		if len(res.Missing) > 0 && exp.Required {
			for _, item := range res.Missing {
				status.MissingHeaders = append(status.MissingHeaders, fmt.Sprintf("%s: %s", exp.Name, item))
			}
		}
	}
}

// MissingHeaders pairs a slot title with its missing required headers.
type MissingHeaders struct {
	Title   string   `json:"title"`
	Headers []string `json:"headers"`
}

// PanelState aggregates the statuses of every slot of one page.
type PanelState struct {
	Page     *Page
	Statuses map[string]*InputStatus
}

// NewPanelState binds statuses to page. Slots without a status get an empty one.
func NewPanelState(page *Page, statuses map[string]*InputStatus) *PanelState {
	filled := make(map[string]*InputStatus, len(page.Inputs))
	for _, in := range page.Inputs {
		if st, ok := statuses[in.Key]; ok && st != nil {
			filled[in.Key] = st
			continue
		}
		filled[in.Key] = NewInputStatus(page.Key, in)
	}
	return &PanelState{Page: page, Statuses: filled}
}

// Status returns the status of a slot.
func (p *PanelState) Status(slot string) *InputStatus {
	return p.Statuses[slot]
}

// MissingRequiredFiles lists the titles of required slots that are not loaded.
func (p *PanelState) MissingRequiredFiles() []string {
	var out []string
	for _, in := range p.Page.Inputs {
		if in.Required && !p.Statuses[in.Key].IsLoaded() {
			out = append(out, in.Title)
		}
	}
	return out
}

// MissingRequiredHeaders lists required slots that have missing headers.
func (p *PanelState) MissingRequiredHeaders() []MissingHeaders {
	var out []MissingHeaders
	for _, in := range p.Page.Inputs {
		st := p.Statuses[in.Key]
		if in.Required && len(st.MissingHeaders) > 0 {
			out = append(out, MissingHeaders{Title: in.Title, Headers: st.MissingHeaders})
		}
	}
	return out
}

// Ready reports whether every required slot is loaded with all required headers.
func (p *PanelState) Ready() bool {
	return len(p.MissingRequiredFiles()) == 0 && len(p.MissingRequiredHeaders()) == 0
}

// IncompleteMessage describes what blocks the page, or "" when it is ready.
func (p *PanelState) IncompleteMessage() string {
	files := p.MissingRequiredFiles()
	headers := p.MissingRequiredHeaders()
	if len(files) == 0 && len(headers) == 0 {
		return ""
	}

	var lines []string
	if len(files) > 0 {
		lines = append(lines, "Missing required file(s): "+strings.Join(files, ", "))
	}
	if len(headers) > 0 {
		detail := make([]string, 0, len(headers))
		for _, h := range headers {
			detail = append(detail, fmt.Sprintf("- **%s**: %s", h.Title, strings.Join(h.Headers, ", ")))
		}
		lines = append(lines, "Missing required column(s):\n"+strings.Join(detail, "\n"))
	}
	return fmt.Sprintf("%s inputs are incomplete.\n\n%s", p.Page.Subject, strings.Join(lines, "\n"))
}

// ExplainEntry summarizes how a loaded slot was interpreted.
type ExplainEntry struct {
	FileName        string            `json:"file_name"`
	DatasetKey      string            `json:"dataset_key"`
	SelectedColumns map[string]string `json:"selected_columns"`
	MissingHeaders  []string          `json:"missing_headers"`
	RowCount        int               `json:"row_count"`
	FilePath        string            `json:"file_path"`
}

// Explain returns an entry per loaded slot.
func (p *PanelState) Explain() map[string]ExplainEntry {
	out := make(map[string]ExplainEntry)
	for key, st := range p.Statuses {
		if !st.IsLoaded() {
			continue
		}
		out[key] = ExplainEntry{
			FileName:        st.UploadedFile,
			DatasetKey:      st.DatasetKey,
			SelectedColumns: st.SelectedColumns,
			MissingHeaders:  st.MissingHeaders,
			RowCount:        st.RowCount,
			FilePath:        st.FilePath,
		}
	}
	return out
}
