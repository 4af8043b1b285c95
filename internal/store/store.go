// Package store persists input panel statuses so pages survive restarts.
package store

import (
	"context"
	"errors"

	"riskdash/internal/pages"
)

// ErrNotFound is returned when no status is stored for a slot.
var ErrNotFound = errors.New("status not found")

// StatusStore keeps one InputStatus per (page, slot).
type StatusStore interface {
	Get(ctx context.Context, pageKey, slotKey string) (*pages.InputStatus, error)
	List(ctx context.Context, pageKey string) (map[string]*pages.InputStatus, error)
	Put(ctx context.Context, status *pages.InputStatus) error
	Delete(ctx context.Context, pageKey, slotKey string) error
	Close() error
}

func clone(st *pages.InputStatus) *pages.InputStatus {
	out := *st
	out.AvailableColumns = append([]string{}, st.AvailableColumns...)
	out.Errors = append([]string{}, st.Errors...)
	out.MissingHeaders = append([]string{}, st.MissingHeaders...)
	out.SelectedColumns = make(map[string]string, len(st.SelectedColumns))
	for k, v := range st.SelectedColumns {
		out.SelectedColumns[k] = v
	}
	return &out
}
