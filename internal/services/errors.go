package services

import (
	"errors"
	"fmt"

	apperrors "riskdash/internal/errors"
)

// Ingest service errors
var (
	ErrPageNotFound      = errors.New("page not found")
	ErrSlotNotFound      = errors.New("input slot not found")
	ErrDatasetNotFound   = errors.New("dataset not found")
	ErrInputNotLoaded    = errors.New("input not loaded")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

func notFound(sentinel error, format string, args ...interface{}) error {
	return apperrors.NewAppError(apperrors.ErrTypeNotFound, fmt.Sprintf(format, args...), sentinel)
}

func invalid(sentinel error, format string, args ...interface{}) error {
	return apperrors.NewAppError(apperrors.ErrTypeValidation, fmt.Sprintf(format, args...), sentinel)
}
