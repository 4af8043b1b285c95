package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	apierrors "riskdash/internal/errors"
	"riskdash/internal/loader"
	"riskdash/internal/middleware"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files
const multipartMemory = 32 << 20

func withValue(r *http.Request, key, value interface{}) context.Context {
	return context.WithValue(r.Context(), key, value)
}

// parseUploads bounds the body to maxBytes, parses the multipart form and
// reads every file under the given field names, in form order.
func parseUploads(w http.ResponseWriter, r *http.Request, maxBytes int64, v *middleware.ValidationMiddleware, fields ...string) ([]loader.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apierrors.NewWithDetails(
				http.StatusRequestEntityTooLarge,
				apierrors.CodePayloadTooLarge,
				"Upload exceeds maximum allowed size",
				map[string]interface{}{"max_size": maxBytes},
			)
		}
		return nil, apierrors.InvalidRequestWithError(err)
	}
	defer r.MultipartForm.RemoveAll()

	var uploads []loader.Upload
	for _, field := range fields {
		for _, fh := range r.MultipartForm.File[field] {
			name := fh.Filename
			if i := strings.LastIndexAny(name, `/\`); i >= 0 {
				name = name[i+1:]
			}
			if err := v.ValidateVar(field, name, "filename"); err != nil {
				return nil, err
			}
			content, err := readPart(fh)
			if err != nil {
				return nil, apierrors.InvalidRequestWithError(fmt.Errorf("read %s: %w", name, err))
			}
			uploads = append(uploads, loader.Upload{Name: name, Content: content})
		}
	}
	return uploads, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
