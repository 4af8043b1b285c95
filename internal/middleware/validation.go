package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "riskdash/internal/errors"
)

const defaultMaxJSONBody = 1 << 20

// tagMessages renders a failed validator tag; %[1]s is the field, %[2]s the
// tag parameter.
var tagMessages = map[string]string{
	"required": "%[1]s is required",
	"min":      "%[1]s must be at least %[2]s",
	"max":      "%[1]s must be at most %[2]s",
	"len":      "%[1]s must be exactly %[2]s characters",
	"filename": "%[1]s must be a valid filename",
}

// bodyless reports methods whose requests are never inspected
func bodyless(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// ValidationMiddleware decodes and validates JSON request bodies with
// go-playground/validator struct tags. Field names in messages follow the
// json tags.
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

// NewValidationMiddleware bounds JSON bodies by maxBodySize, 1 MiB when it is
// not positive. Multipart uploads are bounded by their handlers.
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler, maxBodySize int64) *ValidationMiddleware {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("filename", isValidFilename)
	v.RegisterTagNameFunc(jsonFieldName)

	if maxBodySize <= 0 {
		maxBodySize = defaultMaxJSONBody
	}
	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
		maxBodySize:  maxBodySize,
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// ValidateRequest buffers a JSON body and rejects it when it is oversized or
// not well-formed. Other content types pass through untouched.
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bodyless(r.Method) || r.Body == nil || !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			next.ServeHTTP(w, r)
			return
		}

		body, err := m.readBody(w, r)
		if err != nil {
			m.errorHandler.HandleError(w, r, err)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (m *ValidationMiddleware) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.ContentLength > m.maxBodySize {
		return nil, apierrors.NewWithDetails(http.StatusRequestEntityTooLarge, apierrors.CodePayloadTooLarge,
			"Request body exceeds maximum allowed size",
			map[string]interface{}{"max_size": m.maxBodySize, "size": r.ContentLength})
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, m.maxBodySize))
	if err != nil {
		m.logger.WarnContext(r.Context(), "request body unreadable",
			slog.String("request_id", GetReqID(r.Context())),
			slog.String("error", err.Error()))
		return nil, err
	}
	if len(body) > 0 && !json.Valid(body) {
		return nil, apierrors.New(http.StatusBadRequest, apierrors.CodeInvalidJSON, "Request body contains invalid JSON")
	}
	return body, nil
}

// DecodeJSON decodes the body into v and validates it. It writes the problem
// response itself and reports false when either step fails.
func (m *ValidationMiddleware) DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := render.DecodeJSON(r.Body, v)
	if err != nil {
		err = apierrors.InvalidRequestWithError(err)
	} else {
		err = m.ValidateStruct(v)
	}
	if err != nil {
		m.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

// ValidateStruct returns nil or an APIError listing every failed field
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	var fieldErrs validator.ValidationErrors
	if err := m.validator.Struct(v); err == nil {
		return nil
	} else if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = apierrors.ValidationError{
			Field:   fe.Namespace(),
			Message: describeTag(fe.Field(), fe.Tag(), fe.Param()),
		}
	}
	return apierrors.NewValidationErrors(out)
}

// ValidateVar checks one value against tag and reports failures under field
func (m *ValidationMiddleware) ValidateVar(field string, value interface{}, tag string) error {
	err := m.validator.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return apierrors.ErrValidation(field, describeTag(field, fieldErrs[0].Tag(), fieldErrs[0].Param()))
	}
	return apierrors.ErrValidation(field, err.Error())
}

func describeTag(field, tag, param string) string {
	if tag == "oneof" {
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	}
	if format, ok := tagMessages[tag]; ok {
		return fmt.Sprintf(format, field, param)
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}

// isValidFilename accepts a single path element of at most 255 bytes
func isValidFilename(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	switch {
	case name == "", name == ".", len(name) > 255:
		return false
	case strings.Contains(name, ".."), strings.ContainsAny(name, `/\`):
		return false
	}
	return true
}

// ContentTypeValidator answers 400 for a body-carrying request without a
// Content-Type and 415 for one outside contentTypes. DELETE is exempt.
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ct := r.Header.Get("Content-Type")
			if bodyless(r.Method) || r.Method == http.MethodDelete || acceptsContentType(ct, contentTypes) {
				next.ServeHTTP(w, r)
				return
			}

			if ct == "" {
				writeProblem(w, r, apierrors.NewProblemDetails(http.StatusBadRequest, apierrors.TypeValidation,
					"Missing Content Type", "Content-Type header is required", r.URL.Path))
				return
			}
			writeProblem(w, r, apierrors.NewProblemDetails(http.StatusUnsupportedMediaType, apierrors.TypeUnsupportedMedia,
				"Unsupported Media Type", fmt.Sprintf("Content type %q is not accepted here", ct), r.URL.Path,
			).WithExtension("allowed", contentTypes))
		})
	}
}

func acceptsContentType(ct string, allowed []string) bool {
	if ct == "" {
		return false
	}
	for _, a := range allowed {
		if strings.HasPrefix(ct, a) {
			return true
		}
	}
	return false
}

// QueryParamValidator checks query parameters and writes the problem
// response on failure.
type QueryParamValidator struct {
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

func NewQueryParamValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *QueryParamValidator {
	return &QueryParamValidator{
		logger:       logger.With(slog.String("component", "query_validator")),
		errorHandler: errorHandler,
	}
}

// ValidateEnum returns the canonical spelling of param among allowed,
// compared case-insensitively, or defaultValue when param is absent.
func (v *QueryParamValidator) ValidateEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return defaultValue, true
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return a, true
		}
	}

	v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param,
		fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", "))))
	return "", false
}
