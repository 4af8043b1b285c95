package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// Problem type URIs
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
	TypeRateLimit        = "/errors/rate-limit"
	TypeInternal         = "/errors/internal"
	TypeTimeout          = "/errors/timeout"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"
	TypeWebSocketUpgrade = "/errors/websocket/upgrade-failed"

	TypeUnparseable         = "/errors/ingest/unparseable"
	TypeNoViableSchema      = "/errors/ingest/no-viable-schema"
	TypeWrongSchema         = "/errors/ingest/wrong-schema"
	TypeMissingExpectation  = "/errors/ingest/missing-expectation"
	TypeEmptyFile           = "/errors/ingest/empty-file"
	TypeInsufficientHistory = "/errors/ingest/insufficient-history"
)

// ProblemDetails is an RFC 7807 error body. Extensions are written as top
// level members next to the standard ones.
type ProblemDetails struct {
	Type     string
	Title    string
	Status   int
	Detail   string
	Instance string

	Extensions map[string]interface{}
}

// NewProblemDetails returns a problem with no extensions
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension sets an extension member and returns pd
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// Render implements render.Renderer
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(pd.Extensions)+5)
	for k, v := range pd.Extensions {
		out[k] = v
	}
	out["type"] = pd.Type
	out["title"] = pd.Title
	out["status"] = pd.Status
	if pd.Detail != "" {
		out["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		out["instance"] = pd.Instance
	}
	return json.Marshal(out)
}

// problemKind is the fixed part of a problem: everything except the detail
// and the instance.
type problemKind struct {
	status int
	typ    string
	title  string
}

var appErrorKinds = map[ErrorType]problemKind{
	ErrTypeUnparseable:         {http.StatusUnprocessableEntity, TypeUnparseable, "Unreadable File"},
	ErrTypeNoViableSchema:      {http.StatusUnprocessableEntity, TypeNoViableSchema, "Unrecognized Dataset"},
	ErrTypeWrongSchema:         {http.StatusUnprocessableEntity, TypeWrongSchema, "Unexpected Dataset"},
	ErrTypeMissingExpectation:  {http.StatusUnprocessableEntity, TypeMissingExpectation, "Missing Columns"},
	ErrTypeInsufficientHistory: {http.StatusUnprocessableEntity, TypeInsufficientHistory, "Insufficient History"},
	ErrTypeEmptyFile:           {http.StatusBadRequest, TypeEmptyFile, "Empty File"},
	ErrTypeValidation:          {http.StatusBadRequest, TypeValidation, "Validation Failed"},
	ErrTypeNotFound:            {http.StatusNotFound, TypeNotFound, "Resource Not Found"},
}

var codeTypes = map[Code]string{
	CodeInvalidRequest:   TypeValidation,
	CodeInvalidJSON:      TypeValidation,
	CodeValidationFailed: TypeValidation,
	CodeNotFound:         TypeNotFound,
	CodePageNotFound:     TypeNotFound,
	CodeDatasetNotFound:  TypeNotFound,
	CodePayloadTooLarge:  TypePayloadTooLarge,
	CodeUnsupportedMedia: TypeUnsupportedMedia,
	CodeRateLimited:      TypeRateLimit,
	CodeWebSocketUpgrade: TypeWebSocketUpgrade,
}

var internalKind = problemKind{http.StatusInternalServerError, TypeInternal, "Internal Server Error"}
