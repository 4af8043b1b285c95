// Package events defines the messages broadcast on the ingestion websocket feed.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeFileDetected  MessageType = "ingest:file_detected"
	MessageTypeFileRejected  MessageType = "ingest:file_rejected"
	MessageTypeFileSkipped   MessageType = "ingest:file_skipped"
	MessageTypeSlotCleared   MessageType = "ingest:slot_cleared"
	MessageTypePageReadiness MessageType = "page:readiness"

	// Connection messages
	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"
)

// WebSocketMessage is the envelope of every broadcast
type WebSocketMessage struct {
	Type      MessageType `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// NewMessage wraps data in an envelope stamped with the current time
func NewMessage(msgType MessageType, data interface{}, traceID string) WebSocketMessage {
	return WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
	}
}

// FileDetected is sent when an upload is classified and loaded.
// PageKey and SlotKey are empty for plain detection requests.
type FileDetected struct {
	FileName   string `json:"file_name"`
	DatasetKey string `json:"dataset_key"`
	Score      int    `json:"score"`
	RowCount   int    `json:"row_count"`
	PageKey    string `json:"page_key,omitempty"`
	SlotKey    string `json:"slot_key,omitempty"`
}

// FileRejected is sent when an upload cannot be used
type FileRejected struct {
	FileName  string `json:"file_name"`
	ErrorType string `json:"error_type,omitempty"`
	Message   string `json:"message"`
	PageKey   string `json:"page_key,omitempty"`
	SlotKey   string `json:"slot_key,omitempty"`
}

// FileSkipped is sent for empty uploads
type FileSkipped struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

// SlotCleared is sent when a page slot is emptied
type SlotCleared struct {
	PageKey string `json:"page_key"`
	SlotKey string `json:"slot_key"`
}

// PageReadiness carries the readiness verdict of a page after one of its
// slots changed
type PageReadiness struct {
	PageKey        string   `json:"page_key"`
	Ready          bool     `json:"ready"`
	InputsComplete bool     `json:"inputs_complete"`
	Message        string   `json:"message,omitempty"`
	Issues         []string `json:"issues"`
}

// ErrorMessage represents an error message
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
