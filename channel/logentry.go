package channel

import (
	"encoding/json"

	"github.com/c360/telelog/timevalue"
)

// LogEntry is the well-known log-record message: a leveled, source-attributed
// text line stamped with a timestamp. Logging a LogEntry through LogMsg
// creates a dedicated typed channel for the topic.
type LogEntry struct {
	// Timestamp is the time the record was produced.
	Timestamp timevalue.Timestamp
	// Level is the severity, e.g. "debug", "info", "warning", "error".
	Level string
	// Message is the log text.
	Message string
	// Name is the logger or process name that produced the record.
	Name string
	// File is the source file, if known.
	File string
	// Line is the source line, if known.
	Line uint32
}

// SchemaKind implements TypedMessage.
func (LogEntry) SchemaKind() SchemaKind {
	return SchemaKindLogEntry
}

// MarshalPayload implements TypedMessage, serializing the record as JSON.
func (e LogEntry) MarshalPayload() ([]byte, error) {
	return json.Marshal(map[string]any{
		"timestamp": map[string]any{
			"sec":  e.Timestamp.Sec(),
			"nsec": e.Timestamp.NSec(),
		},
		"level":   e.Level,
		"message": e.Message,
		"name":    e.Name,
		"file":    e.File,
		"line":    e.Line,
	})
}

// logEntrySchema describes LogEntry records to viewers.
var logEntrySchema = map[string]any{
	"title": "LogEntry",
	"type":  "object",
	"properties": map[string]any{
		"timestamp": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sec":  map[string]any{"type": "integer", "minimum": 0},
				"nsec": map[string]any{"type": "integer", "minimum": 0, "maximum": 999_999_999},
			},
		},
		"level":   map[string]any{"type": "string"},
		"message": map[string]any{"type": "string"},
		"name":    map[string]any{"type": "string"},
		"file":    map[string]any{"type": "string"},
		"line":    map[string]any{"type": "integer", "minimum": 0},
	},
}

// newLogEntryChannel creates the dedicated typed channel for LogEntry
// messages on a topic.
func newLogEntryChannel(topic string, ctx *Context) (*Channel, error) {
	return New(topic,
		WithSchemaDescription(logEntrySchema),
		WithContext(ctx))
}
