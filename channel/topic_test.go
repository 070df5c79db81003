package channel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/telelog/errors"
	"github.com/c360/telelog/timevalue"
)

func TestLogMsg_RawCreatesSchemalessChannel(t *testing.T) {
	ctx, _ := testContext(t)
	s := newRecordingSink()
	ctx.AddSink(s)

	require.NoError(t, ctx.LogMsg("raw", []byte{0xde, 0xad}))
	require.NoError(t, ctx.LogMsg("raw", "text too"))

	ch, ok := ctx.ChannelForTopic("raw")
	require.True(t, ok)
	assert.Equal(t, "json", ch.MessageEncoding())
	assert.Empty(t, ch.Schema().Data)

	require.Equal(t, 2, s.messageCount())
	assert.Equal(t, []byte("text too"), s.lastMessage().Payload)
}

func TestLogMsg_JSONCreatesGenericChannel(t *testing.T) {
	ctx, _ := testContext(t)
	s := newRecordingSink()
	ctx.AddSink(s)

	require.NoError(t, ctx.LogMsg("structured", map[string]any{"x": 1.0}))
	require.NoError(t, ctx.LogMsg("structured", []any{"a", "b"}))

	require.Equal(t, 2, s.messageCount())
	assert.JSONEq(t, `["a","b"]`, string(s.lastMessage().Payload))
}

func TestLogMsg_TypedLogEntry(t *testing.T) {
	ctx, _ := testContext(t)
	s := newRecordingSink()
	ctx.AddSink(s)

	entry := LogEntry{
		Timestamp: timevalue.MustTimestamp(7, 500),
		Level:     "warning",
		Message:   "low battery",
		Name:      "power-monitor",
		File:      "power.go",
		Line:      42,
	}
	require.NoError(t, ctx.LogMsg("diagnostics", entry))

	ch, ok := ctx.ChannelForTopic("diagnostics")
	require.True(t, ok)
	assert.Equal(t, "LogEntry", ch.SchemaName())
	assert.Equal(t, "jsonschema", ch.Schema().Encoding)

	require.Equal(t, 1, s.messageCount())
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(s.lastMessage().Payload, &decoded))
	assert.Equal(t, "low battery", decoded["message"])
	assert.Equal(t, "warning", decoded["level"])
	assert.Equal(t, map[string]any{"sec": float64(7), "nsec": float64(500)}, decoded["timestamp"])
}

func TestLogMsg_KindIsFixedPerTopic(t *testing.T) {
	ctx, _ := testContext(t)

	require.NoError(t, ctx.LogMsg("fixed", "first message decides"))

	err := ctx.LogMsg("fixed", map[string]any{"now": "structured"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrKindMismatch))

	err = ctx.LogMsg("fixed", LogEntry{Message: "typed"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrKindMismatch))

	// The established kind keeps working.
	require.NoError(t, ctx.LogMsg("fixed", []byte("more raw")))
}

func TestLogMsg_RejectsDirectlyCreatedTopics(t *testing.T) {
	ctx, _ := testContext(t)

	_, err := New("manual", WithContext(ctx))
	require.NoError(t, err)

	err = ctx.LogMsg("manual", "no established kind")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrKindMismatch))
}

func TestLogMsg_RejectsUnknownMessageTypes(t *testing.T) {
	ctx, _ := testContext(t)

	err := ctx.LogMsg("mystery", 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownKind))

	err = ctx.LogMsg("mystery", struct{ X int }{1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownKind))
}

type unknownKindMessage struct{}

func (unknownKindMessage) SchemaKind() SchemaKind { return SchemaKind(999) }

func (unknownKindMessage) MarshalPayload() ([]byte, error) { return nil, nil }

func TestLogMsg_RejectsUnknownSchemaKinds(t *testing.T) {
	ctx, _ := testContext(t)

	err := ctx.LogMsg("typed-mystery", unknownKindMessage{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownKind))
}

func TestLogMsg_DefaultContext(t *testing.T) {
	// Unique topic so repeated test runs in one process stay independent.
	topic := t.Name() + "/raw"
	require.NoError(t, LogMsg(topic, []byte("via package function")))

	_, ok := Default().ChannelForTopic(topic)
	assert.True(t, ok)
}

func TestMessageKind_String(t *testing.T) {
	assert.Equal(t, "raw", kindRaw.String())
	assert.Equal(t, "json", kindJSON.String())
	assert.Equal(t, "typed", kindTyped.String())
	assert.Equal(t, "unknown", messageKind(0).String())
}
