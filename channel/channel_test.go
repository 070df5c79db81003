package channel

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/telelog/errors"
	"github.com/c360/telelog/metric"
	"github.com/c360/telelog/timevalue"
)

func TestNew_SchemaAndDescriptionAreExclusive(t *testing.T) {
	ctx, _ := testContext(t)

	_, err := New("conflict",
		WithContext(ctx),
		WithMessageEncoding("json"),
		WithSchema(Schema{Name: "s", Encoding: "jsonschema", Data: []byte(`{}`)}),
		WithSchemaDescription(map[string]any{"type": "object"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedPayload))
}

func TestNew_ExplicitSchema(t *testing.T) {
	ctx, _ := testContext(t)

	s := Schema{Name: "pose", Encoding: "protobuf", Data: []byte{0x0a, 0x01}}
	ch, err := New("robot/pose",
		WithContext(ctx),
		WithMessageEncoding("protobuf"),
		WithSchema(s))
	require.NoError(t, err)

	assert.Equal(t, "robot/pose", ch.Topic())
	assert.Equal(t, "protobuf", ch.MessageEncoding())
	assert.Equal(t, "pose", ch.SchemaName())
	assert.True(t, ch.Schema().Equal(s))
}

func TestChannel_MetadataIsCopied(t *testing.T) {
	ctx, _ := testContext(t)

	md := map[string]string{"unit": "m/s"}
	ch, err := New("meta", WithContext(ctx), WithMetadata(md))
	require.NoError(t, err)

	// Mutating the caller's map after creation has no effect.
	md["unit"] = "furlongs"
	assert.Equal(t, map[string]string{"unit": "m/s"}, ch.Metadata())

	// Mutating the returned copy has no effect either.
	cp := ch.Metadata()
	cp["extra"] = "x"
	assert.Equal(t, map[string]string{"unit": "m/s"}, ch.Metadata())
}

func TestChannel_LogForwardsPayloadAndTimestamp(t *testing.T) {
	ctx, _ := testContext(t)
	s := newRecordingSink()
	ctx.AddSink(s)

	ch, err := New("payloads", WithContext(ctx))
	require.NoError(t, err)

	ts := timevalue.MustTimestamp(100, 250_000_000)
	ch.Log([]byte("hello"), WithLogTime(ts))

	require.Equal(t, 1, s.messageCount())
	got := s.lastMessage()
	assert.Equal(t, ch.ID(), got.ChannelID)
	assert.Equal(t, []byte("hello"), got.Payload)
	assert.Equal(t, ts, got.Timestamp)

	// Without an explicit log time the channel stamps the current time.
	before := timevalue.Now()
	ch.LogText("now")
	after := timevalue.Now()
	got = s.lastMessage()
	assert.Equal(t, []byte("now"), got.Payload)
	assert.LessOrEqual(t, before.Compare(got.Timestamp), 0)
	assert.GreaterOrEqual(t, after.Compare(got.Timestamp), 0)
}

func TestChannel_LogJSON(t *testing.T) {
	ctx, _ := testContext(t)
	s := newRecordingSink()
	ctx.AddSink(s)

	ch, err := New("json-topic", WithContext(ctx), WithMessageEncoding("json"))
	require.NoError(t, err)

	require.NoError(t, ch.LogJSON(map[string]any{"speed": 1.5}))
	assert.JSONEq(t, `{"speed":1.5}`, string(s.lastMessage().Payload))

	// Non-JSON channels refuse LogJSON.
	raw, err := New("raw-topic", WithContext(ctx),
		WithMessageEncoding("protobuf"),
		WithSchema(Schema{Name: "s", Encoding: "protobuf", Data: []byte{1}}))
	require.NoError(t, err)
	err = raw.LogJSON(map[string]any{"speed": 1.5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedPayload))
}

func TestChannel_CloseAbsorbsSubsequentLogs(t *testing.T) {
	m := metric.NewMetrics()
	ctx, logs := testContext(t, WithMetrics(m))
	s := newRecordingSink()
	ctx.AddSink(s)

	ch, err := New("closing", WithContext(ctx))
	require.NoError(t, err)

	ch.Log([]byte("before close"))
	require.Equal(t, 1, s.messageCount())

	assert.False(t, ch.Closed())
	ch.Close()
	assert.True(t, ch.Closed())
	require.Len(t, s.closed, 1)
	assert.Equal(t, ch.ID(), s.closed[0])

	// Close is idempotent; sinks hear about it once.
	ch.Close()
	assert.Len(t, s.closed, 1)

	// Logging after close is absorbed, never an error, never reaches sinks.
	ch.Log([]byte("after close"))
	ch.LogText("still after close")
	assert.Equal(t, 1, s.messageCount())
	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.MessagesDropped.WithLabelValues(ctx.Name(), "closed_channel")))

	// The warning is throttled to one line, not one per attempt.
	assert.Equal(t, 1, strings.Count(logs.String(), "cannot log on closed channel"))
}

func TestChannel_ClosedWarnIntervalConfigurable(t *testing.T) {
	ctx, logs := testContext(t, WithClosedWarnInterval(time.Nanosecond))

	ch, err := New("chatty", WithContext(ctx))
	require.NoError(t, err)
	ch.Close()

	// With a sub-microsecond interval each attempt re-arms the throttle, so
	// the warning repeats instead of collapsing to one line.
	ch.Log([]byte("a"))
	time.Sleep(time.Millisecond)
	ch.Log([]byte("b"))
	assert.Equal(t, 2, strings.Count(logs.String(), "cannot log on closed channel"))
}

func TestChannel_ClosedChannelStaysRegistered(t *testing.T) {
	ctx, _ := testContext(t)

	ch, err := New("persistent", WithContext(ctx))
	require.NoError(t, err)
	ch.Close()

	got, ok := ctx.ChannelForTopic("persistent")
	require.True(t, ok)
	assert.Same(t, ch, got)

	// A new channel on the topic gets a fresh id, never the closed one's.
	fresh, err := New("persistent", WithContext(ctx),
		WithSchemaDescription(map[string]any{"type": "object", "title": "Fresh"}))
	require.NoError(t, err)
	assert.Greater(t, fresh.ID(), ch.ID())
}

func TestChannel_HasSinks(t *testing.T) {
	ctx, _ := testContext(t)
	ch, err := New("sinkcheck", WithContext(ctx))
	require.NoError(t, err)

	assert.False(t, ch.HasSinks())
	ctx.AddSink(newRecordingSink())
	assert.True(t, ch.HasSinks())
}
