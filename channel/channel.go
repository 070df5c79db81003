package channel

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/c360/telelog/errors"
	"github.com/c360/telelog/pkg/throttle"
	"github.com/c360/telelog/sink"
	"github.com/c360/telelog/timevalue"
)

// defaultClosedWarnInterval throttles the warning for logging on a closed
// channel unless the context overrides it.
const defaultClosedWarnInterval = 10 * time.Second

// Channel is a typed, topic-bound destination for logged messages. Channels
// are immutable after creation apart from their closed flag, and are safe for
// concurrent use.
type Channel struct {
	id              uint64
	topic           string
	messageEncoding string
	schema          Schema
	metadata        map[string]string
	ctx             *Context
	closed          atomic.Bool
	closedWarn      *throttle.Throttler
}

// Option customizes channel creation.
type Option func(*channelOpts)

type channelOpts struct {
	messageEncoding string
	schema          *Schema
	description     map[string]any
	metadata        map[string]string
	ctx             *Context
}

// WithMessageEncoding sets the channel's message encoding. Required when an
// explicit Schema is supplied; optional (and presumed "json") for structured
// object descriptions.
func WithMessageEncoding(encoding string) Option {
	return func(o *channelOpts) {
		o.messageEncoding = encoding
	}
}

// WithSchema supplies a canonical Schema record for full control over the
// channel's schema. Requires WithMessageEncoding.
func WithSchema(s Schema) Option {
	return func(o *channelOpts) {
		o.schema = &s
	}
}

// WithSchemaDescription supplies a structured JSON schema description. Only
// object schemas are accepted; an empty description is the canonical empty
// schema (schemaless logging of arbitrary payloads).
func WithSchemaDescription(description map[string]any) Option {
	return func(o *channelOpts) {
		o.description = description
	}
}

// WithMetadata adds key/value strings to the channel.
func WithMetadata(metadata map[string]string) Option {
	return func(o *channelOpts) {
		o.metadata = metadata
	}
}

// WithContext registers the channel under the given context instead of the
// default one.
func WithContext(ctx *Context) Option {
	return func(o *channelOpts) {
		o.ctx = ctx
	}
}

// New creates a channel for logging messages on a topic, registering it under
// the target context. If an equal channel (same topic, structurally equal
// schema) already exists in that context, the existing channel is returned.
func New(topic string, opts ...Option) (*Channel, error) {
	var o channelOpts
	for _, opt := range opts {
		opt(&o)
	}

	if o.schema != nil && o.description != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: both schema and description supplied", errors.ErrUnsupportedPayload),
			"Channel", "New", "resolve schema")
	}

	encoding, schema, err := normalizeSchema(o.messageEncoding, o.schema, o.description)
	if err != nil {
		return nil, err
	}

	ctx := o.ctx
	if ctx == nil {
		ctx = Default()
	}

	metadata := make(map[string]string, len(o.metadata))
	for k, v := range o.metadata {
		metadata[k] = v
	}

	ch := &Channel{
		topic:           topic,
		messageEncoding: encoding,
		schema:          schema,
		metadata:        metadata,
		ctx:             ctx,
		closedWarn:      throttle.New(ctx.closedWarnInterval),
	}
	return ctx.addChannel(ch), nil
}

// ID returns the unique id of the channel. Ids reflect creation order and are
// strictly increasing across the whole process.
func (ch *Channel) ID() uint64 {
	return ch.id
}

// Topic returns the topic name of the channel.
func (ch *Channel) Topic() string {
	return ch.topic
}

// MessageEncoding returns the message encoding for the channel.
func (ch *Channel) MessageEncoding() string {
	return ch.messageEncoding
}

// Schema returns a copy of the channel's schema.
func (ch *Channel) Schema() Schema {
	s := ch.schema
	s.Data = append([]byte(nil), ch.schema.Data...)
	return s
}

// SchemaName returns the name of the channel's schema.
func (ch *Channel) SchemaName() string {
	return ch.schema.Name
}

// Metadata returns a copy of the channel's metadata. Changes to the returned
// map are not applied to the channel.
func (ch *Channel) Metadata() map[string]string {
	cp := make(map[string]string, len(ch.metadata))
	for k, v := range ch.metadata {
		cp[k] = v
	}
	return cp
}

// HasSinks reports whether at least one sink is attached to the channel's
// context.
func (ch *Channel) HasSinks() bool {
	return ch.ctx.HasSinks()
}

// Closed reports whether the channel has been closed.
func (ch *Channel) Closed() bool {
	return ch.closed.Load()
}

// LogOption customizes a single log call.
type LogOption func(*logOpts)

type logOpts struct {
	logTime *timevalue.Timestamp
	sinkID  *sink.ID
}

// WithLogTime stamps the message with an explicit log time instead of the
// current time.
func WithLogTime(ts timevalue.Timestamp) LogOption {
	return func(o *logOpts) {
		o.logTime = &ts
	}
}

// WithSinkID scopes the message to a single attached sink instead of all of
// them.
func WithSinkID(id sink.ID) LogOption {
	return func(o *logOpts) {
		o.sinkID = &id
	}
}

// Log logs a serialized message on the channel, forwarding the payload and an
// effective timestamp to the context's sinks.
//
// Logging on a closed channel is absorbed with a throttled warning; it never
// fails.
func (ch *Channel) Log(payload []byte, opts ...LogOption) {
	var o logOpts
	for _, opt := range opts {
		opt(&o)
	}

	if ch.closed.Load() {
		if ch.closedWarn.TryAcquire() {
			ch.ctx.logger.Warn("cannot log on closed channel",
				"topic", ch.topic,
				"channel", ch.id)
		}
		ch.ctx.dropped("closed_channel")
		return
	}

	ts := timevalue.Now()
	if o.logTime != nil {
		ts = *o.logTime
	}
	ch.ctx.writeMessage(ch, payload, ts, o.sinkID)
}

// LogText logs a string payload as-is.
func (ch *Channel) LogText(msg string, opts ...LogOption) {
	ch.Log([]byte(msg), opts...)
}

// LogJSON serializes a value as JSON and logs it. The channel must use JSON
// message encoding; you are responsible for serializing messages on channels
// with other encodings.
func (ch *Channel) LogJSON(msg any, opts ...LogOption) error {
	if ch.messageEncoding != "json" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: channel encoding is %q", errors.ErrUnsupportedPayload, ch.messageEncoding),
			"Channel", "LogJSON", "serialize message")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.WrapInvalid(err, "Channel", "LogJSON", "serialize message")
	}
	ch.Log(payload, opts...)
	return nil
}

// Close marks the channel closed and unadvertises it to sinks that manage
// channels dynamically. Close is idempotent. The channel stays registered in
// its context; its id is never reused. Subsequent log attempts elicit a
// throttled warning instead of an error.
func (ch *Channel) Close() {
	if !ch.closed.CompareAndSwap(false, true) {
		return
	}
	ch.ctx.notifyClose(ch.id)
}

// matches reports whether two channels are substantially identical for
// de-duplication: same topic, same message encoding, structurally equal
// schema.
func (ch *Channel) matches(other *Channel) bool {
	return ch.topic == other.topic &&
		ch.messageEncoding == other.messageEncoding &&
		ch.schema.Equal(other.schema)
}

// info builds the sink-facing description of the channel.
func (ch *Channel) info() sink.ChannelInfo {
	return sink.ChannelInfo{
		ID:              ch.id,
		Topic:           ch.topic,
		MessageEncoding: ch.messageEncoding,
		SchemaName:      ch.schema.Name,
		SchemaEncoding:  ch.schema.Encoding,
		SchemaData:      append([]byte(nil), ch.schema.Data...),
		Metadata:        ch.Metadata(),
	}
}
