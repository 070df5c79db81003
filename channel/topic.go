package channel

import (
	"fmt"

	"github.com/c360/telelog/errors"
)

// messageKind classifies the shape of a message for the auto-creating log
// path. Once a topic's kind is established it is fixed for the topic's
// lifetime.
type messageKind int

const (
	kindRaw messageKind = iota + 1
	kindJSON
	kindTyped
)

func (k messageKind) String() string {
	switch k {
	case kindRaw:
		return "raw"
	case kindJSON:
		return "json"
	case kindTyped:
		return "typed"
	default:
		return "unknown"
	}
}

// SchemaKind enumerates the well-known typed schemas supported by LogMsg.
// The set is closed: adding a typed schema means adding an enum entry and a
// constructor, and unknown kinds are rejected explicitly.
type SchemaKind int

const (
	// SchemaKindUnknown is not a valid kind.
	SchemaKindUnknown SchemaKind = iota
	// SchemaKindLogEntry is the well-known log-record schema.
	SchemaKindLogEntry
)

// TypedMessage is a message with a well-known schema that LogMsg can route to
// a dedicated typed channel.
type TypedMessage interface {
	// SchemaKind identifies the message's well-known schema.
	SchemaKind() SchemaKind
	// MarshalPayload serializes the message for its channel's encoding.
	MarshalPayload() ([]byte, error)
}

// typedChannelConstructors maps each supported schema kind to its channel
// constructor. This is the complete set of typed channels LogMsg can create.
var typedChannelConstructors = map[SchemaKind]func(topic string, ctx *Context) (*Channel, error){
	SchemaKindLogEntry: newLogEntryChannel,
}

// topicLogger tracks the channel and established message kind for a topic
// first used through LogMsg.
type topicLogger struct {
	kind       messageKind
	schemaKind SchemaKind
	ch         *Channel
}

// LogMsg logs a message on a topic under the default context, creating a
// channel on first use. See Context.LogMsg.
func LogMsg(topic string, message any, opts ...LogOption) error {
	return Default().LogMsg(topic, message, opts...)
}

// LogMsg logs a message on a topic, creating a new channel the first time a
// topic is used: bytes and strings get a schemaless raw channel, maps and
// slices a generic JSON channel, and recognized typed messages their dedicated
// typed channel.
//
// The message kind must be kept consistent for each topic or an error is
// returned. This can be avoided by creating and using channels directly. A
// topic whose channel was created by other means is also rejected.
func (c *Context) LogMsg(topic string, message any, opts ...LogOption) error {
	kind, schemaKind, err := classifyMessage(message)
	if err != nil {
		return err
	}

	tl, err := c.topicLoggerFor(topic, kind, schemaKind)
	if err != nil {
		return err
	}

	switch kind {
	case kindRaw:
		switch m := message.(type) {
		case []byte:
			tl.ch.Log(m, opts...)
		case string:
			tl.ch.LogText(m, opts...)
		}
		return nil
	case kindJSON:
		return tl.ch.LogJSON(message, opts...)
	default:
		payload, err := message.(TypedMessage).MarshalPayload()
		if err != nil {
			return errors.WrapInvalid(err, "Context", "LogMsg", "serialize typed message")
		}
		tl.ch.Log(payload, opts...)
		return nil
	}
}

// topicLoggerFor returns the topic's logger, creating the backing channel on
// first use and enforcing kind consistency afterwards.
//
// Creation serializes under topicMu so concurrent first-time loggers converge
// on one channel, and a topic with channels but no logger is unambiguously one
// whose channel was created directly.
func (c *Context) topicLoggerFor(topic string, kind messageKind, schemaKind SchemaKind) (*topicLogger, error) {
	c.mu.Lock()
	tl, ok := c.topicLoggers[topic]
	c.mu.Unlock()
	if ok {
		return checkTopicKind(tl, topic, kind, schemaKind)
	}

	c.topicMu.Lock()
	defer c.topicMu.Unlock()

	c.mu.Lock()
	if tl, ok := c.topicLoggers[topic]; ok {
		c.mu.Unlock()
		return checkTopicKind(tl, topic, kind, schemaKind)
	}
	// A topic whose channel was created directly has no established message
	// kind; refuse rather than guess.
	if len(c.channelsByTopic[topic]) > 0 {
		c.mu.Unlock()
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: channel for topic %s was created directly", errors.ErrKindMismatch, topic),
			"Context", "LogMsg", "resolve topic channel")
	}
	c.mu.Unlock()

	ch, err := c.createTopicChannel(topic, kind, schemaKind)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	tl = &topicLogger{kind: kind, schemaKind: schemaKind, ch: ch}
	c.topicLoggers[topic] = tl
	return tl, nil
}

// checkTopicKind enforces that a topic keeps the message kind it was first
// logged with.
func checkTopicKind(tl *topicLogger, topic string, kind messageKind, schemaKind SchemaKind) (*topicLogger, error) {
	if tl.kind != kind || tl.schemaKind != schemaKind {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: topic %s is %s", errors.ErrKindMismatch, topic, tl.kind),
			"Context", "LogMsg", "resolve topic channel")
	}
	return tl, nil
}

func (c *Context) createTopicChannel(topic string, kind messageKind, schemaKind SchemaKind) (*Channel, error) {
	switch kind {
	case kindRaw:
		return New(topic, WithContext(c))
	case kindJSON:
		return New(topic, WithMessageEncoding("json"), WithContext(c))
	default:
		construct := typedChannelConstructors[schemaKind]
		return construct(topic, c)
	}
}

// classifyMessage infers the channel kind from a message's shape. Unknown
// message types are rejected explicitly.
func classifyMessage(message any) (messageKind, SchemaKind, error) {
	switch m := message.(type) {
	case []byte, string:
		return kindRaw, SchemaKindUnknown, nil
	case map[string]any, []any:
		return kindJSON, SchemaKindUnknown, nil
	case TypedMessage:
		if _, ok := typedChannelConstructors[m.SchemaKind()]; !ok {
			return 0, SchemaKindUnknown, errors.WrapInvalid(
				fmt.Errorf("%w: schema kind %d", errors.ErrUnknownKind, m.SchemaKind()),
				"Context", "LogMsg", "classify message")
		}
		return kindTyped, m.SchemaKind(), nil
	default:
		return 0, SchemaKindUnknown, errors.WrapInvalid(
			fmt.Errorf("%w: message type %T", errors.ErrUnknownKind, message),
			"Context", "LogMsg", "classify message")
	}
}
