package natsink

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/c360/telelog/config"
	"github.com/c360/telelog/errors"
	"github.com/c360/telelog/sink"
	"github.com/c360/telelog/timevalue"
)

// publisher is the slice of *nats.Conn the sink needs.
type publisher interface {
	Publish(subject string, data []byte) error
	Flush() error
	Drain() error
}

// messageFrame is the JSON body published for each logged message.
type messageFrame struct {
	ChannelID uint64 `json:"channel_id"`
	Topic     string `json:"topic"`
	Sec       uint32 `json:"sec"`
	NSec      uint32 `json:"nsec"`
	Payload   []byte `json:"payload"`
}

// channelFrame is the JSON body published when a channel is advertised or
// closed.
type channelFrame struct {
	ID              uint64            `json:"id"`
	Topic           string            `json:"topic,omitempty"`
	MessageEncoding string            `json:"message_encoding,omitempty"`
	SchemaName      string            `json:"schema_name,omitempty"`
	SchemaEncoding  string            `json:"schema_encoding,omitempty"`
	SchemaData      []byte            `json:"schema_data,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Closed          bool              `json:"closed,omitempty"`
}

// Sink broadcasts logged messages to NATS subjects derived from channel
// topics. Channel advertisements and closures are published on the control
// subject so remote consumers can track the channel set.
type Sink struct {
	id      sink.ID
	conn    publisher
	prefix  string
	filter  sink.ChannelFilter
	ownConn bool

	mu       sync.Mutex
	channels map[uint64]sink.ChannelInfo
	closed   bool
}

// Option customizes the sink.
type Option func(*Sink)

// WithChannelFilter restricts which channels the sink broadcasts.
func WithChannelFilter(filter sink.ChannelFilter) Option {
	return func(s *Sink) {
		s.filter = filter
	}
}

// WithSubjectPrefix sets the subject prefix, default "telelog".
func WithSubjectPrefix(prefix string) Option {
	return func(s *Sink) {
		s.prefix = prefix
	}
}

// New connects to NATS per the given configuration and returns a broadcasting
// sink. The connection is owned by the sink and drained on Close.
func New(cfg config.NATSConfig, opts ...Option) (*Sink, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("telelog"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "Sink", "New", "connect to NATS")
	}
	s := NewWithConn(conn, opts...)
	s.ownConn = true
	if cfg.SubjectPrefix != "" {
		s.prefix = cfg.SubjectPrefix
	}
	return s, nil
}

// NewWithConn wraps an existing connection. The caller keeps ownership of the
// connection; Close flushes but does not drain it.
func NewWithConn(conn publisher, opts ...Option) *Sink {
	s := &Sink{
		id:       sink.NextID(),
		conn:     conn,
		prefix:   "telelog",
		channels: make(map[uint64]sink.ChannelInfo),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID implements sink.Sink.
func (s *Sink) ID() sink.ID {
	return s.id
}

// NotifyChannel implements sink.Sink, advertising the channel on the control
// subject. Channels rejected by the filter are remembered as excluded.
func (s *Sink) NotifyChannel(info sink.ChannelInfo) {
	if s.filter != nil && !s.filter(info.Topic, info.MessageEncoding, info.SchemaName) {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.channels[info.ID] = info
	s.mu.Unlock()

	body, err := json.Marshal(channelFrame{
		ID:              info.ID,
		Topic:           info.Topic,
		MessageEncoding: info.MessageEncoding,
		SchemaName:      info.SchemaName,
		SchemaEncoding:  info.SchemaEncoding,
		SchemaData:      info.SchemaData,
		Metadata:        info.Metadata,
	})
	if err != nil {
		return
	}
	_ = s.conn.Publish(s.prefix+".channels", body)
}

// WriteMessage implements sink.Sink, publishing the message on the subject
// derived from the channel's topic.
func (s *Sink) WriteMessage(channelID uint64, payload []byte, ts timevalue.Timestamp) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("%w: nats sink", errors.ErrSinkClosed),
			"Sink", "WriteMessage", "publish message")
	}
	info, known := s.channels[channelID]
	s.mu.Unlock()
	if !known {
		// Channel was excluded by the filter or never advertised.
		return nil
	}

	body, err := json.Marshal(messageFrame{
		ChannelID: channelID,
		Topic:     info.Topic,
		Sec:       ts.Sec(),
		NSec:      ts.NSec(),
		Payload:   payload,
	})
	if err != nil {
		return errors.WrapInvalid(err, "Sink", "WriteMessage", "serialize frame")
	}

	if err := s.conn.Publish(SubjectForTopic(s.prefix, info.Topic), body); err != nil {
		return errors.WrapTransient(err, "Sink", "WriteMessage", "publish message")
	}
	return nil
}

// NotifyClose implements sink.Sink, announcing the closure on the control
// subject. The channel's messages stop arriving afterwards.
func (s *Sink) NotifyClose(channelID uint64) {
	s.mu.Lock()
	_, known := s.channels[channelID]
	delete(s.channels, channelID)
	closed := s.closed
	s.mu.Unlock()
	if !known || closed {
		return
	}

	body, err := json.Marshal(channelFrame{ID: channelID, Closed: true})
	if err != nil {
		return
	}
	_ = s.conn.Publish(s.prefix+".channels", body)
}

// Close flushes pending publishes and, when the sink owns its connection,
// drains it. Close is idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.conn.Flush(); err != nil {
		return errors.WrapTransient(err, "Sink", "Close", "flush connection")
	}
	if s.ownConn {
		if err := s.conn.Drain(); err != nil {
			return errors.WrapTransient(err, "Sink", "Close", "drain connection")
		}
	}
	return nil
}

// SubjectForTopic maps a channel topic to a NATS subject under the prefix.
// Topic path separators become subject token separators and characters NATS
// reserves are replaced.
func SubjectForTopic(prefix, topic string) string {
	subject := strings.Trim(topic, "/")
	subject = strings.ReplaceAll(subject, "/", ".")
	subject = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '*', '>':
			return '_'
		default:
			return r
		}
	}, subject)
	if subject == "" {
		subject = "_"
	}
	return prefix + ".msg." + subject
}
