package channel

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/telelog/metric"
	"github.com/c360/telelog/sink"
	"github.com/c360/telelog/timevalue"
)

// nextChannelID is shared by the whole process so channel ids are strictly
// increasing across all contexts and never reused.
var nextChannelID atomic.Uint64

// Context is an isolated registry scope mapping topics to channels.
//
// Channels created under one context are invisible to another even if topics
// collide. All lookup-or-create operations for a topic are serialized under a
// single mutex per context, so concurrent first-time loggers on the same topic
// cannot create two channels with the same schema.
type Context struct {
	name               string
	logger             *slog.Logger
	metrics            *metric.Metrics
	closedWarnInterval time.Duration

	mu              sync.Mutex
	channels        map[uint64]*Channel
	channelsByTopic map[string][]*Channel
	sinks           map[sink.ID]sink.Sink
	topicLoggers    map[string]*topicLogger

	// topicMu serializes LogMsg channel creation. Always acquired before mu,
	// never while holding it.
	topicMu sync.Mutex
}

// ContextOption customizes a Context.
type ContextOption func(*Context)

// WithName names the context for diagnostics.
func WithName(name string) ContextOption {
	return func(c *Context) {
		c.name = name
	}
}

// WithLogger sets the slog logger used for soft/advisory conditions.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *Context) {
		c.logger = logger
	}
}

// WithMetrics attaches SDK metrics to the context.
func WithMetrics(m *metric.Metrics) ContextOption {
	return func(c *Context) {
		c.metrics = m
	}
}

// WithClosedWarnInterval overrides how often the log-on-closed-channel
// warning may repeat per channel. Zero keeps the default.
func WithClosedWarnInterval(d time.Duration) ContextOption {
	return func(c *Context) {
		if d > 0 {
			c.closedWarnInterval = d
		}
	}
}

// NewContext creates an independent registry scope.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		name:               "context",
		logger:             slog.Default(),
		closedWarnInterval: defaultClosedWarnInterval,
		channels:           make(map[uint64]*Channel),
		channelsByTopic:    make(map[string][]*Channel),
		sinks:              make(map[sink.ID]sink.Sink),
		topicLoggers:       make(map[string]*topicLogger),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	defaultContext     *Context
	defaultContextOnce sync.Once
)

// Default returns the process-wide default context, creating it lazily on
// first use. Channel creation and logging use it when no context is given.
func Default() *Context {
	defaultContextOnce.Do(func() {
		defaultContext = NewContext(WithName("default"))
	})
	return defaultContext
}

// Name returns the context's diagnostic name.
func (c *Context) Name() string {
	return c.name
}

// AddSink attaches a sink to the context. The sink is immediately notified of
// every channel already registered.
func (c *Context) AddSink(s sink.Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sinks[s.ID()]; exists {
		return
	}
	c.sinks[s.ID()] = s
	for _, ch := range c.channels {
		s.NotifyChannel(ch.info())
	}
}

// RemoveSink detaches a sink from the context. Returns false if the sink was
// not attached.
func (c *Context) RemoveSink(id sink.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sinks[id]; !exists {
		return false
	}
	delete(c.sinks, id)
	return true
}

// HasSinks reports whether at least one sink is attached to the context.
func (c *Context) HasSinks() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sinks) > 0
}

// ChannelForTopic returns the channel for the given topic, if there is one.
// If multiple channels use the same topic, the first created is returned.
func (c *Context) ChannelForTopic(topic string) (*Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chans := c.channelsByTopic[topic]
	if len(chans) == 0 {
		return nil, false
	}
	return chans[0], true
}

// addChannel registers a channel under the context, de-duplicating by
// (topic, schema). If a structurally identical channel already exists it is
// returned unchanged; a same-topic channel with a different schema is allowed
// but warned about, since it is usually a mistake.
func (c *Context) addChannel(ch *Channel) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()

	topicChannels := c.channelsByTopic[ch.topic]
	for _, existing := range topicChannels {
		if existing.matches(ch) {
			return existing
		}
	}

	if len(topicChannels) > 0 {
		c.logger.Warn("Channel with topic already exists in this context; use a unique topic for each channel",
			"topic", ch.topic,
			"context", c.name)
		if c.metrics != nil {
			c.metrics.DuplicateTopics.WithLabelValues(c.name).Inc()
		}
	}

	ch.id = nextChannelID.Add(1)
	c.channels[ch.id] = ch
	c.channelsByTopic[ch.topic] = append(topicChannels, ch)

	for _, s := range c.sinks {
		s.NotifyChannel(ch.info())
	}
	if c.metrics != nil {
		c.metrics.ChannelsCreated.WithLabelValues(c.name).Inc()
	}
	return ch
}

// writeMessage forwards a logged message to the context's sinks, optionally
// scoped to a single sink. Sink failures are reported, not propagated: retry
// policy belongs to the transport.
func (c *Context) writeMessage(ch *Channel, payload []byte, ts timevalue.Timestamp, only *sink.ID) {
	c.mu.Lock()
	sinks := make([]sink.Sink, 0, len(c.sinks))
	for id, s := range c.sinks {
		if only != nil && id != *only {
			continue
		}
		sinks = append(sinks, s)
	}
	c.mu.Unlock()

	for _, s := range sinks {
		if err := s.WriteMessage(ch.id, payload, ts); err != nil {
			c.logger.Error("sink write failed",
				"topic", ch.topic,
				"sink", s.ID(),
				"error", err)
			if c.metrics != nil {
				c.metrics.SinkErrors.WithLabelValues(c.name).Inc()
			}
		}
	}
	if c.metrics != nil {
		c.metrics.MessagesLogged.WithLabelValues(c.name).Inc()
	}
}

// notifyClose tells the context's sinks that a channel has closed. The channel
// stays registered; ids are never reused.
func (c *Context) notifyClose(channelID uint64) {
	c.mu.Lock()
	sinks := make([]sink.Sink, 0, len(c.sinks))
	for _, s := range c.sinks {
		sinks = append(sinks, s)
	}
	c.mu.Unlock()

	for _, s := range sinks {
		s.NotifyClose(channelID)
	}
}

// dropped records a message absorbed on a closed channel.
func (c *Context) dropped(reason string) {
	if c.metrics != nil {
		c.metrics.MessagesDropped.WithLabelValues(c.name, reason).Inc()
	}
}
