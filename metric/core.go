package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all SDK-level metrics (not application-specific)
type Metrics struct {
	// Registry metrics
	ChannelsCreated *prometheus.CounterVec
	DuplicateTopics *prometheus.CounterVec

	// Logging metrics
	MessagesLogged  *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec
	SinkErrors      *prometheus.CounterVec

	// Staging buffer metrics
	SegmentsOpened    prometheus.Counter
	SegmentsTrimmed   prometheus.Counter
	SegmentsDiscarded prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all SDK metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ChannelsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "telelog",
				Subsystem: "registry",
				Name:      "channels_created_total",
				Help:      "Total number of channels created",
			},
			[]string{"context"},
		),

		DuplicateTopics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "telelog",
				Subsystem: "registry",
				Name:      "duplicate_topics_total",
				Help:      "Total number of channels created on a topic that already had a channel with a different schema",
			},
			[]string{"context"},
		),

		MessagesLogged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "telelog",
				Subsystem: "messages",
				Name:      "logged_total",
				Help:      "Total number of messages forwarded to sinks",
			},
			[]string{"context"},
		),

		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "telelog",
				Subsystem: "messages",
				Name:      "dropped_total",
				Help:      "Total number of messages absorbed without reaching a sink",
			},
			[]string{"context", "reason"},
		),

		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "telelog",
				Subsystem: "messages",
				Name:      "sink_errors_total",
				Help:      "Total number of sink write failures",
			},
			[]string{"context"},
		),

		SegmentsOpened: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "telelog",
				Subsystem: "staging",
				Name:      "segments_opened_total",
				Help:      "Total number of staging segments opened",
			},
		),

		SegmentsTrimmed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "telelog",
				Subsystem: "staging",
				Name:      "segments_trimmed_total",
				Help:      "Total number of empty staging segments trimmed at snapshot",
			},
		),

		SegmentsDiscarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "telelog",
				Subsystem: "staging",
				Name:      "segments_discarded_total",
				Help:      "Total number of staging segments discarded by reset",
			},
		),
	}
}

// collectors returns every metric for bulk registration
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ChannelsCreated,
		m.DuplicateTopics,
		m.MessagesLogged,
		m.MessagesDropped,
		m.SinkErrors,
		m.SegmentsOpened,
		m.SegmentsTrimmed,
		m.SegmentsDiscarded,
	}
}
