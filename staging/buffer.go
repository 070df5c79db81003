package staging

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/c360/telelog/errors"
	"github.com/c360/telelog/metric"
	"github.com/c360/telelog/sink"
	"github.com/c360/telelog/timevalue"
)

// SegmentStore hands out append-only output segments. Backing storage (files
// in a temporary directory, in-memory buffers) is the store's concern.
type SegmentStore interface {
	// Open creates a fresh empty segment.
	Open() (Segment, error)
}

// Segment is one append-only output unit in the buffer's history.
type Segment interface {
	// Write appends bytes to the segment.
	Write(p []byte) (int, error)
	// Close finalizes the segment and returns its accumulated content. The
	// segment is immutable afterwards.
	Close() ([]byte, error)
	// Discard releases the segment's backing storage. Valid on both open and
	// closed segments.
	Discard() error
	// Empty reports whether anything has been written to the segment.
	Empty() bool
}

// frame is the line-oriented serialization of one logged message.
type frame struct {
	ChannelID uint64 `json:"channel_id"`
	Sec       uint32 `json:"sec"`
	NSec      uint32 `json:"nsec"`
	Payload   []byte `json:"payload"`
}

// closedSegment retains a finalized segment's content together with its
// handle so the backing storage can still be discarded.
type closedSegment struct {
	seg  Segment
	data []byte
}

// Buffer stages serialized messages across a rotating sequence of segments.
// It implements sink.Sink, so attaching it to a channel context routes every
// logged message into the active segment. All operations are safe for
// concurrent use: message delivery and segment rotation serialize under one
// mutex.
type Buffer struct {
	id      sink.ID
	store   SegmentStore
	metrics *metric.Metrics
	filter  sink.ChannelFilter

	mu       sync.Mutex
	channels map[uint64]sink.ChannelInfo
	active   Segment
	history  []closedSegment
}

// BufferOption customizes a Buffer.
type BufferOption func(*Buffer)

// WithMetrics attaches SDK metrics to the buffer.
func WithMetrics(m *metric.Metrics) BufferOption {
	return func(b *Buffer) {
		b.metrics = m
	}
}

// WithChannelFilter restricts which channels' messages are staged. Messages
// on channels the filter rejects are ignored without error.
func WithChannelFilter(filter sink.ChannelFilter) BufferOption {
	return func(b *Buffer) {
		b.filter = filter
	}
}

// NewBuffer creates a buffer over the given store and opens its first active
// segment.
func NewBuffer(store SegmentStore, opts ...BufferOption) (*Buffer, error) {
	b := &Buffer{
		id:       sink.NextID(),
		store:    store,
		channels: make(map[uint64]sink.ChannelInfo),
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.openActive(); err != nil {
		return nil, err
	}
	return b, nil
}

// openActive opens a fresh active segment. Callers hold b.mu (or, in
// NewBuffer, the buffer has not escaped yet).
func (b *Buffer) openActive() error {
	seg, err := b.store.Open()
	if err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err),
			"Buffer", "openActive", "open segment")
	}
	b.active = seg
	if b.metrics != nil {
		b.metrics.SegmentsOpened.Inc()
	}
	return nil
}

// ID implements sink.Sink.
func (b *Buffer) ID() sink.ID {
	return b.id
}

// NotifyChannel implements sink.Sink, recording the channel so its messages
// can be matched against the buffer's filter.
func (b *Buffer) NotifyChannel(info sink.ChannelInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[info.ID] = info
}

// NotifyClose implements sink.Sink. Closed channels' staged history is kept;
// only new writes stop arriving.
func (b *Buffer) NotifyClose(channelID uint64) {}

// WriteMessage implements sink.Sink, appending one serialized message frame
// to the active segment.
func (b *Buffer) WriteMessage(channelID uint64, payload []byte, ts timevalue.Timestamp) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.filter != nil {
		info, known := b.channels[channelID]
		if !known || !b.filter(info.Topic, info.MessageEncoding, info.SchemaName) {
			return nil
		}
	}
	if b.active == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: buffer has no active segment", errors.ErrSegmentClosed),
			"Buffer", "WriteMessage", "stage message")
	}

	line, err := json.Marshal(frame{
		ChannelID: channelID,
		Sec:       ts.Sec(),
		NSec:      ts.NSec(),
		Payload:   payload,
	})
	if err != nil {
		return errors.WrapInvalid(err, "Buffer", "WriteMessage", "serialize frame")
	}
	line = append(line, '\n')

	if _, err := b.active.Write(line); err != nil {
		return errors.WrapTransient(err, "Buffer", "WriteMessage", "append to segment")
	}
	return nil
}

// Stage rotates to a fresh active segment, keeping the current one in the
// buffered history. An active segment that never received a message is
// discarded instead of kept, so staging repeatedly does not accumulate empty
// history.
func (b *Buffer) Stage() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active != nil {
		if b.active.Empty() {
			if err := b.active.Discard(); err != nil {
				return errors.WrapTransient(err, "Buffer", "Stage", "discard empty segment")
			}
			if b.metrics != nil {
				b.metrics.SegmentsDiscarded.Inc()
			}
		} else {
			data, err := b.active.Close()
			if err != nil {
				return errors.WrapTransient(err, "Buffer", "Stage", "finalize segment")
			}
			b.history = append(b.history, closedSegment{seg: b.active, data: data})
		}
	}
	return b.openActive()
}

// Snapshot finalizes the active segment, trims at most one empty segment from
// the history, and returns the content of every remaining segment in
// chronological order. A fresh active segment is opened before returning so
// logging continues uninterrupted.
//
// The trim is asymmetric: an empty just-finalized segment is dropped from the
// newest end; failing that, an empty oldest segment is dropped. A segment
// that carries data is never dropped.
func (b *Buffer) Snapshot() ([][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.active.Close()
	if err != nil {
		return nil, errors.WrapTransient(err, "Buffer", "Snapshot", "finalize segment")
	}
	b.history = append(b.history, closedSegment{seg: b.active, data: data})
	b.active = nil

	if len(b.history) > 1 {
		newest := len(b.history) - 1
		switch {
		case len(b.history[newest].data) == 0:
			if err := b.history[newest].seg.Discard(); err != nil {
				return nil, errors.WrapTransient(err, "Buffer", "Snapshot", "trim segment")
			}
			b.history = b.history[:newest]
			if b.metrics != nil {
				b.metrics.SegmentsTrimmed.Inc()
			}
		case len(b.history[0].data) == 0:
			if err := b.history[0].seg.Discard(); err != nil {
				return nil, errors.WrapTransient(err, "Buffer", "Snapshot", "trim segment")
			}
			b.history = b.history[1:]
			if b.metrics != nil {
				b.metrics.SegmentsTrimmed.Inc()
			}
		}
	}

	contents := make([][]byte, len(b.history))
	for i, s := range b.history {
		contents[i] = s.data
	}

	if err := b.openActive(); err != nil {
		return nil, err
	}
	return contents, nil
}

// Reset discards every segment and its backing storage, then opens a fresh
// active segment.
func (b *Buffer) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active != nil {
		if err := b.active.Discard(); err != nil {
			return errors.WrapTransient(err, "Buffer", "Reset", "discard active segment")
		}
		b.active = nil
		if b.metrics != nil {
			b.metrics.SegmentsDiscarded.Inc()
		}
	}
	for _, s := range b.history {
		if err := s.seg.Discard(); err != nil {
			return errors.WrapTransient(err, "Buffer", "Reset", "discard segment")
		}
		if b.metrics != nil {
			b.metrics.SegmentsDiscarded.Inc()
		}
	}
	b.history = nil
	return b.openActive()
}

// SegmentCount returns the number of finalized segments currently buffered,
// not counting the active one.
func (b *Buffer) SegmentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history)
}
