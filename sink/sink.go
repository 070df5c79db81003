package sink

import (
	"sync/atomic"

	"github.com/c360/telelog/timevalue"
)

// ID uniquely identifies a sink within this process.
type ID uint64

var nextSinkID atomic.Uint64

// NextID allocates the next sink ID. IDs start at 1 and are never reused.
func NextID() ID {
	return ID(nextSinkID.Add(1))
}

// ChannelInfo describes a channel to a sink. It carries everything a sink
// needs to advertise or encode the channel without depending on the registry.
type ChannelInfo struct {
	ID              uint64
	Topic           string
	MessageEncoding string
	SchemaName      string
	SchemaEncoding  string
	SchemaData      []byte
	Metadata        map[string]string
}

// Sink writes messages from channels to a destination.
//
// Sinks must be safe for concurrent use: the registry may call them from
// multiple producer goroutines. Blocking, cancellation, and backpressure are
// the sink's own concern; the registry never retries.
type Sink interface {
	// ID returns the sink's unique ID.
	ID() ID

	// NotifyChannel is called once for each channel the sink should know
	// about: every existing channel when the sink is attached, and each new
	// channel created afterwards.
	NotifyChannel(info ChannelInfo)

	// WriteMessage writes one logged message. The timestamp is the effective
	// log time resolved by the caller.
	WriteMessage(channelID uint64, payload []byte, ts timevalue.Timestamp) error

	// NotifyClose is called when a channel is closed, so sinks that advertise
	// channels dynamically can unadvertise them.
	NotifyClose(channelID uint64)
}

// ChannelFilter decides whether a given channel's messages should be routed to
// a transport or recorder. A nil filter routes everything.
type ChannelFilter func(topic, messageEncoding, schemaName string) bool
