// Package channel provides the channel/schema registry at the heart of the
// TeleLog SDK: applications declare typed channels on named topics and log
// structured messages through them.
//
// # Contexts
//
// A Context is an isolated registry scope owning its topic index and attached
// sinks. Channels created under one context are invisible to another, even if
// topics collide. A distinguished default context is created lazily once per
// process; most applications only ever use it.
//
// # Channels and schemas
//
// Channels are immutable after creation and bound to a canonical Schema
// record. Creating a channel with the same topic and a structurally equal
// schema returns the existing channel; the same topic with a different schema
// is allowed but logged as a warning, since it is usually a mistake. Channel
// ids are assigned from a process-wide monotonically increasing counter and
// are never reused.
//
// # Logging
//
// Channel.Log forwards the payload and an effective timestamp to the sinks
// attached to the channel's context. Logging on a closed channel is absorbed
// with a throttled warning, never an error. LogMsg is the auto-creating
// convenience path: it infers a channel kind from the message's shape on the
// first use of a topic and requires the kind to stay consistent afterwards.
package channel
