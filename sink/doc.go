// Package sink defines the narrow interfaces through which the channel
// registry hands logged data to external collaborators.
//
// A Sink durably persists or transmits logged messages: a file encoder, a
// network broadcaster, or both at once. The registry notifies sinks of new
// channels, forwards each logged message with its effective timestamp, and
// signals channel closure. Nothing at this layer defines a byte layout or wire
// protocol; that is entirely the Sink's responsibility.
//
// ServerListener is the hook surface a live transport offers back to the
// application. Every hook has a safe default via NoopServerListener, so a
// collaborator implements only the hooks it needs. Dispatch is static: the
// hook set is closed.
package sink
