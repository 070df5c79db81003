// Package viewer provides an embedded websocket server that streams logged
// messages to connected viewer clients.
//
// The Server implements sink.Sink: attaching it to a channel context
// advertises every channel to connected clients and broadcasts logged
// messages to the clients subscribed to them. When constructed with a
// staging buffer, a snapshot of buffered history is replayed to each client
// on connect so a freshly opened viewer is not empty.
//
// Client requests (subscribe, parameter get/set, connection-graph
// subscriptions, client-advertised channels) are dispatched to a
// sink.ServerListener; embed sink.NoopServerListener to handle only the
// hooks you need.
package viewer
