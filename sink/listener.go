package sink

import "github.com/c360/telelog/param"

// Client identifies a connected viewer client.
type Client struct {
	ID uint32
}

// ChannelView is the client-facing view of a server channel.
type ChannelView struct {
	ID    uint64
	Topic string
}

// ClientChannel describes a channel advertised by a client.
type ClientChannel struct {
	ID             uint32
	Topic          string
	Encoding       string
	SchemaName     string
	SchemaEncoding string
	SchemaData     []byte
}

// ServerListener receives callbacks for client events from a live transport.
//
// Embed NoopServerListener to implement only the hooks you need.
type ServerListener interface {
	// OnSubscribe is called when a client subscribes to a channel.
	OnSubscribe(client Client, channel ChannelView)

	// OnUnsubscribe is called when a client unsubscribes from a channel or
	// disconnects.
	OnUnsubscribe(client Client, channel ChannelView)

	// OnClientAdvertise is called when a client advertises a channel.
	OnClientAdvertise(client Client, channel ClientChannel)

	// OnClientUnadvertise is called when a client unadvertises a channel.
	OnClientUnadvertise(client Client, clientChannelID uint32)

	// OnMessageData is called when a message is received from a client.
	OnMessageData(client Client, clientChannelID uint32, data []byte)

	// OnGetParameters is called when a client requests parameters.
	OnGetParameters(client Client, names []string, requestID string) []param.Parameter

	// OnSetParameters is called when a client sets parameters. Only changed
	// parameters are passed in, but the return value must include all
	// parameters that should be published. Unset parameters in the return
	// value are not published to clients.
	OnSetParameters(client Client, parameters []param.Parameter, requestID string) []param.Parameter

	// OnParametersSubscribe is called when a client subscribes to one or more
	// parameters for the first time.
	OnParametersSubscribe(names []string)

	// OnParametersUnsubscribe is called when the last client subscription to
	// one or more parameters has been removed.
	OnParametersUnsubscribe(names []string)

	// OnConnectionGraphSubscribe is called when the first client subscribes
	// to the connection graph.
	OnConnectionGraphSubscribe()

	// OnConnectionGraphUnsubscribe is called when the last client
	// unsubscribes from the connection graph.
	OnConnectionGraphUnsubscribe()
}

// NoopServerListener provides safe defaults for every ServerListener hook.
// OnSetParameters echoes the changed parameters back, so by default they are
// published as-is.
type NoopServerListener struct{}

var _ ServerListener = NoopServerListener{}

// OnSubscribe implements ServerListener.
func (NoopServerListener) OnSubscribe(Client, ChannelView) {}

// OnUnsubscribe implements ServerListener.
func (NoopServerListener) OnUnsubscribe(Client, ChannelView) {}

// OnClientAdvertise implements ServerListener.
func (NoopServerListener) OnClientAdvertise(Client, ClientChannel) {}

// OnClientUnadvertise implements ServerListener.
func (NoopServerListener) OnClientUnadvertise(Client, uint32) {}

// OnMessageData implements ServerListener.
func (NoopServerListener) OnMessageData(Client, uint32, []byte) {}

// OnGetParameters implements ServerListener.
func (NoopServerListener) OnGetParameters(Client, []string, string) []param.Parameter {
	return nil
}

// OnSetParameters implements ServerListener.
func (NoopServerListener) OnSetParameters(_ Client, parameters []param.Parameter, _ string) []param.Parameter {
	return parameters
}

// OnParametersSubscribe implements ServerListener.
func (NoopServerListener) OnParametersSubscribe([]string) {}

// OnParametersUnsubscribe implements ServerListener.
func (NoopServerListener) OnParametersUnsubscribe([]string) {}

// OnConnectionGraphSubscribe implements ServerListener.
func (NoopServerListener) OnConnectionGraphSubscribe() {}

// OnConnectionGraphUnsubscribe implements ServerListener.
func (NoopServerListener) OnConnectionGraphUnsubscribe() {}
