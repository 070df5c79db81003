package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/telelog/errors"
	"github.com/c360/telelog/param"
	"github.com/c360/telelog/sink"
	"github.com/c360/telelog/staging"
	"github.com/c360/telelog/timevalue"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Operations in the client/server wire protocol.
const (
	opAdvertise                  = "advertise"
	opUnadvertise                = "unadvertise"
	opMessage                    = "message"
	opHistory                    = "history"
	opSubscribe                  = "subscribe"
	opUnsubscribe                = "unsubscribe"
	opClientAdvertise            = "clientAdvertise"
	opClientUnadvertise          = "clientUnadvertise"
	opMessageData                = "messageData"
	opGetParameters              = "getParameters"
	opSetParameters              = "setParameters"
	opParameterValues            = "parameterValues"
	opSubscribeParameters        = "subscribeParameters"
	opUnsubscribeParameters      = "unsubscribeParameters"
	opSubscribeConnectionGraph   = "subscribeConnectionGraph"
	opUnsubscribeConnectionGraph = "unsubscribeConnectionGraph"
	opFetchAsset                 = "fetchAsset"
	opAssetResponse              = "assetResponse"
)

// channelAd is the client-facing description of a channel.
type channelAd struct {
	ID              uint64            `json:"id"`
	Topic           string            `json:"topic"`
	MessageEncoding string            `json:"message_encoding"`
	SchemaName      string            `json:"schema_name,omitempty"`
	SchemaEncoding  string            `json:"schema_encoding,omitempty"`
	SchemaData      []byte            `json:"schema_data,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// serverMessage is the envelope for every frame the server sends.
type serverMessage struct {
	Op         string            `json:"op"`
	Channel    *channelAd        `json:"channel,omitempty"`
	ChannelID  uint64            `json:"channel_id,omitempty"`
	Sec        uint32            `json:"sec,omitempty"`
	NSec       uint32            `json:"nsec,omitempty"`
	Payload    []byte            `json:"payload,omitempty"`
	Segments   [][]byte          `json:"segments,omitempty"`
	Parameters []param.Parameter `json:"parameters,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Found      bool              `json:"found,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// clientMessage is the envelope for every frame a client sends.
type clientMessage struct {
	Op              string            `json:"op"`
	ChannelID       uint64            `json:"channel_id,omitempty"`
	ClientChannelID uint32            `json:"client_channel_id,omitempty"`
	Channel         *clientChannelAd  `json:"channel,omitempty"`
	Data            []byte            `json:"data,omitempty"`
	Names           []string          `json:"names,omitempty"`
	Parameters      []param.Parameter `json:"parameters,omitempty"`
	RequestID       string            `json:"request_id,omitempty"`
	URI             string            `json:"uri,omitempty"`
}

// clientChannelAd describes a channel advertised by a client.
type clientChannelAd struct {
	ID             uint32 `json:"id"`
	Topic          string `json:"topic"`
	Encoding       string `json:"encoding,omitempty"`
	SchemaName     string `json:"schema_name,omitempty"`
	SchemaEncoding string `json:"schema_encoding,omitempty"`
	SchemaData     []byte `json:"schema_data,omitempty"`
}

// client is one connected viewer.
type client struct {
	id   uint32
	conn *websocket.Conn

	writeMu sync.Mutex

	mu            sync.Mutex
	subscriptions map[uint64]bool
	paramSubs     map[string]bool
	graphSub      bool
}

func (c *client) send(msg serverMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) subscribed(channelID uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriptions[channelID]
}

// Server is a websocket sink broadcasting logged messages to viewer clients.
type Server struct {
	id       sink.ID
	addr     string
	path     string
	logger   *slog.Logger
	listener sink.ServerListener
	filter   sink.ChannelFilter
	buffer   *staging.Buffer
	assets   sink.AssetHandler

	upgrader   websocket.Upgrader
	httpServer *http.Server
	ln         net.Listener

	nextClientID atomic.Uint32

	mu         sync.RWMutex
	running    bool
	clients    map[uint32]*client
	channels   map[uint64]sink.ChannelInfo
	paramSubs  map[string]int
	graphSubs  int
	shutdown   chan struct{}
	serverDone chan struct{}
	wg         sync.WaitGroup
}

// Option customizes the server.
type Option func(*Server)

// WithPath sets the websocket endpoint path, default "/ws".
func WithPath(path string) Option {
	return func(s *Server) {
		s.path = path
	}
}

// WithLogger sets the slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithListener dispatches client requests to the given listener instead of
// the no-op default.
func WithListener(l sink.ServerListener) Option {
	return func(s *Server) {
		s.listener = l
	}
}

// WithChannelFilter restricts which channels are advertised and broadcast.
func WithChannelFilter(filter sink.ChannelFilter) Option {
	return func(s *Server) {
		s.filter = filter
	}
}

// WithHistory replays a snapshot of the staging buffer to each client on
// connect. Snapshotting happens on the connection goroutine; the buffer
// serializes it against concurrent logging and other connections.
func WithHistory(buffer *staging.Buffer) Option {
	return func(s *Server) {
		s.buffer = buffer
	}
}

// WithAssetHandler resolves clients' fetchAsset requests. Without a handler
// every asset request is answered not-found.
func WithAssetHandler(handler sink.AssetHandler) Option {
	return func(s *Server) {
		s.assets = handler
	}
}

// NewServer creates a viewer server listening on addr once started.
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		id:       sink.NextID(),
		addr:     addr,
		path:     "/ws",
		logger:   slog.Default(),
		listener: sink.NoopServerListener{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:   make(map[uint32]*client),
		channels:  make(map[uint64]sink.ChannelInfo),
		paramSubs: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins listening and serving clients. It returns once the listener
// is bound; serving continues in the background until Stop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.WrapInvalid(
			fmt.Errorf("viewer server already running on %s", s.addr),
			"Server", "Start", "begin serving")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.WrapTransient(err, "Server", "Start", "bind listener")
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebSocket)
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.shutdown = make(chan struct{})
	s.serverDone = make(chan struct{})
	s.running = true

	go func() {
		defer close(s.serverDone)
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("viewer server stopped", "error", err)
		}
	}()

	s.wg.Add(1)
	go s.pingClients(ctx)

	s.logger.Info("viewer server listening", "addr", ln.Addr().String(), "path", s.path)
	return nil
}

// Addr returns the bound listen address. Only valid after Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Stop closes all client connections and shuts the server down, waiting up to
// timeout for in-flight handlers.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.shutdown)
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "shutdown http server")
	}
	<-s.serverDone
	s.wg.Wait()
	return nil
}

// ID implements sink.Sink.
func (s *Server) ID() sink.ID {
	return s.id
}

// NotifyChannel implements sink.Sink, advertising the channel to every
// connected client.
func (s *Server) NotifyChannel(info sink.ChannelInfo) {
	if s.filter != nil && !s.filter(info.Topic, info.MessageEncoding, info.SchemaName) {
		return
	}
	s.mu.Lock()
	s.channels[info.ID] = info
	clients := s.clientSnapshot()
	s.mu.Unlock()

	msg := serverMessage{Op: opAdvertise, Channel: adFromInfo(info)}
	for _, c := range clients {
		if err := c.send(msg); err != nil {
			s.logger.Warn("advertise send failed", "client", c.id, "error", err)
		}
	}
}

// WriteMessage implements sink.Sink, broadcasting the message to clients
// subscribed to its channel.
func (s *Server) WriteMessage(channelID uint64, payload []byte, ts timevalue.Timestamp) error {
	s.mu.RLock()
	_, known := s.channels[channelID]
	clients := s.clientSnapshot()
	s.mu.RUnlock()
	if !known {
		return nil
	}

	msg := serverMessage{
		Op:        opMessage,
		ChannelID: channelID,
		Sec:       ts.Sec(),
		NSec:      ts.NSec(),
		Payload:   payload,
	}
	for _, c := range clients {
		if !c.subscribed(channelID) {
			continue
		}
		if err := c.send(msg); err != nil {
			s.logger.Warn("message send failed", "client", c.id, "error", err)
			// Slow or dead clients are dropped rather than allowed to stall
			// the broadcast.
			s.removeClient(c)
		}
	}
	return nil
}

// NotifyClose implements sink.Sink, unadvertising the channel.
func (s *Server) NotifyClose(channelID uint64) {
	s.mu.Lock()
	_, known := s.channels[channelID]
	delete(s.channels, channelID)
	clients := s.clientSnapshot()
	s.mu.Unlock()
	if !known {
		return
	}

	msg := serverMessage{Op: opUnadvertise, ChannelID: channelID}
	for _, c := range clients {
		if err := c.send(msg); err != nil {
			s.logger.Warn("unadvertise send failed", "client", c.id, "error", err)
		}
	}
}

// PublishParameterValues pushes parameter values to every connected client,
// e.g. after the application changes them outside a client request.
func (s *Server) PublishParameterValues(parameters []param.Parameter) {
	s.mu.RLock()
	clients := s.clientSnapshot()
	s.mu.RUnlock()

	msg := serverMessage{Op: opParameterValues, Parameters: parameters}
	for _, c := range clients {
		if err := c.send(msg); err != nil {
			s.logger.Warn("parameter send failed", "client", c.id, "error", err)
		}
	}
}

// clientSnapshot copies the client set; callers hold s.mu.
func (s *Server) clientSnapshot() []*client {
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}

func adFromInfo(info sink.ChannelInfo) *channelAd {
	return &channelAd{
		ID:              info.ID,
		Topic:           info.Topic,
		MessageEncoding: info.MessageEncoding,
		SchemaName:      info.SchemaName,
		SchemaEncoding:  info.SchemaEncoding,
		SchemaData:      info.SchemaData,
		Metadata:        info.Metadata,
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		id:            s.nextClientID.Add(1),
		conn:          conn,
		subscriptions: make(map[uint64]bool),
		paramSubs:     make(map[string]bool),
	}

	s.mu.Lock()
	channels := make([]sink.ChannelInfo, 0, len(s.channels))
	for _, info := range s.channels {
		channels = append(channels, info)
	}
	s.clients[c.id] = c
	s.mu.Unlock()

	for _, info := range channels {
		if err := c.send(serverMessage{Op: opAdvertise, Channel: adFromInfo(info)}); err != nil {
			s.removeClient(c)
			return
		}
	}

	if s.buffer != nil {
		segments, err := s.buffer.Snapshot()
		if err != nil {
			s.logger.Warn("history snapshot failed", "client", c.id, "error", err)
		} else if err := c.send(serverMessage{Op: opHistory, Segments: segments}); err != nil {
			s.removeClient(c)
			return
		}
	}

	s.logger.Debug("viewer client connected", "client", c.id, "remote", r.RemoteAddr)
	go s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	defer s.removeClient(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("malformed client message", "client", c.id, "error", err)
			continue
		}
		s.dispatch(c, msg)
	}
}

// dispatch routes one client request to the server listener.
func (s *Server) dispatch(c *client, msg clientMessage) {
	cl := sink.Client{ID: c.id}
	switch msg.Op {
	case opSubscribe:
		s.mu.RLock()
		info, known := s.channels[msg.ChannelID]
		s.mu.RUnlock()
		if !known {
			return
		}
		c.mu.Lock()
		c.subscriptions[msg.ChannelID] = true
		c.mu.Unlock()
		s.listener.OnSubscribe(cl, sink.ChannelView{ID: info.ID, Topic: info.Topic})

	case opUnsubscribe:
		c.mu.Lock()
		subscribed := c.subscriptions[msg.ChannelID]
		delete(c.subscriptions, msg.ChannelID)
		c.mu.Unlock()
		if !subscribed {
			return
		}
		s.mu.RLock()
		info := s.channels[msg.ChannelID]
		s.mu.RUnlock()
		s.listener.OnUnsubscribe(cl, sink.ChannelView{ID: msg.ChannelID, Topic: info.Topic})

	case opClientAdvertise:
		if msg.Channel == nil {
			return
		}
		s.listener.OnClientAdvertise(cl, sink.ClientChannel{
			ID:             msg.Channel.ID,
			Topic:          msg.Channel.Topic,
			Encoding:       msg.Channel.Encoding,
			SchemaName:     msg.Channel.SchemaName,
			SchemaEncoding: msg.Channel.SchemaEncoding,
			SchemaData:     msg.Channel.SchemaData,
		})

	case opClientUnadvertise:
		s.listener.OnClientUnadvertise(cl, msg.ClientChannelID)

	case opMessageData:
		s.listener.OnMessageData(cl, msg.ClientChannelID, msg.Data)

	case opGetParameters:
		params := s.listener.OnGetParameters(cl, msg.Names, msg.RequestID)
		if err := c.send(serverMessage{
			Op:         opParameterValues,
			Parameters: params,
			RequestID:  msg.RequestID,
		}); err != nil {
			s.logger.Warn("parameter response failed", "client", c.id, "error", err)
		}

	case opSetParameters:
		published := s.listener.OnSetParameters(cl, msg.Parameters, msg.RequestID)
		kept := make([]param.Parameter, 0, len(published))
		for _, p := range published {
			if p.Value != nil {
				kept = append(kept, p)
			}
		}
		s.PublishParameterValues(kept)

	case opSubscribeParameters:
		s.subscribeParameters(c, msg.Names)

	case opUnsubscribeParameters:
		s.unsubscribeParameters(c, msg.Names)

	case opFetchAsset:
		s.fetchAsset(c, msg.URI, msg.RequestID)

	case opSubscribeConnectionGraph:
		s.subscribeGraph(c)

	case opUnsubscribeConnectionGraph:
		s.unsubscribeGraph(c)

	default:
		s.logger.Warn("unknown client op", "client", c.id, "op", msg.Op)
	}
}

// subscribeParameters tracks per-name subscription counts so the listener
// only hears about a name's first subscriber.
func (s *Server) subscribeParameters(c *client, names []string) {
	var first []string
	s.mu.Lock()
	c.mu.Lock()
	for _, name := range names {
		if c.paramSubs[name] {
			continue
		}
		c.paramSubs[name] = true
		s.paramSubs[name]++
		if s.paramSubs[name] == 1 {
			first = append(first, name)
		}
	}
	c.mu.Unlock()
	s.mu.Unlock()
	if len(first) > 0 {
		s.listener.OnParametersSubscribe(first)
	}
}

func (s *Server) unsubscribeParameters(c *client, names []string) {
	var last []string
	s.mu.Lock()
	c.mu.Lock()
	for _, name := range names {
		if !c.paramSubs[name] {
			continue
		}
		delete(c.paramSubs, name)
		s.paramSubs[name]--
		if s.paramSubs[name] <= 0 {
			delete(s.paramSubs, name)
			last = append(last, name)
		}
	}
	c.mu.Unlock()
	s.mu.Unlock()
	if len(last) > 0 {
		s.listener.OnParametersUnsubscribe(last)
	}
}

func (s *Server) subscribeGraph(c *client) {
	s.mu.Lock()
	c.mu.Lock()
	already := c.graphSub
	if !already {
		c.graphSub = true
		s.graphSubs++
	}
	firstSub := !already && s.graphSubs == 1
	c.mu.Unlock()
	s.mu.Unlock()
	if firstSub {
		s.listener.OnConnectionGraphSubscribe()
	}
}

func (s *Server) unsubscribeGraph(c *client) {
	s.mu.Lock()
	c.mu.Lock()
	had := c.graphSub
	if had {
		c.graphSub = false
		s.graphSubs--
	}
	lastSub := had && s.graphSubs == 0
	c.mu.Unlock()
	s.mu.Unlock()
	if lastSub {
		s.listener.OnConnectionGraphUnsubscribe()
	}
}

// fetchAsset answers a client's asset request. Absence is a not-found
// response; only handler failures surface as protocol errors.
func (s *Server) fetchAsset(c *client, uri, requestID string) {
	resp := serverMessage{Op: opAssetResponse, RequestID: requestID}
	if s.assets == nil {
		resp.Error = "no asset handler configured"
	} else if result, err := s.assets(uri); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Found = result.Found
		resp.Payload = result.Data
	}
	if err := c.send(resp); err != nil {
		s.logger.Warn("asset response failed", "client", c.id, "uri", uri, "error", err)
	}
}

// removeClient drops a client, releasing its subscriptions as if it had
// unsubscribed from everything.
func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	if _, present := s.clients[c.id]; !present {
		s.mu.Unlock()
		return
	}
	delete(s.clients, c.id)
	s.mu.Unlock()

	_ = c.conn.Close()

	cl := sink.Client{ID: c.id}
	c.mu.Lock()
	subs := make([]uint64, 0, len(c.subscriptions))
	for id := range c.subscriptions {
		subs = append(subs, id)
	}
	paramNames := make([]string, 0, len(c.paramSubs))
	for name := range c.paramSubs {
		paramNames = append(paramNames, name)
	}
	hadGraph := c.graphSub
	c.mu.Unlock()

	for _, id := range subs {
		s.mu.RLock()
		info := s.channels[id]
		s.mu.RUnlock()
		s.listener.OnUnsubscribe(cl, sink.ChannelView{ID: id, Topic: info.Topic})
	}
	if len(paramNames) > 0 {
		s.unsubscribeParameters(c, paramNames)
	}
	if hadGraph {
		s.unsubscribeGraph(c)
	}
	s.logger.Debug("viewer client disconnected", "client", c.id)
}

// pingClients keeps connections alive and detects dead peers.
func (s *Server) pingClients(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.mu.RLock()
			clients := s.clientSnapshot()
			s.mu.RUnlock()
			for _, c := range clients {
				c.writeMu.Lock()
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				err := c.conn.WriteMessage(websocket.PingMessage, nil)
				c.writeMu.Unlock()
				if err != nil {
					s.removeClient(c)
				}
			}
		}
	}
}
