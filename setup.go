package telelog

import (
	"context"
	"time"

	"github.com/c360/telelog/channel"
	"github.com/c360/telelog/config"
	"github.com/c360/telelog/natsink"
	"github.com/c360/telelog/staging"
	"github.com/c360/telelog/viewer"
)

// stopTimeout bounds how long Close waits for the viewer to drain.
const stopTimeout = 5 * time.Second

// SDK bundles a channel context with the sinks built from a Config: the
// staging buffer always, the NATS and viewer sinks when enabled. It is the
// configuration-driven alternative to assembling the pieces by hand.
type SDK struct {
	registry *channel.Context
	store    *staging.FileStore
	buffer   *staging.Buffer
	nats     *natsink.Sink
	viewer   *viewer.Server
}

// Open validates the configuration and assembles the SDK from it. A nil
// config means defaults. The returned SDK owns its sinks; Close releases
// them.
func Open(ctx context.Context, cfg *config.Config) (*SDK, error) {
	if cfg == nil {
		cfg = config.Default()
	} else {
		cfg = cfg.Clone()
		cfg.ApplyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &SDK{}
	s.registry = channel.NewContext(
		channel.WithName(cfg.Context.Name),
		channel.WithClosedWarnInterval(cfg.Context.ClosedWarnInterval),
	)

	store, err := staging.NewFileStore(cfg.Staging.Dir)
	if err != nil {
		return nil, err
	}
	s.store = store

	buffer, err := staging.NewBuffer(store)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.buffer = buffer
	s.registry.AddSink(buffer)

	if cfg.NATS.Enabled {
		ns, err := natsink.New(cfg.NATS)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.nats = ns
		s.registry.AddSink(ns)
	}

	if cfg.Viewer.Enabled {
		var opts []viewer.Option
		if cfg.Viewer.ServeHistory {
			opts = append(opts, viewer.WithHistory(buffer))
		}
		srv := viewer.NewServer(cfg.Viewer.Addr, opts...)
		if err := srv.Start(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		s.viewer = srv
		s.registry.AddSink(srv)
	}

	return s, nil
}

// Context returns the SDK's channel registry context.
func (s *SDK) Context() *channel.Context {
	return s.registry
}

// Buffer returns the staging buffer fed by the SDK's context.
func (s *SDK) Buffer() *staging.Buffer {
	return s.buffer
}

// Viewer returns the embedded viewer server, or nil when the viewer is not
// enabled.
func (s *SDK) Viewer() *viewer.Server {
	return s.viewer
}

// Close stops the viewer, closes the NATS sink, and removes staging storage
// the SDK owns. The first error wins; cleanup continues regardless.
func (s *SDK) Close() error {
	var firstErr error
	if s.viewer != nil {
		if err := s.viewer.Stop(stopTimeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.nats != nil {
		if err := s.nats.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.store != nil {
		if err := s.store.Cleanup(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
