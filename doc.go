// Package telelog is the client-side data layer of a multimodal telemetry
// logging SDK.
//
// Applications declare typed channels on named topics, log structured
// messages and live parameters, and hand the results to sinks that record
// them or broadcast them to live viewers.
//
// # Architecture
//
// The SDK is layered leaves-first:
//
//	timevalue  fixed-point Duration/Timestamp with checked normalization
//	param      tagged-union parameter values with type inference
//	sink       the Sink, ChannelFilter, and ServerListener contracts
//	channel    contexts, the topic registry, schema normalization, logging
//	staging    rolling segment buffer for on-demand history
//	config     JSON configuration consumed by Open
//	natsink    NATS broadcast sink
//	viewer     embedded websocket viewer sink
//
// A Context owns the topic to channel registry; the process-wide default
// context is created lazily. Channels are immutable after creation,
// de-duplicated by (topic, schema), and forward logged payloads with an
// effective timestamp to every attached sink. Sinks are the only boundary:
// file encoders, network broadcasters, and the staging buffer all implement
// the same interface and can be attached simultaneously.
//
// # Basic usage
//
//	ch, err := channel.New("robot/pose",
//		channel.WithSchemaDescription(map[string]any{
//			"type":  "object",
//			"title": "Pose",
//		}))
//	if err != nil {
//		log.Fatal(err)
//	}
//	ch.LogJSON(map[string]any{"x": 1.0, "y": 2.0})
//
// Or let the topic's first message create the channel:
//
//	channel.LogMsg("diagnostics", channel.LogEntry{
//		Level:   "info",
//		Message: "mission started",
//	})
//
// Open assembles the whole stack from a config.Config instead: a named
// context, the staging buffer over the configured directory, and the NATS
// and viewer sinks when enabled.
//
//	sdk, err := telelog.Open(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sdk.Close()
//

// Hard errors (invalid schemas, time overflow, malformed parameter payloads)
// are synchronous; advisory conditions (duplicate topic schemas, logging on a
// closed channel) are reported through slog and never fail the call.
package telelog
