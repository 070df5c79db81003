// Package config provides configuration for TeleLog SDK embedders.
//
// Config covers the channel registry context, the staging buffer's file
// store, and the optional live sinks (NATS broadcast, embedded websocket
// viewer). Configuration is loaded from JSON files; unset fields take
// defaults via ApplyDefaults and contradictions are rejected by Validate.
//
// SafeConfig wraps a Config for thread-safe access when an application
// replaces configuration at runtime.
package config
