// Package natsink provides a sink that broadcasts logged messages over NATS.
//
// Each channel's messages are published as JSON frames on a subject derived
// from the channel's topic under a configurable prefix; channel
// advertisements and closures go to "<prefix>.channels" so consumers can
// track the live channel set. Publish failures surface as transient errors
// to the channel context, which reports them without retrying.
package natsink
