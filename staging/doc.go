// Package staging implements the rolling buffer that holds recently logged
// output so an embedded viewer can be shown fresh data on demand.
//
// A Buffer writes serialized messages into an active segment obtained from a
// SegmentStore. Snapshot finalizes the active segment, trims at most one empty
// segment, and returns the buffered history in chronological order; Reset
// discards everything. The Buffer implements sink.Sink so it can be attached
// to a channel context directly.
//
// A Buffer is safe for concurrent use: messages arrive from any number of
// producer goroutines, and Stage, Snapshot, and Reset may race with them and
// with each other. Every viewer connection taking a history snapshot sees a
// consistent rotation.
package staging
