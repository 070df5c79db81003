package staging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/telelog/metric"
	"github.com/c360/telelog/sink"
	"github.com/c360/telelog/timevalue"
)

// memStore is an in-memory SegmentStore for exercising the buffer without
// touching the filesystem.
type memStore struct {
	opened    int
	discarded int
}

func (s *memStore) Open() (Segment, error) {
	s.opened++
	return &memSegment{store: s}, nil
}

type memSegment struct {
	store  *memStore
	buf    bytes.Buffer
	closed bool
}

func (s *memSegment) Write(p []byte) (int, error) {
	if s.closed {
		return 0, fmt.Errorf("segment closed")
	}
	return s.buf.Write(p)
}

func (s *memSegment) Close() ([]byte, error) {
	s.closed = true
	return s.buf.Bytes(), nil
}

func (s *memSegment) Discard() error {
	s.closed = true
	s.store.discarded++
	return nil
}

func (s *memSegment) Empty() bool {
	return s.buf.Len() == 0
}

func stageN(t *testing.T, b *Buffer, n int) {
	t.Helper()
	ts := timevalue.MustTimestamp(1, 0)
	for i := 0; i < n; i++ {
		require.NoError(t, b.WriteMessage(1, []byte(fmt.Sprintf("msg-%d", i)), ts))
	}
}

func TestBuffer_SnapshotReturnsStagedMessages(t *testing.T) {
	store := &memStore{}
	b, err := NewBuffer(store)
	require.NoError(t, err)

	stageN(t, b, 20)

	contents, err := b.Snapshot()
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, 20, bytes.Count(contents[0], []byte("\n")))
	assert.Equal(t, 1, b.SegmentCount())
}

func TestBuffer_SecondEmptySnapshotDoesNotGrowHistory(t *testing.T) {
	store := &memStore{}
	b, err := NewBuffer(store)
	require.NoError(t, err)

	stageN(t, b, 20)
	first, err := b.Snapshot()
	require.NoError(t, err)

	// No messages between snapshots: the freshly finalized empty segment is
	// trimmed, and the second snapshot equals the first.
	second, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, b.SegmentCount())
	assert.Equal(t, 1, store.discarded)
}

func TestBuffer_TrimsEmptyOldestSegment(t *testing.T) {
	store := &memStore{}
	b, err := NewBuffer(store)
	require.NoError(t, err)

	// First snapshot finalizes an empty segment; with only one segment in
	// history nothing is trimmed yet.
	contents, err := b.Snapshot()
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Empty(t, contents[0])

	// Once real data arrives, the empty oldest segment is dropped.
	stageN(t, b, 3)
	contents, err = b.Snapshot()
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, 3, bytes.Count(contents[0], []byte("\n")))
}

func TestBuffer_NeverTrimsSegmentsWithData(t *testing.T) {
	store := &memStore{}
	b, err := NewBuffer(store)
	require.NoError(t, err)

	stageN(t, b, 2)
	_, err = b.Snapshot()
	require.NoError(t, err)
	stageN(t, b, 3)
	contents, err := b.Snapshot()
	require.NoError(t, err)

	require.Len(t, contents, 2)
	assert.Equal(t, 2, bytes.Count(contents[0], []byte("\n")))
	assert.Equal(t, 3, bytes.Count(contents[1], []byte("\n")))
}

func TestBuffer_StageRotatesSegments(t *testing.T) {
	store := &memStore{}
	b, err := NewBuffer(store)
	require.NoError(t, err)

	stageN(t, b, 1)
	require.NoError(t, b.Stage())
	stageN(t, b, 2)

	contents, err := b.Snapshot()
	require.NoError(t, err)
	require.Len(t, contents, 2)
	assert.Equal(t, 1, bytes.Count(contents[0], []byte("\n")))
	assert.Equal(t, 2, bytes.Count(contents[1], []byte("\n")))
}

func TestBuffer_StageDiscardsEmptyActiveSegment(t *testing.T) {
	store := &memStore{}
	b, err := NewBuffer(store)
	require.NoError(t, err)

	require.NoError(t, b.Stage())
	require.NoError(t, b.Stage())

	assert.Equal(t, 0, b.SegmentCount())
	assert.Equal(t, 2, store.discarded)
}

func TestBuffer_ResetDiscardsEverything(t *testing.T) {
	m := metric.NewMetrics()
	store := &memStore{}
	b, err := NewBuffer(store, WithMetrics(m))
	require.NoError(t, err)

	stageN(t, b, 5)
	require.NoError(t, b.Stage())
	stageN(t, b, 5)
	require.NoError(t, b.Reset())

	assert.Equal(t, 0, b.SegmentCount())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SegmentsDiscarded))

	// Logging keeps working on the fresh active segment.
	stageN(t, b, 1)
	contents, err := b.Snapshot()
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, 1, bytes.Count(contents[0], []byte("\n")))
}

func TestBuffer_FrameFormat(t *testing.T) {
	store := &memStore{}
	b, err := NewBuffer(store)
	require.NoError(t, err)

	ts := timevalue.MustTimestamp(12, 34)
	require.NoError(t, b.WriteMessage(7, []byte("hello"), ts))

	contents, err := b.Snapshot()
	require.NoError(t, err)
	require.Len(t, contents, 1)

	var f frame
	require.NoError(t, json.Unmarshal(bytes.TrimSuffix(contents[0], []byte("\n")), &f))
	assert.Equal(t, uint64(7), f.ChannelID)
	assert.Equal(t, uint32(12), f.Sec)
	assert.Equal(t, uint32(34), f.NSec)
	assert.Equal(t, []byte("hello"), f.Payload)
}

func TestBuffer_ChannelFilter(t *testing.T) {
	store := &memStore{}
	b, err := NewBuffer(store, WithChannelFilter(
		func(topic, messageEncoding, schemaName string) bool {
			return topic == "wanted"
		}))
	require.NoError(t, err)

	b.NotifyChannel(sink.ChannelInfo{ID: 1, Topic: "wanted"})
	b.NotifyChannel(sink.ChannelInfo{ID: 2, Topic: "unwanted"})

	ts := timevalue.MustTimestamp(1, 0)
	require.NoError(t, b.WriteMessage(1, []byte("keep"), ts))
	require.NoError(t, b.WriteMessage(2, []byte("skip"), ts))
	require.NoError(t, b.WriteMessage(3, []byte("unknown channel"), ts))

	contents, err := b.Snapshot()
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, 1, bytes.Count(contents[0], []byte("\n")))
	assert.Contains(t, string(contents[0]), "keep")
}

func TestBuffer_Metrics(t *testing.T) {
	m := metric.NewMetrics()
	store := &memStore{}
	b, err := NewBuffer(store, WithMetrics(m))
	require.NoError(t, err)

	stageN(t, b, 1)
	_, err = b.Snapshot()
	require.NoError(t, err)
	_, err = b.Snapshot()
	require.NoError(t, err)

	// initial open + one reopen per snapshot
	assert.Equal(t, float64(3), testutil.ToFloat64(m.SegmentsOpened))
	// second snapshot trimmed its own empty segment
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SegmentsTrimmed))
}

func TestBuffer_ConcurrentProducersAndSnapshots(t *testing.T) {
	store := &memStore{}
	b, err := NewBuffer(store)
	require.NoError(t, err)

	const producers = 4
	const perProducer = 50
	ts := timevalue.MustTimestamp(1, 0)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			b.NotifyChannel(sink.ChannelInfo{ID: id, Topic: "robot/pose", MessageEncoding: "json"})
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, b.WriteMessage(id, []byte(`{"x":1}`), ts))
			}
		}(uint64(p + 1))
	}

	// A viewer takes a history snapshot on every connect, racing the
	// producers above.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			_, err := b.Snapshot()
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	// Every message lands in exactly one segment regardless of interleaving.
	contents, err := b.Snapshot()
	require.NoError(t, err)
	total := 0
	for _, seg := range contents {
		total += bytes.Count(seg, []byte("\n"))
	}
	assert.Equal(t, producers*perProducer, total)
}
