package upload

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockfile"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockkey"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	mu     sync.Mutex
	blocks map[uint32][]byte

	// gate, when set, stalls every write until a token arrives.
	gate chan struct{}

	// failOn makes the write of one block number report an error.
	failOn  uint32
	failErr error
}

func newMemSink() *memSink {
	return &memSink{blocks: make(map[uint32][]byte)}
}

func (s *memSink) PutBlock(_ []byte, id blockkey.ID, value []byte) error {
	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil && id.Number == s.failOn {
		return s.failErr
	}

	s.blocks[id.Number] = value

	return nil
}

func (s *memSink) block(n uint32) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.blocks[n]
}

type memManifests struct {
	mu    sync.Mutex
	saves []Manifest
}

func (m *memManifests) SaveManifest(mf *Manifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves = append(m.saves, *mf)

	return nil
}

func (m *memManifests) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.saves)
}

func newTestPool(t *testing.T, size int) *Pool {
	p, err := NewPool(size)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	return p
}

func testParams(contentLength int64) Params {
	return Params{
		Bucket:        []byte("media"),
		Key:           []byte("movie.bin"),
		ContentLength: contentLength,
		ContentType:   "application/octet-stream",
	}
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func TestUploadLiveness(t *testing.T) {
	const blockSize = 16

	ctx := testCtx(t)
	sink := newMemSink()
	pool := newTestPool(t, 4)

	stream := make([]byte, 10*blockSize+5)
	_, _ = rand.Read(stream)
	expected := append([]byte(nil), stream...)

	u, err := New(ctx, testParams(int64(len(stream))), sink, &memManifests{}, pool,
		WithBlockSize(blockSize))
	require.NoError(t, err)

	for _, chunk := range []int{1, 30, 2, 100, 16} {
		require.NoError(t, u.Write(ctx, stream[:chunk]))
		stream = stream[chunk:]
	}
	require.NoError(t, u.Write(ctx, stream))

	m, err := u.Finalize(ctx)
	require.NoError(t, err)
	require.True(t, m.Done)
	require.EqualValues(t, 10*blockSize+5, m.BytesReceived)
	require.EqualValues(t, 11, m.BlockCount)
	require.Equal(t, StateDone, u.State())

	// Reassemble and compare against the original stream.
	var rebuilt []byte
	for n := uint32(0); n < m.BlockCount; n++ {
		rebuilt = append(rebuilt, sink.block(n)...)
	}
	require.EqualValues(t, m.BytesReceived, len(rebuilt))
	require.Equal(t, expected, rebuilt)
	require.EqualValues(t, 5, len(sink.block(10)))
}

func TestUploadContent(t *testing.T) {
	const blockSize = 8

	ctx := testCtx(t)
	sink := newMemSink()
	pool := newTestPool(t, 2)

	stream := make([]byte, 3*blockSize)
	_, _ = rand.Read(stream)

	u, err := New(ctx, testParams(int64(len(stream))), sink, &memManifests{}, pool,
		WithBlockSize(blockSize))
	require.NoError(t, err)

	require.NoError(t, u.Write(ctx, stream))

	_, err = u.Finalize(ctx)
	require.NoError(t, err)

	for n := uint32(0); n < 3; n++ {
		require.Equal(t, stream[int(n)*blockSize:(int(n)+1)*blockSize], sink.block(n))
	}
}

func TestZeroLengthUpload(t *testing.T) {
	ctx := testCtx(t)
	pool := newTestPool(t, 2)

	u, err := New(ctx, testParams(0), newMemSink(), &memManifests{}, pool)
	require.NoError(t, err)
	require.Equal(t, StateDone, u.State())

	m, err := u.Finalize(ctx)
	require.NoError(t, err)
	require.True(t, m.Done)
	require.Zero(t, m.BlockCount)
}

func TestBackpressure(t *testing.T) {
	const (
		blockSize = 4
		maxBuffer = 8
	)

	ctx := testCtx(t)
	pool := newTestPool(t, 2)

	sink := newMemSink()
	sink.gate = make(chan struct{}, 16)
	t.Cleanup(func() { close(sink.gate) })

	u, err := New(ctx, testParams(100), sink, &memManifests{}, pool,
		WithBlockSize(blockSize),
		WithMaxBuffer(maxBuffer),
		WithWriters(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = u.Close() })

	// Exactly at capacity: accepted without deferral.
	require.NoError(t, u.Write(ctx, make([]byte, 8)))
	require.Equal(t, StateNotFull, u.State())

	// One byte over: the reply is withheld.
	released := make(chan error, 1)
	go func() { released <- u.Write(ctx, make([]byte, 1)) }()

	require.Eventually(t, func() bool { return u.State() == StateFull },
		2*time.Second, time.Millisecond)

	select {
	case err := <-released:
		t.Fatalf("write released while full: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// One completed block write drops the buffer below the limit.
	sink.gate <- struct{}{}

	select {
	case err := <-released:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("write not released after block completion")
	}
	require.Equal(t, StateNotFull, u.State())
}

func TestContentLengthOverflowRejected(t *testing.T) {
	ctx := testCtx(t)
	pool := newTestPool(t, 2)

	u, err := New(ctx, testParams(4), newMemSink(), &memManifests{}, pool,
		WithBlockSize(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = u.Close() })

	err = u.Write(ctx, make([]byte, 5))
	require.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestRejectAfterAllReceived(t *testing.T) {
	ctx := testCtx(t)
	pool := newTestPool(t, 2)

	u, err := New(ctx, testParams(4), newMemSink(), &memManifests{}, pool,
		WithBlockSize(4))
	require.NoError(t, err)

	require.NoError(t, u.Write(ctx, make([]byte, 4)))

	err = u.Write(ctx, []byte("x"))
	if err == nil {
		t.Fatal("write accepted after final chunk")
	}

	_, err = u.Finalize(ctx)
	require.NoError(t, err)
}

func TestWriterFailure(t *testing.T) {
	ctx := testCtx(t)
	pool := newTestPool(t, 2)

	sink := newMemSink()
	sink.failErr = fmt.Errorf("disk on fire")

	u, err := New(ctx, testParams(4), sink, &memManifests{}, pool,
		WithBlockSize(4))
	require.NoError(t, err)

	require.NoError(t, u.Write(ctx, make([]byte, 4)))

	_, err = u.Finalize(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk on fire")
	require.Equal(t, StateFailed, u.State())

	// The failed upload released its writers: a new upload can start.
	u2, err := New(ctx, testParams(0), newMemSink(), &memManifests{}, pool,
		WithWriters(2))
	require.NoError(t, err)
	_, err = u2.Finalize(ctx)
	require.NoError(t, err)
}

func TestCancelReleasesDeferredCaller(t *testing.T) {
	ctx := testCtx(t)
	pool := newTestPool(t, 2)

	sink := newMemSink()
	sink.gate = make(chan struct{}, 16)
	t.Cleanup(func() { close(sink.gate) })

	u, err := New(ctx, testParams(100), sink, &memManifests{}, pool,
		WithBlockSize(4),
		WithMaxBuffer(4),
		WithWriters(2))
	require.NoError(t, err)

	require.NoError(t, u.Write(ctx, make([]byte, 4)))

	released := make(chan error, 1)
	go func() { released <- u.Write(ctx, make([]byte, 4)) }()

	require.Eventually(t, func() bool { return u.State() == StateFull },
		2*time.Second, time.Millisecond)

	require.NoError(t, u.Close())

	select {
	case err := <-released:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("deferred caller not released by close")
	}

	_, err = u.Finalize(ctx)
	require.ErrorIs(t, err, ErrCancelled)
}

func TestManifestTicker(t *testing.T) {
	ctx := testCtx(t)
	pool := newTestPool(t, 2)
	manifests := &memManifests{}

	u, err := New(ctx, testParams(1000), newMemSink(), manifests, pool,
		WithBlockSize(16),
		WithManifestSaveInterval(5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = u.Close() })

	require.NoError(t, u.Write(ctx, make([]byte, 100)))

	require.Eventually(t, func() bool { return manifests.count() > 0 },
		2*time.Second, time.Millisecond)

	manifests.mu.Lock()
	saved := manifests.saves[len(manifests.saves)-1]
	manifests.mu.Unlock()

	require.EqualValues(t, 1000, saved.ContentLength)
	require.False(t, saved.Done)
}

func TestPoolBoundsPrepare(t *testing.T) {
	pool := newTestPool(t, 2)

	ctx := testCtx(t)

	u1, err := New(ctx, testParams(100), newMemSink(), &memManifests{}, pool,
		WithWriters(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = u1.Close() })

	// The pool is drained: the next prepare blocks until its deadline.
	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = New(short, testParams(100), newMemSink(), &memManifests{}, pool,
		WithWriters(1))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Closing the first upload frees the writers.
	require.NoError(t, u1.Close())

	u2, err := New(ctx, testParams(100), newMemSink(), &memManifests{}, pool,
		WithWriters(2))
	require.NoError(t, err)
	require.NoError(t, u2.Close())
}

func TestUploadThroughBlockfile(t *testing.T) {
	const (
		blockSize = 8
		maxBlocks = 4
	)

	ctx := testCtx(t)
	pool := newTestPool(t, 4)

	store := blockfile.New(t.TempDir(),
		blockfile.WithBlockSize(blockSize),
		blockfile.WithMaxBlocks(maxBlocks))

	stream := make([]byte, 3*blockSize+6)
	_, _ = rand.Read(stream)
	expected := append([]byte(nil), stream...)

	prm := testParams(int64(len(stream)))

	u, err := New(ctx, prm, store, &memManifests{}, pool,
		WithBlockSize(blockSize))
	require.NoError(t, err)

	for len(stream) > 0 {
		n := 10
		if n > len(stream) {
			n = len(stream)
		}
		require.NoError(t, u.Write(ctx, stream[:n]))
		stream = stream[n:]
	}

	m, err := u.Finalize(ctx)
	require.NoError(t, err)

	bucket := blockkey.BlockBucket(prm.Bucket)

	chunks, err := store.EnumerateChunks(bucket, m.UUID, 0)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2, 3}, chunks)

	var rebuilt []byte
	for _, n := range chunks {
		data, err := store.ReadBlock(bucket, blockkey.ID{UUID: m.UUID, Number: n})
		require.NoError(t, err)
		rebuilt = append(rebuilt, data...)
	}

	require.Equal(t, expected, rebuilt)
}

func TestNewValidation(t *testing.T) {
	ctx := testCtx(t)
	pool := newTestPool(t, 2)

	_, err := New(ctx, Params{Key: []byte("k"), ContentLength: 1}, newMemSink(), &memManifests{}, pool)
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = New(ctx, Params{Bucket: []byte("b"), Key: []byte("k"), ContentLength: -1}, newMemSink(), &memManifests{}, pool)
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = New(ctx, testParams(1), newMemSink(), &memManifests{}, pool, WithBlockSize(0))
	require.ErrorIs(t, err, common.ErrInvalidArgument)
}
