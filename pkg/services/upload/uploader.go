// Package upload implements the chunked upload coordinator: a per-upload
// state machine that streams an object of known length, slices it into
// blocks, writes blocks through a bounded writer pool in parallel, applies
// backpressure when the in-flight buffer grows too large and hands the
// finished manifest to the caller once every block is durable.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockkey"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/common"
	"github.com/rnowak-basho-forks/riak-cs/pkg/util"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ErrCancelled is surfaced to every deferred caller when an upload shuts
// down before completing.
var ErrCancelled = errors.New("upload cancelled")

// BlockSink consumes the blocks an upload produces. It must tolerate
// concurrent calls for distinct block IDs, the coordinator never issues
// two writes for the same ID.
type BlockSink interface {
	PutBlock(bucket []byte, id blockkey.ID, value []byte) error
}

// Params identifies the object an upload streams.
type Params struct {
	Bucket        []byte
	Key           []byte
	ContentLength int64
	ContentType   string
}

// Uploader is the per-upload state machine. One goroutine owns all of its
// mutable state and serializes the event stream, callers interact through
// Write, Finalize and Close only.
type Uploader struct {
	cfg

	prm          Params
	blocksBucket []byte

	events chan event
	done   chan struct{}
	ticker *time.Ticker
	saver  util.WorkerPool

	stateView atomic.Uint32

	// Everything below is owned by the event loop goroutine.
	state         State
	manifest      *Manifest
	acc           []byte
	queue         []pendingBlock
	freeWriters   []int
	writerIDs     []int
	unacked       map[uint32]int
	bytesReceived int64
	blocksEmitted uint32
	curBuf        uint64
	deferredWrite chan error
	deferredFin   chan finalizeRes
	failure       error
	cleaned       bool
	closing       bool
}

type pendingBlock struct {
	num  uint32
	data []byte
}

type cfg struct {
	log          *zap.Logger
	sink         BlockSink
	manifests    ManifestStore
	pool         *Pool
	blockSize    uint32
	maxBuffer    uint64
	writers      int
	saveInterval time.Duration
}

const (
	defaultBlockSize     = 1 << 20
	defaultWriters       = 2
	defaultSaveInterval  = time.Minute
	defaultBufferBlocks  = 16
	manifestSaverRoutine = 1
)

// Option represents Uploader's constructor option.
type Option func(*cfg)

// WithLogger returns option to specify the upload's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) { c.log = l }
}

// WithBlockSize returns option to set the slicing block size.
func WithBlockSize(size uint32) Option {
	return func(c *cfg) { c.blockSize = size }
}

// WithMaxBuffer returns option to set the buffered-bytes threshold above
// which senders are held back.
func WithMaxBuffer(size uint64) Option {
	return func(c *cfg) { c.maxBuffer = size }
}

// WithWriters returns option to set how many pool writers one upload
// holds.
func WithWriters(n int) Option {
	return func(c *cfg) { c.writers = n }
}

// WithManifestSaveInterval returns option to set the period of the
// asynchronous manifest persistence.
func WithManifestSaveInterval(d time.Duration) Option {
	return func(c *cfg) { c.saveInterval = d }
}

// New prepares an upload: writers are acquired from the shared pool,
// blocking while it is drained, and the manifest ticker starts. The
// returned Uploader is ready for Write calls, or immediately finalizable
// when the declared content length is zero.
func New(ctx context.Context, prm Params, sink BlockSink, manifests ManifestStore, pool *Pool, opts ...Option) (*Uploader, error) {
	c := cfg{
		log:          zap.L(),
		sink:         sink,
		manifests:    manifests,
		pool:         pool,
		blockSize:    defaultBlockSize,
		writers:      defaultWriters,
		saveInterval: defaultSaveInterval,
	}
	for i := range opts {
		opts[i](&c)
	}

	switch {
	case len(prm.Bucket) == 0 || len(prm.Key) == 0:
		return nil, fmt.Errorf("%w: bucket and key are required", common.ErrInvalidArgument)
	case prm.ContentLength < 0:
		return nil, fmt.Errorf("%w: negative content length", common.ErrInvalidArgument)
	case c.blockSize == 0:
		return nil, fmt.Errorf("%w: block size must be positive", common.ErrInvalidArgument)
	case c.writers <= 0:
		return nil, fmt.Errorf("%w: writer count must be positive", common.ErrInvalidArgument)
	}

	if c.maxBuffer == 0 {
		c.maxBuffer = defaultBufferBlocks * uint64(c.blockSize)
	}
	// The final write drains at most one short block, the buffer must be
	// able to hold it or the full state could never empty.
	if c.maxBuffer < uint64(c.blockSize) {
		c.maxBuffer = uint64(c.blockSize)
	}

	writerIDs, err := pool.acquire(ctx, c.writers)
	if err != nil {
		return nil, err
	}

	saver, err := util.NewNonblockingWorkerPool(manifestSaverRoutine)
	if err != nil {
		pool.release(writerIDs)
		return nil, fmt.Errorf("create manifest saver: %w", err)
	}

	oid := uuid.New()

	u := &Uploader{
		cfg:          c,
		prm:          prm,
		blocksBucket: blockkey.BlockBucket(prm.Bucket),
		events:       make(chan event),
		done:         make(chan struct{}),
		ticker:       time.NewTicker(c.saveInterval),
		saver:        saver,
		manifest: &Manifest{
			Bucket:        prm.Bucket,
			Key:           prm.Key,
			UUID:          oid,
			ContentLength: prm.ContentLength,
			ContentType:   prm.ContentType,
			BlockSize:     c.blockSize,
			BlockCount:    blockCount(prm.ContentLength, c.blockSize),
		},
		// writerIDs stays untouched for the final release, the free list
		// is reshuffled by dispatch.
		freeWriters: append([]int(nil), writerIDs...),
		writerIDs:   writerIDs,
		unacked:     make(map[uint32]int),
	}

	u.log = u.log.With(zap.Stringer("upload", oid))

	if prm.ContentLength == 0 {
		u.manifest.Done = true
		u.setState(StateDone)
	} else {
		u.setState(StateNotFull)
	}

	mActiveUploads.Inc()

	go u.loop()

	u.log.Debug("upload prepared",
		zap.Int64("content_length", prm.ContentLength),
		zap.Int("writers", len(writerIDs)))

	return u, nil
}

func blockCount(contentLength int64, blockSize uint32) uint32 {
	return uint32((contentLength + int64(blockSize) - 1) / int64(blockSize))
}

// State returns the upload's current lifecycle phase.
func (u *Uploader) State() State {
	return State(u.stateView.Load())
}

// Manifest UUID accessor for callers that address blocks directly.
func (u *Uploader) UUID() uuid.UUID {
	return u.manifest.UUID
}

// Write streams one chunk of object data. It blocks while the upload
// buffer is over capacity and returns once the chunk is accepted, the
// chunk completing the object included.
func (u *Uploader) Write(ctx context.Context, p []byte) error {
	data := make([]byte, len(p))
	copy(data, p)

	reply := make(chan error, 1)

	select {
	case u.events <- augment{data: data, reply: reply}:
	case <-u.done:
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finalize waits for the upload to drain and returns the completed
// manifest. The reply is produced exactly once: the upload terminates
// with it.
func (u *Uploader) Finalize(ctx context.Context) (*Manifest, error) {
	reply := make(chan finalizeRes, 1)

	select {
	case u.events <- finalizeReq{reply: reply}:
	case <-u.done:
		return nil, ErrCancelled
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-reply:
		return res.manifest, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the upload down. Deferred callers receive ErrCancelled,
// writers go back to the pool without waiting for their outstanding I/O,
// those writes may still land on disk and are not rolled back.
func (u *Uploader) Close() error {
	req := closeReq{done: make(chan struct{})}

	select {
	case u.events <- req:
		<-req.done
	case <-u.done:
	}

	return nil
}

func (u *Uploader) loop() {
	defer close(u.done)

	for {
		select {
		case ev := <-u.events:
			switch e := ev.(type) {
			case augment:
				u.handleAugment(e)
			case written:
				u.handleWritten(e)
			case finalizeReq:
				u.handleFinalize(e)
			case closeReq:
				u.handleClose()
				close(e.done)
				return
			}

			if u.closing {
				return
			}

		case <-u.ticker.C:
			u.handleTick()
		}
	}
}

func (u *Uploader) setState(s State) {
	u.state = s
	u.stateView.Store(uint32(s))
}

// handleAugment classifies one incoming chunk: the chunk completing the
// object transitions to all_received, a chunk overflowing the buffer
// withholds its reply until space frees up, anything else is accepted
// immediately.
func (u *Uploader) handleAugment(e augment) {
	if u.state != StateNotFull {
		if u.state == StateFailed {
			e.reply <- u.failure
			return
		}
		e.reply <- fmt.Errorf("%w: upload in state %s accepts no data", common.ErrInvalidArgument, u.state)
		return
	}

	ns := int64(len(e.data))
	if u.bytesReceived+ns > u.manifest.ContentLength {
		e.reply <- fmt.Errorf("%w: %d bytes overflow declared content length %d",
			common.ErrInvalidArgument, u.bytesReceived+ns, u.manifest.ContentLength)
		return
	}

	overflow := u.curBuf+uint64(ns) > u.maxBuffer

	u.bytesReceived += ns
	u.curBuf += uint64(ns)
	u.manifest.BytesReceived = u.bytesReceived
	u.acc = append(u.acc, e.data...)

	last := u.bytesReceived == u.manifest.ContentLength

	var blocks [][]byte
	blocks, u.acc = sliceBlocks(u.acc, u.blockSize, u.bytesReceived, u.manifest.ContentLength)

	for _, b := range blocks {
		u.queue = append(u.queue, pendingBlock{num: u.blocksEmitted, data: b})
		u.blocksEmitted++
	}

	u.dispatch()

	switch {
	case last:
		u.setState(StateAllReceived)
		e.reply <- nil
		u.maybeDone()
	case overflow:
		u.deferredWrite = e.reply
		u.setState(StateFull)
	default:
		e.reply <- nil
	}
}

// dispatch pairs the lowest free writer with the oldest queued block
// until one of them runs out.
func (u *Uploader) dispatch() {
	for len(u.freeWriters) > 0 && len(u.queue) > 0 {
		w := u.freeWriters[0]
		u.freeWriters = u.freeWriters[1:]

		blk := u.queue[0]
		u.queue = u.queue[1:]

		u.unacked[blk.num] = len(blk.data)

		id := blockkey.ID{UUID: u.manifest.UUID, Number: blk.num}
		data := blk.data
		writer := w

		err := u.pool.submit(func() {
			werr := u.sink.PutBlock(u.blocksBucket, id, data)

			select {
			case u.events <- written{block: id.Number, writer: writer, err: werr}:
			case <-u.done:
			}
		})
		if err != nil {
			u.fail(fmt.Errorf("submit block write: %w", err))
			return
		}
	}
}

func (u *Uploader) handleWritten(e written) {
	if u.state == StateFailed {
		// Writers were already reclaimed when the upload failed.
		return
	}

	size, ok := u.unacked[e.block]
	if !ok {
		u.log.Warn("completion for unknown block", zap.Uint32("block", e.block))
		return
	}
	delete(u.unacked, e.block)
	u.curBuf -= uint64(size)

	i := sort.SearchInts(u.freeWriters, e.writer)
	u.freeWriters = append(u.freeWriters, 0)
	copy(u.freeWriters[i+1:], u.freeWriters[i:])
	u.freeWriters[i] = e.writer

	if e.err != nil {
		u.fail(fmt.Errorf("write block %d: %w", e.block, e.err))
		return
	}

	mBlocksWritten.Inc()

	u.dispatch()

	switch u.state {
	case StateFull:
		if u.curBuf < u.maxBuffer {
			u.deferredWrite <- nil
			u.deferredWrite = nil
			u.setState(StateNotFull)
		}
	case StateAllReceived:
		u.maybeDone()
	}
}

func (u *Uploader) maybeDone() {
	if u.state != StateAllReceived || len(u.unacked) > 0 || len(u.queue) > 0 {
		return
	}

	u.manifest.Done = true
	u.setState(StateDone)

	u.log.Debug("upload complete", zap.Uint32("blocks", u.blocksEmitted))

	if u.deferredFin != nil {
		u.deferredFin <- finalizeRes{manifest: u.manifest}
		u.deferredFin = nil
		u.finish()
	}
}

func (u *Uploader) handleFinalize(e finalizeReq) {
	switch u.state {
	case StateDone:
		e.reply <- finalizeRes{manifest: u.manifest}
		u.finish()
	case StateFailed:
		e.reply <- finalizeRes{err: u.failure}
		u.finish()
	case StateAllReceived:
		if u.deferredFin != nil {
			e.reply <- finalizeRes{err: fmt.Errorf("%w: duplicate finalize", common.ErrInvalidArgument)}
			return
		}
		u.deferredFin = e.reply
	default:
		e.reply <- finalizeRes{err: fmt.Errorf("%w: finalize in state %s", common.ErrInvalidArgument, u.state)}
	}
}

// handleTick snapshots the manifest and hands persistence to the saver
// routine. A tick never blocks the event loop and never fails the upload:
// an unavailable saver or a failed save is only logged.
func (u *Uploader) handleTick() {
	m := *u.manifest

	err := u.saver.Submit(func() {
		if err := u.manifests.SaveManifest(&m); err != nil {
			u.log.Warn("manifest save failed", zap.Error(err))
		}
	})
	if err != nil {
		u.log.Debug("manifest save skipped", zap.Error(err))
	}
}

// fail moves the upload to its terminal failure state: the buffer is
// dropped, writers return to the pool and deferred callers get the error.
// The loop stays alive to answer a late Finalize or Close.
func (u *Uploader) fail(err error) {
	u.failure = err
	u.setState(StateFailed)
	u.log.Error("upload failed", zap.Error(err))

	u.queue = nil
	u.acc = nil
	u.cleanup()

	if u.deferredWrite != nil {
		u.deferredWrite <- err
		u.deferredWrite = nil
	}
	if u.deferredFin != nil {
		// The one finalize reply is spent on the failure.
		u.deferredFin <- finalizeRes{err: err}
		u.deferredFin = nil
		u.finish()
	}
}

// handleClose cancels a still-running upload.
func (u *Uploader) handleClose() {
	if u.state != StateDone && u.state != StateFailed {
		u.failure = ErrCancelled

		u.queue = nil
		u.acc = nil

		if u.deferredWrite != nil {
			u.deferredWrite <- ErrCancelled
			u.deferredWrite = nil
		}
		if u.deferredFin != nil {
			u.deferredFin <- finalizeRes{err: ErrCancelled}
			u.deferredFin = nil
		}

		u.setState(StateFailed)
	}

	u.cleanup()
}

// finish terminates the loop after the one finalize reply.
func (u *Uploader) finish() {
	u.cleanup()
	u.closing = true
}

func (u *Uploader) cleanup() {
	if u.cleaned {
		return
	}
	u.cleaned = true

	u.ticker.Stop()
	u.saver.Release()
	u.pool.release(u.writerIDs)
	u.freeWriters = nil

	mActiveUploads.Dec()
}
