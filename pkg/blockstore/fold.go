package blockstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/blockkey"
	"github.com/rnowak-basho-forks/riak-cs/pkg/blockstore/pathenc"
	"go.uber.org/zap"
)

// The fold engine walks the partition's directory tree with an explicit
// work stack, expanding one wildcard level per step, so memory stays
// bounded no matter how many objects the partition holds. Successor steps
// are pushed in reverse listing order, which makes emission follow the
// sorted order of the encoded names. Entries that fail to decode or read
// mid-fold are skipped: enumeration concurrent with deletes is
// approximate by contract.

// FoldBucketsHandler is called once per bucket on its first sighting.
type FoldBucketsHandler func(bucket []byte) error

// FoldKeysHandler is called for every stored key.
type FoldKeysHandler func(bucket, key []byte) error

// FoldObjectsHandler is called with the value for every stored key.
type FoldObjectsHandler func(bucket, key, value []byte) error

type foldKind int

const (
	foldBuckets foldKind = iota
	foldKeys
	foldObjects
)

// errStopFold lets a handler terminate a fold early without surfacing an
// error to the caller.
var errStopFold = errors.New("fold stopped")

type foldStep interface{ foldStep() }

type globBuckets struct{}

type globBucketLevel struct {
	dir   string
	level int
}

type globBucket struct{ dir string }

type globKeyLevel struct {
	bucket []byte
	dir    string
	level  int
}

type globKeyFile struct {
	bucket []byte
	dir    string
}

type keyFile struct {
	bucket []byte
	dir    string
	name   string
}

type bkey struct {
	bucket []byte
	key    []byte
	block  *blockkey.ID
}

func (globBuckets) foldStep()     {}
func (globBucketLevel) foldStep() {}
func (globBucket) foldStep()      {}
func (globKeyLevel) foldStep()    {}
func (globKeyFile) foldStep()     {}
func (keyFile) foldStep()         {}
func (bkey) foldStep()            {}

type folder struct {
	b    *Backend
	kind foldKind

	seen map[string]struct{}

	onBucket FoldBucketsHandler
	onKey    FoldKeysHandler
	onObject FoldObjectsHandler
}

// FoldBuckets calls fn once for every bucket holding at least one listed
// object (a decodable key file, or for block buckets a group file with at
// least one enumerated block), in sorted order of the encoded bucket names.
// Object values are not read.
func (b *Backend) FoldBuckets(fn FoldBucketsHandler) error {
	return b.FoldBucketsThunk(fn)()
}

// FoldBucketsThunk returns the bucket fold as an unstarted driver.
func (b *Backend) FoldBucketsThunk(fn FoldBucketsHandler) func() error {
	f := &folder{b: b, kind: foldBuckets, seen: make(map[string]struct{}), onBucket: fn}
	return f.run
}

// FoldKeys calls fn for every stored key in sorted order of the encoded
// bucket and key names.
func (b *Backend) FoldKeys(fn FoldKeysHandler) error {
	return b.FoldKeysThunk(fn)()
}

// FoldKeysThunk returns the key fold as an unstarted driver.
func (b *Backend) FoldKeysThunk(fn FoldKeysHandler) func() error {
	f := &folder{b: b, kind: foldKeys, onKey: fn}
	return f.run
}

// FoldObjects calls fn with every stored value in sorted order of the
// encoded bucket and key names. Objects that cannot be read are skipped.
func (b *Backend) FoldObjects(fn FoldObjectsHandler) error {
	return b.FoldObjectsThunk(fn)()
}

// FoldObjectsThunk returns the object fold as an unstarted driver.
func (b *Backend) FoldObjectsThunk(fn FoldObjectsHandler) func() error {
	f := &folder{b: b, kind: foldObjects, onObject: fn}
	return f.run
}

func (f *folder) run() error {
	mFoldOps.WithLabelValues(f.kind.String()).Inc()

	stack := []foldStep{globBuckets{}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		next, err := f.expand(top)
		if err != nil {
			if errors.Is(err, errStopFold) {
				return nil
			}
			return err
		}

		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}

	return nil
}

func (f *folder) expand(s foldStep) ([]foldStep, error) {
	switch s := s.(type) {
	case globBuckets:
		return []foldStep{globBucketLevel{dir: f.b.dir}}, nil

	case globBucketLevel:
		if s.level == f.b.set.BucketDepth {
			return []foldStep{globBucket{dir: s.dir}}, nil
		}

		var next []foldStep
		for _, name := range f.listDir(s.dir) {
			next = append(next, globBucketLevel{dir: filepath.Join(s.dir, name), level: s.level + 1})
		}
		return next, nil

	case globBucket:
		var next []foldStep
		for _, name := range f.listDir(s.dir) {
			bucket, err := pathenc.Decode(name)
			if err != nil {
				f.skip(s.dir, name, err)
				continue
			}
			next = append(next, globKeyLevel{bucket: bucket, dir: filepath.Join(s.dir, name)})
		}
		return next, nil

	case globKeyLevel:
		if s.level == f.b.set.KeyDepth {
			return []foldStep{globKeyFile{bucket: s.bucket, dir: s.dir}}, nil
		}

		var next []foldStep
		for _, name := range f.listDir(s.dir) {
			next = append(next, globKeyLevel{bucket: s.bucket, dir: filepath.Join(s.dir, name), level: s.level + 1})
		}
		return next, nil

	case globKeyFile:
		var next []foldStep
		for _, name := range f.listDir(s.dir) {
			next = append(next, keyFile{bucket: s.bucket, dir: s.dir, name: name})
		}
		return next, nil

	case keyFile:
		return f.expandKeyFile(s)

	case bkey:
		return nil, f.emit(s)
	}

	return nil, fmt.Errorf("unknown fold step %T", s)
}

// expandKeyFile decodes one key file name. Plain keys emit directly, block
// group files expand into one step per present block.
func (f *folder) expandKeyFile(s keyFile) ([]foldStep, error) {
	key, err := pathenc.Decode(s.name)
	if err != nil {
		f.skip(s.dir, s.name, err)
		return nil, nil
	}

	if !blockkey.IsBlockBucket(s.bucket) {
		if f.kind == foldBuckets {
			return nil, f.emitBucket(s.bucket)
		}
		return []foldStep{bkey{bucket: s.bucket, key: key}}, nil
	}

	group, err := blockkey.Parse(key)
	if err != nil {
		f.skip(s.dir, s.name, err)
		return nil, nil
	}

	chunks, err := f.b.store.EnumerateChunks(s.bucket, group.UUID, group.Number)
	if err != nil {
		f.skip(s.dir, s.name, err)
		return nil, nil
	}

	if f.kind == foldBuckets {
		if len(chunks) == 0 {
			return nil, nil
		}
		return nil, f.emitBucket(s.bucket)
	}

	next := make([]foldStep, 0, len(chunks))
	for _, n := range chunks {
		id := blockkey.ID{UUID: group.UUID, Number: n}
		next = append(next, bkey{bucket: s.bucket, key: id.Bytes(), block: &id})
	}
	return next, nil
}

func (f *folder) emit(s bkey) error {
	if f.kind == foldKeys {
		return f.onKey(s.bucket, s.key)
	}

	var (
		value []byte
		err   error
	)

	if s.block != nil {
		value, err = f.b.store.ReadBlock(s.bucket, *s.block)
	} else {
		value, err = f.b.store.GetPlain(s.bucket, s.key)
		if err == nil {
			value, err = f.b.Decompress(value)
		}
	}
	if err != nil {
		f.b.log.Warn("skipping unreadable object during fold",
			zap.Binary("bucket", s.bucket),
			zap.Error(err))
		return nil
	}

	return f.onObject(s.bucket, s.key, value)
}

func (f *folder) emitBucket(bucket []byte) error {
	if _, ok := f.seen[string(bucket)]; ok {
		return nil
	}
	f.seen[string(bucket)] = struct{}{}

	return f.onBucket(bucket)
}

// listDir returns the sorted entry names of dir. Names containing a dot
// are never produced by the path encoding and are skipped: this covers the
// version file, case probes and crashed write temporaries. Listing errors
// skip the whole directory, folds are approximate under concurrent
// modification.
func (f *folder) listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			f.b.log.Warn("skipping unreadable directory during fold",
				zap.String("dir", dir),
				zap.Error(err))
		}
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

func (f *folder) skip(dir, name string, err error) {
	f.b.log.Warn("skipping undecodable entry during fold",
		zap.String("dir", dir),
		zap.String("name", name),
		zap.Error(err))
}

func (k foldKind) String() string {
	switch k {
	case foldBuckets:
		return "buckets"
	case foldKeys:
		return "keys"
	default:
		return "objects"
	}
}
