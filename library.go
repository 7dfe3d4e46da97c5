// Package pbl decodes PowerBuilder library (*.pbl) files.
//
// A library is a sequence of fixed-size blocks: a 512-byte header, a chain
// of 512-byte free-space bitmap blocks, 3072-byte node blocks that form a
// binary tree indexing objects by name, and 512-byte data blocks that hold
// each object's payload as a singly-linked chain.
//
// IMPLEMENTATION:
// The whole file is read once into memory and never modified. Every block is
// decoded through table-driven field layouts and verified by its magic tag.
// The index tree is walked in full (not just the root node) with cycle
// detection, and each object is reassembled on demand by following its data
// chain. Damage to one node or one chain is reported for that node or object
// only; a damaged header or bitmap makes the file unreadable.
//
// A Library is safe for concurrent readers.
//
// Typical usage:
//
//	lib, err := pbl.Open("app.pbl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, obj := range lib.Objects() {
//	    fmt.Println(obj.Name, len(obj.Data))
//	}
package pbl

import (
	"context"
	"fmt"
	"slices"

	"github.com/hashicorp/golang-lru/arc/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"
	"golang.org/x/sync/errgroup"
)

// Library is a decoded, read-only view of one library file.
type Library struct {
	c cursor

	header *Header
	bitmap *Bitmap
	index  *Index

	// cache holds reassembled payloads keyed by first data block offset.
	// It uses an Adaptive Replacement Cache (ARC) so that objects read
	// repeatedly (Diff, Find followed by ReadObject) are decoded once.
	// nil when caching is disabled.
	cache *arc.ARCCache[uint32, []byte]

	nodes *nodeCache

	log           logrus.FieldLogger
	workers       int
	cacheSize     int
	nodeCacheSize int
}

// Open reads the library at path and decodes it.
//
// The file is memory-mapped and copied into memory in a single read; the
// mapping is released before Open returns.
func Open(path string, opts ...Option) (*Library, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap library: %w", err)
	}
	defer r.Close()

	buf := make([]byte, r.Len())
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	return New(buf, opts...)
}

// New decodes a library held in buf. buf must not be modified afterwards.
//
// Header and bitmap failures are returned as errors. Index damage is not: it
// is recorded on Index().Errors and the objects that could be located are
// still available.
func New(buf []byte, opts ...Option) (*Library, error) {
	l := &Library{
		c:             newCursor(buf),
		log:           discardLogger(),
		workers:       defaultWorkers(),
		cacheSize:     defaultCacheSize,
		nodeCacheSize: defaultNodeCacheSize,
	}
	for _, opt := range opts {
		opt(l)
	}

	var err error
	if l.header, err = decodeHeader(l.c); err != nil {
		return nil, err
	}
	if l.bitmap, err = decodeBitmapChain(l.c, firstBitmapOffset); err != nil {
		return nil, err
	}
	if l.cacheSize > 0 {
		if l.cache, err = arc.NewARC[uint32, []byte](l.cacheSize); err != nil {
			return nil, fmt.Errorf("failed to create ARC cache: %w", err)
		}
	}
	if l.nodes, err = newNodeCache(l.c, l.nodeCacheSize); err != nil {
		return nil, fmt.Errorf("failed to create node cache: %w", err)
	}

	l.index = walkIndex(l.c, rootNodeOffset, l.log)
	l.log.WithFields(logrus.Fields{
		"version": l.header.Version(),
		"nodes":   len(l.index.Nodes),
		"objects": len(l.index.Records),
		"errors":  len(l.index.Errors),
	}).Debug("library index loaded")

	return l, nil
}

// Header returns the decoded library header.
func (l *Library) Header() *Header { return l.header }

// Bitmap returns the decoded free-space bitmap chain.
func (l *Library) Bitmap() *Bitmap { return l.bitmap }

// Index returns the result of walking the node tree.
func (l *Library) Index() *Index { return l.index }

// Size returns the length of the library buffer in bytes.
func (l *Library) Size() int { return l.c.size() }

// Node decodes the node block at off.
func (l *Library) Node(off uint32) (*NodeBlock, error) { return decodeNode(l.c, off) }

// DataBlocks decodes the data chain of rec without copying its payload.
func (l *Library) DataBlocks(rec ObjectRecord) ([]*DataBlock, error) {
	return dataChain(l.c, rec.DataOffset)
}

// ReadObject reassembles the payload of rec.
//
// The returned slice is always a fresh allocation; callers may mutate it.
// Failures are returned as *ObjectError.
func (l *Library) ReadObject(rec ObjectRecord) ([]byte, error) {
	if l.cache != nil {
		if b, ok := l.cache.Get(rec.DataOffset); ok {
			return slices.Clone(b), nil
		}
	}
	b, err := reassemble(l.c, rec.DataOffset, rec.Size)
	if err != nil {
		l.log.WithField("object", rec.Name).WithError(err).Warn("object reassembly failed")
		return nil, &ObjectError{Name: rec.Name, Offset: rec.DataOffset, Err: err}
	}
	if l.cache != nil {
		l.cache.Add(rec.DataOffset, b)
		b = slices.Clone(b)
	}
	return b, nil
}

// object reassembles rec and checks the result against the declared size.
// A size mismatch keeps the payload and records the error on the object.
func (l *Library) object(rec ObjectRecord) Object {
	data, err := l.ReadObject(rec)
	if err == nil && uint32(len(data)) != rec.Size {
		err = &ObjectError{
			Name:   rec.Name,
			Offset: rec.DataOffset,
			Err:    fmt.Errorf("declared %d bytes, chain holds %d: %w", rec.Size, len(data), ErrSizeMismatch),
		}
	}
	return newObject(rec, data, err)
}

// Objects reassembles every indexed object sequentially, in index order.
// A failed object carries its error in Object.Err and does not stop the
// remaining objects.
func (l *Library) Objects() []Object {
	out := make([]Object, len(l.index.Records))
	for i, rec := range l.index.Records {
		out[i] = l.object(rec)
	}
	return out
}

// ReadAll is Objects with reassembly spread over up to WithWorkers
// goroutines. The result order matches Index().Records. The only error is
// ctx's, when it is cancelled before every object has been read.
func (l *Library) ReadAll(ctx context.Context) ([]Object, error) {
	out := make([]Object, len(l.index.Records))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(l.workers)
	for i, rec := range l.index.Records {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = l.object(rec)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Find returns the record of the object called name.
//
// Find descends the index as a binary search tree, comparing name with the
// smallest and largest name held by each node. When the descent misses (for
// example on a tree whose order is damaged) the full index is scanned.
func (l *Library) Find(name string) (ObjectRecord, error) {
	if rec, ok := l.descend(name); ok {
		return rec, nil
	}
	for _, rec := range l.index.Records {
		if rec.Name == name {
			return rec, nil
		}
	}
	return ObjectRecord{}, fmt.Errorf("%q: %w", name, ErrObjectNotFound)
}

func (l *Library) descend(name string) (ObjectRecord, bool) {
	visited := newVisitSet(ErrCyclicIndex)
	off := uint32(rootNodeOffset)
	for off != 0 {
		if visited.enter(off) != nil {
			return ObjectRecord{}, false
		}
		cn, err := l.nodes.get(off)
		if err != nil || cn.err != nil || len(cn.recs) == 0 {
			return ObjectRecord{}, false
		}

		lo, hi := cn.recs[0].Name, cn.recs[0].Name
		for _, rec := range cn.recs {
			if rec.Name == name {
				return rec, true
			}
			lo, hi = min(lo, rec.Name), max(hi, rec.Name)
		}
		switch {
		case name < lo:
			off = cn.node.PrevOffset
		case name > hi:
			off = cn.node.NextOffset
		default:
			return ObjectRecord{}, false
		}
	}
	return ObjectRecord{}, false
}
