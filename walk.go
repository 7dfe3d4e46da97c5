// walk.go
//
// Index tree walker. The object index is a binary tree of node blocks whose
// root is the first node in the file. The walker visits every node reachable
// through the prev (left) and next (right) pointers, in order, and collects
// one ObjectRecord per entry chunk.
//
// A damaged node costs only what cannot be read: entries that decoded before
// a truncated chunk are kept, children of a node with intact pointers are
// still visited, and every failure is recorded as a *NodeError on the Index.

package pbl

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Index is the result of walking the node tree.
type Index struct {
	// Records lists every object in in-order traversal order (left subtree,
	// node, right subtree), which is alphabetic for a well-formed library.
	Records []ObjectRecord

	// Nodes lists the offsets of every node that was decoded, in visit order.
	Nodes []uint32

	// Errors holds one *NodeError per node that could not be fully decoded.
	Errors []error
}

// Err joins all per-node errors, or returns nil for a clean walk.
func (ix *Index) Err() error { return errors.Join(ix.Errors...) }

// visitSet detects revisited offsets during one traversal. It plays the same
// role for node trees and data chains: a well-formed library never reaches
// the same block twice.
type visitSet struct {
	kind error
	seen map[uint32]struct{}
}

func newVisitSet(kind error) *visitSet {
	return &visitSet{kind: kind, seen: make(map[uint32]struct{})}
}

// enter records off, or returns a *CycleError when it was already visited.
func (v *visitSet) enter(off uint32) error {
	if _, ok := v.seen[off]; ok {
		return &CycleError{Kind: v.kind, Offset: off}
	}
	v.seen[off] = struct{}{}
	return nil
}

// walkIndex traverses the tree rooted at root.
//
// Recursion depth is bounded by the number of distinct node offsets because
// the visit set refuses to enter any node twice.
func walkIndex(c cursor, root uint32, log logrus.FieldLogger) *Index {
	w := &walker{c: c, visited: newVisitSet(ErrCyclicIndex), log: log, ix: &Index{}}
	w.visit(root)
	return w.ix
}

type walker struct {
	c       cursor
	visited *visitSet
	log     logrus.FieldLogger
	ix      *Index
}

func (w *walker) fail(off uint32, err error) {
	w.log.WithField("node", off).WithError(err).Warn("index node skipped")
	w.ix.Errors = append(w.ix.Errors, &NodeError{Offset: off, Err: err})
}

func (w *walker) visit(off uint32) {
	if err := w.visited.enter(off); err != nil {
		w.fail(off, err)
		return
	}

	n, err := decodeNode(w.c, off)
	if err != nil {
		w.fail(off, err)
		return
	}
	w.ix.Nodes = append(w.ix.Nodes, off)
	w.log.WithFields(logrus.Fields{
		"node":    off,
		"entries": n.EntryCount,
		"prev":    n.PrevOffset,
		"next":    n.NextOffset,
	}).Debug("index node")

	if n.PrevOffset != 0 {
		w.visit(n.PrevOffset)
	}

	recs, err := unpackEntries(n.Entries, int(n.EntryCount), off)
	w.ix.Records = append(w.ix.Records, recs...)
	if err != nil {
		w.fail(off, err)
	}

	if n.NextOffset != 0 {
		w.visit(n.NextOffset)
	}
}
