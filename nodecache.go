// nodecache.go
//
// Node block cache for name lookups.
// Find descends the index from the root on every call, so the upper levels
// of the tree are decoded again and again. The cache maps *node offsets* →
// *decoded node plus its entries* and is bounded by entry count, evicting in
// least-recently-used order.

package pbl

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// cachedNode pairs a decoded node with its unpacked entries. A node whose
// entry region is damaged is still cached with the entries that decoded and
// the error, so repeated lookups fail the same way.
type cachedNode struct {
	node *NodeBlock
	recs []ObjectRecord
	err  error
}

// nodeCache wraps an lru.Cache, which is safe for concurrent use.
type nodeCache struct {
	c       cursor
	entries *lru.Cache[uint32, *cachedNode]
}

func newNodeCache(c cursor, size int) (*nodeCache, error) {
	entries, err := lru.New[uint32, *cachedNode](size)
	if err != nil {
		return nil, err
	}
	return &nodeCache{c: c, entries: entries}, nil
}

// get returns the node at off, decoding it on a miss. Structural failures
// (bounds, magic) are not cached.
func (nc *nodeCache) get(off uint32) (*cachedNode, error) {
	if cn, ok := nc.entries.Get(off); ok {
		return cn, nil
	}
	n, err := decodeNode(nc.c, off)
	if err != nil {
		return nil, err
	}
	recs, err := unpackEntries(n.Entries, int(n.EntryCount), off)
	cn := &cachedNode{node: n, recs: recs, err: err}
	nc.entries.Add(off, cn)
	return cn, nil
}
