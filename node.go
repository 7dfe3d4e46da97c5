package pbl

import "fmt"

// NodeBlock is one 3072-byte node of the object index.
//
// Nodes form a binary search tree over object names. PrevOffset and
// NextOffset are the left and right children, ParentOffset points back up;
// zero means absent in every case.
type NodeBlock struct {
	Offset       uint32
	PrevOffset   uint32
	ParentOffset uint32
	NextOffset   uint32

	// SpaceLeft is the number of unused bytes in the entry region
	// (3040 for an empty node).
	SpaceLeft uint16

	// FirstNamePos and LastNamePos are the positions of the alphabetically
	// first and last object names in this node, as stored on disk.
	FirstNamePos uint16
	LastNamePos  uint16

	EntryCount uint16

	// Entries is the packed entry region. It aliases the library buffer and
	// must be treated as read-only.
	Entries []byte

	raw []byte
}

// decodeNode decodes the node block at off.
func decodeNode(c cursor, off uint32) (*NodeBlock, error) {
	b, err := nodeLay.read(c, int64(off))
	if err != nil {
		return nil, err
	}
	return &NodeBlock{
		Offset:       off,
		PrevOffset:   nPrev.u32(b),
		ParentOffset: nParent.u32(b),
		NextOffset:   nNext.u32(b),
		SpaceLeft:    nSpaceLeft.u16(b),
		FirstNamePos: nFirstPos.u16(b),
		EntryCount:   nCount.u16(b),
		LastNamePos:  nLastPos.u16(b),
		Entries:      nEntries.bytes(b),
		raw:          b,
	}, nil
}

// Describe returns the node fields for diagnostic output.
func (n *NodeBlock) Describe() []FieldValue { return nodeLay.describe(n.raw) }

// String implements fmt.Stringer.
func (n *NodeBlock) String() string {
	return fmt.Sprintf("node@0x%08X{prev=0x%08X parent=0x%08X next=0x%08X entries=%d}",
		n.Offset, n.PrevOffset, n.ParentOffset, n.NextOffset, n.EntryCount)
}
