package pbl

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds    = errors.New("pbl: offset out of bounds")
	ErrBadMagic       = errors.New("pbl: bad block magic")
	ErrTruncatedEntry = errors.New("pbl: truncated entry chunk")
	ErrCyclicIndex    = errors.New("pbl: cyclic index tree")
	ErrCyclicChain    = errors.New("pbl: cyclic data block chain")
	ErrCyclicBitmap   = errors.New("pbl: cyclic bitmap chain")
	ErrBlockLength    = errors.New("pbl: data block length exceeds blob")
	ErrSizeMismatch   = errors.New("pbl: object size mismatch")
	ErrObjectNotFound = errors.New("pbl: object not found")
)

// BoundsError reports a read that does not fit inside the library buffer.
type BoundsError struct {
	Offset int64
	Length int
	Size   int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("pbl: read [%d, +%d) exceeds buffer of %d bytes", e.Offset, e.Length, e.Size)
}

func (e *BoundsError) Is(target error) bool { return target == ErrOutOfBounds }

// MagicError reports a block whose leading tag does not match its kind.
// It is the primary signal that an offset points at something other than
// the record the caller expected.
type MagicError struct {
	Want   string
	Got    string
	Offset int64
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("pbl: bad magic at 0x%08X: want %q, got %q", e.Offset, e.Want, e.Got)
}

func (e *MagicError) Is(target error) bool { return target == ErrBadMagic }

// EntryError reports the zero-based entry chunk inside a node whose declared
// lengths run past the end of the entry region.
type EntryError struct {
	Index int
	Pos   int
	Need  int
	Have  int
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("pbl: entry %d at +%d needs %d bytes, %d remain", e.Index, e.Pos, e.Need, e.Have)
}

func (e *EntryError) Is(target error) bool { return target == ErrTruncatedEntry }

// CycleError reports an offset that was reached twice during one traversal.
// Kind is ErrCyclicIndex, ErrCyclicChain or ErrCyclicBitmap.
type CycleError struct {
	Kind   error
	Offset uint32
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: offset 0x%08X revisited", e.Kind, e.Offset)
}

func (e *CycleError) Is(target error) bool { return target == e.Kind }

// NodeError attaches the offset of the node block that could not be fully
// decoded. Entries and subtrees that decoded cleanly are still reported by
// the walk that produced the error.
type NodeError struct {
	Offset uint32
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node 0x%08X: %v", e.Offset, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// ObjectError attaches the object name to a reassembly failure.
type ObjectError struct {
	Name   string
	Offset uint32
	Err    error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("object %q (data 0x%08X): %v", e.Name, e.Offset, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }
