package pbl

import (
	"fmt"
	"math/bits"
)

// BitmapBlock is one block of the free-space bitmap. Each bit records whether
// the storage block with the corresponding index is allocated.
type BitmapBlock struct {
	// Offset is the absolute position of this block in the file.
	Offset uint32

	// NextOffset links to the next bitmap block, 0 when this is the last.
	NextOffset uint32

	Bits [bitmapBytes]byte
}

func parseBitmap(b []byte, off uint32) *BitmapBlock {
	bm := &BitmapBlock{Offset: off, NextOffset: bNext.u32(b)}
	copy(bm.Bits[:], bBits.bytes(b))
	return bm
}

// Describe returns the block fields for diagnostic output.
func (bm *BitmapBlock) Describe() []FieldValue {
	b := make([]byte, bitmapSize)
	copy(b, tagBitmap)
	bNext.putU32(b, bm.NextOffset)
	copy(bBits.bytes(b), bm.Bits[:])
	return bitmapLay.describe(b)
}

// Bitmap is the concatenation of every block in the bitmap chain.
type Bitmap struct {
	Blocks []*BitmapBlock
}

// decodeBitmapChain follows the chain of bitmap blocks starting at off.
// The chain is part of the file's fixed metadata: any failure is fatal.
func decodeBitmapChain(c cursor, off uint32) (*Bitmap, error) {
	bm := &Bitmap{}
	seen := make(map[uint32]struct{})
	for off != 0 {
		if _, dup := seen[off]; dup {
			return nil, &CycleError{Kind: ErrCyclicBitmap, Offset: off}
		}
		seen[off] = struct{}{}

		b, err := bitmapLay.read(c, int64(off))
		if err != nil {
			return nil, fmt.Errorf("bitmap block %d: %w", len(bm.Blocks), err)
		}
		blk := parseBitmap(b, off)
		bm.Blocks = append(bm.Blocks, blk)
		off = blk.NextOffset
	}
	return bm, nil
}

// Len returns the number of blocks the bitmap can describe.
func (bm *Bitmap) Len() int { return len(bm.Blocks) * bitmapBytes * 8 }

// Allocated reports whether storage block i is marked in use. Bits are
// numbered most-significant first within each byte. Indices beyond the
// bitmap report false.
func (bm *Bitmap) Allocated(i int) bool {
	if i < 0 || i >= bm.Len() {
		return false
	}
	blk := bm.Blocks[i/(bitmapBytes*8)]
	i %= bitmapBytes * 8
	return blk.Bits[i/8]&(0x80>>(i%8)) != 0
}

// AllocatedCount returns the number of set bits across the whole chain.
func (bm *Bitmap) AllocatedCount() int {
	n := 0
	for _, blk := range bm.Blocks {
		for _, v := range blk.Bits {
			n += bits.OnesCount8(v)
		}
	}
	return n
}
