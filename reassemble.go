package pbl

import "fmt"

// reassemble follows the data block chain that starts at off and returns the
// concatenated payload.
//
// The chain ends at the first block whose next pointer is 0. Payload bytes
// are returned exactly as stored: trailing padding or whitespace inside the
// last block's valid length is part of the object.
//
// sizeHint, when non-zero, pre-sizes the result buffer.
func reassemble(c cursor, off uint32, sizeHint uint32) ([]byte, error) {
	visited := newVisitSet(ErrCyclicChain)

	// A chain can never hold more blocks than the file, cap the hint to
	// keep a corrupt entry from forcing a huge allocation.
	capHint := min(int(sizeHint), c.size())
	out := make([]byte, 0, capHint)

	for blk := 0; off != 0; blk++ {
		if err := visited.enter(off); err != nil {
			return nil, err
		}
		d, err := decodeDataBlock(c, off)
		if err != nil {
			return nil, fmt.Errorf("data block %d: %w", blk, err)
		}
		if int(d.Length) > len(d.Blob) {
			return nil, fmt.Errorf("data block %d at 0x%08X declares %d bytes: %w",
				blk, off, d.Length, ErrBlockLength)
		}
		out = append(out, d.Payload()...)
		off = d.NextOffset
	}
	return out, nil
}

// dataChain returns the decoded blocks of the chain starting at off without
// copying any payload. It is used for diagnostics.
func dataChain(c cursor, off uint32) ([]*DataBlock, error) {
	visited := newVisitSet(ErrCyclicChain)
	var blocks []*DataBlock
	for off != 0 {
		if err := visited.enter(off); err != nil {
			return blocks, err
		}
		d, err := decodeDataBlock(c, off)
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, d)
		off = d.NextOffset
	}
	return blocks, nil
}
