package pbl

// DataBlock is one 512-byte link of an object's payload chain.
type DataBlock struct {
	Offset     uint32
	NextOffset uint32

	// Length is the number of meaningful bytes at the front of Blob.
	Length uint16

	// Blob is the full payload area including padding. It aliases the
	// library buffer.
	Blob []byte

	raw []byte
}

func decodeDataBlock(c cursor, off uint32) (*DataBlock, error) {
	b, err := dataLay.read(c, int64(off))
	if err != nil {
		return nil, err
	}
	return &DataBlock{
		Offset:     off,
		NextOffset: dNext.u32(b),
		Length:     dLen.u16(b),
		Blob:       dBlob.bytes(b),
		raw:        b,
	}, nil
}

// Payload returns the valid bytes of the block. A declared length larger
// than the blob is clamped; the padding after Length is never returned.
func (d *DataBlock) Payload() []byte {
	n := min(int(d.Length), len(d.Blob))
	return d.Blob[:n:n]
}

// Describe returns the block fields for diagnostic output.
func (d *DataBlock) Describe() []FieldValue { return dataLay.describe(d.raw) }
