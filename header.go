package pbl

import (
	"fmt"
	"time"
)

// Header is the 512-byte library header found at offset 0.
//
// Text fields are kept exactly as stored so that MarshalBinary can reproduce
// the original block bit-for-bit. Use the accessor methods for trimmed text.
type Header struct {
	Tag          [4]byte
	RawName      [14]byte
	RawVersion   [4]byte
	ModifiedDate uint32
	Reserved0    [2]byte
	RawComment   [256]byte

	// SCCDataOffset and SCCDataSize locate the optional source-control
	// integration segment. The segment itself is not decoded.
	SCCDataOffset uint32
	SCCDataSize   uint32

	Reserved1 [220]byte
}

// decodeHeader decodes the header block at offset 0 of c.
func decodeHeader(c cursor) (*Header, error) {
	b, err := headerLay.read(c, 0)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	return parseHeader(b), nil
}

func parseHeader(b []byte) *Header {
	h := &Header{
		ModifiedDate:  hModTime.u32(b),
		SCCDataOffset: hSCCOff.u32(b),
		SCCDataSize:   hSCCSize.u32(b),
	}
	copy(h.Tag[:], hTag.bytes(b))
	copy(h.RawName[:], hName.bytes(b))
	copy(h.RawVersion[:], hVersion.bytes(b))
	copy(h.Reserved0[:], hRes0.bytes(b))
	copy(h.RawComment[:], hComment.bytes(b))
	copy(h.Reserved1[:], hRes1.bytes(b))
	return h
}

// MarshalBinary re-encodes every header field at its on-disk position.
func (h *Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, headerSize)
	copy(hTag.bytes(b), h.Tag[:])
	copy(hName.bytes(b), h.RawName[:])
	copy(hVersion.bytes(b), h.RawVersion[:])
	hModTime.putU32(b, h.ModifiedDate)
	copy(hRes0.bytes(b), h.Reserved0[:])
	copy(hComment.bytes(b), h.RawComment[:])
	hSCCOff.putU32(b, h.SCCDataOffset)
	hSCCSize.putU32(b, h.SCCDataSize)
	copy(hRes1.bytes(b), h.Reserved1[:])
	return b, nil
}

// Name returns the product name, normally "PowerBuilder".
func (h *Header) Name() string { return trimText(h.RawName[:]) }

// Version returns the four-character format version such as "0600".
func (h *Header) Version() string { return trimText(h.RawVersion[:]) }

// Comment returns the library comment.
func (h *Header) Comment() string { return trimText(h.RawComment[:]) }

// ModTime returns the last-modified timestamp in UTC.
func (h *Header) ModTime() time.Time { return unixTime(h.ModifiedDate) }

// HasSCC reports whether the header references a source-control segment.
func (h *Header) HasSCC() bool { return h.SCCDataOffset != 0 && h.SCCDataSize != 0 }

// Describe returns the header fields for diagnostic output.
func (h *Header) Describe() []FieldValue {
	b, _ := h.MarshalBinary()
	return headerLay.describe(b)
}
