// layout.go
//
// Field tables for the five fixed-shape PBL records.
// Every record is described as an ordered list of (name, offset, width, kind)
// rows instead of a Go struct overlay, so that decoding never depends on the
// compiler's memory layout. The tables are checked once at init: rows must
// be contiguous and must sum to the record size, which pins the on-disk
// geometry to exactly what is written here.
//
// All integers are little-endian.

package pbl

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Record sizes and fixed file geometry.
const (
	headerSize      = 512
	bitmapSize      = 512
	nodeSize        = 3072
	entryPrefixSize = 24
	dataBlockSize   = 512

	entryRegionSize = 3040 // Node bytes available for packed entry chunks.
	bitmapBytes     = 504
	blobSize        = 502 // Payload bytes in one data block.

	firstBitmapOffset = headerSize
	rootNodeOffset    = headerSize + bitmapSize
)

// Block magic tags.
const (
	tagHeader = "HDR*"
	tagBitmap = "FRE*"
	tagNode   = "NOD*"
	tagEntry  = "ENT*"
	tagData   = "DAT*"
)

type fieldKind uint8

const (
	kindTag  fieldKind = iota // 4-byte ASCII signature.
	kindText                  // NUL/space padded text.
	kindRaw                   // Opaque bytes (reserved areas, bitmaps, payloads).
	kindU16                   // Little-endian uint16.
	kindU32                   // Little-endian uint32.
	kindOff                   // Little-endian uint32 block pointer.
	kindTime                  // Little-endian uint32 seconds since the Unix epoch.
)

// field is one row of a record layout.
type field struct {
	name  string
	off   int
	width int
	kind  fieldKind
}

func (f field) bytes(b []byte) []byte { return b[f.off : f.off+f.width] }
func (f field) u16(b []byte) uint16   { return binary.LittleEndian.Uint16(b[f.off:]) }
func (f field) u32(b []byte) uint32   { return binary.LittleEndian.Uint32(b[f.off:]) }

func (f field) putU16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b[f.off:], v) }
func (f field) putU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b[f.off:], v) }

// layout is the complete field table of one record kind.
type layout struct {
	name   string
	size   int
	tag    string
	fields []field
}

var (
	hTag      = field{"tag", 0, 4, kindTag}
	hName     = field{"name", 4, 14, kindText}
	hVersion  = field{"version", 18, 4, kindText}
	hModTime  = field{"modified_date", 22, 4, kindTime}
	hRes0     = field{"reserved0", 26, 2, kindRaw}
	hComment  = field{"comment", 28, 256, kindText}
	hSCCOff   = field{"scc_data_offset", 284, 4, kindOff}
	hSCCSize  = field{"scc_data_size", 288, 4, kindU32}
	hRes1     = field{"reserved1", 292, 220, kindRaw}
	headerLay = layout{"header", headerSize, tagHeader, []field{
		hTag, hName, hVersion, hModTime, hRes0, hComment, hSCCOff, hSCCSize, hRes1,
	}}

	bTag      = field{"tag", 0, 4, kindTag}
	bNext     = field{"next_block_offset", 4, 4, kindOff}
	bBits     = field{"bitmap", 8, bitmapBytes, kindRaw}
	bitmapLay = layout{"bitmap", bitmapSize, tagBitmap, []field{bTag, bNext, bBits}}

	nTag       = field{"tag", 0, 4, kindTag}
	nPrev      = field{"prev_block_offset", 4, 4, kindOff}
	nParent    = field{"parent_block_offset", 8, 4, kindOff}
	nNext      = field{"next_block_offset", 12, 4, kindOff}
	nSpaceLeft = field{"space_left_in_block", 16, 2, kindU16}
	nFirstPos  = field{"first_objectname_position", 18, 2, kindU16}
	nCount     = field{"entries_count", 20, 2, kindU16}
	nLastPos   = field{"last_objectname_position", 22, 2, kindU16}
	nRes       = field{"reserved0", 24, 8, kindRaw}
	nEntries   = field{"entry_chunks", 32, entryRegionSize, kindRaw}
	nodeLay    = layout{"node", nodeSize, tagNode, []field{
		nTag, nPrev, nParent, nNext, nSpaceLeft, nFirstPos, nCount, nLastPos, nRes, nEntries,
	}}

	eTag       = field{"tag", 0, 4, kindTag}
	eVersion   = field{"version", 4, 4, kindText}
	eDataOff   = field{"first_data_block_offset", 8, 4, kindOff}
	eSize      = field{"object_size", 12, 4, kindU32}
	eModTime   = field{"modified_date", 16, 4, kindTime}
	eCommentLn = field{"comment_length", 20, 2, kindU16}
	eNameLn    = field{"object_name_length", 22, 2, kindU16}
	entryLay   = layout{"entry", entryPrefixSize, tagEntry, []field{
		eTag, eVersion, eDataOff, eSize, eModTime, eCommentLn, eNameLn,
	}}

	dTag    = field{"tag", 0, 4, kindTag}
	dNext   = field{"next_data_block_offset", 4, 4, kindOff}
	dLen    = field{"block_data_length", 8, 2, kindU16}
	dBlob   = field{"blob", 10, blobSize, kindRaw}
	dataLay = layout{"data", dataBlockSize, tagData, []field{dTag, dNext, dLen, dBlob}}

	layouts = []layout{headerLay, bitmapLay, nodeLay, entryLay, dataLay}
)

func init() {
	for _, l := range layouts {
		if err := l.validate(); err != nil {
			panic(err)
		}
	}
}

// validate checks that the rows tile the record exactly.
func (l layout) validate() error {
	pos := 0
	for _, f := range l.fields {
		if f.off != pos {
			return fmt.Errorf("layout %s: field %s at %d, want %d", l.name, f.name, f.off, pos)
		}
		if f.kind == kindTag && f.width != len(l.tag) {
			return fmt.Errorf("layout %s: tag width %d", l.name, f.width)
		}
		pos += f.width
	}
	if pos != l.size {
		return fmt.Errorf("layout %s: fields cover %d bytes, record is %d", l.name, pos, l.size)
	}
	return nil
}

// check verifies the record's magic tag. off is the absolute file offset of
// b and is only used for the error.
func (l layout) check(b []byte, off int64) error {
	if got := b[:len(l.tag)]; btostr(got) != l.tag {
		return &MagicError{Want: l.tag, Got: string(got), Offset: off}
	}
	return nil
}

// read slices one record at off and verifies its tag.
func (l layout) read(c cursor, off int64) ([]byte, error) {
	b, err := c.slice(off, l.size)
	if err != nil {
		return nil, err
	}
	if err := l.check(b, off); err != nil {
		return nil, err
	}
	return b, nil
}

// FieldValue is one decoded row of a record, formatted for diagnostics.
type FieldValue struct {
	Name   string
	Offset int
	Width  int
	Value  string
}

// describe renders every non-raw field of b. Raw areas are summarized by
// their width only.
func (l layout) describe(b []byte) []FieldValue {
	out := make([]FieldValue, 0, len(l.fields))
	for _, f := range l.fields {
		fv := FieldValue{Name: f.name, Offset: f.off, Width: f.width}
		switch f.kind {
		case kindTag:
			fv.Value = string(f.bytes(b))
		case kindText:
			fv.Value = trimText(f.bytes(b))
		case kindU16:
			fv.Value = fmt.Sprintf("0X%04X", f.u16(b))
		case kindU32:
			fv.Value = fmt.Sprintf("0X%08X", f.u32(b))
		case kindOff:
			fv.Value = fmt.Sprintf("0X%08X", f.u32(b))
		case kindTime:
			fv.Value = unixTime(f.u32(b)).Format(time.RFC3339)
		case kindRaw:
			fv.Value = fmt.Sprintf("<%d bytes>", f.width)
		}
		out = append(out, fv)
	}
	return out
}

// trimText converts a padded on-disk text field to a string, dropping
// everything from the first NUL and any surrounding whitespace.
func trimText(b []byte) string {
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	return strings.Trim(string(b), " \t\r\n\v\f")
}

func unixTime(sec uint32) time.Time { return time.Unix(int64(sec), 0).UTC() }
