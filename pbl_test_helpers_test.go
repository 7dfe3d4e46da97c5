package pbl

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEntry is one entry chunk to pack into a test node.
type testEntry struct {
	name       string
	dataOffset uint32
	size       uint32
	mtime      uint32
	commentLen uint16
	version    string
}

// headerBlock builds a 512-byte header.
func headerBlock(name, version string, mtime uint32, comment string, sccOff, sccSize uint32) []byte {
	b := make([]byte, headerSize)
	copy(b[0:4], tagHeader)
	copy(b[4:18], name)
	copy(b[18:22], version)
	binary.LittleEndian.PutUint32(b[22:26], mtime)
	copy(b[28:284], comment)
	binary.LittleEndian.PutUint32(b[284:288], sccOff)
	binary.LittleEndian.PutUint32(b[288:292], sccSize)
	return b
}

// bitmapBlock builds a 512-byte bitmap block.
func bitmapBlock(next uint32, bits ...byte) []byte {
	b := make([]byte, bitmapSize)
	copy(b[0:4], tagBitmap)
	binary.LittleEndian.PutUint32(b[4:8], next)
	copy(b[8:], bits)
	return b
}

// entryChunk builds one packed entry chunk. The name is written with a
// trailing NUL, as the format stores it, and the declared length covers it.
func entryChunk(e testEntry) []byte {
	name := append([]byte(e.name), 0)
	b := make([]byte, entryPrefixSize, entryPrefixSize+len(name))
	copy(b[0:4], tagEntry)
	v := e.version
	if v == "" {
		v = "0600"
	}
	copy(b[4:8], v)
	binary.LittleEndian.PutUint32(b[8:12], e.dataOffset)
	binary.LittleEndian.PutUint32(b[12:16], e.size)
	binary.LittleEndian.PutUint32(b[16:20], e.mtime)
	binary.LittleEndian.PutUint16(b[20:22], e.commentLen)
	binary.LittleEndian.PutUint16(b[22:24], uint16(len(name)))
	return append(b, name...)
}

// nodeBlock builds a 3072-byte node holding entries.
func nodeBlock(t testing.TB, prev, parent, next uint32, entries ...testEntry) []byte {
	t.Helper()
	b := make([]byte, nodeSize)
	copy(b[0:4], tagNode)
	binary.LittleEndian.PutUint32(b[4:8], prev)
	binary.LittleEndian.PutUint32(b[8:12], parent)
	binary.LittleEndian.PutUint32(b[12:16], next)

	pos := 32
	for _, e := range entries {
		chunk := entryChunk(e)
		require.LessOrEqual(t, pos+len(chunk), nodeSize, "entries overflow node")
		copy(b[pos:], chunk)
		pos += len(chunk)
	}
	binary.LittleEndian.PutUint16(b[16:18], uint16(nodeSize-pos))
	binary.LittleEndian.PutUint16(b[20:22], uint16(len(entries)))
	return b
}

// dataBlock builds a 512-byte data block.
func dataBlock(next uint32, payload []byte) []byte {
	b := make([]byte, dataBlockSize)
	copy(b[0:4], tagData)
	binary.LittleEndian.PutUint32(b[4:8], next)
	binary.LittleEndian.PutUint16(b[8:10], uint16(len(payload)))
	copy(b[10:], payload)
	return b
}

// libBuilder assembles a synthetic library in memory. The header, the first
// bitmap block and the root node are laid out at their fixed offsets; every
// other block is appended.
type libBuilder struct {
	t   testing.TB
	buf []byte
}

func newLibBuilder(t testing.TB) *libBuilder {
	t.Helper()
	lb := &libBuilder{t: t, buf: make([]byte, rootNodeOffset+nodeSize)}
	lb.put(0, headerBlock("PowerBuilder", "0600", 1_600_000_000, "test library", 0, 0))
	lb.put(firstBitmapOffset, bitmapBlock(0, 0xff))
	lb.put(rootNodeOffset, nodeBlock(t, 0, 0, 0))
	return lb
}

func (lb *libBuilder) put(off uint32, b []byte) {
	lb.t.Helper()
	require.LessOrEqual(lb.t, int(off)+len(b), len(lb.buf), "put past end of buffer")
	copy(lb.buf[off:], b)
}

// alloc appends n zero bytes and returns their offset.
func (lb *libBuilder) alloc(n int) uint32 {
	off := uint32(len(lb.buf))
	lb.buf = append(lb.buf, make([]byte, n)...)
	return off
}

// node writes a node at off (allocating one when off is 0) and returns off.
func (lb *libBuilder) node(off, prev, parent, next uint32, entries ...testEntry) uint32 {
	if off == 0 {
		off = lb.alloc(nodeSize)
	}
	lb.put(off, nodeBlock(lb.t, prev, parent, next, entries...))
	return off
}

// object stores payload as a chain of data blocks and returns the offset of
// the first block. An empty payload still gets one block.
func (lb *libBuilder) object(payload []byte) uint32 {
	n := max(1, (len(payload)+blobSize-1)/blobSize)
	offs := make([]uint32, n)
	for i := range offs {
		offs[i] = lb.alloc(dataBlockSize)
	}
	for i, off := range offs {
		chunk := payload[min(i*blobSize, len(payload)):min((i+1)*blobSize, len(payload))]
		var next uint32
		if i+1 < n {
			next = offs[i+1]
		}
		lb.put(off, dataBlock(next, chunk))
	}
	return offs[0]
}

// entry stores payload and returns an entry that points at it.
func (lb *libBuilder) entry(name string, payload []byte) testEntry {
	return testEntry{
		name:       name,
		dataOffset: lb.object(payload),
		size:       uint32(len(payload)),
		mtime:      1_600_000_000,
	}
}

func (lb *libBuilder) bytes() []byte { return lb.buf }

func (lb *libBuilder) library(opts ...Option) *Library {
	lb.t.Helper()
	lib, err := New(lb.buf, opts...)
	require.NoError(lb.t, err)
	return lib
}

// writeFile stores the library in a temp dir and returns its path.
func (lb *libBuilder) writeFile() string {
	lb.t.Helper()
	p := filepath.Join(lb.t.TempDir(), "test.pbl")
	require.NoError(lb.t, os.WriteFile(p, lb.buf, 0o644))
	return p
}

func recordNames(recs []ObjectRecord) []string {
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.Name
	}
	return names
}
