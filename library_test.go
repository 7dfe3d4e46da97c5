package pbl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleLibrary builds a library with a three-node tree:
//
//	root[f_calc.srf, n_base.sru]
//	  prev → [a_app.sra, d_orders.srd]
//	  next → [w_main.srw, w_main.win]
func sampleLibrary(t *testing.T) (*libBuilder, map[string][]byte) {
	t.Helper()
	payloads := map[string][]byte{
		"a_app.sra":    []byte("forward\nglobal type a_app from application\nend type\n"),
		"d_orders.srd": []byte("release 6;\ndatawindow(units=0)\n"),
		"f_calc.srf":   []byte("global function integer f_calc ()\nreturn 1\nend function\n"),
		"n_base.sru":   make([]byte, 3*blobSize+7),
		"w_main.srw":   []byte("global type w_main from window\nend type\n   "),
		"w_main.win":   {0x00, 0x01, 0x02, 0xff, 0x20, 0x20},
	}
	for i := range payloads["n_base.sru"] {
		payloads["n_base.sru"][i] = byte('a' + i%26)
	}

	lb := newLibBuilder(t)
	left := lb.alloc(nodeSize)
	right := lb.alloc(nodeSize)
	lb.node(rootNodeOffset, left, 0, right,
		lb.entry("f_calc.srf", payloads["f_calc.srf"]),
		lb.entry("n_base.sru", payloads["n_base.sru"]))
	lb.node(left, 0, rootNodeOffset, 0,
		lb.entry("a_app.sra", payloads["a_app.sra"]),
		lb.entry("d_orders.srd", payloads["d_orders.srd"]))
	lb.node(right, 0, rootNodeOffset, 0,
		lb.entry("w_main.srw", payloads["w_main.srw"]),
		lb.entry("w_main.win", payloads["w_main.win"]))
	return lb, payloads
}

func TestNewLibrary(t *testing.T) {
	lb, _ := sampleLibrary(t)
	lib := lb.library()

	assert.Equal(t, "PowerBuilder", lib.Header().Name())
	assert.Equal(t, "0600", lib.Header().Version())
	require.Len(t, lib.Bitmap().Blocks, 1)
	require.NoError(t, lib.Index().Err())
	assert.Equal(t,
		[]string{"a_app.sra", "d_orders.srd", "f_calc.srf", "n_base.sru", "w_main.srw", "w_main.win"},
		recordNames(lib.Index().Records))
	assert.Equal(t, len(lb.bytes()), lib.Size())
}

func TestNewLibraryFatalErrors(t *testing.T) {
	t.Run("bad header", func(t *testing.T) {
		lb, _ := sampleLibrary(t)
		copy(lb.buf, "XXXX")
		_, err := New(lb.bytes())
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("bad bitmap", func(t *testing.T) {
		lb, _ := sampleLibrary(t)
		copy(lb.buf[firstBitmapOffset:], "XXXX")
		_, err := New(lb.bytes())
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("empty buffer", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrOutOfBounds)
	})

	t.Run("damaged index is not fatal", func(t *testing.T) {
		lb, _ := sampleLibrary(t)
		copy(lb.buf[rootNodeOffset:], "XXXX")
		lib, err := New(lb.bytes())
		require.NoError(t, err)
		assert.Empty(t, lib.Index().Records)
		assert.ErrorIs(t, lib.Index().Err(), ErrBadMagic)
	})
}

func TestOpen(t *testing.T) {
	lb, payloads := sampleLibrary(t)
	path := lb.writeFile()

	lib, err := Open(path)
	require.NoError(t, err)

	for _, obj := range lib.Objects() {
		require.NoError(t, obj.Err, obj.Name)
		assert.Equal(t, payloads[obj.Name], obj.Data, obj.Name)
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "nope.pbl"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLibraryObjects(t *testing.T) {
	lb, payloads := sampleLibrary(t)
	lib := lb.library()

	objs := lib.Objects()
	require.Len(t, objs, len(payloads))
	for _, obj := range objs {
		require.NoError(t, obj.Err, obj.Name)
		assert.Equal(t, payloads[obj.Name], obj.Data, obj.Name)
		assert.Equal(t, uint32(len(payloads[obj.Name])), obj.Size)
		assert.NotZero(t, obj.Fingerprint)
	}
}

func TestLibraryObjectFailuresAreIsolated(t *testing.T) {
	lb := newLibBuilder(t)
	good := lb.entry("good.srf", []byte("ok"))

	loop := lb.alloc(dataBlockSize)
	lb.put(loop, dataBlock(loop, []byte("x")))
	bad := testEntry{name: "bad.srf", dataOffset: loop, size: 1}

	short := lb.entry("short.srf", []byte("abc"))
	short.size = 10

	lb.node(rootNodeOffset, 0, 0, 0, bad, good, short)
	lib := lb.library()

	objs := lib.Objects()
	require.Len(t, objs, 3)

	assert.Nil(t, objs[0].Data)
	assert.ErrorIs(t, objs[0].Err, ErrCyclicChain)
	var oe *ObjectError
	require.ErrorAs(t, objs[0].Err, &oe)
	assert.Equal(t, "bad.srf", oe.Name)

	assert.NoError(t, objs[1].Err)
	assert.Equal(t, "ok", string(objs[1].Data))

	assert.ErrorIs(t, objs[2].Err, ErrSizeMismatch)
	assert.Equal(t, "abc", string(objs[2].Data), "payload is kept on size mismatch")
}

func TestLibraryReadAll(t *testing.T) {
	lb, _ := sampleLibrary(t)

	for _, workers := range []int{1, 4} {
		lib := lb.library(WithWorkers(workers))
		got, err := lib.ReadAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, lib.Objects(), got, "workers=%d", workers)
	}

	t.Run("cancelled", func(t *testing.T) {
		lib := lb.library(WithWorkers(1))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := lib.ReadAll(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLibraryReadObjectCache(t *testing.T) {
	lb, payloads := sampleLibrary(t)
	lib := lb.library()

	rec, err := lib.Find("f_calc.srf")
	require.NoError(t, err)

	first, err := lib.ReadObject(rec)
	require.NoError(t, err)
	first[0] = 'X'

	second, err := lib.ReadObject(rec)
	require.NoError(t, err)
	assert.Equal(t, payloads["f_calc.srf"], second, "cached payload must not be shared with callers")
	assert.True(t, lib.cache.Contains(rec.DataOffset))

	t.Run("disabled", func(t *testing.T) {
		lib := lb.library(WithCacheSize(0))
		assert.Nil(t, lib.cache)
		got, err := lib.ReadObject(rec)
		require.NoError(t, err)
		assert.Equal(t, payloads["f_calc.srf"], got)
	})
}

func TestLibraryFind(t *testing.T) {
	lb, _ := sampleLibrary(t)
	lib := lb.library()

	for _, name := range []string{"a_app.sra", "d_orders.srd", "f_calc.srf", "n_base.sru", "w_main.srw", "w_main.win"} {
		rec, ok := lib.descend(name)
		require.True(t, ok, "descent should reach %s", name)
		assert.Equal(t, name, rec.Name)

		found, err := lib.Find(name)
		require.NoError(t, err)
		assert.Equal(t, rec, found)
	}

	_, err := lib.Find("missing.srw")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, ok := lib.descend("b_between.srw")
	assert.False(t, ok)
}

func TestLibraryFindFallsBackOnDisorderedTree(t *testing.T) {
	lb := newLibBuilder(t)
	right := lb.alloc(nodeSize)
	// "a.srw" sorts before the root but is stored on the right.
	lb.node(rootNodeOffset, 0, 0, right, lb.entry("m.srw", []byte("m")))
	lb.node(right, 0, rootNodeOffset, 0, lb.entry("a.srw", []byte("a")))
	lib := lb.library()

	_, ok := lib.descend("a.srw")
	assert.False(t, ok)

	rec, err := lib.Find("a.srw")
	require.NoError(t, err)
	assert.Equal(t, right, rec.Node)
}

func TestLibraryDataBlocks(t *testing.T) {
	lb, payloads := sampleLibrary(t)
	lib := lb.library()

	rec, err := lib.Find("n_base.sru")
	require.NoError(t, err)

	blocks, err := lib.DataBlocks(rec)
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	total := 0
	for _, b := range blocks {
		total += len(b.Payload())
	}
	assert.Equal(t, len(payloads["n_base.sru"]), total)
}

func TestLibraryIdempotent(t *testing.T) {
	lb, _ := sampleLibrary(t)

	a := lb.library()
	b := lb.library()
	assert.Equal(t, a.Index().Records, b.Index().Records)
	assert.Equal(t, a.Objects(), b.Objects())
}
