package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"

	pbl "github.com/ahrav/go-pbl"
)

func hex32(v uint32) string { return fmt.Sprintf("0X%08X", v) }

func printHeader(w io.Writer, h *pbl.Header) {
	fmt.Fprintln(w, "### Library Header Block (512 Byte)")
	fmt.Fprintln(w, string(h.Tag[:]))
	fmt.Fprintln(w, h.Name())
	fmt.Fprintln(w, h.Version())
	fmt.Fprintln(w, h.ModTime().Local().Format(time.DateTime))
	if c := h.Comment(); c != "" {
		fmt.Fprintln(w, c)
	}
	fmt.Fprintln(w, hex32(h.SCCDataOffset)+"  <- Offset of first SCC data block")
	fmt.Fprintln(w, hex32(h.SCCDataSize)+"  <- Size (Net size of SCC data)")
}

func printList(w io.Writer, ix *pbl.Index) {
	for _, rec := range ix.Records {
		fmt.Fprintf(w, "%-40s %10d  %s  %s  %s\n",
			rec.Name, rec.Size, rec.Version,
			rec.ModTime().Local().Format(time.DateTime), hex32(rec.DataOffset))
	}
	for _, err := range ix.Errors {
		fmt.Fprintf(w, "!! %v\n", err)
	}
}

func printFields(w io.Writer, title string, rows []pbl.FieldValue) {
	fmt.Fprintf(w, "### %s\n", title)
	for _, r := range rows {
		fmt.Fprintf(w, "  %-28s @%-4d %s\n", r.Name, r.Offset, r.Value)
	}
}

func printBlocks(w io.Writer, lib *pbl.Library, withData bool) error {
	printFields(w, "Library Header Block (512 Byte)", lib.Header().Describe())
	for _, blk := range lib.Bitmap().Blocks {
		printFields(w, fmt.Sprintf("Bitmap Block @%s (512 Byte)", hex32(blk.Offset)), blk.Describe())
	}
	fmt.Fprintf(w, "  allocated blocks: %d of %d\n", lib.Bitmap().AllocatedCount(), lib.Bitmap().Len())

	for _, off := range lib.Index().Nodes {
		n, err := lib.Node(off)
		if err != nil {
			return errors.Wrapf(err, "node %s", hex32(off))
		}
		printFields(w, fmt.Sprintf("Node Block @%s (3072 Byte)", hex32(off)), n.Describe())
		entries, err := n.DescribeEntries()
		for i, rows := range entries {
			printFields(w, fmt.Sprintf("%d Entry Chunk (Variable Length)", i), rows)
		}
		if err != nil {
			fmt.Fprintf(w, "!! %v\n", err)
		}
	}

	if !withData {
		return nil
	}
	for _, rec := range lib.Index().Records {
		blocks, err := lib.DataBlocks(rec)
		for _, d := range blocks {
			printFields(w, fmt.Sprintf("Data Block @%s of %s", hex32(d.Offset), rec.Name), d.Describe())
		}
		if err != nil {
			fmt.Fprintf(w, "!! %s: %v\n", rec.Name, err)
		}
	}
	return nil
}

type dumpOptions struct {
	names   []string
	skipExt []string
	hex     bool
}

func (o dumpOptions) skipped(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, s := range o.skipExt {
		if strings.EqualFold(s, ext) {
			return true
		}
	}
	return false
}

func dump(ctx context.Context, w io.Writer, lib *pbl.Library, opts dumpOptions) error {
	var objs []pbl.Object
	if len(opts.names) > 0 {
		for _, name := range opts.names {
			rec, err := lib.Find(name)
			if err != nil {
				return err
			}
			data, err := lib.ReadObject(rec)
			objs = append(objs, pbl.Object{ObjectRecord: rec, Data: data, Err: err})
		}
	} else {
		var err error
		if objs, err = lib.ReadAll(ctx); err != nil {
			return err
		}
	}

	for _, obj := range objs {
		if len(opts.names) == 0 && opts.skipped(obj.Name) {
			continue
		}
		fmt.Fprintf(w, "#### BEGIN %s\n", obj.Name)
		switch {
		case obj.Data == nil:
			fmt.Fprintf(w, "!! %v\n", obj.Err)
		case opts.hex:
			fmt.Fprint(w, hex.Dump(obj.Data))
		default:
			w.Write(bytes.TrimRight(obj.Data, " \t\r\n\x00"))
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "#### END %s\n", obj.Name)
	}
	return nil
}

func printDiff(w io.Writer, diffs []pbl.ObjectDiff, hunksOnly bool) {
	for _, d := range diffs {
		fmt.Fprintf(w, "%s %s\n", d.Change, d.Name)
		if d.Err != nil {
			fmt.Fprintf(w, "!! %v\n", d.Err)
			continue
		}
		if !hunksOnly {
			fmt.Fprint(w, d.Unified)
			continue
		}
		for _, h := range d.Hunks {
			fmt.Fprintf(w, "@@ +%d,%d @@\n", h.StartLine, len(h.Lines))
			for _, ln := range h.Lines {
				fmt.Fprintf(w, "+%s\n", ln)
			}
		}
	}
}
