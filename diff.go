// diff.go  – library-to-library comparison
package pbl

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// ChangeKind says how an object differs between two libraries.
type ChangeKind uint8

const (
	Added ChangeKind = iota + 1
	Removed
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	}
	return "unknown"
}

// AddedHunk represents a contiguous block of added lines in a diff.
type AddedHunk struct {
	// Lines contains all the added lines in this hunk, with trailing
	// newlines already stripped.
	Lines [][]byte

	// StartLine is the 1-based line number where this hunk begins
	// in the new version of the object.
	StartLine int
}

// EndLine returns the 1-based line number where this hunk ends.
func (h *AddedHunk) EndLine() int {
	if len(h.Lines) == 0 {
		return h.StartLine
	}
	return h.StartLine + len(h.Lines) - 1
}

// ObjectDiff describes one object that is not identical in both libraries.
type ObjectDiff struct {
	Name   string
	Change ChangeKind

	// Unified and Hunks are only filled for modified source objects.
	Unified string
	Hunks   []AddedHunk

	// Err is set when either side could not be reassembled. Such objects
	// are reported as Modified without text.
	Err error
}

// Diff compares the objects of oldLib and newLib by name.
//
// Payloads are compared by farm fingerprint first and by bytes on a
// fingerprint match, so unchanged objects never reach the text differ.
// Source objects that changed get a unified diff and their added-line hunks;
// compiled objects are reported without text. The result is sorted by name.
func Diff(oldLib, newLib *Library) []ObjectDiff {
	oldObjs := byName(oldLib.Objects())
	newObjs := byName(newLib.Objects())

	var out []ObjectDiff
	for name, o := range oldObjs {
		if _, ok := newObjs[name]; !ok {
			out = append(out, ObjectDiff{Name: name, Change: Removed, Err: o.Err})
		}
	}
	for name, n := range newObjs {
		o, ok := oldObjs[name]
		if !ok {
			out = append(out, ObjectDiff{Name: name, Change: Added, Err: n.Err})
			continue
		}
		if d, changed := diffObject(o, n); changed {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func byName(objs []Object) map[string]Object {
	m := make(map[string]Object, len(objs))
	for _, o := range objs {
		m[o.Name] = o
	}
	return m
}

func diffObject(o, n Object) (ObjectDiff, bool) {
	d := ObjectDiff{Name: n.Name, Change: Modified}
	if o.Data == nil || n.Data == nil {
		d.Err = firstErr(o.Err, n.Err)
		return d, true
	}
	if o.Fingerprint == n.Fingerprint && bytes.Equal(o.Data, n.Data) {
		return d, false
	}
	if n.Kind().IsSource() {
		d.Unified = unifiedDiff(o.Name, o.Data, n.Data)
		d.Hunks = addedHunksWithPos(o.Data, n.Data)
	}
	return d, true
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func unifiedDiff(name string, oldB, newB []byte) string {
	a, b := string(oldB), string(newB)
	edits := myers.ComputeEdits(span.URIFromPath(name), a, b)
	return fmt.Sprint(gotextdiff.ToUnified("a/"+name, "b/"+name, a, edits))
}

// addedHunksWithPos returns contiguous blocks of lines that exist in newB
// but not in oldB, with their 1-based position in newB.
//
// If the two byte slices are identical or the diff contains no insertions,
// addedHunksWithPos returns nil.
func addedHunksWithPos(oldB, newB []byte) []AddedHunk {
	if bytes.Equal(oldB, newB) {
		return nil
	}

	a, b := string(oldB), string(newB)
	edits := myers.ComputeEdits(span.URIFromPath(""), a, b)
	u := gotextdiff.ToUnified("", "", a, edits)

	var hunks []AddedHunk
	var cur *AddedHunk
	flush := func() {
		if cur != nil {
			hunks = append(hunks, *cur)
			cur = nil
		}
	}

	for _, h := range u.Hunks {
		lineNo := h.ToLine // already 1-based
		for _, ln := range h.Lines {
			switch ln.Kind {
			case gotextdiff.Insert:
				text := []byte(strings.TrimSuffix(ln.Content, "\n"))
				if cur == nil {
					cur = &AddedHunk{StartLine: lineNo}
				}
				cur.Lines = append(cur.Lines, text)
				lineNo++
			case gotextdiff.Equal:
				flush()
				lineNo++
			case gotextdiff.Delete:
				flush()
			}
		}
		flush()
	}
	return hunks
}
