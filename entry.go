package pbl

import "time"

// ObjectRecord describes one stored object as recorded by an entry chunk.
//
// Name and DataOffset are all that is needed to reassemble the object; the
// remaining fields are carried for callers that report metadata.
type ObjectRecord struct {
	Name string

	// DataOffset is the absolute offset of the first data block.
	DataOffset uint32

	// Size is the net object size declared by the entry.
	Size uint32

	Version       string
	ModifiedDate  uint32
	CommentLength uint16

	// Node is the offset of the node block that holds the entry.
	Node uint32
}

// ModTime returns the object's modification timestamp in UTC.
func (r ObjectRecord) ModTime() time.Time { return unixTime(r.ModifiedDate) }

// scanEntries walks count entry chunks packed in a node's entry region and
// calls fn with each chunk's 24-byte prefix and its raw name bytes.
//
// Each chunk is the prefix followed immediately by object_name_length bytes
// of name; the name length of one chunk locates the next. The comment text
// is not stored in the entry region, so comment_length is metadata only.
//
// Scanning stops at the first malformed chunk. Chunks already passed to fn
// stay valid; the error says which chunk failed.
func scanEntries(region []byte, count int, nodeOff uint32, fn func(prefix, name []byte)) error {
	entries := newCursor(region)
	pos := 0
	for i := range count {
		prefix, err := entries.slice(int64(pos), entryPrefixSize)
		if err != nil {
			return &EntryError{Index: i, Pos: pos, Need: entryPrefixSize, Have: len(region) - pos}
		}
		// Report the absolute file position of the chunk.
		if err := entryLay.check(prefix, int64(nodeOff)+int64(nEntries.off+pos)); err != nil {
			return err
		}
		pos += entryPrefixSize

		nameLen := int(eNameLn.u16(prefix))
		name, err := entries.slice(int64(pos), nameLen)
		if err != nil {
			return &EntryError{Index: i, Pos: pos, Need: nameLen, Have: len(region) - pos}
		}
		pos += nameLen

		fn(prefix, name)
	}
	return nil
}

// unpackEntries extracts count ObjectRecords from a node's entry region. On a
// malformed chunk the records decoded so far are returned with the error, so
// that a caller can keep the good prefix of the node.
func unpackEntries(region []byte, count int, nodeOff uint32) ([]ObjectRecord, error) {
	recs := make([]ObjectRecord, 0, count)
	err := scanEntries(region, count, nodeOff, func(prefix, name []byte) {
		recs = append(recs, ObjectRecord{
			Name:          trimText(name),
			DataOffset:    eDataOff.u32(prefix),
			Size:          eSize.u32(prefix),
			Version:       trimText(eVersion.bytes(prefix)),
			ModifiedDate:  eModTime.u32(prefix),
			CommentLength: eCommentLn.u16(prefix),
			Node:          nodeOff,
		})
	})
	return recs, err
}

// DescribeEntries returns the prefix fields of every entry chunk in n, for
// diagnostic output, followed by an "object_name" row.
func (n *NodeBlock) DescribeEntries() ([][]FieldValue, error) {
	var out [][]FieldValue
	err := scanEntries(n.Entries, int(n.EntryCount), n.Offset, func(prefix, name []byte) {
		rows := entryLay.describe(prefix)
		rows = append(rows, FieldValue{
			Name:   "object_name",
			Offset: entryPrefixSize,
			Width:  len(name),
			Value:  trimText(name),
		})
		out = append(out, rows)
	})
	return out, err
}
