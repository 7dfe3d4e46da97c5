package pbl

import (
	"path"
	"strings"

	farm "github.com/dgryski/go-farm"
)

// ObjectKind classifies a library entry by its name suffix.
//
// The zero value, KindUnknown, denotes a suffix this package does not know.
// The String method returns the lower-case object family.
type ObjectKind byte

const (
	// KindUnknown is an entry with an unrecognized suffix.
	KindUnknown ObjectKind = iota

	// Source entries hold exported script text.
	KindApplicationSource
	KindWindowSource
	KindDataWindowSource
	KindUserObjectSource
	KindMenuSource
	KindFunctionSource
	KindStructureSource
	KindQuerySource
	KindPipelineSource
	KindProjectSource
	KindProxySource

	// Compiled entries hold p-code and binary resources.
	KindApplicationCompiled
	KindWindowCompiled
	KindDataWindowCompiled
	KindUserObjectCompiled
	KindMenuCompiled
	KindFunctionCompiled
	KindStructureCompiled
	KindPrivate
)

var kindBySuffix = map[string]ObjectKind{
	".sra": KindApplicationSource,
	".srw": KindWindowSource,
	".srd": KindDataWindowSource,
	".sru": KindUserObjectSource,
	".srm": KindMenuSource,
	".srf": KindFunctionSource,
	".srs": KindStructureSource,
	".srq": KindQuerySource,
	".srp": KindPipelineSource,
	".srj": KindProjectSource,
	".srx": KindProxySource,

	".apl": KindApplicationCompiled,
	".win": KindWindowCompiled,
	".dwo": KindDataWindowCompiled,
	".udo": KindUserObjectCompiled,
	".men": KindMenuCompiled,
	".fun": KindFunctionCompiled,
	".str": KindStructureCompiled,
	".pra": KindPrivate,
}

var kindNames = map[ObjectKind]string{
	KindApplicationSource:   "application",
	KindWindowSource:        "window",
	KindDataWindowSource:    "datawindow",
	KindUserObjectSource:    "userobject",
	KindMenuSource:          "menu",
	KindFunctionSource:      "function",
	KindStructureSource:     "structure",
	KindQuerySource:         "query",
	KindPipelineSource:      "pipeline",
	KindProjectSource:       "project",
	KindProxySource:         "proxy",
	KindApplicationCompiled: "application",
	KindWindowCompiled:      "window",
	KindDataWindowCompiled:  "datawindow",
	KindUserObjectCompiled:  "userobject",
	KindMenuCompiled:        "menu",
	KindFunctionCompiled:    "function",
	KindStructureCompiled:   "structure",
	KindPrivate:             "private",
}

func (k ObjectKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsSource reports whether k holds script text.
func (k ObjectKind) IsSource() bool { return k >= KindApplicationSource && k <= KindProxySource }

// IsCompiled reports whether k holds compiled or binary content.
func (k ObjectKind) IsCompiled() bool { return k >= KindApplicationCompiled }

// KindOf classifies an object name by its suffix, case-insensitively.
func KindOf(name string) ObjectKind {
	return kindBySuffix[strings.ToLower(path.Ext(name))]
}

// Object is a fully reassembled library entry.
//
// A failed reassembly leaves Data nil and sets Err; the record is still
// reported so callers can list what could not be read. A size mismatch
// sets Err but keeps Data.
type Object struct {
	ObjectRecord

	Data []byte

	// Fingerprint is the farm Fingerprint64 of Data. It is stable across
	// processes and versions and is used to compare libraries cheaply.
	Fingerprint uint64

	Err error
}

// Kind classifies the object by name.
func (o *Object) Kind() ObjectKind { return KindOf(o.Name) }

func newObject(rec ObjectRecord, data []byte, err error) Object {
	o := Object{ObjectRecord: rec, Data: data, Err: err}
	if data != nil {
		o.Fingerprint = farm.Fingerprint64(data)
	}
	return o
}
