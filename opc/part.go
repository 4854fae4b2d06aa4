// Package opc holds the parts of an Open Packaging Conventions (zip)
// container in memory and writes them back out.
//
// Each part is in exactly one of two states: Raw, holding the bytes read
// from the archive, or Materialized, holding a parsed etree document plus a
// dirty flag.  Parsing happens on the first call to [Part.Tree]; parts that
// are never asked for their tree are written back byte-for-byte.
package opc

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
)

var (
	// ErrMalformedXML is returned when a part's bytes do not parse as XML.
	ErrMalformedXML = errors.New("opc: malformed XML")
	// ErrNotXML is returned when a tree is requested for a binary part.
	ErrNotXML = errors.New("opc: part is not XML")
)

// State tags the representation a part currently holds.
type State uint8

const (
	// Raw parts hold archive bytes and have never been parsed.
	Raw State = iota
	// Materialized parts hold a parsed tree.
	Materialized
)

func (s State) String() string {
	if s == Materialized {
		return "materialized"
	}
	return "raw"
}

// Part is one named entry of the package.  Parts are owned by a [Store];
// callers receive pointers to inspect or mutate them but never construct
// them directly.
type Part struct {
	name  string
	state State

	// raw holds the archive bytes.  For a Materialized part it survives
	// parsing until the first MarkDirty, so a part that was only read is
	// still written back unchanged.
	raw   []byte
	tree  *etree.Document
	dirty bool

	// src is the encoded source entry used for raw pass-through; nil for
	// parts created in memory or replaced since open.
	src *sourceEntry
}

// Name returns the part's path inside the archive, without a leading slash.
func (p *Part) Name() string { return p.name }

// State returns the part's current representation tag.
func (p *Part) State() State { return p.state }

// Dirty reports whether the part's tree was mutated since it was loaded or
// last saved.
func (p *Part) Dirty() bool { return p.state == Materialized && p.dirty }

// IsXML reports whether the part name suggests XML content.  Binary parts
// (images, vbaProject.bin, printer settings) are passed through unparsed.
func (p *Part) IsXML() bool { return IsXMLName(p.name) }

// IsXMLName reports whether name has an XML-bearing extension.
func IsXMLName(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xml", ".rels", ".vml":
		return true
	}
	return false
}

// Bytes returns the part's current encoded form.  Dirty trees are
// serialized on each call; the stored state is not changed.
func (p *Part) Bytes() ([]byte, error) {
	switch p.state {
	case Raw:
		return p.raw, nil
	case Materialized:
		if !p.dirty && p.raw != nil {
			return p.raw, nil
		}
		b, err := p.tree.WriteToBytes()
		if err != nil {
			return nil, fmt.Errorf("opc: serialize %s: %w", p.name, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("opc: part %s in unknown state %d", p.name, p.state)
}

// Tree returns the parsed document, materializing it on first use.  The
// returned document is the part's only writable view: after mutating it the
// caller must call MarkDirty.
func (p *Part) Tree() (*etree.Document, error) {
	switch p.state {
	case Materialized:
		return p.tree, nil
	case Raw:
		if !p.IsXML() {
			return nil, fmt.Errorf("%w: %s", ErrNotXML, p.name)
		}
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(p.raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedXML, p.name, err)
		}
		if doc.Root() == nil {
			return nil, fmt.Errorf("%w: %s: no root element", ErrMalformedXML, p.name)
		}
		p.tree = doc
		p.state = Materialized
		return p.tree, nil
	}
	return nil, fmt.Errorf("opc: part %s in unknown state %d", p.name, p.state)
}

// MarkDirty flags a materialized part for re-serialization and drops its
// source bytes.  It is a no-op for a Raw part.
func (p *Part) MarkDirty() {
	if p.state != Materialized {
		return
	}
	p.dirty = true
	p.raw = nil
	p.src = nil
}

// setTree replaces the content with doc and marks it dirty.
func (p *Part) setTree(doc *etree.Document) {
	p.state = Materialized
	p.tree = doc
	p.dirty = true
	p.raw = nil
	p.src = nil
}

// setBytes replaces the content with b and resets the part to Raw.
func (p *Part) setBytes(b []byte) {
	p.state = Raw
	p.raw = b
	p.tree = nil
	p.dirty = false
	p.src = nil
}
