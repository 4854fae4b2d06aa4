// Package stringtable holds the shared-string table (xl/sharedStrings.xml)
// of a workbook: a deduplicated list of text values that cells reference by
// index.
//
// Indices are stable for the lifetime of a Pool.  Entries whose reference
// count drops to zero stay in place until the caller runs [Pool.Compact],
// which returns the old→new index remap every referencing cell must apply.
package stringtable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/TsubasaBE/go-xlsx/internal/xmltree"
)

// ErrInvalidStringIndex is returned for an index with no entry in the pool,
// which means the document references a string that does not exist.
var ErrInvalidStringIndex = errors.New("stringtable: invalid string index")

type entry struct {
	text string
	refs int
	// si is the <si> element read from the file.  It is written back as-is
	// so rich-text runs and phonetic hints survive re-serialization.
	si *etree.Element
}

// Pool is the shared-string table of one document.
type Pool struct {
	entries []entry
	lookup  map[string]int // text → first plain entry holding it
	changed bool
	root    *etree.Element // <sst> element of the loaded part, for extLst and attributes
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{lookup: make(map[string]int)}
}

// FromTree loads the pool from a parsed sharedStrings part.  All loaded
// entries start with zero references; callers retain each index as the
// cells that use it are loaded.
func FromTree(doc *etree.Document) (*Pool, error) {
	root := doc.Root()
	if root == nil || root.Tag != "sst" {
		return nil, fmt.Errorf("stringtable: root element is not <sst>")
	}
	p := New()
	p.root = root.Copy()
	xmltree.RemoveChildren(p.root, "si")
	for _, si := range xmltree.Children(root, "si") {
		text := ItemText(si)
		if _, ok := p.lookup[text]; !ok && plain(si) {
			p.lookup[text] = len(p.entries)
		}
		p.entries = append(p.entries, entry{text: text, si: si.Copy()})
	}
	return p, nil
}

// ItemText flattens one <si> or inline <is>: either its direct <t> or the
// concatenated <t> of its rich-text runs.  Phonetic runs (<rPh>) are not
// part of the value.
func ItemText(si *etree.Element) string {
	if t := xmltree.Child(si, "t"); t != nil {
		return t.Text()
	}
	var sb strings.Builder
	for _, r := range xmltree.Children(si, "r") {
		if t := xmltree.Child(r, "t"); t != nil {
			sb.WriteString(t.Text())
		}
	}
	return sb.String()
}

// Len returns the number of entries, including unreferenced ones awaiting
// compaction.
func (p *Pool) Len() int { return len(p.entries) }

// Changed reports whether entries were added or removed since the pool was
// loaded or last marked saved.
func (p *Pool) Changed() bool { return p.changed }

// MarkSaved clears the changed flag after the pool was written.
func (p *Pool) MarkSaved() { p.changed = false }

// Get returns the text at idx.
func (p *Pool) Get(idx int) (string, error) {
	if idx < 0 || idx >= len(p.entries) {
		return "", fmt.Errorf("%w: %d (table has %d entries)", ErrInvalidStringIndex, idx, len(p.entries))
	}
	return p.entries[idx].text, nil
}

// Intern returns the index of the plain entry holding text, adding one when
// none exists, and takes one reference on it.  Rich-text entries with the
// same characters are never reused, so their formatting stays with the
// cells that had it.
func (p *Pool) Intern(text string) int {
	if idx, ok := p.lookup[text]; ok {
		p.entries[idx].refs++
		return idx
	}
	idx := len(p.entries)
	p.entries = append(p.entries, entry{text: text, refs: 1})
	p.lookup[text] = idx
	p.changed = true
	return idx
}

// Retain takes one reference on an existing index.
func (p *Pool) Retain(idx int) error {
	if idx < 0 || idx >= len(p.entries) {
		return fmt.Errorf("%w: %d (table has %d entries)", ErrInvalidStringIndex, idx, len(p.entries))
	}
	p.entries[idx].refs++
	return nil
}

// Release drops one reference.  An entry that reaches zero stays in the
// table, at the same index, until the next Compact.
func (p *Pool) Release(idx int) {
	if idx < 0 || idx >= len(p.entries) || p.entries[idx].refs == 0 {
		return
	}
	p.entries[idx].refs--
}

// Refs returns the reference count held on idx, or 0 for an invalid index.
func (p *Pool) Refs(idx int) int {
	if idx < 0 || idx >= len(p.entries) {
		return 0
	}
	return p.entries[idx].refs
}

// Compact drops unreferenced entries and folds plain-text duplicates read
// from the file into their first occurrence.  The returned map sends every
// surviving old index to its new one; a referenced index is always present.
// Callers must rewrite every cell before using the pool again.
func (p *Pool) Compact() map[int]int {
	remap := make(map[int]int, len(p.entries))
	kept := p.entries[:0:0]
	lookup := make(map[string]int, len(p.entries))
	for old, e := range p.entries {
		if e.refs == 0 {
			continue
		}
		first, ok := lookup[e.text]
		if ok && plain(e.si) {
			kept[first].refs += e.refs
			remap[old] = first
			continue
		}
		remap[old] = len(kept)
		if !ok && plain(e.si) {
			lookup[e.text] = len(kept)
		}
		kept = append(kept, e)
	}
	if len(kept) != len(p.entries) {
		p.changed = true
	}
	p.entries = kept
	p.lookup = lookup
	return remap
}

// plain reports whether si carries nothing but a single <t>.
func plain(si *etree.Element) bool {
	if si == nil {
		return true
	}
	kids := si.ChildElements()
	return len(kids) == 1 && kids[0].Tag == "t"
}

// Document renders the pool as a sharedStrings part.
func (p *Pool) Document() *etree.Document {
	doc := xmltree.NewDocument()
	var root *etree.Element
	if p.root != nil {
		root = p.root.Copy()
		doc.SetRoot(root)
	} else {
		root = doc.CreateElement("sst")
		root.CreateAttr("xmlns", xmltree.NSSpreadsheetML)
	}
	root.RemoveAttr("count")
	root.CreateAttr("uniqueCount", fmt.Sprint(len(p.entries)))

	// <si> elements precede the optional <extLst>.
	ext := xmltree.Child(root, "extLst")
	if ext != nil {
		root.RemoveChild(ext)
	}
	for _, e := range p.entries {
		if e.si != nil {
			root.AddChild(e.si.Copy())
			continue
		}
		si := root.CreateElement("si")
		SetText(si.CreateElement("t"), e.text)
	}
	if ext != nil {
		root.AddChild(ext)
	}
	return doc
}

// SetText writes s into a <t> element, adding xml:space="preserve" when
// leading or trailing whitespace would otherwise be dropped by readers.
func SetText(t *etree.Element, s string) {
	t.SetText(s)
	if s != strings.TrimSpace(s) {
		t.CreateAttr("xml:space", "preserve")
	} else {
		t.RemoveAttr("xml:space")
	}
}
