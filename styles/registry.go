package styles

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/TsubasaBE/go-xlsx/internal/xmltree"
	"github.com/TsubasaBE/go-xlsx/numfmt"
)

// table is one deduplicated sub-table.  Duplicates read from a file keep
// their own ids; index maps a value to the first id that holds it.
type table[T comparable] struct {
	items []T
	els   []*etree.Element // element read from the file, nil for interned items
	index map[T]int
}

func newTable[T comparable]() *table[T] {
	return &table[T]{index: make(map[T]int)}
}

func (t *table[T]) add(v T, el *etree.Element) int {
	id := len(t.items)
	t.items = append(t.items, v)
	t.els = append(t.els, el)
	if _, ok := t.index[v]; !ok {
		t.index[v] = id
	}
	return id
}

// intern returns the id of v, appending it when absent.
func (t *table[T]) intern(v T) (id int, added bool) {
	if id, ok := t.index[v]; ok {
		return id, false
	}
	return t.add(v, nil), true
}

func (t *table[T]) get(id int) (T, bool) {
	if id < 0 || id >= len(t.items) {
		var zero T
		return zero, false
	}
	return t.items[id], true
}

// Registry is the style table of one document.
type Registry struct {
	numFmts    map[int]string // custom formats, id ≥ numfmt.FirstCustomID
	numFmtIDs  map[string]int
	nextNumFmt int

	fonts    *table[Font]
	fills    *table[Fill]
	borders  *table[Border]
	xfs      *table[Record]
	styleXfs int // number of cellStyleXfs entries, bounds Record.XfID

	changed bool
	root    *etree.Element // <styleSheet> of the loaded part, managed sections emptied
}

func newRegistry() *Registry {
	return &Registry{
		numFmts:    make(map[int]string),
		numFmtIDs:  make(map[string]int),
		nextNumFmt: numfmt.FirstCustomID,
		fonts:      newTable[Font](),
		fills:      newTable[Fill](),
		borders:    newTable[Border](),
		xfs:        newTable[Record](),
	}
}

// New returns a registry holding only the mandatory defaults: the Calibri
// 11 font, the "none" and "gray125" fills, an empty border and xf 0.
func New() *Registry {
	r := newRegistry()
	r.ensureDefaults()
	r.changed = true
	return r
}

func (r *Registry) ensureDefaults() {
	if len(r.fonts.items) == 0 {
		r.fonts.add(DefaultFont, nil)
		r.changed = true
	}
	if len(r.fills.items) == 0 {
		r.fills.add(Fill{PatternType: "none"}, nil)
		r.fills.add(Fill{PatternType: "gray125"}, nil)
		r.changed = true
	}
	if len(r.borders.items) == 0 {
		r.borders.add(Border{}, nil)
		r.changed = true
	}
	if len(r.xfs.items) == 0 {
		r.xfs.add(Record{}, nil)
		r.changed = true
	}
	if r.styleXfs == 0 {
		r.styleXfs = 1
	}
}

// sheetOrder is the schema order of the styleSheet sections.  Only the
// managed ones are rewritten; the rest pass through from the loaded part.
var sheetOrder = []string{
	"numFmts", "fonts", "fills", "borders", "cellStyleXfs", "cellXfs",
	"cellStyles", "dxfs", "tableStyles", "colors", "extLst",
}

var managed = []string{"numFmts", "fonts", "fills", "borders", "cellXfs"}

// FromTree loads the registry from a parsed styles part.
func FromTree(doc *etree.Document) (*Registry, error) {
	root := doc.Root()
	if root == nil || root.Tag != "styleSheet" {
		return nil, fmt.Errorf("styles: root element is not <styleSheet>")
	}
	r := newRegistry()
	for _, nf := range xmltree.Children(xmltree.Child(root, "numFmts"), "numFmt") {
		id := xmltree.IntAttr(nf, "numFmtId", -1)
		code := xmltree.Attr(nf, "formatCode")
		if id < 0 {
			return nil, fmt.Errorf("styles: numFmt without numFmtId")
		}
		r.numFmts[id] = code
		if _, ok := r.numFmtIDs[code]; !ok {
			r.numFmtIDs[code] = id
		}
		if id >= r.nextNumFmt {
			r.nextNumFmt = id + 1
		}
	}
	for _, el := range xmltree.Children(xmltree.Child(root, "fonts"), "font") {
		r.fonts.add(parseFont(el), el.Copy())
	}
	for _, el := range xmltree.Children(xmltree.Child(root, "fills"), "fill") {
		r.fills.add(parseFill(el), el.Copy())
	}
	for _, el := range xmltree.Children(xmltree.Child(root, "borders"), "border") {
		r.borders.add(parseBorder(el), el.Copy())
	}
	r.styleXfs = len(xmltree.Children(xmltree.Child(root, "cellStyleXfs"), "xf"))
	for _, el := range xmltree.Children(xmltree.Child(root, "cellXfs"), "xf") {
		r.xfs.add(parseXf(el), el.Copy())
	}
	r.ensureDefaults()

	r.root = root.Copy()
	for _, tag := range managed {
		if sec := xmltree.Child(r.root, tag); sec != nil {
			for _, c := range sec.ChildElements() {
				sec.RemoveChild(c)
			}
		}
	}
	return r, nil
}

// Changed reports whether the registry differs from what was loaded.
func (r *Registry) Changed() bool { return r.changed }

// MarkSaved clears the changed flag after a successful save.
func (r *Registry) MarkSaved() { r.changed = false }

// Len returns the number of cellXfs records.
func (r *Registry) Len() int { return len(r.xfs.items) }

// Get returns the record for style id.
func (r *Registry) Get(id int) (Record, error) {
	rec, ok := r.xfs.get(id)
	if !ok {
		return Record{}, fmt.Errorf("%w: %d (have %d)", ErrInvalidStyleIndex, id, len(r.xfs.items))
	}
	return rec, nil
}

// Intern returns the style id for rec, adding it when no equal record
// exists.  Every sub-record id must already exist.
func (r *Registry) Intern(rec Record) (int, error) {
	if err := r.check(rec); err != nil {
		return 0, err
	}
	id, added := r.xfs.intern(rec)
	if added {
		r.changed = true
	}
	return id, nil
}

func (r *Registry) check(rec Record) error {
	switch {
	case rec.NumFmtID < 0 || (rec.NumFmtID >= numfmt.FirstCustomID && r.numFmts[rec.NumFmtID] == ""):
		return fmt.Errorf("%w: numFmtId %d", ErrInvalidStyleIndex, rec.NumFmtID)
	case rec.FontID < 0 || rec.FontID >= len(r.fonts.items):
		return fmt.Errorf("%w: fontId %d", ErrInvalidStyleIndex, rec.FontID)
	case rec.FillID < 0 || rec.FillID >= len(r.fills.items):
		return fmt.Errorf("%w: fillId %d", ErrInvalidStyleIndex, rec.FillID)
	case rec.BorderID < 0 || rec.BorderID >= len(r.borders.items):
		return fmt.Errorf("%w: borderId %d", ErrInvalidStyleIndex, rec.BorderID)
	case rec.XfID < 0 || rec.XfID >= r.styleXfs:
		return fmt.Errorf("%w: xfId %d", ErrInvalidStyleIndex, rec.XfID)
	}
	return nil
}

// InternFont returns the id of f in the fonts table.
func (r *Registry) InternFont(f Font) int {
	id, added := r.fonts.intern(f)
	r.changed = r.changed || added
	return id
}

// InternFill returns the id of f in the fills table.
func (r *Registry) InternFill(f Fill) int {
	id, added := r.fills.intern(f)
	r.changed = r.changed || added
	return id
}

// InternBorder returns the id of b in the borders table.
func (r *Registry) InternBorder(b Border) int {
	id, added := r.borders.intern(b)
	r.changed = r.changed || added
	return id
}

// Font returns font id.
func (r *Registry) Font(id int) (Font, error) {
	f, ok := r.fonts.get(id)
	if !ok {
		return Font{}, fmt.Errorf("%w: fontId %d", ErrInvalidStyleIndex, id)
	}
	return f, nil
}

// Fill returns fill id.
func (r *Registry) Fill(id int) (Fill, error) {
	f, ok := r.fills.get(id)
	if !ok {
		return Fill{}, fmt.Errorf("%w: fillId %d", ErrInvalidStyleIndex, id)
	}
	return f, nil
}

// Border returns border id.
func (r *Registry) Border(id int) (Border, error) {
	b, ok := r.borders.get(id)
	if !ok {
		return Border{}, fmt.Errorf("%w: borderId %d", ErrInvalidStyleIndex, id)
	}
	return b, nil
}

// InternNumFmt returns the numFmtId for code.  Built-in codes map to their
// built-in id; other codes are validated and get the next custom id.
func (r *Registry) InternNumFmt(code string) (int, error) {
	if code == "" || strings.EqualFold(code, "General") {
		return 0, nil
	}
	if id, ok := numfmt.BuiltInID(code); ok {
		return id, nil
	}
	if id, ok := r.numFmtIDs[code]; ok {
		return id, nil
	}
	if err := numfmt.Validate(code); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidNumFmt, err)
	}
	id := r.nextNumFmt
	r.nextNumFmt++
	r.numFmts[id] = code
	r.numFmtIDs[code] = id
	r.changed = true
	return id, nil
}

// NumFmtCode returns the format code of numFmtId id: the custom code when
// the document defines one, else the built-in code, else "General".
func (r *Registry) NumFmtCode(id int) string {
	return numfmt.Resolve(id, r.numFmts[id])
}

// FormatCode returns the number-format code applied by style id.
func (r *Registry) FormatCode(id int) string {
	rec, ok := r.xfs.get(id)
	if !ok {
		return "General"
	}
	return r.NumFmtCode(rec.NumFmtID)
}

// IsDate reports whether style id formats numbers as dates or times.  It
// is false for ids outside the table.
func (r *Registry) IsDate(id int) bool {
	rec, ok := r.xfs.get(id)
	if !ok {
		return false
	}
	return numfmt.IsDateFormat(rec.NumFmtID, r.numFmts[rec.NumFmtID])
}

// Add interns every part of s and returns the composite style id.
func (r *Registry) Add(s Style) (int, error) {
	nf, err := r.InternNumFmt(s.NumFmt)
	if err != nil {
		return 0, err
	}
	rec := Record{NumFmtID: nf, Alignment: s.Alignment, Protection: s.Protection}
	if s.Font != (Font{}) {
		rec.FontID = r.InternFont(s.Font)
	}
	if s.Fill != (Fill{}) {
		rec.FillID = r.InternFill(s.Fill)
	}
	if s.Border != (Border{}) {
		rec.BorderID = r.InternBorder(s.Border)
	}
	return r.Intern(rec)
}

// Resolve returns the value-level view of style id.
func (r *Registry) Resolve(id int) (Style, error) {
	rec, err := r.Get(id)
	if err != nil {
		return Style{}, err
	}
	s := Style{Alignment: rec.Alignment, Protection: rec.Protection}
	if rec.NumFmtID != 0 {
		s.NumFmt = r.NumFmtCode(rec.NumFmtID)
	}
	if s.Font, err = r.Font(rec.FontID); err != nil {
		return Style{}, err
	}
	if s.Fill, err = r.Fill(rec.FillID); err != nil {
		return Style{}, err
	}
	if s.Border, err = r.Border(rec.BorderID); err != nil {
		return Style{}, err
	}
	return s, nil
}

// WithNumFmt returns the id of a style equal to base except for its number
// format.
func (r *Registry) WithNumFmt(base int, code string) (int, error) {
	rec, err := r.Get(base)
	if err != nil {
		return 0, err
	}
	nf, err := r.InternNumFmt(code)
	if err != nil {
		return 0, err
	}
	rec.NumFmtID = nf
	return r.Intern(rec)
}

// Compact drops cellXfs records whose id is not in used and folds equal
// records together.  Id 0 always survives as id 0.  The returned map sends
// every surviving old id to its new id.
func (r *Registry) Compact(used map[int]bool) map[int]int {
	remap := make(map[int]int, len(used)+1)
	kept := newTable[Record]()
	for old, rec := range r.xfs.items {
		if old != 0 && !used[old] {
			continue
		}
		if id, ok := kept.index[rec]; ok && old != 0 {
			remap[old] = id
			continue
		}
		remap[old] = kept.add(rec, r.xfs.els[old])
	}
	if len(kept.items) != len(r.xfs.items) {
		r.changed = true
	}
	r.xfs = kept
	return remap
}

// Document renders the registry as a styles part.  Sections the registry
// does not manage (cellStyleXfs, cellStyles, dxfs, ...) come from the
// loaded part unchanged.
func (r *Registry) Document() *etree.Document {
	doc := xmltree.NewDocument()
	var root *etree.Element
	if r.root != nil {
		root = r.root.Copy()
		doc.SetRoot(root)
	} else {
		root = doc.CreateElement("styleSheet")
		root.CreateAttr("xmlns", xmltree.NSSpreadsheetML)
		xfs := section(root, "cellStyleXfs")
		xfs.CreateAttr("count", "1")
		renderXf(xfs, Record{}, false)
		cs := section(root, "cellStyles")
		cs.CreateAttr("count", "1")
		normal := cs.CreateElement("cellStyle")
		normal.CreateAttr("name", "Normal")
		normal.CreateAttr("xfId", "0")
		normal.CreateAttr("builtinId", "0")
	}

	if len(r.numFmts) == 0 {
		xmltree.RemoveChildren(root, "numFmts")
	} else {
		sec := section(root, "numFmts")
		ids := slices.Sorted(maps.Keys(r.numFmts))
		sec.CreateAttr("count", fmt.Sprint(len(ids)))
		for _, id := range ids {
			nf := sec.CreateElement("numFmt")
			nf.CreateAttr("numFmtId", fmt.Sprint(id))
			nf.CreateAttr("formatCode", r.numFmts[id])
		}
	}
	writeTable(section(root, "fonts"), r.fonts, renderFont)
	writeTable(section(root, "fills"), r.fills, renderFill)
	writeTable(section(root, "borders"), r.borders, renderBorder)
	writeTable(section(root, "cellXfs"), r.xfs, func(p *etree.Element, rec Record) {
		renderXf(p, rec, true)
	})
	return doc
}

func writeTable[T comparable](sec *etree.Element, t *table[T], render func(*etree.Element, T)) {
	sec.CreateAttr("count", fmt.Sprint(len(t.items)))
	for i, v := range t.items {
		if el := t.els[i]; el != nil {
			sec.AddChild(el.Copy())
			continue
		}
		render(sec, v)
	}
}

// section returns root's child tag with its child elements removed,
// creating it at its schema position when absent.
func section(root *etree.Element, tag string) *etree.Element {
	if sec := xmltree.Child(root, tag); sec != nil {
		for _, c := range sec.ChildElements() {
			sec.RemoveChild(c)
		}
		return sec
	}
	sec := etree.NewElement(tag)
	xmltree.InsertAfter(root, sec, sheetOrder[:slices.Index(sheetOrder, tag)]...)
	return sec
}
