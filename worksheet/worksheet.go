// Package worksheet holds the in-memory model of one worksheet part: a
// sparse, ordered map of rows to cells synchronized against the sheet XML.
//
// Rows are kept in a B-tree ordered by index, and each row keeps its cells
// in a B-tree ordered by column.  Row spans and the sheet dimension are
// maintained on every write, so they always equal the true bounds of the
// cells present.
//
// Cells hold shared-string indices and style ids, never the entries
// themselves.  The worksheet retains and releases shared-string references
// as cell values change.
package worksheet

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/google/btree"

	"github.com/TsubasaBE/go-xlsx/cellref"
	"github.com/TsubasaBE/go-xlsx/numfmt"
	"github.com/TsubasaBE/go-xlsx/styles"
)

// Strings is the shared-string table cells reference by index.
type Strings interface {
	Get(idx int) (string, error)
	Intern(text string) int
	Retain(idx int) error
	Release(idx int)
}

// Styles is the part of the style registry a worksheet consults.
type Styles interface {
	Len() int
	IsDate(id int) bool
	FormatCode(id int) string
	WithNumFmt(base int, code string) (int, error)
}

// Config carries the workbook-level settings a worksheet depends on.
type Config struct {
	// Date1904 selects the 1904 date system for date values.
	Date1904 bool
	// DefaultDateFormat is applied to date values written without a format
	// hint.  Empty means "yyyy-mm-dd".
	DefaultDateFormat string
}

const btreeDegree = 16

// Cell is a read-only view of one cell.
type Cell struct {
	// Ref is the cell's address.
	Ref cellref.Ref
	// Value is the cell's value; empty for placeholders.
	Value Value
	// Style is the cell's style id, 0 for the default style.
	Style int
	// Formula is the cell's formula text without a leading "=", or "".
	Formula string
}

type cellData struct {
	col     int
	value   Value
	style   int
	sst     int // shared-string index held by this cell, -1 when none
	formula string
	fattrs  []etree.Attr // <f> attributes (t, ref, si, ...)
	attrs   []etree.Attr // other <c> attributes (cm, vm, ph, ...)
}

type rowData struct {
	index    int
	cells    *btree.BTreeG[*cellData]
	minCol   int // cached span; valid when cells.Len() > 0
	maxCol   int
	style    int
	hasStyle bool
	attrs    []etree.Attr // ht, hidden, outlineLevel, ...
}

func newRow(index int) *rowData {
	return &rowData{
		index: index,
		cells: btree.NewG[*cellData](btreeDegree, func(a, b *cellData) bool { return a.col < b.col }),
	}
}

func (r *rowData) get(col int) (*cellData, bool) {
	return r.cells.Get(&cellData{col: col})
}

// Worksheet is the model of one worksheet part.
type Worksheet struct {
	name    string
	cfg     Config
	strings Strings
	styles  Styles

	rows *btree.BTreeG[*rowData]

	// Dimension bookkeeping: the rows that hold at least one cell, and a
	// multiset of occupied columns.
	occupiedRows *btree.BTreeG[int]
	occupiedCols *btree.BTreeG[int]
	colCount     map[int]int
	cellCount    int

	version uint64 // bumped on every structural change
	changed bool
	root    *etree.Element // <worksheet> template with <sheetData> emptied
}

// New returns an empty worksheet.
func New(name string, strs Strings, sty Styles, cfg Config) *Worksheet {
	ws := &Worksheet{
		name:         name,
		cfg:          cfg,
		strings:      strs,
		styles:       sty,
		rows:         btree.NewG[*rowData](btreeDegree, func(a, b *rowData) bool { return a.index < b.index }),
		occupiedRows: btree.NewOrderedG[int](btreeDegree),
		occupiedCols: btree.NewOrderedG[int](btreeDegree),
		colCount:     make(map[int]int),
		changed:      true,
	}
	return ws
}

// Name returns the sheet name.
func (ws *Worksheet) Name() string { return ws.name }

// SetName changes the name the worksheet reports.  It does not touch the
// workbook; rename sheets through the workbook.
func (ws *Worksheet) SetName(name string) { ws.name = name }

// Date1904 reports whether the sheet's dates use the 1904 system.
func (ws *Worksheet) Date1904() bool { return ws.cfg.Date1904 }

// Changed reports whether the model differs from the part it was loaded
// from.
func (ws *Worksheet) Changed() bool { return ws.changed }

// MarkSaved clears the changed flag after a successful save.
func (ws *Worksheet) MarkSaved() { ws.changed = false }

// Len returns the number of cells present, placeholders included.
func (ws *Worksheet) Len() int { return ws.cellCount }

func (ws *Worksheet) row(index int) (*rowData, bool) {
	return ws.rows.Get(&rowData{index: index})
}

func (ws *Worksheet) ensureRow(index int) *rowData {
	if r, ok := ws.row(index); ok {
		return r
	}
	r := newRow(index)
	ws.rows.ReplaceOrInsert(r)
	ws.version++
	return r
}

func (ws *Worksheet) lookup(ref cellref.Ref) (*cellData, bool) {
	r, ok := ws.row(ref.Row)
	if !ok {
		return nil, false
	}
	return r.get(ref.Col)
}

// insert adds c to row r and updates the span and dimension bookkeeping.
func (ws *Worksheet) insert(r *rowData, c *cellData) {
	if r.cells.Len() == 0 {
		r.minCol, r.maxCol = c.col, c.col
		ws.occupiedRows.ReplaceOrInsert(r.index)
	} else {
		r.minCol = min(r.minCol, c.col)
		r.maxCol = max(r.maxCol, c.col)
	}
	r.cells.ReplaceOrInsert(c)
	if ws.colCount[c.col] == 0 {
		ws.occupiedCols.ReplaceOrInsert(c.col)
	}
	ws.colCount[c.col]++
	ws.cellCount++
	ws.version++
	ws.changed = true
}

// remove deletes c from row r, releasing its shared string.
func (ws *Worksheet) remove(r *rowData, c *cellData) {
	ws.release(c)
	r.cells.Delete(c)
	switch {
	case r.cells.Len() == 0:
		ws.occupiedRows.Delete(r.index)
	case c.col == r.minCol:
		first, _ := r.cells.Min()
		r.minCol = first.col
	case c.col == r.maxCol:
		last, _ := r.cells.Max()
		r.maxCol = last.col
	}
	ws.colCount[c.col]--
	if ws.colCount[c.col] == 0 {
		delete(ws.colCount, c.col)
		ws.occupiedCols.Delete(c.col)
	}
	ws.cellCount--
	ws.version++
	ws.changed = true
}

func (ws *Worksheet) release(c *cellData) {
	if c.sst >= 0 {
		ws.strings.Release(c.sst)
		c.sst = -1
	}
}

// hasFormula reports whether the cell carries an <f> element.  Dependents
// of a shared formula have attributes but no text.
func (c *cellData) hasFormula() bool { return c.formula != "" || len(c.fattrs) > 0 }

func (c *cellData) view(row int) Cell {
	return Cell{Ref: cellref.Ref{Row: row, Col: c.col}, Value: c.value, Style: c.style, Formula: c.formula}
}

// Cell returns the cell at ref, creating an empty placeholder when none
// exists.
func (ws *Worksheet) Cell(ref cellref.Ref) (Cell, error) {
	c, err := ws.ensure(ref)
	if err != nil {
		return Cell{}, err
	}
	return c.view(ref.Row), nil
}

func (ws *Worksheet) ensure(ref cellref.Ref) (*cellData, error) {
	if !ref.Valid() {
		return nil, fmt.Errorf("worksheet: %w: row %d col %d", cellref.ErrInvalidAddress, ref.Row, ref.Col)
	}
	r := ws.ensureRow(ref.Row)
	if c, ok := r.get(ref.Col); ok {
		return c, nil
	}
	c := &cellData{col: ref.Col, sst: -1}
	ws.insert(r, c)
	return c, nil
}

// CellAt returns the cell at ref without creating it.
func (ws *Worksheet) CellAt(ref cellref.Ref) (Cell, bool) {
	c, ok := ws.lookup(ref)
	if !ok {
		return Cell{}, false
	}
	return c.view(ref.Row), true
}

// Value returns the value at ref; absent cells read as empty.
func (ws *Worksheet) Value(ref cellref.Ref) Value {
	c, ok := ws.lookup(ref)
	if !ok {
		return Value{}
	}
	return c.value
}

// ValueAt is Value for an A1-style address.
func (ws *Worksheet) ValueAt(addr string) (Value, error) {
	ref, err := cellref.Parse(addr)
	if err != nil {
		return Value{}, err
	}
	return ws.Value(ref), nil
}

// SetValue stores v at ref, creating the cell when needed.  Any formula on
// the cell is cleared.  A shared-text value interns its text; the string
// previously held by the cell is released.  A date value written to a cell
// whose style is not a date style gets a date style derived from it.
func (ws *Worksheet) SetValue(ref cellref.Ref, v Value) error {
	if !ref.Valid() {
		return fmt.Errorf("worksheet: %w: row %d col %d", cellref.ErrInvalidAddress, ref.Row, ref.Col)
	}
	var style int
	if c, ok := ws.lookup(ref); ok {
		style = c.style
	}
	if v.kind == KindDate {
		var err error
		if v, style, err = ws.dateStyle(v, style); err != nil {
			return err
		}
	}
	c, err := ws.ensure(ref)
	if err != nil {
		return err
	}
	ws.assign(c, v)
	c.style = style
	c.formula, c.fattrs = "", nil
	ws.changed = true
	return nil
}

// SetValueAt is SetValue for an A1-style address.
func (ws *Worksheet) SetValueAt(addr string, v Value) error {
	ref, err := cellref.Parse(addr)
	if err != nil {
		return err
	}
	return ws.SetValue(ref, v)
}

// SetTime stores t as a date value using the sheet's date system.
func (ws *Worksheet) SetTime(ref cellref.Ref, t time.Time, format string) error {
	v, err := Date(t, ws.cfg.Date1904, format)
	if err != nil {
		return err
	}
	return ws.SetValue(ref, v)
}

// assign swaps the value of c, keeping shared-string references balanced.
// The new string is interned before the old one is released so a cell
// rewritten with its own text never drops to zero references.
func (ws *Worksheet) assign(c *cellData, v Value) {
	old := c.sst
	c.sst = -1
	if v.kind == KindString && !v.inline {
		c.sst = ws.strings.Intern(v.str)
	}
	if old >= 0 {
		ws.strings.Release(old)
	}
	c.value = v
}

// dateStyle settles the format hint of a date value and the style that
// displays it.
func (ws *Worksheet) dateStyle(v Value, style int) (Value, int, error) {
	if v.str == "" && ws.styles.IsDate(style) {
		v.str = ws.styles.FormatCode(style)
		return v, style, nil
	}
	code := v.str
	if code == "" {
		code = ws.cfg.DefaultDateFormat
	}
	if code == "" {
		code = "yyyy-mm-dd"
	}
	if !numfmt.IsDateCode(code) {
		return v, style, fmt.Errorf("%w: %q is not a date format", ErrValueKind, code)
	}
	v.str = code
	if ws.styles.IsDate(style) && ws.styles.FormatCode(style) == code {
		return v, style, nil
	}
	id, err := ws.styles.WithNumFmt(style, code)
	if err != nil {
		return v, style, fmt.Errorf("worksheet: date style: %w", err)
	}
	return v, id, nil
}

// SetFormula stores an opaque formula at ref together with its cached
// result.  The formula is never evaluated.
func (ws *Worksheet) SetFormula(ref cellref.Ref, formula string, cached Value) error {
	if cached.kind == KindString {
		// Formula results are stored in the cell, not the shared table.
		cached = InlineText(cached.str)
	}
	if err := ws.SetValue(ref, cached); err != nil {
		return err
	}
	c, _ := ws.lookup(ref)
	c.formula = trimEquals(formula)
	return nil
}

func trimEquals(f string) string {
	if len(f) > 0 && f[0] == '=' {
		return f[1:]
	}
	return f
}

// SetStyle sets the style id of the cell at ref, creating it when needed.
func (ws *Worksheet) SetStyle(ref cellref.Ref, id int) error {
	if id < 0 || id >= ws.styles.Len() {
		return fmt.Errorf("worksheet: %w: %d", styles.ErrInvalidStyleIndex, id)
	}
	c, err := ws.ensure(ref)
	if err != nil {
		return err
	}
	c.style = id
	ws.changed = true
	return nil
}

// ClearCell removes the cell at ref.  It reports whether a cell existed.
func (ws *Worksheet) ClearCell(ref cellref.Ref) bool {
	r, ok := ws.row(ref.Row)
	if !ok {
		return false
	}
	c, ok := r.get(ref.Col)
	if !ok {
		return false
	}
	ws.remove(r, c)
	return true
}

// DeleteRow removes row index and every cell in it, releasing their
// shared strings.  Rows below are not shifted.
func (ws *Worksheet) DeleteRow(index int) bool {
	r, ok := ws.row(index)
	if !ok {
		return false
	}
	var cells []*cellData
	r.cells.Ascend(func(c *cellData) bool {
		cells = append(cells, c)
		return true
	})
	for _, c := range cells {
		ws.remove(r, c)
	}
	ws.rows.Delete(r)
	ws.version++
	ws.changed = true
	return true
}

// Dimension returns the smallest range containing every cell.  ok is
// false for a sheet with no cells.
func (ws *Worksheet) Dimension() (rng cellref.Range, ok bool) {
	top, ok := ws.occupiedRows.Min()
	if !ok {
		return cellref.Range{}, false
	}
	bottom, _ := ws.occupiedRows.Max()
	left, _ := ws.occupiedCols.Min()
	right, _ := ws.occupiedCols.Max()
	return cellref.Range{
		TopLeft:     cellref.Ref{Row: top, Col: left},
		BottomRight: cellref.Ref{Row: bottom, Col: right},
	}, true
}

// RowSpan returns the first and last occupied columns of row index.
func (ws *Worksheet) RowSpan(index int) (first, last int, ok bool) {
	r, found := ws.row(index)
	if !found || r.cells.Len() == 0 {
		return 0, 0, false
	}
	return r.minCol, r.maxCol, true
}

// SetRowStyle sets the default style of row index.
func (ws *Worksheet) SetRowStyle(index, id int) error {
	if index < 1 || index > cellref.MaxRows {
		return fmt.Errorf("worksheet: %w: row %d", cellref.ErrInvalidAddress, index)
	}
	if id < 0 || id >= ws.styles.Len() {
		return fmt.Errorf("worksheet: %w: %d", styles.ErrInvalidStyleIndex, id)
	}
	r := ws.ensureRow(index)
	r.style, r.hasStyle = id, id != 0
	ws.changed = true
	return nil
}

// RowStyle returns the default style of row index.
func (ws *Worksheet) RowStyle(index int) (int, bool) {
	r, ok := ws.row(index)
	if !ok || !r.hasStyle {
		return 0, false
	}
	return r.style, true
}

// FormattedValue renders the value at ref through the number format of
// its style, the way a spreadsheet application displays it.
func (ws *Worksheet) FormattedValue(ref cellref.Ref) string {
	c, ok := ws.lookup(ref)
	if !ok {
		return ""
	}
	v := c.value
	switch v.kind {
	case KindNumber:
		return numfmt.FormatNumber(v.num, ws.styles.FormatCode(c.style), ws.cfg.Date1904)
	case KindDate:
		code := v.str
		if code == "" {
			code = ws.styles.FormatCode(c.style)
		}
		return numfmt.FormatNumber(v.num, code, ws.cfg.Date1904)
	case KindString:
		return numfmt.FormatText(v.str, ws.styles.FormatCode(c.style))
	}
	return v.String()
}

// ReleaseStrings drops every shared-string reference the sheet holds, as
// when the sheet is removed from its workbook.
func (ws *Worksheet) ReleaseStrings() {
	ws.rows.Ascend(func(r *rowData) bool {
		r.cells.Ascend(func(c *cellData) bool {
			ws.release(c)
			return true
		})
		return true
	})
}

// ApplyStringRemap rewrites shared-string indices after the table was
// compacted.  Every index the sheet holds must be a key of remap.
func (ws *Worksheet) ApplyStringRemap(remap map[int]int) {
	ws.rows.Ascend(func(r *rowData) bool {
		r.cells.Ascend(func(c *cellData) bool {
			if c.sst >= 0 {
				if n, ok := remap[c.sst]; ok && n != c.sst {
					c.sst = n
					ws.changed = true
				}
			}
			return true
		})
		return true
	})
}

// UsedStyles adds every style id the sheet references (cells, rows and
// column defaults) to used.
func (ws *Worksheet) UsedStyles(used map[int]bool) {
	ws.rows.Ascend(func(r *rowData) bool {
		if r.hasStyle {
			used[r.style] = true
		}
		r.cells.Ascend(func(c *cellData) bool {
			used[c.style] = true
			return true
		})
		return true
	})
	for _, col := range ws.colElements() {
		if id, ok := colStyle(col); ok {
			used[id] = true
		}
	}
}

// ApplyStyleRemap rewrites style ids after the registry was compacted.
func (ws *Worksheet) ApplyStyleRemap(remap map[int]int) {
	apply := func(id int) int {
		if n, ok := remap[id]; ok {
			if n != id {
				ws.changed = true
			}
			return n
		}
		ws.changed = true
		return 0
	}
	ws.rows.Ascend(func(r *rowData) bool {
		if r.hasStyle {
			r.style = apply(r.style)
		}
		r.cells.Ascend(func(c *cellData) bool {
			c.style = apply(c.style)
			return true
		})
		return true
	})
	for _, col := range ws.colElements() {
		if id, ok := colStyle(col); ok {
			col.CreateAttr("style", strconv.Itoa(apply(id)))
		}
	}
}
