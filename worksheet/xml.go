package worksheet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/TsubasaBE/go-xlsx/cellref"
	"github.com/TsubasaBE/go-xlsx/internal/xmltree"
	"github.com/TsubasaBE/go-xlsx/stringtable"
	"github.com/TsubasaBE/go-xlsx/styles"
)

// Elements that may precede <dimension> and <sheetData> in a worksheet.
var (
	beforeDimension = []string{"sheetPr"}
	beforeSheetData = []string{"sheetPr", "dimension", "sheetViews", "sheetFormatPr", "cols"}
)

// isoLayouts are the forms a t="d" cell value takes.
var isoLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	"15:04:05.999999999",
}

// Load builds a worksheet from a parsed worksheet part.  Every shared
// string a cell uses is retained in strs; on error, references already
// taken are released again.
//
// Elements the model does not manage (sheetViews, cols, mergeCells,
// conditional formatting, extLst, ...) are kept verbatim and written back
// by Document.
func Load(name string, doc *etree.Document, strs Strings, sty Styles, cfg Config) (*Worksheet, error) {
	root := doc.Root()
	if root == nil || root.Tag != "worksheet" {
		return nil, fmt.Errorf("worksheet: %s: root element is not <worksheet>", name)
	}
	ws := New(name, strs, sty, cfg)
	if err := ws.loadRows(xmltree.Child(root, "sheetData")); err != nil {
		ws.ReleaseStrings()
		return nil, fmt.Errorf("worksheet: %s: %w", name, err)
	}

	ws.root = root.Copy()
	if sd := xmltree.Child(ws.root, "sheetData"); sd != nil {
		for _, c := range sd.ChildElements() {
			sd.RemoveChild(c)
		}
	}
	ws.version = 0
	ws.changed = false
	return ws, nil
}

func (ws *Worksheet) loadRows(sd *etree.Element) error {
	prevRow := 0
	for _, rowEl := range xmltree.Children(sd, "row") {
		idx := xmltree.IntAttr(rowEl, "r", prevRow+1)
		if idx < 1 || idx > cellref.MaxRows {
			return fmt.Errorf("%w: row %d", cellref.ErrInvalidAddress, idx)
		}
		r := ws.ensureRow(idx)
		if err := ws.loadRowAttrs(r, rowEl); err != nil {
			return err
		}

		prevCol := 0
		for _, cEl := range xmltree.Children(rowEl, "c") {
			ref := cellref.Ref{Row: idx, Col: prevCol + 1}
			if a := xmltree.Attr(cEl, "r"); a != "" {
				var err error
				if ref, err = cellref.Parse(a); err != nil {
					return err
				}
				if ref.Row != idx {
					return fmt.Errorf("%w: cell %s inside row %d", cellref.ErrInvalidAddress, a, idx)
				}
			}
			if !ref.Valid() {
				return fmt.Errorf("%w: row %d col %d", cellref.ErrInvalidAddress, ref.Row, ref.Col)
			}
			c, err := ws.loadCell(cEl, ref)
			if err != nil {
				return err
			}
			if old, dup := r.get(ref.Col); dup {
				ws.remove(r, old)
			}
			ws.insert(r, c)
			prevCol = ref.Col
		}
		prevRow = idx
	}
	return nil
}

func (ws *Worksheet) loadRowAttrs(r *rowData, rowEl *etree.Element) error {
	custom := xmltree.BoolAttr(rowEl, "customFormat")
	for _, a := range rowEl.Attr {
		if a.Space == "" {
			switch a.Key {
			case "r", "spans", "customFormat":
				continue
			case "s":
				id, err := strconv.Atoi(a.Value)
				if err != nil || id < 0 || id >= ws.styles.Len() {
					return fmt.Errorf("%w: row %d style %q", styles.ErrInvalidStyleIndex, r.index, a.Value)
				}
				if custom {
					r.style, r.hasStyle = id, true
				}
				continue
			}
		}
		r.attrs = append(r.attrs, a)
	}
	return nil
}

func (ws *Worksheet) loadCell(cEl *etree.Element, ref cellref.Ref) (*cellData, error) {
	c := &cellData{col: ref.Col, sst: -1}
	var typ string
	for _, a := range cEl.Attr {
		if a.Space == "" {
			switch a.Key {
			case "r":
				continue
			case "t":
				typ = a.Value
				continue
			case "s":
				id, err := strconv.Atoi(a.Value)
				if err != nil || id < 0 || id >= ws.styles.Len() {
					return nil, fmt.Errorf("%w: cell %s style %q", styles.ErrInvalidStyleIndex, ref, a.Value)
				}
				c.style = id
				continue
			}
		}
		c.attrs = append(c.attrs, a)
	}

	if f := xmltree.Child(cEl, "f"); f != nil {
		c.formula = f.Text()
		c.fattrs = append([]etree.Attr(nil), f.Attr...)
	}
	var raw string
	if v := xmltree.Child(cEl, "v"); v != nil {
		raw = v.Text()
	}

	switch typ {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: cell %s: %q", stringtable.ErrInvalidStringIndex, ref, raw)
		}
		text, err := ws.strings.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", ref, err)
		}
		if err := ws.strings.Retain(idx); err != nil {
			return nil, fmt.Errorf("cell %s: %w", ref, err)
		}
		c.sst = idx
		c.value = Text(text)
	case "inlineStr":
		c.value = InlineText(stringtable.ItemText(xmltree.Child(cEl, "is")))
	case "str":
		c.value = InlineText(raw)
	case "b":
		c.value = Boolean(raw == "1" || raw == "true")
	case "e":
		c.value = Value{kind: KindError, str: raw}
	case "d":
		v, err := ws.parseISODate(raw, c.style)
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", ref, err)
		}
		// The value is written back as a serial, so it needs a date style
		// to read as a date again.
		if c.value, c.style, err = ws.dateStyle(v, c.style); err != nil {
			return nil, fmt.Errorf("cell %s: %w", ref, err)
		}
	case "", "n":
		if strings.TrimSpace(raw) == "" {
			break
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: cell %s: number %q", ErrValueKind, ref, raw)
		}
		if f >= 0 && ws.styles.IsDate(c.style) {
			c.value = Value{kind: KindDate, num: f, str: ws.styles.FormatCode(c.style)}
		} else {
			c.value = Number(f)
		}
	default:
		return nil, fmt.Errorf("%w: cell %s: unknown type %q", ErrValueKind, ref, typ)
	}
	return c, nil
}

func (ws *Worksheet) parseISODate(raw string, style int) (Value, error) {
	raw = strings.TrimSpace(raw)
	var hint string
	if ws.styles.IsDate(style) {
		hint = ws.styles.FormatCode(style)
	}
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if layout == "15:04:05.999999999" {
			// A bare time is a fraction of serial day 0.
			clock := t.Sub(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
			return DateSerial(clock.Hours()/24, hint)
		}
		return Date(t, ws.cfg.Date1904, hint)
	}
	return Value{}, fmt.Errorf("%w: date %q", ErrValueKind, raw)
}

// Document renders the worksheet as a worksheet part.  The model is not
// modified.
func (ws *Worksheet) Document() *etree.Document {
	doc := xmltree.NewDocument()
	var root *etree.Element
	if ws.root != nil {
		root = ws.root.Copy()
		doc.SetRoot(root)
	} else {
		root = doc.CreateElement("worksheet")
		root.CreateAttr("xmlns", xmltree.NSSpreadsheetML)
		root.CreateAttr("xmlns:r", xmltree.NSRelationships)
	}

	ref := "A1"
	if rng, ok := ws.Dimension(); ok {
		ref = rng.Compact()
	}
	dim := xmltree.Child(root, "dimension")
	if dim == nil {
		dim = newElement(root, "dimension")
		xmltree.InsertAfter(root, dim, beforeDimension...)
	}
	dim.CreateAttr("ref", ref)

	sd := xmltree.Child(root, "sheetData")
	if sd == nil {
		sd = newElement(root, "sheetData")
		xmltree.InsertAfter(root, sd, beforeSheetData...)
	}
	ws.rows.Ascend(func(r *rowData) bool {
		if r.cells.Len() == 0 && !r.hasStyle && len(r.attrs) == 0 {
			return true
		}
		ws.renderRow(sd, r)
		return true
	})
	return doc
}

func newElement(parent *etree.Element, tag string) *etree.Element {
	el := etree.NewElement(tag)
	el.Space = parent.Space
	return el
}

func child(parent *etree.Element, tag string) *etree.Element {
	el := parent.CreateElement(tag)
	el.Space = parent.Space
	return el
}

func (ws *Worksheet) renderRow(sd *etree.Element, r *rowData) {
	rowEl := child(sd, "row")
	rowEl.CreateAttr("r", strconv.Itoa(r.index))
	if r.cells.Len() > 0 {
		rowEl.CreateAttr("spans", strconv.Itoa(r.minCol)+":"+strconv.Itoa(r.maxCol))
	}
	if r.hasStyle {
		rowEl.CreateAttr("s", strconv.Itoa(r.style))
		rowEl.CreateAttr("customFormat", "1")
	}
	for i := range r.attrs {
		rowEl.CreateAttr(r.attrs[i].FullKey(), r.attrs[i].Value)
	}
	r.cells.Ascend(func(c *cellData) bool {
		renderCell(rowEl, r.index, c)
		return true
	})
}

func renderCell(rowEl *etree.Element, row int, c *cellData) {
	cEl := child(rowEl, "c")
	cEl.CreateAttr("r", cellref.Ref{Row: row, Col: c.col}.String())
	if c.style != 0 {
		cEl.CreateAttr("s", strconv.Itoa(c.style))
	}
	v := c.value
	switch {
	case v.kind == KindString && c.sst >= 0:
		cEl.CreateAttr("t", "s")
	case v.kind == KindString && c.hasFormula():
		cEl.CreateAttr("t", "str")
	case v.kind == KindString:
		cEl.CreateAttr("t", "inlineStr")
	case v.kind == KindBool:
		cEl.CreateAttr("t", "b")
	case v.kind == KindError:
		cEl.CreateAttr("t", "e")
	}
	for i := range c.attrs {
		cEl.CreateAttr(c.attrs[i].FullKey(), c.attrs[i].Value)
	}

	if c.hasFormula() {
		f := child(cEl, "f")
		for i := range c.fattrs {
			f.CreateAttr(c.fattrs[i].FullKey(), c.fattrs[i].Value)
		}
		f.SetText(c.formula)
	}

	var text string
	switch v.kind {
	case KindEmpty:
		return
	case KindString:
		if c.sst >= 0 {
			text = strconv.Itoa(c.sst)
		} else if !c.hasFormula() {
			is := child(cEl, "is")
			stringtable.SetText(child(is, "t"), v.str)
			return
		} else {
			text = v.str
		}
	case KindBool:
		text = "0"
		if v.b {
			text = "1"
		}
	case KindError:
		text = v.str
	case KindNumber, KindDate:
		text = strconv.FormatFloat(v.num, 'g', -1, 64)
	}
	child(cEl, "v").SetText(text)
}

// colElements returns the <col> elements of the template, which carry
// column widths and default styles.
func (ws *Worksheet) colElements() []*etree.Element {
	if ws.root == nil {
		return nil
	}
	var out []*etree.Element
	for _, cols := range xmltree.Children(ws.root, "cols") {
		out = append(out, xmltree.Children(cols, "col")...)
	}
	return out
}

func colStyle(col *etree.Element) (int, bool) {
	s := xmltree.Attr(col, "style")
	if s == "" {
		return 0, false
	}
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
