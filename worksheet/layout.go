package worksheet

import (
	"fmt"
	"math"
	"strconv"

	"github.com/beevik/etree"

	"github.com/TsubasaBE/go-xlsx/cellref"
	"github.com/TsubasaBE/go-xlsx/internal/xmltree"
)

const (
	// MaxRowHeight is the tallest row height, in points.
	MaxRowHeight = 409
	// MaxColumnWidth is the widest column width, in characters.
	MaxColumnWidth = 255
)

// Elements that may precede <cols> in a worksheet.
var beforeCols = []string{"sheetPr", "dimension", "sheetViews", "sheetFormatPr"}

func (r *rowData) attr(key string) (string, bool) {
	for _, a := range r.attrs {
		if a.Space == "" && a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// setAttr sets an un-prefixed row attribute; an empty value removes it.
func (r *rowData) setAttr(key, value string) {
	for i, a := range r.attrs {
		if a.Space == "" && a.Key == key {
			if value == "" {
				r.attrs = append(r.attrs[:i], r.attrs[i+1:]...)
			} else {
				r.attrs[i].Value = value
			}
			return
		}
	}
	if value != "" {
		r.attrs = append(r.attrs, etree.Attr{Key: key, Value: value})
	}
}

func checkRow(index int) error {
	if index < 1 || index > cellref.MaxRows {
		return fmt.Errorf("worksheet: %w: row %d", cellref.ErrInvalidAddress, index)
	}
	return nil
}

func checkCol(col int) error {
	if col < 1 || col > cellref.MaxCols {
		return fmt.Errorf("worksheet: %w: column %d", cellref.ErrInvalidAddress, col)
	}
	return nil
}

func formatPoints(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func isTrue(s string) bool { return s == "1" || s == "true" }

// RowHeight returns the custom height of row index in points.  ok is false
// when the row uses the sheet's default height.
func (ws *Worksheet) RowHeight(index int) (height float64, ok bool) {
	r, found := ws.row(index)
	if !found {
		return 0, false
	}
	v, found := r.attr("ht")
	if !found {
		return 0, false
	}
	h, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return h, true
}

// SetRowHeight gives row index a custom height in points, between 0 and
// MaxRowHeight.
func (ws *Worksheet) SetRowHeight(index int, height float64) error {
	if err := checkRow(index); err != nil {
		return err
	}
	if math.IsNaN(height) || height < 0 || height > MaxRowHeight {
		return fmt.Errorf("worksheet: row height %v out of range [0, %d]", height, MaxRowHeight)
	}
	r := ws.ensureRow(index)
	r.setAttr("ht", formatPoints(height))
	r.setAttr("customHeight", "1")
	ws.changed = true
	return nil
}

// ResetRowHeight returns row index to the default height.
func (ws *Worksheet) ResetRowHeight(index int) {
	r, ok := ws.row(index)
	if !ok {
		return
	}
	if _, set := r.attr("ht"); set {
		r.setAttr("ht", "")
		r.setAttr("customHeight", "")
		ws.changed = true
	}
}

// RowHidden reports whether row index is hidden.
func (ws *Worksheet) RowHidden(index int) bool {
	r, ok := ws.row(index)
	if !ok {
		return false
	}
	v, _ := r.attr("hidden")
	return isTrue(v)
}

// SetRowHidden hides or shows row index.
func (ws *Worksheet) SetRowHidden(index int, hidden bool) error {
	if err := checkRow(index); err != nil {
		return err
	}
	if !hidden {
		if r, ok := ws.row(index); ok {
			r.setAttr("hidden", "")
			ws.changed = true
		}
		return nil
	}
	ws.ensureRow(index).setAttr("hidden", "1")
	ws.changed = true
	return nil
}

// colAt returns the <col> element whose [min, max] covers col.
func (ws *Worksheet) colAt(col int) *etree.Element {
	for _, el := range ws.colElements() {
		if xmltree.IntAttr(el, "min", 0) <= col && col <= xmltree.IntAttr(el, "max", 0) {
			return el
		}
	}
	return nil
}

// template returns the worksheet template, creating a bare one for sheets
// that were not loaded from a part.
func (ws *Worksheet) template() *etree.Element {
	if ws.root == nil {
		root := etree.NewElement("worksheet")
		root.CreateAttr("xmlns", xmltree.NSSpreadsheetML)
		root.CreateAttr("xmlns:r", xmltree.NSRelationships)
		root.CreateElement("sheetData")
		ws.root = root
	}
	return ws.root
}

// isolateCol returns a <col> element covering exactly col, splitting a
// wider element or creating a new one.
func (ws *Worksheet) isolateCol(col int) *etree.Element {
	n := strconv.Itoa(col)
	if el := ws.colAt(col); el != nil {
		lo, hi := xmltree.IntAttr(el, "min", col), xmltree.IntAttr(el, "max", col)
		parent := el.Parent()
		if lo < col {
			before := el.Copy()
			before.CreateAttr("max", strconv.Itoa(col-1))
			parent.InsertChildAt(el.Index(), before)
		}
		if hi > col {
			after := el.Copy()
			after.CreateAttr("min", strconv.Itoa(col+1))
			parent.InsertChildAt(el.Index()+1, after)
		}
		el.CreateAttr("min", n)
		el.CreateAttr("max", n)
		return el
	}

	root := ws.template()
	cols := xmltree.Child(root, "cols")
	if cols == nil {
		cols = newElement(root, "cols")
		xmltree.InsertAfter(root, cols, beforeCols...)
	}
	el := newElement(cols, "col")
	el.CreateAttr("min", n)
	el.CreateAttr("max", n)
	at := len(cols.Child)
	for _, c := range xmltree.Children(cols, "col") {
		if xmltree.IntAttr(c, "min", 0) > col {
			at = c.Index()
			break
		}
	}
	cols.InsertChildAt(at, el)
	return el
}

// ColumnWidth returns the custom width of column col in characters.  ok is
// false when the column uses the sheet's default width.
func (ws *Worksheet) ColumnWidth(col int) (width float64, ok bool) {
	el := ws.colAt(col)
	if el == nil || !xmltree.HasAttr(el, "width") {
		return 0, false
	}
	w, err := strconv.ParseFloat(xmltree.Attr(el, "width"), 64)
	if err != nil {
		return 0, false
	}
	return w, true
}

// SetColumnWidth gives column col a custom width in characters, between 0
// and MaxColumnWidth.  Other columns sharing a <col> range keep theirs.
func (ws *Worksheet) SetColumnWidth(col int, width float64) error {
	if err := checkCol(col); err != nil {
		return err
	}
	if math.IsNaN(width) || width < 0 || width > MaxColumnWidth {
		return fmt.Errorf("worksheet: column width %v out of range [0, %d]", width, MaxColumnWidth)
	}
	el := ws.isolateCol(col)
	el.CreateAttr("width", formatPoints(width))
	el.CreateAttr("customWidth", "1")
	ws.changed = true
	return nil
}

// ColumnHidden reports whether column col is hidden.
func (ws *Worksheet) ColumnHidden(col int) bool {
	el := ws.colAt(col)
	return el != nil && xmltree.BoolAttr(el, "hidden")
}

// SetColumnHidden hides or shows column col.
func (ws *Worksheet) SetColumnHidden(col int, hidden bool) error {
	if err := checkCol(col); err != nil {
		return err
	}
	if !hidden {
		if ws.colAt(col) != nil {
			ws.isolateCol(col).RemoveAttr("hidden")
			ws.changed = true
		}
		return nil
	}
	ws.isolateCol(col).CreateAttr("hidden", "1")
	ws.changed = true
	return nil
}
