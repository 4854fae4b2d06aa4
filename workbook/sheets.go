package workbook

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/TsubasaBE/go-xlsx/internal/xmltree"
	"github.com/TsubasaBE/go-xlsx/rels"
	"github.com/TsubasaBE/go-xlsx/worksheet"
)

const maxSheetName = 31

// Sheets returns the sheet names in tab order.
func (wb *Workbook) Sheets() []string {
	names := make([]string, len(wb.sheets))
	for i, e := range wb.sheets {
		names[i] = e.name
	}
	return names
}

// SheetCount returns the number of sheets.
func (wb *Workbook) SheetCount() int { return len(wb.sheets) }

func (wb *Workbook) index(name string) int {
	key := wb.fold.String(name)
	for i, e := range wb.sheets {
		if wb.fold.String(e.name) == key {
			return i
		}
	}
	return -1
}

func (wb *Workbook) entry(name string) (*sheetEntry, error) {
	i := wb.index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSheet, name)
	}
	return wb.sheets[i], nil
}

// Sheet returns the worksheet with the given name (case-insensitive),
// parsing it on first access.
func (wb *Workbook) Sheet(name string) (*worksheet.Worksheet, error) {
	e, err := wb.entry(name)
	if err != nil {
		return nil, err
	}
	return wb.bind(e)
}

// SheetAt returns the worksheet at the given 1-based tab position.
func (wb *Workbook) SheetAt(idx int) (*worksheet.Worksheet, error) {
	if idx < 1 || idx > len(wb.sheets) {
		return nil, fmt.Errorf("%w: index %d out of range [1, %d]", ErrUnknownSheet, idx, len(wb.sheets))
	}
	return wb.bind(wb.sheets[idx-1])
}

func (wb *Workbook) config() worksheet.Config {
	return worksheet.Config{Date1904: wb.date1904, DefaultDateFormat: wb.opts.DefaultDateFormat}
}

func (wb *Workbook) bind(e *sheetEntry) (*worksheet.Worksheet, error) {
	if e.ws != nil {
		return e.ws, nil
	}
	doc, err := wb.tree(e.part)
	if err != nil {
		return nil, fmt.Errorf("workbook: open sheet %q: %w", e.name, err)
	}
	ws, err := worksheet.Load(e.name, doc, wb.strings, wb.styles, wb.config())
	if err != nil {
		return nil, fmt.Errorf("workbook: open sheet %q: %w", e.name, err)
	}
	e.ws = ws
	wb.log.Debug("workbook: sheet loaded", slog.String("sheet", e.name), slog.Int("cells", ws.Len()))
	return ws, nil
}

// loadAll binds every sheet.
func (wb *Workbook) loadAll() ([]*worksheet.Worksheet, error) {
	out := make([]*worksheet.Worksheet, 0, len(wb.sheets))
	for _, e := range wb.sheets {
		ws, err := wb.bind(e)
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, nil
}

func validSheetName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidSheetName)
	case utf8.RuneCountInString(name) > maxSheetName:
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidSheetName, name, maxSheetName)
	case strings.ContainsAny(name, `[]:*?/\`):
		return fmt.Errorf("%w: %q contains one of [ ] : * ? / \\", ErrInvalidSheetName, name)
	case strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'"):
		return fmt.Errorf("%w: %q begins or ends with an apostrophe", ErrInvalidSheetName, name)
	}
	return nil
}

// AddSheet appends an empty sheet.
func (wb *Workbook) AddSheet(name string) (*worksheet.Worksheet, error) {
	if err := validSheetName(name); err != nil {
		return nil, err
	}
	if wb.index(name) >= 0 {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateSheetName, name)
	}

	part := wb.nextSheetPart()
	e := &sheetEntry{
		name:    name,
		sheetID: 1,
		part:    part,
		ws:      worksheet.New(name, wb.strings, wb.styles, wb.config()),
	}
	for _, o := range wb.sheets {
		e.sheetID = max(e.sheetID, o.sheetID+1)
	}
	e.relID = wb.graph.AddRelationship(wb.part, rels.TypeWorksheet, part)
	wb.types.RegisterContentType(part, rels.ContentTypeWorksheet)
	wb.sheets = append(wb.sheets, e)
	wb.changed = true
	wb.log.Debug("workbook: sheet added", slog.String("sheet", name), slog.String("part", part))
	return e.ws, nil
}

func (wb *Workbook) nextSheetPart() string {
	taken := make(map[string]bool, len(wb.sheets))
	for _, e := range wb.sheets {
		taken[strings.ToLower(e.part)] = true
	}
	for n := 1; ; n++ {
		name := "xl/worksheets/sheet" + strconv.Itoa(n) + ".xml"
		if !taken[name] && !wb.store.Has(name) {
			return name
		}
	}
}

// RemoveSheet deletes a sheet, its part and its relationships.  Cells of
// the sheet release their shared strings; the strings stay in the table
// until Compact.
func (wb *Workbook) RemoveSheet(name string) error {
	i := wb.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownSheet, name)
	}
	if len(wb.sheets) == 1 {
		return fmt.Errorf("%w: cannot remove %q", ErrLastSheet, name)
	}
	e := wb.sheets[i]
	if e.visibility == SheetVisible && wb.visibleCount() == 1 {
		return fmt.Errorf("%w: %q is the only visible sheet", ErrLastSheet, name)
	}

	if e.ws != nil {
		e.ws.ReleaseStrings()
	}
	wb.graph.Remove(wb.part, e.relID)
	wb.graph.RemoveOwner(e.part)
	wb.store.Remove(e.part)
	wb.store.Remove(rels.RelsPath(e.part))
	wb.types.Unregister(e.part)
	wb.sheets = append(wb.sheets[:i], wb.sheets[i+1:]...)
	wb.shiftSheetRefs(i)
	wb.changed = true
	wb.log.Debug("workbook: sheet removed", slog.String("sheet", e.name))
	return nil
}

// shiftSheetRefs fixes the workbook-level attributes that hold sheet
// positions after the sheet at position removed was deleted.
func (wb *Workbook) shiftSheetRefs(removed int) {
	shift := func(v int) int {
		if v > removed || v >= len(wb.sheets) {
			return max(v-1, 0)
		}
		return v
	}
	if names := xmltree.Child(wb.root, "definedNames"); names != nil {
		for _, dn := range xmltree.Children(names, "definedName") {
			if !xmltree.HasAttr(dn, "localSheetId") {
				continue
			}
			id := xmltree.IntAttr(dn, "localSheetId", 0)
			if id == removed {
				names.RemoveChild(dn)
				continue
			}
			dn.CreateAttr("localSheetId", strconv.Itoa(shift(id)))
		}
		if len(names.ChildElements()) == 0 {
			wb.root.RemoveChild(names)
		}
	}
	for _, view := range xmltree.Children(xmltree.Child(wb.root, "bookViews"), "workbookView") {
		for _, key := range []string{"activeTab", "firstSheet"} {
			if xmltree.HasAttr(view, key) {
				view.CreateAttr(key, strconv.Itoa(shift(xmltree.IntAttr(view, key, 0))))
			}
		}
	}
}

// RenameSheet changes a sheet's name.  Formulas that mention the old name
// are not rewritten.
func (wb *Workbook) RenameSheet(oldName, newName string) error {
	i := wb.index(oldName)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownSheet, oldName)
	}
	if err := validSheetName(newName); err != nil {
		return err
	}
	if j := wb.index(newName); j >= 0 && j != i {
		return fmt.Errorf("%w: %q", ErrDuplicateSheetName, newName)
	}
	e := wb.sheets[i]
	e.name = newName
	if e.ws != nil {
		e.ws.SetName(newName)
	}
	wb.changed = true
	return nil
}

func (wb *Workbook) visibleCount() int {
	n := 0
	for _, e := range wb.sheets {
		if e.visibility == SheetVisible {
			n++
		}
	}
	return n
}

// SheetVisibility returns the visibility of the named sheet.
func (wb *Workbook) SheetVisibility(name string) (Visibility, error) {
	e, err := wb.entry(name)
	if err != nil {
		return 0, err
	}
	return e.visibility, nil
}

// SetSheetVisibility shows or hides a sheet.  At least one sheet must stay
// visible.
func (wb *Workbook) SetSheetVisibility(name string, v Visibility) error {
	if v < SheetVisible || v > SheetVeryHidden {
		return fmt.Errorf("workbook: invalid visibility %d", int(v))
	}
	e, err := wb.entry(name)
	if err != nil {
		return err
	}
	if e.visibility == v {
		return nil
	}
	if e.visibility == SheetVisible && wb.visibleCount() == 1 {
		return fmt.Errorf("%w: cannot hide %q", ErrLastSheet, name)
	}
	e.visibility = v
	wb.changed = true
	return nil
}
