// Package workbook opens, edits and saves an .xlsx workbook package.
//
// A Workbook owns the package parts, the shared-string table, the style
// registry, the relationship graph and every worksheet.  Shared strings and
// styles are parsed when the workbook is opened; a worksheet is parsed the
// first time it is asked for.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/beevik/etree"
	"golang.org/x/text/cases"

	"github.com/TsubasaBE/go-xlsx/internal/xmltree"
	"github.com/TsubasaBE/go-xlsx/opc"
	"github.com/TsubasaBE/go-xlsx/rels"
	"github.com/TsubasaBE/go-xlsx/stringtable"
	"github.com/TsubasaBE/go-xlsx/styles"
	"github.com/TsubasaBE/go-xlsx/worksheet"
)

var (
	// ErrMissingRequiredPart is returned when the package lacks a part every
	// workbook needs: the content types, the package relationships, the
	// workbook part, or a part the workbook declares.
	ErrMissingRequiredPart = errors.New("workbook: missing required part")
	// ErrUnknownSheet is returned for a sheet name or index the workbook does
	// not hold.
	ErrUnknownSheet = errors.New("workbook: unknown sheet")
	// ErrDuplicateSheetName is returned when a name is already taken.  Names
	// compare case-insensitively.
	ErrDuplicateSheetName = errors.New("workbook: duplicate sheet name")
	// ErrInvalidSheetName is returned for a name spreadsheet applications
	// refuse: empty, longer than 31 characters, or containing one of
	// [ ] : * ? / \.
	ErrInvalidSheetName = errors.New("workbook: invalid sheet name")
	// ErrLastSheet is returned when an operation would leave the workbook
	// without a sheet, or without a visible one.
	ErrLastSheet = errors.New("workbook: a workbook needs at least one visible sheet")
)

// Visibility is the state of a sheet tab.
type Visibility int

const (
	// SheetVisible indicates the sheet tab is shown.
	SheetVisible Visibility = iota
	// SheetHidden indicates the sheet is hidden but can be unhidden by the
	// user.
	SheetHidden
	// SheetVeryHidden indicates the sheet is hidden and cannot be unhidden
	// through the application UI.
	SheetVeryHidden
)

var visibilityStates = [...]string{"visible", "hidden", "veryHidden"}

func (v Visibility) String() string {
	if v >= 0 && int(v) < len(visibilityStates) {
		return visibilityStates[v]
	}
	return fmt.Sprintf("Visibility(%d)", int(v))
}

func parseVisibility(state string) Visibility {
	for i, s := range visibilityStates {
		if s == state {
			return Visibility(i)
		}
	}
	return SheetVisible
}

// Options configures a Workbook.  The zero value is ready to use.
type Options struct {
	// Logger receives debug records on load, save and compaction.  Nil
	// discards them.
	Logger *slog.Logger
	// DefaultDateFormat is the number format given to date values written
	// without one.  Empty means "yyyy-mm-dd".
	DefaultDateFormat string
}

// Part names used for parts the library creates.
const (
	workbookPart      = "xl/workbook.xml"
	sharedStringsPart = "xl/sharedStrings.xml"
	stylesPart        = "xl/styles.xml"
)

// sheetEntry binds one <sheet> of the workbook part to its worksheet part.
type sheetEntry struct {
	name       string
	sheetID    int
	relID      string
	part       string // e.g. "xl/worksheets/sheet1.xml"
	visibility Visibility
	ws         *worksheet.Worksheet // nil until first access
}

// Workbook is an open .xlsx package.
type Workbook struct {
	store   *opc.Store
	graph   *rels.Graph
	types   *rels.ContentTypes
	strings *stringtable.Pool
	styles  *styles.Registry

	part        string // workbook part name
	root        *etree.Element
	sheets      []*sheetEntry
	date1904    bool
	changed     bool // workbook part needs rendering
	stringsPart string // "" when the package has no shared-strings part yet
	stylesPart  string

	opts Options
	log  *slog.Logger
	fold cases.Caser
}

func newWorkbook(store *opc.Store, opts Options) *Workbook {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Workbook{
		store: store,
		graph: rels.NewGraph(),
		opts:  opts,
		log:   log,
		fold:  cases.Fold(),
	}
}

// Open reads the named .xlsx file.
func Open(name string, opts Options) (*Workbook, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("workbook: open %q: %w", name, err)
	}
	return OpenBytes(data, opts)
}

// OpenReader reads an .xlsx package from r.  size must be the total byte
// size of the package.
func OpenReader(r io.ReaderAt, size int64, opts Options) (*Workbook, error) {
	data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, fmt.Errorf("workbook: open reader: %w", err)
	}
	return OpenBytes(data, opts)
}

// OpenBytes parses an .xlsx package held in memory.  On failure no
// Workbook is returned.
func OpenBytes(data []byte, opts Options) (*Workbook, error) {
	store, err := opc.Open(data)
	if err != nil {
		return nil, fmt.Errorf("workbook: %w", err)
	}
	wb := newWorkbook(store, opts)
	if err := wb.load(); err != nil {
		return nil, err
	}
	wb.log.Debug("workbook: opened",
		slog.Int("parts", store.Len()),
		slog.Int("sheets", len(wb.sheets)),
		slog.Int("sharedStrings", wb.strings.Len()),
		slog.Int("styles", wb.styles.Len()))
	return wb, nil
}

// New returns a workbook holding one empty sheet named "Sheet1".
func New(opts Options) (*Workbook, error) {
	wb := newWorkbook(opc.NewStore(), opts)
	wb.types = rels.NewContentTypes()
	wb.part = workbookPart
	wb.graph.AddRelationship("", rels.TypeOfficeDocument, wb.part)
	wb.types.RegisterContentType(wb.part, rels.ContentTypeWorkbook)

	wb.strings = stringtable.New()
	wb.styles = styles.New()
	wb.stylesPart = stylesPart
	wb.graph.AddRelationship(wb.part, rels.TypeStyles, wb.stylesPart)
	wb.types.RegisterContentType(wb.stylesPart, rels.ContentTypeStyles)

	doc := etree.NewDocument()
	root := doc.CreateElement("workbook")
	root.CreateAttr("xmlns", xmltree.NSSpreadsheetML)
	root.CreateAttr("xmlns:r", xmltree.NSRelationships)
	root.CreateElement("workbookPr")
	root.CreateElement("bookViews").CreateElement("workbookView").CreateAttr("activeTab", "0")
	root.CreateElement("sheets")
	wb.root = root
	wb.changed = true

	if _, err := wb.AddSheet("Sheet1"); err != nil {
		return nil, err
	}
	return wb, nil
}

// load runs the open sequence: content types, package relationships, the
// workbook part, every .rels part, then shared strings and styles.
func (wb *Workbook) load() error {
	doc, err := wb.tree(rels.ContentTypesPart)
	if err != nil {
		return err
	}
	if wb.types, err = rels.LoadContentTypes(doc); err != nil {
		return fmt.Errorf("workbook: %w: %w", opc.ErrMalformedXML, err)
	}

	if !wb.store.Has(rels.RelsPath("")) {
		return fmt.Errorf("%w: %s", ErrMissingRequiredPart, rels.RelsPath(""))
	}
	for _, name := range wb.store.Names() {
		owner, ok := rels.OwnerOf(name)
		if !ok {
			continue
		}
		doc, err := wb.tree(name)
		if err != nil {
			return err
		}
		if err := wb.graph.Load(owner, doc); err != nil {
			return fmt.Errorf("workbook: %w: %w", opc.ErrMalformedXML, err)
		}
	}

	docs := wb.graph.ByType("", rels.TypeOfficeDocument)
	if len(docs) == 0 {
		return fmt.Errorf("%w: no officeDocument relationship", ErrMissingRequiredPart)
	}
	wb.part = docs[0]
	if err := wb.loadWorkbookPart(); err != nil {
		return err
	}

	if wb.stringsPart, err = wb.auxPart(rels.TypeSharedStrings); err != nil {
		return err
	}
	if wb.stringsPart == "" {
		wb.strings = stringtable.New()
	} else {
		doc, err := wb.tree(wb.stringsPart)
		if err != nil {
			return err
		}
		if wb.strings, err = stringtable.FromTree(doc); err != nil {
			return fmt.Errorf("workbook: %w: %w", opc.ErrMalformedXML, err)
		}
	}

	if wb.stylesPart, err = wb.auxPart(rels.TypeStyles); err != nil {
		return err
	}
	if wb.stylesPart == "" {
		wb.styles = styles.New()
		wb.styles.MarkSaved()
	} else {
		doc, err := wb.tree(wb.stylesPart)
		if err != nil {
			return err
		}
		if wb.styles, err = styles.FromTree(doc); err != nil {
			return fmt.Errorf("workbook: %w: %w", opc.ErrMalformedXML, err)
		}
	}
	return nil
}

// tree returns the parsed document of a required part.
func (wb *Workbook) tree(name string) (*etree.Document, error) {
	p, ok := wb.store.Part(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequiredPart, name)
	}
	doc, err := p.Tree()
	if err != nil {
		return nil, fmt.Errorf("workbook: %w", err)
	}
	return doc, nil
}

// auxPart returns the workbook's part of relationship type typ, or "" when
// it declares none.
func (wb *Workbook) auxPart(typ string) (string, error) {
	parts := wb.graph.ByType(wb.part, typ)
	if len(parts) == 0 {
		return "", nil
	}
	if !wb.store.Has(parts[0]) {
		return "", fmt.Errorf("%w: %s", ErrMissingRequiredPart, parts[0])
	}
	return parts[0], nil
}

func (wb *Workbook) loadWorkbookPart() error {
	doc, err := wb.tree(wb.part)
	if err != nil {
		return err
	}
	root := doc.Root()
	if root.Tag != "workbook" {
		return fmt.Errorf("workbook: %w: %s: root element is not <workbook>", opc.ErrMalformedXML, wb.part)
	}
	wb.root = root.Copy()
	wb.date1904 = xmltree.BoolAttr(xmltree.Child(root, "workbookPr"), "date1904")

	for _, el := range xmltree.Children(xmltree.Child(root, "sheets"), "sheet") {
		e := &sheetEntry{
			name:       xmltree.Attr(el, "name"),
			sheetID:    xmltree.IntAttr(el, "sheetId", 0),
			relID:      xmltree.RelID(el),
			visibility: parseVisibility(xmltree.Attr(el, "state")),
		}
		target, err := wb.graph.Resolve(wb.part, e.relID)
		if err != nil {
			return fmt.Errorf("workbook: sheet %q: %w: %w", e.name, ErrMissingRequiredPart, err)
		}
		e.part = target
		wb.sheets = append(wb.sheets, e)
		wb.log.Debug("workbook: sheet bound", slog.String("sheet", e.name), slog.String("part", e.part))
	}
	return nil
}

// Date1904 reports whether the workbook uses the 1904 date system.
func (wb *Workbook) Date1904() bool { return wb.date1904 }

// Styles returns the workbook's style registry.  Register styles there and
// assign the returned ids to cells.
func (wb *Workbook) Styles() *styles.Registry { return wb.styles }

// SharedStrings returns the workbook's shared-string table.
func (wb *Workbook) SharedStrings() *stringtable.Pool { return wb.strings }

// Parts returns the names of every part in the package, in archive order.
// Parts created since the last save are not listed until it runs.
func (wb *Workbook) Parts() []string { return wb.store.Names() }

// DeletePart removes a part from the package without touching the
// relationships that point at it.  It exists for repair tools; a package
// left with dangling relationships fails to save.
func (wb *Workbook) DeletePart(name string) bool { return wb.store.Remove(name) }
