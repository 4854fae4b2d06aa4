package workbook

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/TsubasaBE/go-xlsx/internal/xmltree"
	"github.com/TsubasaBE/go-xlsx/opc"
	"github.com/TsubasaBE/go-xlsx/rels"
)

// Elements that may precede <sheets> in a workbook part.
var beforeSheets = []string{"fileVersion", "fileSharing", "workbookPr", "workbookProtection", "bookViews"}

// savePlan is everything a save writes, rendered without touching the
// workbook.  It is committed only once the archive has been produced.
type savePlan struct {
	graph       *rels.Graph
	types       *rels.ContentTypes
	stringsPart string
	stylesPart  string
	overrides   map[string][]byte
	refs        map[string][]string // part → relationship ids its XML uses
}

func (p *savePlan) put(name string, doc *etree.Document) error {
	b, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("workbook: serialize %s: %w", name, err)
	}
	p.overrides[name] = b
	p.refs[name] = xmltree.RelIDs(doc.Root())
	return nil
}

// plannedParts is the archive as it will be after the save.
type plannedParts struct {
	store     *opc.Store
	overrides map[string][]byte
}

func (pp plannedParts) Has(name string) bool {
	if pp.store.Has(name) {
		return true
	}
	for k := range pp.overrides {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// ensurePart gives the plan a part for typ when the workbook has none yet.
func (wb *Workbook) ensurePart(p *savePlan, part *string, name, typ, contentType string) {
	if *part != "" {
		return
	}
	*part = name
	p.graph.AddRelationship(wb.part, typ, name)
	p.types.RegisterContentType(name, contentType)
}

func (wb *Workbook) render() (*savePlan, error) {
	p := &savePlan{
		graph:       wb.graph.Clone(),
		types:       wb.types.Clone(),
		stringsPart: wb.stringsPart,
		stylesPart:  wb.stylesPart,
		overrides:   make(map[string][]byte),
		refs:        make(map[string][]string),
	}

	for _, e := range wb.sheets {
		if e.ws == nil || (!e.ws.Changed() && wb.store.Has(e.part)) {
			continue
		}
		if err := p.put(e.part, e.ws.Document()); err != nil {
			return nil, err
		}
	}

	if wb.strings.Changed() || (p.stringsPart != "" && !wb.store.Has(p.stringsPart)) {
		wb.ensurePart(p, &p.stringsPart, sharedStringsPart, rels.TypeSharedStrings, rels.ContentTypeSharedStrings)
		if err := p.put(p.stringsPart, wb.strings.Document()); err != nil {
			return nil, err
		}
	}
	if wb.styles.Changed() || (p.stylesPart != "" && !wb.store.Has(p.stylesPart)) {
		wb.ensurePart(p, &p.stylesPart, stylesPart, rels.TypeStyles, rels.ContentTypeStyles)
		if err := p.put(p.stylesPart, wb.styles.Document()); err != nil {
			return nil, err
		}
	}

	if wb.changed || !wb.store.Has(wb.part) {
		if err := p.put(wb.part, wb.document()); err != nil {
			return nil, err
		}
	}
	for _, owner := range p.graph.Dirty() {
		if err := p.put(rels.RelsPath(owner), p.graph.Document(owner)); err != nil {
			return nil, err
		}
	}
	if p.types.Dirty() {
		if err := p.put(rels.ContentTypesPart, p.types.Document()); err != nil {
			return nil, err
		}
	}

	if err := p.graph.Check(plannedParts{wb.store, p.overrides}, p.types, p.refs); err != nil {
		return nil, fmt.Errorf("workbook: save: %w", err)
	}
	return p, nil
}

// document renders the workbook part from the template and the sheet list.
func (wb *Workbook) document() *etree.Document {
	doc := xmltree.NewDocument()
	root := wb.root.Copy()
	doc.SetRoot(root)

	prefix := relPrefix(root)
	if wp := xmltree.Child(root, "workbookPr"); wp != nil && wb.date1904 {
		wp.CreateAttr("date1904", "1")
	}
	sheets := xmltree.Child(root, "sheets")
	if sheets == nil {
		sheets = etree.NewElement("sheets")
		sheets.Space = root.Space
		xmltree.InsertAfter(root, sheets, beforeSheets...)
	}
	for _, c := range sheets.ChildElements() {
		sheets.RemoveChild(c)
	}
	for _, e := range wb.sheets {
		el := sheets.CreateElement("sheet")
		el.Space = root.Space
		el.CreateAttr("name", e.name)
		el.CreateAttr("sheetId", strconv.Itoa(e.sheetID))
		if e.visibility != SheetVisible {
			el.CreateAttr("state", e.visibility.String())
		}
		el.CreateAttr(prefix+":id", e.relID)
	}
	return doc
}

// relPrefix returns the prefix root binds to the relationships namespace,
// declaring "r" when it binds none.
func relPrefix(root *etree.Element) string {
	for _, a := range root.Attr {
		if a.Space == "xmlns" && a.Value == xmltree.NSRelationships {
			return a.Key
		}
	}
	root.CreateAttr("xmlns:r", xmltree.NSRelationships)
	return "r"
}

func (wb *Workbook) commit(p *savePlan) {
	wb.graph, wb.types = p.graph, p.types
	wb.stringsPart, wb.stylesPart = p.stringsPart, p.stylesPart
	wb.graph.MarkSaved()
	wb.types.MarkSaved()
	wb.strings.MarkSaved()
	wb.styles.MarkSaved()
	for _, e := range wb.sheets {
		if e.ws != nil {
			e.ws.MarkSaved()
		}
	}
	wb.changed = false
}

// Save renders every changed part, checks the package's integrity and
// returns the new archive.  A failed save leaves the workbook unchanged.
// Parts the workbook never modified are copied byte-for-byte.
func (wb *Workbook) Save() ([]byte, error) {
	p, err := wb.render()
	if err != nil {
		return nil, err
	}
	out, err := wb.store.Save(p.overrides)
	if err != nil {
		return nil, fmt.Errorf("workbook: save: %w", err)
	}
	wb.commit(p)

	names := make([]string, 0, len(p.overrides))
	for name := range p.overrides {
		names = append(names, name)
	}
	wb.log.Debug("workbook: saved", slog.Any("rendered", names), slog.Int("bytes", len(out)))
	return out, nil
}

// SaveAs saves the workbook to the named file.  The archive is written to
// a temporary file in the same directory and renamed over name, so a
// failure never leaves a partial file behind.
func (wb *Workbook) SaveAs(name string) error {
	out, err := wb.Save()
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return fmt.Errorf("workbook: save %q: %w", name, err)
	}
	tmp := f.Name()
	if _, err := f.Write(out); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("workbook: save %q: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("workbook: save %q: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("workbook: save %q: %w", name, err)
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("workbook: save %q: %w", name, err)
	}
	return nil
}

// Compact drops shared strings no cell references and styles no cell, row
// or column uses, renumbering the survivors.  Every sheet is loaded first.
// Indices change only here; a workbook that is never compacted keeps every
// index it handed out.
func (wb *Workbook) Compact() error {
	sheets, err := wb.loadAll()
	if err != nil {
		return err
	}

	before := wb.strings.Len()
	remap := wb.strings.Compact()
	for _, ws := range sheets {
		ws.ApplyStringRemap(remap)
	}

	used := map[int]bool{0: true}
	for _, ws := range sheets {
		ws.UsedStyles(used)
	}
	stylesBefore := wb.styles.Len()
	styleRemap := wb.styles.Compact(used)
	for _, ws := range sheets {
		ws.ApplyStyleRemap(styleRemap)
	}

	wb.log.Debug("workbook: compacted",
		slog.Int("stringsRemoved", before-wb.strings.Len()),
		slog.Int("stylesRemoved", stylesBefore-wb.styles.Len()))
	return nil
}
