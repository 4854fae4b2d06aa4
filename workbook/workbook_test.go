package workbook_test

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/TsubasaBE/go-xlsx/cellref"
	"github.com/TsubasaBE/go-xlsx/opc"
	"github.com/TsubasaBE/go-xlsx/rels"
	"github.com/TsubasaBE/go-xlsx/styles"
	"github.com/TsubasaBE/go-xlsx/workbook"
	"github.com/TsubasaBE/go-xlsx/worksheet"
)

func openFixture(t *testing.T) *workbook.Workbook {
	t.Helper()
	wb, err := workbook.OpenBytes(buildPackage(t, fixtureParts()), workbook.Options{})
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	return wb
}

func reopen(t *testing.T, data []byte) *workbook.Workbook {
	t.Helper()
	wb, err := workbook.OpenBytes(data, workbook.Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	return wb
}

func sheet(t *testing.T, wb *workbook.Workbook, name string) *worksheet.Worksheet {
	t.Helper()
	ws, err := wb.Sheet(name)
	if err != nil {
		t.Fatalf("Sheet(%q): %v", name, err)
	}
	return ws
}

func value(t *testing.T, ws *worksheet.Worksheet, addr string) worksheet.Value {
	t.Helper()
	v, err := ws.ValueAt(addr)
	if err != nil {
		t.Fatalf("ValueAt(%s): %v", addr, err)
	}
	return v
}

func TestOpen(t *testing.T) {
	wb := openFixture(t)
	if diff := cmp.Diff([]string{"Data", "Notes"}, wb.Sheets()); diff != "" {
		t.Errorf("Sheets (-want +got):\n%s", diff)
	}
	if wb.Date1904() {
		t.Error("Date1904 = true")
	}
	ws := sheet(t, wb, "data")
	if ws.Name() != "Data" {
		t.Errorf("case-insensitive lookup returned %q", ws.Name())
	}
	if v := value(t, ws, "A1"); !v.Equal(worksheet.Text("Total")) {
		t.Errorf("A1 = %v", v)
	}
	if _, err := wb.Sheet("Missing"); !errors.Is(err, workbook.ErrUnknownSheet) {
		t.Errorf("Sheet(Missing) error = %v", err)
	}
	if _, err := wb.SheetAt(3); !errors.Is(err, workbook.ErrUnknownSheet) {
		t.Errorf("SheetAt(3) error = %v", err)
	}
	if ws2, err := wb.SheetAt(2); err != nil || ws2.Name() != "Notes" {
		t.Errorf("SheetAt(2) = %v, %v", ws2, err)
	}
}

func TestOpenFailures(t *testing.T) {
	tests := []struct {
		name  string
		parts [][2]string
		want  error
	}{
		{"no content types", without("[Content_Types].xml", ""), workbook.ErrMissingRequiredPart},
		{"no package rels", without("_rels/.rels", ""), workbook.ErrMissingRequiredPart},
		{"no workbook part", without("xl/workbook.xml", ""), workbook.ErrMissingRequiredPart},
		{"no styles part", without("xl/styles.xml", ""), workbook.ErrMissingRequiredPart},
		{"malformed workbook", without("xl/workbook.xml", "<workbook><sheets>"), opc.ErrMalformedXML},
		{"malformed rels", without("xl/_rels/workbook.xml.rels", "<Relationships"), opc.ErrMalformedXML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb, err := workbook.OpenBytes(buildPackage(t, tt.parts), workbook.Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if wb != nil {
				t.Error("failed open returned a workbook")
			}
		})
	}
	if _, err := workbook.OpenBytes([]byte("not a zip"), workbook.Options{}); !errors.Is(err, opc.ErrCorruptArchive) {
		t.Errorf("garbage error = %v", err)
	}
}

func TestRoundTripUnchanged(t *testing.T) {
	src := buildPackage(t, fixtureParts())
	wb, err := workbook.OpenBytes(src, workbook.Options{})
	if err != nil {
		t.Fatal(err)
	}
	// Reading a sheet does not make it dirty.
	sheet(t, wb, "Data")
	out, err := wb.Save()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(readPackage(t, src), readPackage(t, out)); diff != "" {
		t.Errorf("untouched package changed (-want +got):\n%s", diff)
	}
}

// The workbook from the scenario: A1 holds the shared string "Total", B1
// holds 42.5 in bold.  Writing "Total" to C1 reuses the entry.
func TestSharedStringScenario(t *testing.T) {
	wb := openFixture(t)
	ws := sheet(t, wb, "Data")
	if err := ws.SetValueAt("C1", worksheet.Text("Total")); err != nil {
		t.Fatal(err)
	}
	out, err := wb.Save()
	if err != nil {
		t.Fatal(err)
	}

	wb = reopen(t, out)
	ws = sheet(t, wb, "Data")
	pool := wb.SharedStrings()
	n := 0
	for i := range pool.Len() {
		if s, _ := pool.Get(i); s == "Total" {
			n++
			if pool.Refs(i) != 2 {
				t.Errorf("Total referenced %d times, want 2", pool.Refs(i))
			}
		}
	}
	if n != 1 {
		t.Errorf("%d entries hold Total, want 1", n)
	}
	for _, addr := range []string{"A1", "C1"} {
		if v := value(t, ws, addr); !v.Equal(worksheet.Text("Total")) {
			t.Errorf("%s = %v", addr, v)
		}
	}
	if v := value(t, ws, "B1"); !v.Equal(worksheet.Number(42.5)) {
		t.Errorf("B1 = %v", v)
	}
	c, _ := ws.CellAt(cellref.MustParse("B1"))
	st, err := wb.Styles().Resolve(c.Style)
	if err != nil || !st.Font.Bold {
		t.Errorf("B1 style = %+v, %v", st, err)
	}
}

func TestIntegrityFailureKeepsPriorSave(t *testing.T) {
	wb := openFixture(t)
	ws := sheet(t, wb, "Data")
	if err := ws.SetValueAt("A2", worksheet.Number(1)); err != nil {
		t.Fatal(err)
	}
	prior, err := wb.Save()
	if err != nil {
		t.Fatal(err)
	}
	snapshot := bytes.Clone(prior)

	if !wb.DeletePart("xl/worksheets/sheet2.xml") {
		t.Fatal("DeletePart = false")
	}
	if err := ws.SetValueAt("A3", worksheet.Number(2)); err != nil {
		t.Fatal(err)
	}
	_, err = wb.Save()
	if !errors.Is(err, rels.ErrIntegrity) || !errors.Is(err, rels.ErrDanglingRelationship) {
		t.Fatalf("Save error = %v, want integrity failure", err)
	}
	if !bytes.Equal(prior, snapshot) {
		t.Error("failed save modified the prior archive")
	}
	if !ws.Changed() {
		t.Error("failed save marked the sheet saved")
	}
}

func TestAddRemoveRenameSheet(t *testing.T) {
	wb := openFixture(t)
	if _, err := wb.AddSheet("DATA"); !errors.Is(err, workbook.ErrDuplicateSheetName) {
		t.Errorf("AddSheet(DATA) error = %v", err)
	}
	for _, name := range []string{"", "a/b", "x[1]", "'quoted'", strings.Repeat("n", 32)} {
		if _, err := wb.AddSheet(name); !errors.Is(err, workbook.ErrInvalidSheetName) {
			t.Errorf("AddSheet(%q) error = %v", name, err)
		}
	}

	ws, err := wb.AddSheet("Summary")
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.SetValueAt("A1", worksheet.Text("note")); err != nil {
		t.Fatal(err)
	}
	if err := wb.RenameSheet("notes", "Comments"); err != nil {
		t.Fatal(err)
	}
	if err := wb.RenameSheet("Comments", "summary"); !errors.Is(err, workbook.ErrDuplicateSheetName) {
		t.Errorf("rename onto existing name error = %v", err)
	}
	if err := wb.RemoveSheet("Data"); err != nil {
		t.Fatal(err)
	}
	out, err := wb.Save()
	if err != nil {
		t.Fatal(err)
	}

	parts := readPackage(t, out)
	if _, ok := parts["xl/worksheets/sheet1.xml"]; ok {
		t.Error("removed sheet part still in archive")
	}
	if _, ok := parts["xl/worksheets/sheet3.xml"]; !ok {
		t.Error("new sheet part missing")
	}
	wbXML := string(parts["xl/workbook.xml"])
	for _, want := range []string{`localSheetId="0"`, `activeTab="0"`, `name="Comments"`} {
		if !strings.Contains(wbXML, want) {
			t.Errorf("workbook part missing %s:\n%s", want, wbXML)
		}
	}
	if strings.Contains(string(parts["[Content_Types].xml"]), "sheet1.xml") {
		t.Error("content types still list the removed sheet")
	}

	wb = reopen(t, out)
	if diff := cmp.Diff([]string{"Comments", "Summary"}, wb.Sheets()); diff != "" {
		t.Errorf("Sheets (-want +got):\n%s", diff)
	}
	if v := value(t, sheet(t, wb, "Summary"), "A1"); !v.Equal(worksheet.Text("note")) {
		t.Errorf("Summary!A1 = %v", v)
	}
	if err := wb.RemoveSheet("Comments"); err != nil {
		t.Fatal(err)
	}
	if err := wb.RemoveSheet("Summary"); !errors.Is(err, workbook.ErrLastSheet) {
		t.Errorf("removing last sheet error = %v", err)
	}
}

func TestSheetVisibility(t *testing.T) {
	wb := openFixture(t)
	if err := wb.SetSheetVisibility("Notes", workbook.SheetVeryHidden); err != nil {
		t.Fatal(err)
	}
	if err := wb.SetSheetVisibility("Data", workbook.SheetHidden); !errors.Is(err, workbook.ErrLastSheet) {
		t.Errorf("hiding the last visible sheet error = %v", err)
	}
	out, err := wb.Save()
	if err != nil {
		t.Fatal(err)
	}
	wb = reopen(t, out)
	if v, err := wb.SheetVisibility("Notes"); err != nil || v != workbook.SheetVeryHidden {
		t.Errorf("Notes visibility = %v, %v", v, err)
	}
	if _, err := wb.SheetVisibility("Nope"); !errors.Is(err, workbook.ErrUnknownSheet) {
		t.Errorf("unknown sheet error = %v", err)
	}
}

func TestNew(t *testing.T) {
	wb, err := workbook.New(workbook.Options{DefaultDateFormat: "dd/mm/yyyy"})
	if err != nil {
		t.Fatal(err)
	}
	ws := sheet(t, wb, "sheet1")
	if err := ws.SetValueAt("A1", worksheet.Text("hello")); err != nil {
		t.Fatal(err)
	}
	if err := ws.SetValueAt("B2", worksheet.Number(3)); err != nil {
		t.Fatal(err)
	}
	if err := ws.SetTime(cellref.MustParse("C3"), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ""); err != nil {
		t.Fatal(err)
	}
	bold, err := wb.Styles().Add(styles.Style{Font: styles.Font{Name: "Calibri", Size: 11, Bold: true}})
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.SetStyle(cellref.MustParse("B2"), bold); err != nil {
		t.Fatal(err)
	}
	out, err := wb.Save()
	if err != nil {
		t.Fatal(err)
	}

	parts := readPackage(t, out)
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "xl/workbook.xml",
		"xl/_rels/workbook.xml.rels", "xl/worksheets/sheet1.xml", "xl/sharedStrings.xml", "xl/styles.xml"} {
		if _, ok := parts[name]; !ok {
			t.Errorf("new package lacks %s", name)
		}
	}

	wb = reopen(t, out)
	ws = sheet(t, wb, "Sheet1")
	if v := value(t, ws, "A1"); !v.Equal(worksheet.Text("hello")) {
		t.Errorf("A1 = %v", v)
	}
	c, _ := ws.CellAt(cellref.MustParse("B2"))
	if st, _ := wb.Styles().Resolve(c.Style); !c.Value.Equal(worksheet.Number(3)) || !st.Font.Bold {
		t.Errorf("B2 = %v style %+v", c.Value, st)
	}
	if got := ws.FormattedValue(cellref.MustParse("C3")); got != "15/01/2024" {
		t.Errorf("C3 formatted = %q", got)
	}
	if v := value(t, ws, "C3"); v.Kind() != worksheet.KindDate {
		t.Errorf("C3 kind = %s", v.Kind())
	}
}

func TestCompact(t *testing.T) {
	wb := openFixture(t)
	ws := sheet(t, wb, "Data")
	if err := ws.SetValueAt("A1", worksheet.Text("Other")); err != nil {
		t.Fatal(err)
	}
	if wb.SharedStrings().Len() != 3 {
		t.Fatalf("pool len before compaction = %d", wb.SharedStrings().Len())
	}
	if err := wb.Compact(); err != nil {
		t.Fatal(err)
	}
	if wb.SharedStrings().Len() != 2 {
		t.Errorf("pool len after compaction = %d, want 2", wb.SharedStrings().Len())
	}
	out, err := wb.Save()
	if err != nil {
		t.Fatal(err)
	}
	wb = reopen(t, out)
	if v := value(t, sheet(t, wb, "Data"), "A1"); !v.Equal(worksheet.Text("Other")) {
		t.Errorf("Data!A1 = %v", v)
	}
	if v := value(t, sheet(t, wb, "Notes"), "A1"); !v.Equal(worksheet.Text("note")) {
		t.Errorf("Notes!A1 = %v", v)
	}
	c, _ := sheet(t, wb, "Data").CellAt(cellref.MustParse("B1"))
	if st, _ := wb.Styles().Resolve(c.Style); !st.Font.Bold {
		t.Error("bold style lost in compaction")
	}
}

func TestSaveAs(t *testing.T) {
	wb := openFixture(t)
	name := filepath.Join(t.TempDir(), "out.xlsx")
	if err := wb.SaveAs(name); err != nil {
		t.Fatal(err)
	}
	back, err := workbook.Open(name, workbook.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wb.Sheets(), back.Sheets()); diff != "" {
		t.Errorf("Sheets (-want +got):\n%s", diff)
	}
	entries, _ := os.ReadDir(filepath.Dir(name))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	wb, err := workbook.OpenBytes(buildPackage(t, fixtureParts()), workbook.Options{Logger: log})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wb.Save(); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"workbook: opened", "sheets=2", "workbook: saved"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log lacks %q:\n%s", want, buf.String())
		}
	}
}
