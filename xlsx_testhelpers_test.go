package xlsx_test

import (
	"archive/zip"
	"bytes"
	"strconv"
	"strings"
	"testing"
)

// zipAddFile writes data as a new entry named name into zw.
// It calls t.Fatalf on any error.
func zipAddFile(t *testing.T, zw *zip.Writer, name string, data []byte) {
	t.Helper()
	f, err := zw.Create(name)
	if err != nil {
		t.Fatalf("zip create %s: %v", name, err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("zip write %s: %v", name, err)
	}
}

const xmlDecl = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// sheetFixture describes one worksheet of a fixture package: its name and
// the raw <sheetData> children.
type sheetFixture struct {
	name string
	rows string
}

// buildWorkbook assembles a complete package from sheets, a shared-string
// list and the <cellXfs> font ids (font 1 is bold).
func buildWorkbook(t *testing.T, sheets []sheetFixture, sst []string, xfFonts []int) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	var ct, wbRels, wbSheets strings.Builder
	ct.WriteString(xmlDecl + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>` +
		`<Override PartName="/xl/sharedStrings.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"/>` +
		`<Override PartName="/xl/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"/>`)
	wbRels.WriteString(xmlDecl + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i, s := range sheets {
		n := strconv.Itoa(i + 1)
		ct.WriteString(`<Override PartName="/xl/worksheets/sheet` + n + `.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>`)
		wbRels.WriteString(`<Relationship Id="rId` + n + `" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet` + n + `.xml"/>`)
		wbSheets.WriteString(`<sheet name="` + s.name + `" sheetId="` + n + `" r:id="rId` + n + `"/>`)
	}
	ct.WriteString(`</Types>`)
	k := strconv.Itoa(len(sheets) + 1)
	wbRels.WriteString(`<Relationship Id="rId` + k + `" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings" Target="sharedStrings.xml"/>`)
	k = strconv.Itoa(len(sheets) + 2)
	wbRels.WriteString(`<Relationship Id="rId` + k + `" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>`)
	wbRels.WriteString(`</Relationships>`)

	zipAddFile(t, zw, "[Content_Types].xml", []byte(ct.String()))
	zipAddFile(t, zw, "_rels/.rels", []byte(xmlDecl+`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/></Relationships>`))
	zipAddFile(t, zw, "xl/workbook.xml", []byte(xmlDecl+`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">`+
		`<workbookPr/><sheets>`+wbSheets.String()+`</sheets></workbook>`))
	zipAddFile(t, zw, "xl/_rels/workbook.xml.rels", []byte(wbRels.String()))
	for i, s := range sheets {
		zipAddFile(t, zw, "xl/worksheets/sheet"+strconv.Itoa(i+1)+".xml", []byte(xmlDecl+
			`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`+s.rows+`</sheetData></worksheet>`))
	}

	var sb strings.Builder
	sb.WriteString(xmlDecl + `<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">`)
	for _, s := range sst {
		sb.WriteString(`<si><t>` + s + `</t></si>`)
	}
	sb.WriteString(`</sst>`)
	zipAddFile(t, zw, "xl/sharedStrings.xml", []byte(sb.String()))

	var xfs strings.Builder
	for _, f := range xfFonts {
		xfs.WriteString(`<xf numFmtId="0" fontId="` + strconv.Itoa(f) + `" fillId="0" borderId="0" xfId="0"/>`)
	}
	zipAddFile(t, zw, "xl/styles.xml", []byte(xmlDecl+`<styleSheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">`+
		`<fonts count="2"><font><sz val="11"/><name val="Calibri"/></font><font><b/><sz val="11"/><name val="Calibri"/></font></fonts>`+
		`<fills count="2"><fill><patternFill patternType="none"/></fill><fill><patternFill patternType="gray125"/></fill></fills>`+
		`<borders count="1"><border><left/><right/><top/><bottom/><diagonal/></border></borders>`+
		`<cellStyleXfs count="1"><xf numFmtId="0" fontId="0" fillId="0" borderId="0"/></cellStyleXfs>`+
		`<cellXfs>`+xfs.String()+`</cellXfs></styleSheet>`))

	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
