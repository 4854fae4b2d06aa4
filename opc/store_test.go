package opc_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/TsubasaBE/go-xlsx/opc"
)

// buildZip assembles an in-memory archive from name/content pairs, in order.
func buildZip(t *testing.T, entries ...string) []byte {
	t.Helper()
	if len(entries)%2 != 0 {
		t.Fatal("buildZip needs name/content pairs")
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i := 0; i < len(entries); i += 2 {
		f, err := zw.Create(entries[i])
		if err != nil {
			t.Fatalf("zip create %s: %v", entries[i], err)
		}
		if _, err := f.Write([]byte(entries[i+1])); err != nil {
			t.Fatalf("zip write %s: %v", entries[i], err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// rawEntries returns every entry's compressed bytes keyed by name.
func rawEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	out := make(map[string][]byte)
	for _, f := range zr.File {
		r, err := f.OpenRaw()
		if err != nil {
			t.Fatalf("open raw %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read raw %s: %v", f.Name, err)
		}
		out[f.Name] = b
	}
	return out
}

func TestOpenCorrupt(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not a zip"), []byte("PK\x03\x04garbage")} {
		if _, err := opc.Open(data); !errors.Is(err, opc.ErrCorruptArchive) {
			t.Errorf("Open(%q) error = %v, want ErrCorruptArchive", data, err)
		}
	}
}

func TestPartAbsent(t *testing.T) {
	s, err := opc.Open(buildZip(t, "a.xml", "<a/>"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Part("missing.xml"); ok {
		t.Error("Part(missing.xml) reported present")
	}
	if p, ok := s.Part("/A.XML"); !ok || p.Name() != "a.xml" {
		t.Error("lookup should ignore case and a leading slash")
	}
}

func TestLazyMaterialization(t *testing.T) {
	s, err := opc.Open(buildZip(t, "xl/workbook.xml", `<workbook><sheets/></workbook>`))
	if err != nil {
		t.Fatal(err)
	}
	p, _ := s.Part("xl/workbook.xml")
	if p.State() != opc.Raw {
		t.Fatalf("state before Tree = %v, want raw", p.State())
	}
	doc, err := p.Tree()
	if err != nil {
		t.Fatal(err)
	}
	if p.State() != opc.Materialized || p.Dirty() {
		t.Fatalf("after Tree: state=%v dirty=%v", p.State(), p.Dirty())
	}
	if doc.Root().Tag != "workbook" {
		t.Errorf("root = %q", doc.Root().Tag)
	}
	// A parsed but unmodified part still yields its original bytes.
	b, _ := p.Bytes()
	if string(b) != `<workbook><sheets/></workbook>` {
		t.Errorf("clean materialized bytes = %q", b)
	}
	doc.Root().CreateAttr("x", "1")
	p.MarkDirty()
	b, _ = p.Bytes()
	if !strings.Contains(string(b), `x="1"`) {
		t.Errorf("dirty bytes missing mutation: %q", b)
	}
}

func TestMalformedAndBinaryParts(t *testing.T) {
	s, err := opc.Open(buildZip(t,
		"bad.xml", "<a><b></a>",
		"xl/media/image1.png", "\x89PNG\r\n",
	))
	if err != nil {
		t.Fatal(err)
	}
	bad, _ := s.Part("bad.xml")
	if _, err := bad.Tree(); !errors.Is(err, opc.ErrMalformedXML) {
		t.Errorf("Tree(bad.xml) error = %v, want ErrMalformedXML", err)
	}
	img, _ := s.Part("xl/media/image1.png")
	if _, err := img.Tree(); !errors.Is(err, opc.ErrNotXML) {
		t.Errorf("Tree(png) error = %v, want ErrNotXML", err)
	}
}

func TestSavePassThrough(t *testing.T) {
	src := buildZip(t,
		"keep.xml", `<keep attr="1"/>`,
		"edit.xml", `<edit/>`,
		"xl/media/image1.png", "\x89PNG-binary",
	)
	s, err := opc.Open(src)
	if err != nil {
		t.Fatal(err)
	}
	// Parsing without mutating must not change the output either.
	keep, _ := s.Part("keep.xml")
	if _, err := keep.Tree(); err != nil {
		t.Fatal(err)
	}
	edit, _ := s.Part("edit.xml")
	doc, _ := edit.Tree()
	doc.Root().CreateElement("child")
	if !s.SetDirty("edit.xml") {
		t.Fatal("SetDirty(edit.xml) = false")
	}
	if got := s.DirtyNames(); len(got) != 1 || got[0] != "edit.xml" {
		t.Fatalf("DirtyNames = %v", got)
	}

	out, err := s.Save(map[string][]byte{"new.xml": []byte("<new/>")})
	if err != nil {
		t.Fatal(err)
	}
	before, after := rawEntries(t, src), rawEntries(t, out)
	for _, name := range []string{"keep.xml", "xl/media/image1.png"} {
		if !bytes.Equal(before[name], after[name]) {
			t.Errorf("%s not preserved byte-for-byte", name)
		}
	}
	if _, ok := after["new.xml"]; !ok {
		t.Error("override part new.xml missing from archive")
	}

	re, err := opc.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := re.Part("edit.xml")
	b, _ := p.Bytes()
	if !strings.Contains(string(b), "<child/>") {
		t.Errorf("edit.xml = %q", b)
	}
	// After a successful save the store holds clean parts again.
	if len(s.DirtyNames()) != 0 {
		t.Errorf("DirtyNames after save = %v", s.DirtyNames())
	}
	if !s.Has("new.xml") {
		t.Error("override part not committed to the store")
	}
}

func TestRemoveAndOrder(t *testing.T) {
	s := opc.NewStore()
	s.PutBytes("b.bin", []byte{1})
	s.PutBytes("a.bin", []byte{2})
	if !s.Remove("B.BIN") || s.Remove("b.bin") {
		t.Fatal("Remove should succeed exactly once")
	}
	if got := s.Names(); len(got) != 1 || got[0] != "a.bin" {
		t.Errorf("Names = %v", got)
	}
	if s.SetDirty("a.bin") {
		t.Error("SetDirty on a raw part should report false")
	}
}

func TestSaveOrdersNewParts(t *testing.T) {
	s, err := opc.Open(buildZip(t, "z.xml", "<z/>", "a.xml", "<a/>"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := s.Save(map[string][]byte{
		"m.xml": []byte("<m/>"),
		"c.xml": []byte("<c/>"),
		"b.xml": []byte("<b/>"),
	})
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, f := range zr.File {
		got = append(got, f.Name)
	}
	want := []string{"z.xml", "a.xml", "b.xml", "c.xml", "m.xml"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("archive order = %v, want %v", got, want)
	}
}
