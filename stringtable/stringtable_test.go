package stringtable_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/beevik/etree"

	"github.com/TsubasaBE/go-xlsx/stringtable"
)

func parse(t *testing.T, s string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestInternDeduplicates(t *testing.T) {
	p := stringtable.New()
	words := []string{"Total", "Net", "Total", "", "Net", "Total", " padded "}
	seen := make(map[string]int)
	for _, w := range words {
		idx := p.Intern(w)
		if prev, ok := seen[w]; ok && prev != idx {
			t.Fatalf("Intern(%q) = %d, earlier %d", w, idx, prev)
		}
		seen[w] = idx
		got, err := p.Get(idx)
		if err != nil || got != w {
			t.Fatalf("Get(Intern(%q)) = %q, %v", w, got, err)
		}
	}
	if p.Len() != 4 {
		t.Errorf("Len = %d, want 4", p.Len())
	}
	if p.Refs(seen["Total"]) != 3 {
		t.Errorf("Refs(Total) = %d, want 3", p.Refs(seen["Total"]))
	}
	if !p.Changed() {
		t.Error("pool with new entries should report Changed")
	}
}

func TestGetInvalid(t *testing.T) {
	p := stringtable.New()
	p.Intern("a")
	for _, idx := range []int{-1, 1, 99} {
		if _, err := p.Get(idx); !errors.Is(err, stringtable.ErrInvalidStringIndex) {
			t.Errorf("Get(%d) error = %v", idx, err)
		}
		if err := p.Retain(idx); !errors.Is(err, stringtable.ErrInvalidStringIndex) {
			t.Errorf("Retain(%d) error = %v", idx, err)
		}
	}
}

func TestReleaseKeepsIndexUntilCompact(t *testing.T) {
	p := stringtable.New()
	a := p.Intern("a")
	b := p.Intern("b")
	c := p.Intern("c")
	p.Release(b)
	if got, _ := p.Get(b); got != "b" {
		t.Fatalf("released entry vanished before Compact: %q", got)
	}
	// Re-interning a zero-reference entry revives the same index.
	if p.Intern("b") != b {
		t.Fatal("re-intern did not reuse the index")
	}
	p.Release(b)
	p.Release(b) // extra release is ignored

	remap := p.Compact()
	if _, ok := remap[b]; ok {
		t.Error("unreferenced entry survived Compact")
	}
	for old, want := range map[int]string{a: "a", c: "c"} {
		idx, ok := remap[old]
		if !ok {
			t.Fatalf("referenced index %d missing from remap", old)
		}
		if got, _ := p.Get(idx); got != want {
			t.Errorf("after compact Get(%d) = %q, want %q", idx, got, want)
		}
	}
	if p.Len() != 2 {
		t.Errorf("Len after compact = %d", p.Len())
	}
	if p.Intern("c") != remap[c] {
		t.Error("lookup not rebuilt after compact")
	}
}

func TestFromTree(t *testing.T) {
	doc := parse(t, `<?xml version="1.0" encoding="UTF-8"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="5" uniqueCount="4">
<si><t>Total</t></si>
<si><r><rPr><b/></rPr><t>Bold</t></r><r><t xml:space="preserve"> part</t></r><rPh><t>ignored</t></rPh></si>
<si><t>Total</t></si>
<si><t xml:space="preserve">  lead</t></si>
</sst>`)
	p, err := stringtable.FromTree(doc)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Total", "Bold part", "Total", "  lead"}
	for i, w := range want {
		if got, _ := p.Get(i); got != w {
			t.Errorf("Get(%d) = %q, want %q", i, got, w)
		}
	}
	if p.Changed() {
		t.Error("freshly loaded pool reports Changed")
	}
	if p.Intern("Total") != 0 {
		t.Error("Intern should resolve to the first duplicate")
	}
	// Retain the duplicate as a cell would; compaction folds it into 0.
	if err := p.Retain(2); err != nil {
		t.Fatal(err)
	}
	if err := p.Retain(1); err != nil {
		t.Fatal(err)
	}
	remap := p.Compact()
	if remap[2] != 0 || remap[0] != 0 {
		t.Errorf("duplicate not folded: remap = %v", remap)
	}
	if p.Refs(0) != 2 {
		t.Errorf("Refs(0) after fold = %d, want 2", p.Refs(0))
	}

	out, err := p.Document().WriteToString()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `<rPr><b/></rPr>`) {
		t.Errorf("rich text run not preserved:\n%s", out)
	}
	if !strings.Contains(out, `uniqueCount="2"`) {
		t.Errorf("uniqueCount not updated:\n%s", out)
	}
}

func TestFromTreeWrongRoot(t *testing.T) {
	if _, err := stringtable.FromTree(parse(t, `<styleSheet/>`)); err == nil {
		t.Error("expected error for non-sst root")
	}
}

func TestDocumentPreservesWhitespace(t *testing.T) {
	p := stringtable.New()
	p.Intern(" x ")
	out, err := p.Document().WriteToString()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `xml:space="preserve"`) {
		t.Errorf("missing xml:space for padded text:\n%s", out)
	}
	reread, err := stringtable.FromTree(parse(t, out))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := reread.Get(0); got != " x " {
		t.Errorf("round trip = %q", got)
	}
}

func TestInternSkipsRichEntries(t *testing.T) {
	p, err := stringtable.FromTree(parse(t, `<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
<si><r><rPr><b/></rPr><t>Total</t></r></si>
<si><t>note</t></si>
</sst>`))
	if err != nil {
		t.Fatal(err)
	}
	idx := p.Intern("Total")
	if idx != 2 {
		t.Fatalf("Intern(Total) = %d, want a new plain entry at 2", idx)
	}
	if p.Refs(0) != 0 {
		t.Errorf("rich entry gained %d references", p.Refs(0))
	}
	if p.Intern("Total") != idx {
		t.Error("second Intern did not reuse the plain entry")
	}
	if p.Intern("note") != 1 {
		t.Error("plain loaded entry not reused")
	}

	// Compaction keeps the rich and plain entries apart.
	if err := p.Retain(0); err != nil {
		t.Fatal(err)
	}
	remap := p.Compact()
	if remap[0] == remap[2] {
		t.Errorf("rich and plain Total folded together: %v", remap)
	}
	if p.Intern("Total") != remap[2] {
		t.Error("Intern after Compact picked the rich entry")
	}
}
