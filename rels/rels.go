// Package rels holds the relationship graph of an OOXML package: the .rels
// part of every owner part, plus the [Content_Types].xml registry.
//
// Owners and targets are package part names without a leading slash, for
// example "xl/workbook.xml".  The package itself is the owner "".
package rels

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/TsubasaBE/go-xlsx/internal/xmltree"
)

var (
	// ErrDanglingRelationship is returned when a relationship id is not
	// declared by its owner, or its target part does not exist.
	ErrDanglingRelationship = errors.New("rels: dangling relationship")
	// ErrUnregisteredPart is returned for a part with no content type.
	ErrUnregisteredPart = errors.New("rels: part has no content type")
	// ErrIntegrity is returned by Check when the package would not be
	// self-consistent.  It wraps the specific cause.
	ErrIntegrity = errors.New("rels: package integrity violation")
)

// Relationship types used by spreadsheet packages.
const (
	TypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	TypeWorksheet      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"
	TypeSharedStrings  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings"
	TypeStyles         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	TypeTheme          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme"
	TypeCoreProps      = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	TypeExtendedProps  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties"
)

// Relationship is one <Relationship> entry.  Target is stored as written
// in the file: relative to the owner's directory unless External.
type Relationship struct {
	ID       string
	Type     string
	Target   string
	External bool
}

type table struct {
	rels  []Relationship
	dirty bool
}

func (t *table) find(id string) int {
	return slices.IndexFunc(t.rels, func(r Relationship) bool { return r.ID == id })
}

// Graph holds the relationship tables of every owner in a package.
type Graph struct {
	tables map[string]*table
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{tables: make(map[string]*table)}
}

// RelsPath returns the name of the .rels part for owner:
// "xl/workbook.xml" → "xl/_rels/workbook.xml.rels", "" → "_rels/.rels".
func RelsPath(owner string) string {
	dir, file := path.Split(owner)
	return dir + "_rels/" + file + ".rels"
}

// OwnerOf is the inverse of RelsPath.  ok is false when name is not a
// .rels part.
func OwnerOf(name string) (owner string, ok bool) {
	dir, file := path.Split(name)
	if !strings.HasSuffix(dir, "_rels/") || !strings.HasSuffix(strings.ToLower(file), ".rels") {
		return "", false
	}
	return strings.TrimSuffix(dir, "_rels/") + file[:len(file)-len(".rels")], true
}

// ResolveTarget turns a target written in owner's .rels part into a part
// name.
func ResolveTarget(owner, target string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(target)[1:]
	}
	return strings.TrimPrefix(path.Join(path.Dir(owner), target), "./")
}

// RelativeTarget is the inverse of ResolveTarget: the target to write in
// owner's .rels part for part.
func RelativeTarget(owner, part string) string {
	from := strings.Split(path.Dir(owner), "/")
	if from[0] == "." {
		from = nil
	}
	to := strings.Split(part, "/")
	n := 0
	for n < len(from) && n < len(to)-1 && from[n] == to[n] {
		n++
	}
	up := strings.Repeat("../", len(from)-n)
	return up + strings.Join(to[n:], "/")
}

// Load reads the .rels document of owner, replacing any table already
// held for it.
func (g *Graph) Load(owner string, doc *etree.Document) error {
	root := doc.Root()
	if root == nil || root.Tag != "Relationships" {
		return fmt.Errorf("rels: %s: root element is not <Relationships>", RelsPath(owner))
	}
	t := &table{}
	for _, el := range xmltree.Children(root, "Relationship") {
		r := Relationship{
			ID:       xmltree.Attr(el, "Id"),
			Type:     xmltree.Attr(el, "Type"),
			Target:   xmltree.Attr(el, "Target"),
			External: xmltree.Attr(el, "TargetMode") == "External",
		}
		if r.ID == "" {
			return fmt.Errorf("rels: %s: relationship without Id", RelsPath(owner))
		}
		if t.find(r.ID) >= 0 {
			return fmt.Errorf("rels: %s: duplicate relationship id %q", RelsPath(owner), r.ID)
		}
		t.rels = append(t.rels, r)
	}
	g.tables[owner] = t
	return nil
}

// Relationships returns a copy of owner's table in file order.
func (g *Graph) Relationships(owner string) []Relationship {
	t := g.tables[owner]
	if t == nil {
		return nil
	}
	return slices.Clone(t.rels)
}

// Lookup returns relationship id of owner.
func (g *Graph) Lookup(owner, id string) (Relationship, bool) {
	t := g.tables[owner]
	if t == nil {
		return Relationship{}, false
	}
	i := t.find(id)
	if i < 0 {
		return Relationship{}, false
	}
	return t.rels[i], true
}

// ByType returns the part names of owner's internal relationships of type
// typ, in file order.
func (g *Graph) ByType(owner, typ string) []string {
	var out []string
	for _, r := range g.Relationships(owner) {
		if r.Type == typ && !r.External {
			out = append(out, ResolveTarget(owner, r.Target))
		}
	}
	return out
}

// Resolve returns the part name (or URI, for external relationships) that
// relationship id of owner points at.
func (g *Graph) Resolve(owner, id string) (string, error) {
	r, ok := g.Lookup(owner, id)
	if !ok {
		return "", fmt.Errorf("%w: %s has no relationship %q", ErrDanglingRelationship, describe(owner), id)
	}
	if r.External {
		return r.Target, nil
	}
	return ResolveTarget(owner, r.Target), nil
}

func describe(owner string) string {
	if owner == "" {
		return "package"
	}
	return owner
}

// AddRelationship adds a relationship from owner to the part target and
// returns its new id.
func (g *Graph) AddRelationship(owner, typ, target string) string {
	return g.add(owner, Relationship{Type: typ, Target: RelativeTarget(owner, target)})
}

// AddExternal adds a relationship from owner to an external URI.
func (g *Graph) AddExternal(owner, typ, uri string) string {
	return g.add(owner, Relationship{Type: typ, Target: uri, External: true})
}

func (g *Graph) add(owner string, r Relationship) string {
	t := g.tables[owner]
	if t == nil {
		t = &table{}
		g.tables[owner] = t
	}
	for n := len(t.rels) + 1; ; n++ {
		id := "rId" + strconv.Itoa(n)
		if t.find(id) < 0 {
			r.ID = id
			break
		}
	}
	t.rels = append(t.rels, r)
	t.dirty = true
	return r.ID
}

// Remove deletes relationship id from owner's table.
func (g *Graph) Remove(owner, id string) bool {
	t := g.tables[owner]
	if t == nil {
		return false
	}
	i := t.find(id)
	if i < 0 {
		return false
	}
	t.rels = slices.Delete(t.rels, i, i+1)
	t.dirty = true
	return true
}

// RemoveOwner drops owner's whole table, as when the owner part itself is
// deleted.
func (g *Graph) RemoveOwner(owner string) bool {
	if _, ok := g.tables[owner]; !ok {
		return false
	}
	delete(g.tables, owner)
	return true
}

// Dirty returns the owners whose table changed since load or the last
// MarkSaved, sorted.
func (g *Graph) Dirty() []string {
	var out []string
	for o, t := range g.tables {
		if t.dirty {
			out = append(out, o)
		}
	}
	slices.Sort(out)
	return out
}

// MarkSaved clears every dirty flag.
func (g *Graph) MarkSaved() {
	for _, t := range g.tables {
		t.dirty = false
	}
}

// Document renders owner's table as a .rels part.
func (g *Graph) Document(owner string) *etree.Document {
	doc := xmltree.NewDocument()
	root := doc.CreateElement("Relationships")
	root.CreateAttr("xmlns", xmltree.NSPackageRels)
	for _, r := range g.Relationships(owner) {
		el := root.CreateElement("Relationship")
		el.CreateAttr("Id", r.ID)
		el.CreateAttr("Type", r.Type)
		el.CreateAttr("Target", r.Target)
		if r.External {
			el.CreateAttr("TargetMode", "External")
		}
	}
	return doc
}

// Clone returns an independent copy of g, dirty flags included.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for o, t := range g.tables {
		c.tables[o] = &table{rels: slices.Clone(t.rels), dirty: t.dirty}
	}
	return c
}
