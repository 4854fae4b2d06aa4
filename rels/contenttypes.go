package rels

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/TsubasaBE/go-xlsx/internal/xmltree"
)

// ContentTypesPart is the name of the content-type registry part.
const ContentTypesPart = "[Content_Types].xml"

// Content types of the parts this library writes.
const (
	ContentTypeRelationships = "application/vnd.openxmlformats-package.relationships+xml"
	ContentTypeXML           = "application/xml"
	ContentTypeWorkbook      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	ContentTypeWorksheet     = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	ContentTypeSharedStrings = "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"
	ContentTypeStyles        = "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"
)

type entry struct {
	key         string // lower-cased lookup key
	name        string // as written
	contentType string
}

// ContentTypes is the [Content_Types].xml registry: Default entries keyed
// by file extension and Override entries keyed by part name.  Keys compare
// case-insensitively, as part names do.
type ContentTypes struct {
	defaults  []entry
	overrides []entry
	dirty     bool
}

// NewContentTypes returns a registry holding the Default entries every
// package needs: "rels" and "xml".
func NewContentTypes() *ContentTypes {
	c := &ContentTypes{dirty: true}
	c.RegisterDefault("rels", ContentTypeRelationships)
	c.RegisterDefault("xml", ContentTypeXML)
	return c
}

// LoadContentTypes reads a parsed [Content_Types].xml part.
func LoadContentTypes(doc *etree.Document) (*ContentTypes, error) {
	root := doc.Root()
	if root == nil || root.Tag != "Types" {
		return nil, fmt.Errorf("rels: %s: root element is not <Types>", ContentTypesPart)
	}
	c := &ContentTypes{}
	for _, el := range root.ChildElements() {
		ct := xmltree.Attr(el, "ContentType")
		switch el.Tag {
		case "Default":
			ext := xmltree.Attr(el, "Extension")
			c.defaults = append(c.defaults, entry{strings.ToLower(ext), ext, ct})
		case "Override":
			name := strings.TrimPrefix(xmltree.Attr(el, "PartName"), "/")
			c.overrides = append(c.overrides, entry{partKey(name), name, ct})
		}
	}
	return c, nil
}

func partKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "/"))
}

func find(list []entry, key string) int {
	for i, e := range list {
		if e.key == key {
			return i
		}
	}
	return -1
}

func set(list []entry, name, key, ct string) ([]entry, bool) {
	if i := find(list, key); i >= 0 {
		if list[i].contentType == ct {
			return list, false
		}
		list[i].contentType = ct
		return list, true
	}
	return append(list, entry{key, name, ct}), true
}

// RegisterContentType records an Override entry for part name p.
func (c *ContentTypes) RegisterContentType(p, contentType string) {
	var changed bool
	p = strings.TrimPrefix(p, "/")
	c.overrides, changed = set(c.overrides, p, partKey(p), contentType)
	c.dirty = c.dirty || changed
}

// RegisterDefault records a Default entry for extension ext (no dot).
func (c *ContentTypes) RegisterDefault(ext, contentType string) {
	var changed bool
	c.defaults, changed = set(c.defaults, ext, strings.ToLower(ext), contentType)
	c.dirty = c.dirty || changed
}

// Unregister drops the Override entry for p, if any.
func (c *ContentTypes) Unregister(p string) bool {
	i := find(c.overrides, partKey(p))
	if i < 0 {
		return false
	}
	c.overrides = append(c.overrides[:i], c.overrides[i+1:]...)
	c.dirty = true
	return true
}

// ContentTypeOf returns the content type of part p: its Override entry,
// else the Default entry for its extension.
func (c *ContentTypes) ContentTypeOf(p string) (string, error) {
	if i := find(c.overrides, partKey(p)); i >= 0 {
		return c.overrides[i].contentType, nil
	}
	if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
		if i := find(c.defaults, strings.ToLower(ext)); i >= 0 {
			return c.defaults[i].contentType, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnregisteredPart, p)
}

// Dirty reports whether the registry changed since load or MarkSaved.
func (c *ContentTypes) Dirty() bool { return c.dirty }

// MarkSaved clears the dirty flag.
func (c *ContentTypes) MarkSaved() { c.dirty = false }

// Document renders the registry as a [Content_Types].xml part.
func (c *ContentTypes) Document() *etree.Document {
	doc := xmltree.NewDocument()
	root := doc.CreateElement("Types")
	root.CreateAttr("xmlns", xmltree.NSContentTypes)
	for _, e := range c.defaults {
		el := root.CreateElement("Default")
		el.CreateAttr("Extension", e.name)
		el.CreateAttr("ContentType", e.contentType)
	}
	for _, e := range c.overrides {
		el := root.CreateElement("Override")
		el.CreateAttr("PartName", "/"+e.name)
		el.CreateAttr("ContentType", e.contentType)
	}
	return doc
}

// Clone returns an independent copy of c.
func (c *ContentTypes) Clone() *ContentTypes {
	return &ContentTypes{
		defaults:  slices.Clone(c.defaults),
		overrides: slices.Clone(c.overrides),
		dirty:     c.dirty,
	}
}
