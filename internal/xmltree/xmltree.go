// Package xmltree holds the small set of etree helpers shared by the part
// handlers.  OOXML producers disagree on namespace prefixes ("x:row" vs
// "row"), so lookups here match on the local element name only.
package xmltree

import (
	"strconv"

	"github.com/beevik/etree"
)

// Declaration is the XML declaration written at the top of every part the
// library generates.
const Declaration = `version="1.0" encoding="UTF-8" standalone="yes"`

// NewDocument returns an empty document carrying the standard declaration.
func NewDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", Declaration)
	return doc
}

// Child returns the first child element of e whose local name is tag.
func Child(e *etree.Element, tag string) *etree.Element {
	if e == nil {
		return nil
	}
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// Children returns all child elements of e whose local name is tag, in
// document order.
func Children(e *etree.Element, tag string) []*etree.Element {
	if e == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// Attr returns the value of the un-prefixed attribute key, or "" when it is
// absent.
func Attr(e *etree.Element, key string) string {
	for _, a := range e.Attr {
		if a.Space == "" && a.Key == key {
			return a.Value
		}
	}
	return ""
}

// HasAttr reports whether the un-prefixed attribute key is present.
func HasAttr(e *etree.Element, key string) bool {
	for _, a := range e.Attr {
		if a.Space == "" && a.Key == key {
			return true
		}
	}
	return false
}

// IntAttr parses an integer attribute, returning dflt when it is absent or
// not a number.
func IntAttr(e *etree.Element, key string, dflt int) int {
	v := Attr(e, key)
	if v == "" {
		return dflt
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return dflt
	}
	return n
}

// BoolAttr parses an xsd:boolean attribute ("1", "true", "0", "false").
func BoolAttr(e *etree.Element, key string) bool {
	switch Attr(e, key) {
	case "1", "true":
		return true
	}
	return false
}

// RelID returns the value of the relationship-namespace "id" attribute
// (conventionally written r:id), whatever prefix the producer chose.
func RelID(e *etree.Element) string {
	for _, a := range e.Attr {
		if a.Space != "" && a.Space != "xmlns" && a.Key == "id" {
			return a.Value
		}
	}
	return ""
}

// RelIDs walks the subtree rooted at e and collects every relationship id
// it references, in document order.
func RelIDs(e *etree.Element) []string {
	var out []string
	var walk func(*etree.Element)
	walk = func(n *etree.Element) {
		for _, a := range n.Attr {
			if a.Space == "" || a.Space == "xmlns" {
				continue
			}
			switch a.Key {
			case "id", "embed", "link", "pict":
				if a.NamespaceURI() == NSRelationships || a.Space == "r" {
					out = append(out, a.Value)
				}
			}
		}
		for _, c := range n.ChildElements() {
			walk(c)
		}
	}
	if e != nil {
		walk(e)
	}
	return out
}

// RemoveChildren removes every child element of e with the given local name.
func RemoveChildren(e *etree.Element, tag string) {
	for _, c := range Children(e, tag) {
		e.RemoveChild(c)
	}
}

// InsertAfter inserts child into parent directly after the last existing
// child whose local name is in preceding, or first when none is present.
// It keeps schema element order without knowing every optional sibling.
func InsertAfter(parent, child *etree.Element, preceding ...string) {
	idx := -1
	for _, c := range parent.ChildElements() {
		for _, p := range preceding {
			if c.Tag == p {
				idx = c.Index()
			}
		}
	}
	parent.InsertChildAt(idx+1, child)
}

// Namespace URIs used across the package.
const (
	NSSpreadsheetML = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	NSRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSPackageRels   = "http://schemas.openxmlformats.org/package/2006/relationships"
	NSContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
)
