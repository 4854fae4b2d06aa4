package styles

import (
	"strconv"

	"github.com/beevik/etree"

	"github.com/TsubasaBE/go-xlsx/internal/xmltree"
)

func parseColor(el *etree.Element) Color {
	if el == nil {
		return Color{}
	}
	c := Color{RGB: xmltree.Attr(el, "rgb"), Auto: xmltree.BoolAttr(el, "auto")}
	if xmltree.HasAttr(el, "theme") {
		c.Theme, c.HasTheme = xmltree.IntAttr(el, "theme", 0), true
	}
	if xmltree.HasAttr(el, "indexed") {
		c.Indexed, c.HasIndexed = xmltree.IntAttr(el, "indexed", 0), true
	}
	if t, err := strconv.ParseFloat(xmltree.Attr(el, "tint"), 64); err == nil {
		c.Tint = t
	}
	return c
}

func renderColor(parent *etree.Element, tag string, c Color) {
	if c.IsZero() {
		return
	}
	el := parent.CreateElement(tag)
	if c.Auto {
		el.CreateAttr("auto", "1")
	}
	if c.HasIndexed {
		el.CreateAttr("indexed", strconv.Itoa(c.Indexed))
	}
	if c.RGB != "" {
		el.CreateAttr("rgb", c.RGB)
	}
	if c.HasTheme {
		el.CreateAttr("theme", strconv.Itoa(c.Theme))
	}
	if c.Tint != 0 {
		el.CreateAttr("tint", strconv.FormatFloat(c.Tint, 'g', -1, 64))
	}
}

// val reads the "val" attribute of child tag, reporting whether the child
// exists.
func val(el *etree.Element, tag string) (string, bool) {
	c := xmltree.Child(el, tag)
	if c == nil {
		return "", false
	}
	return xmltree.Attr(c, "val"), true
}

// flag reads a CT_BooleanProperty child: present means true unless
// val="0" or val="false".
func flag(el *etree.Element, tag string) bool {
	v, ok := val(el, tag)
	return ok && v != "0" && v != "false"
}

func parseFont(el *etree.Element) Font {
	f := Font{
		Bold:   flag(el, "b"),
		Italic: flag(el, "i"),
		Strike: flag(el, "strike"),
		Color:  parseColor(xmltree.Child(el, "color")),
	}
	if v, ok := val(el, "u"); ok {
		if v == "" {
			v = "single"
		}
		f.Underline = v
	}
	f.VertAlign, _ = val(el, "vertAlign")
	if v, ok := val(el, "sz"); ok {
		f.Size, _ = strconv.ParseFloat(v, 64)
	}
	f.Name, _ = val(el, "name")
	if v, ok := val(el, "family"); ok {
		f.Family, _ = strconv.Atoi(v)
	}
	if v, ok := val(el, "charset"); ok {
		f.Charset, _ = strconv.Atoi(v)
	}
	f.Scheme, _ = val(el, "scheme")
	return f
}

func renderFont(parent *etree.Element, f Font) {
	el := parent.CreateElement("font")
	if f.Bold {
		el.CreateElement("b")
	}
	if f.Italic {
		el.CreateElement("i")
	}
	if f.Strike {
		el.CreateElement("strike")
	}
	if f.Underline != "" {
		u := el.CreateElement("u")
		if f.Underline != "single" {
			u.CreateAttr("val", f.Underline)
		}
	}
	if f.VertAlign != "" {
		el.CreateElement("vertAlign").CreateAttr("val", f.VertAlign)
	}
	if f.Size != 0 {
		el.CreateElement("sz").CreateAttr("val", strconv.FormatFloat(f.Size, 'g', -1, 64))
	}
	renderColor(el, "color", f.Color)
	if f.Name != "" {
		el.CreateElement("name").CreateAttr("val", f.Name)
	}
	if f.Family != 0 {
		el.CreateElement("family").CreateAttr("val", strconv.Itoa(f.Family))
	}
	if f.Charset != 0 {
		el.CreateElement("charset").CreateAttr("val", strconv.Itoa(f.Charset))
	}
	if f.Scheme != "" {
		el.CreateElement("scheme").CreateAttr("val", f.Scheme)
	}
}

func parseFill(el *etree.Element) Fill {
	if g := xmltree.Child(el, "gradientFill"); g != nil {
		doc := etree.NewDocument()
		doc.SetRoot(g.Copy())
		s, _ := doc.WriteToString()
		return Fill{Gradient: s}
	}
	p := xmltree.Child(el, "patternFill")
	if p == nil {
		return Fill{}
	}
	return Fill{
		PatternType: xmltree.Attr(p, "patternType"),
		FgColor:     parseColor(xmltree.Child(p, "fgColor")),
		BgColor:     parseColor(xmltree.Child(p, "bgColor")),
	}
}

func renderFill(parent *etree.Element, f Fill) {
	el := parent.CreateElement("fill")
	if f.Gradient != "" {
		doc := etree.NewDocument()
		if err := doc.ReadFromString(f.Gradient); err == nil && doc.Root() != nil {
			el.AddChild(doc.Root().Copy())
			return
		}
	}
	p := el.CreateElement("patternFill")
	if f.PatternType != "" {
		p.CreateAttr("patternType", f.PatternType)
	}
	renderColor(p, "fgColor", f.FgColor)
	renderColor(p, "bgColor", f.BgColor)
}

var edges = []string{"left", "right", "top", "bottom", "diagonal"}

func (b *Border) edge(tag string) *BorderEdge {
	switch tag {
	case "left":
		return &b.Left
	case "right":
		return &b.Right
	case "top":
		return &b.Top
	case "bottom":
		return &b.Bottom
	}
	return &b.Diagonal
}

func parseBorder(el *etree.Element) Border {
	b := Border{
		DiagonalUp:   xmltree.BoolAttr(el, "diagonalUp"),
		DiagonalDown: xmltree.BoolAttr(el, "diagonalDown"),
	}
	for _, tag := range edges {
		if c := xmltree.Child(el, tag); c != nil {
			*b.edge(tag) = BorderEdge{
				Style: xmltree.Attr(c, "style"),
				Color: parseColor(xmltree.Child(c, "color")),
			}
		}
	}
	return b
}

func renderBorder(parent *etree.Element, b Border) {
	el := parent.CreateElement("border")
	if b.DiagonalUp {
		el.CreateAttr("diagonalUp", "1")
	}
	if b.DiagonalDown {
		el.CreateAttr("diagonalDown", "1")
	}
	for _, tag := range edges {
		e := *b.edge(tag)
		side := el.CreateElement(tag)
		if e.Style != "" {
			side.CreateAttr("style", e.Style)
		}
		renderColor(side, "color", e.Color)
	}
}

func parseXf(el *etree.Element) Record {
	rec := Record{
		NumFmtID:    xmltree.IntAttr(el, "numFmtId", 0),
		FontID:      xmltree.IntAttr(el, "fontId", 0),
		FillID:      xmltree.IntAttr(el, "fillId", 0),
		BorderID:    xmltree.IntAttr(el, "borderId", 0),
		XfID:        xmltree.IntAttr(el, "xfId", 0),
		QuotePrefix: xmltree.BoolAttr(el, "quotePrefix"),
	}
	if a := xmltree.Child(el, "alignment"); a != nil {
		rec.Alignment = Alignment{
			Horizontal:   xmltree.Attr(a, "horizontal"),
			Vertical:     xmltree.Attr(a, "vertical"),
			WrapText:     xmltree.BoolAttr(a, "wrapText"),
			ShrinkToFit:  xmltree.BoolAttr(a, "shrinkToFit"),
			Indent:       xmltree.IntAttr(a, "indent", 0),
			TextRotation: xmltree.IntAttr(a, "textRotation", 0),
		}
	}
	if p := xmltree.Child(el, "protection"); p != nil {
		rec.Protection = Protection{
			Set:    true,
			Locked: !xmltree.HasAttr(p, "locked") || xmltree.BoolAttr(p, "locked"),
			Hidden: xmltree.BoolAttr(p, "hidden"),
		}
	}
	return rec
}

// renderXf writes one <xf>.  cell selects the cellXfs form, which carries
// xfId and the apply* flags.
func renderXf(parent *etree.Element, rec Record, cell bool) {
	el := parent.CreateElement("xf")
	el.CreateAttr("numFmtId", strconv.Itoa(rec.NumFmtID))
	el.CreateAttr("fontId", strconv.Itoa(rec.FontID))
	el.CreateAttr("fillId", strconv.Itoa(rec.FillID))
	el.CreateAttr("borderId", strconv.Itoa(rec.BorderID))
	if !cell {
		return
	}
	el.CreateAttr("xfId", strconv.Itoa(rec.XfID))
	if rec.QuotePrefix {
		el.CreateAttr("quotePrefix", "1")
	}
	applies := []struct {
		key string
		on  bool
	}{
		{"applyNumberFormat", rec.NumFmtID != 0},
		{"applyFont", rec.FontID != 0},
		{"applyFill", rec.FillID != 0},
		{"applyBorder", rec.BorderID != 0},
		{"applyAlignment", rec.Alignment != Alignment{}},
		{"applyProtection", rec.Protection.Set},
	}
	for _, a := range applies {
		if a.on {
			el.CreateAttr(a.key, "1")
		}
	}
	if al := rec.Alignment; al != (Alignment{}) {
		a := el.CreateElement("alignment")
		if al.Horizontal != "" {
			a.CreateAttr("horizontal", al.Horizontal)
		}
		if al.Vertical != "" {
			a.CreateAttr("vertical", al.Vertical)
		}
		if al.TextRotation != 0 {
			a.CreateAttr("textRotation", strconv.Itoa(al.TextRotation))
		}
		if al.WrapText {
			a.CreateAttr("wrapText", "1")
		}
		if al.Indent != 0 {
			a.CreateAttr("indent", strconv.Itoa(al.Indent))
		}
		if al.ShrinkToFit {
			a.CreateAttr("shrinkToFit", "1")
		}
	}
	if rec.Protection.Set {
		p := el.CreateElement("protection")
		if !rec.Protection.Locked {
			p.CreateAttr("locked", "0")
		}
		if rec.Protection.Hidden {
			p.CreateAttr("hidden", "1")
		}
	}
}
