// Package styles holds the style registry of a workbook (xl/styles.xml).
//
// A cell's style id is an index into the cellXfs table.  Each xf record is a
// composite of sub-record ids: a number format, a font, a fill and a border,
// plus inline alignment and protection.  Every table is deduplicated, so
// interning an equal value twice returns the same id.  Id 0 of every table
// is the default record and is never removed.
package styles

import "errors"

var (
	// ErrInvalidStyleIndex is returned for a style id (or sub-record id)
	// with no entry in its table.
	ErrInvalidStyleIndex = errors.New("styles: invalid style index")
	// ErrInvalidNumFmt is returned when a custom number-format code is
	// rejected.
	ErrInvalidNumFmt = errors.New("styles: invalid number format")
)

// Color is a CT_Color value.  Exactly one of RGB, Theme, Indexed or Auto is
// normally set; Tint applies to any of them.
type Color struct {
	RGB        string // ARGB hex, e.g. "FFFF0000"
	Theme      int
	HasTheme   bool
	Indexed    int
	HasIndexed bool
	Auto       bool
	Tint       float64
}

// IsZero reports whether c carries no color at all.
func (c Color) IsZero() bool { return c == Color{} }

// Font is one entry of the fonts table.
type Font struct {
	Name      string
	Size      float64
	Bold      bool
	Italic    bool
	Strike    bool
	Underline string // "", "single", "double", ...
	VertAlign string // "", "superscript", "subscript"
	Color     Color
	Family    int
	Charset   int
	Scheme    string // "", "minor", "major"
}

// Fill is one entry of the fills table.  Gradient fills are kept opaque:
// Gradient holds the serialized <gradientFill> element.
type Fill struct {
	PatternType string
	FgColor     Color
	BgColor     Color
	Gradient    string
}

// BorderEdge is one side of a border.
type BorderEdge struct {
	Style string
	Color Color
}

// Border is one entry of the borders table.
type Border struct {
	Left, Right, Top, Bottom, Diagonal BorderEdge
	DiagonalUp, DiagonalDown           bool
}

// Alignment is the inline <alignment> of an xf record.
type Alignment struct {
	Horizontal   string
	Vertical     string
	WrapText     bool
	ShrinkToFit  bool
	Indent       int
	TextRotation int
}

// Protection is the inline <protection> of an xf record.  Set distinguishes
// an explicit element from the implied default (locked, not hidden).
type Protection struct {
	Set    bool
	Locked bool
	Hidden bool
}

// Record is one cellXfs entry.  Records are comparable so equal composites
// collapse to one id.
type Record struct {
	NumFmtID    int
	FontID      int
	FillID      int
	BorderID    int
	XfID        int // parent cellStyleXfs entry
	Alignment   Alignment
	Protection  Protection
	QuotePrefix bool
}

// Style is the resolved, value-level view of a style id: the number-format
// code and the sub-records themselves instead of their ids.  A zero Font,
// Fill or Border means the table's default entry.
type Style struct {
	NumFmt     string // format code; "" means General
	Font       Font
	Fill       Fill
	Border     Border
	Alignment  Alignment
	Protection Protection
}

// DefaultFont is font 0 of a new registry.
var DefaultFont = Font{Name: "Calibri", Size: 11, Family: 2, Scheme: "minor", Color: Color{Theme: 1, HasTheme: true}}
