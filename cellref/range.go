package cellref

import (
	"fmt"
	"strings"
)

// Range is a rectangular block of cells.  TopLeft is component-wise less
// than or equal to BottomRight; NewRange and ParseRange normalise reversed
// corners.
type Range struct {
	TopLeft     Ref
	BottomRight Ref
}

// NewRange builds a range from two corners in any order.
func NewRange(a, b Ref) (Range, error) {
	if !a.Valid() || !b.Valid() {
		return Range{}, fmt.Errorf("%w: range corners %v, %v out of range", ErrInvalidAddress, a, b)
	}
	return Range{
		TopLeft:     Ref{Row: min(a.Row, b.Row), Col: min(a.Col, b.Col)},
		BottomRight: Ref{Row: max(a.Row, b.Row), Col: max(a.Col, b.Col)},
	}, nil
}

// ParseRange decodes "A1:C3".  A single address ("B2") yields a 1x1 range,
// and reversed corners ("C3:A1") are normalised.
func ParseRange(s string) (Range, error) {
	first, second, found := strings.Cut(s, ":")
	a, err := Parse(first)
	if err != nil {
		return Range{}, err
	}
	if !found {
		return Range{TopLeft: a, BottomRight: a}, nil
	}
	b, err := Parse(second)
	if err != nil {
		return Range{}, err
	}
	return NewRange(a, b)
}

// MustParseRange is like ParseRange but panics on error.
func MustParseRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the canonical "A1:C3" form.  A 1x1 range still renders with
// both corners; use Compact for the short form the dimension element uses.
func (r Range) String() string {
	return r.TopLeft.String() + ":" + r.BottomRight.String()
}

// Compact returns "A1" for a single-cell range and the colon form otherwise.
func (r Range) Compact() string {
	if r.TopLeft == r.BottomRight {
		return r.TopLeft.String()
	}
	return r.String()
}

// Contains reports whether ref lies inside r.
func (r Range) Contains(ref Ref) bool {
	return ref.Row >= r.TopLeft.Row && ref.Row <= r.BottomRight.Row &&
		ref.Col >= r.TopLeft.Col && ref.Col <= r.BottomRight.Col
}

// Rows returns the number of rows spanned.
func (r Range) Rows() int { return r.BottomRight.Row - r.TopLeft.Row + 1 }

// Cols returns the number of columns spanned.
func (r Range) Cols() int { return r.BottomRight.Col - r.TopLeft.Col + 1 }

// CellCount returns the number of addresses in r.
func (r Range) CellCount() int { return r.Rows() * r.Cols() }
