package worksheet

import (
	"errors"
	"iter"

	"github.com/TsubasaBE/go-xlsx/cellref"
)

// ErrIteratorInvalidated is reported by an iterator whose worksheet gained
// or lost cells or rows while it was being consumed.
var ErrIteratorInvalidated = errors.New("worksheet: iterator invalidated by concurrent modification")

// RangeIter walks the cells of a rectangular range in row-major order.
//
// Cells missing from the sheet are yielded as empty placeholders; they are
// not added to the sheet.  Each call to Cells or Rows starts a new pass.
// Changing the values of existing cells during a pass is allowed; adding
// or removing cells or rows stops the pass and Err reports
// ErrIteratorInvalidated.
type RangeIter struct {
	ws  *Worksheet
	rng cellref.Range
	err error
}

// Range returns an iterator over rng.
func (ws *Worksheet) Range(rng cellref.Range) *RangeIter {
	return &RangeIter{ws: ws, rng: rng}
}

// Err returns the error that ended the last pass, or nil.
func (it *RangeIter) Err() error { return it.err }

func (it *RangeIter) rowCells(index int, buf []Cell) []Cell {
	buf = buf[:0]
	r, ok := it.ws.row(index)
	next := it.rng.TopLeft.Col
	emit := func(col int, c *cellData) {
		for ; next < col; next++ {
			buf = append(buf, Cell{Ref: cellref.Ref{Row: index, Col: next}})
		}
		if c != nil {
			buf = append(buf, c.view(index))
			next++
		}
	}
	if ok {
		r.cells.AscendRange(&cellData{col: it.rng.TopLeft.Col}, &cellData{col: it.rng.BottomRight.Col + 1},
			func(c *cellData) bool {
				emit(c.col, c)
				return true
			})
	}
	emit(it.rng.BottomRight.Col+1, nil)
	return buf
}

// Cells yields every cell of the range.
func (it *RangeIter) Cells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		it.err = nil
		version := it.ws.version
		var buf []Cell
		for row := it.rng.TopLeft.Row; row <= it.rng.BottomRight.Row; row++ {
			buf = it.rowCells(row, buf)
			for _, c := range buf {
				if it.ws.version != version {
					it.err = ErrIteratorInvalidated
					return
				}
				if !yield(c) {
					return
				}
			}
		}
		if it.ws.version != version {
			it.err = ErrIteratorInvalidated
		}
	}
}

// Rows yields each row index of the range with its cells.  The slice is
// reused between rows.
func (it *RangeIter) Rows() iter.Seq2[int, []Cell] {
	return func(yield func(int, []Cell) bool) {
		it.err = nil
		version := it.ws.version
		var buf []Cell
		for row := it.rng.TopLeft.Row; row <= it.rng.BottomRight.Row; row++ {
			if it.ws.version != version {
				it.err = ErrIteratorInvalidated
				return
			}
			buf = it.rowCells(row, buf)
			if !yield(row, buf) {
				return
			}
		}
		if it.ws.version != version {
			it.err = ErrIteratorInvalidated
		}
	}
}

// Rows yields every populated row of the sheet in ascending order with its
// present cells.  Unlike RangeIter it does not produce placeholders.
func (ws *Worksheet) Rows() iter.Seq2[int, []Cell] {
	return func(yield func(int, []Cell) bool) {
		var rows []*rowData
		ws.rows.Ascend(func(r *rowData) bool {
			rows = append(rows, r)
			return true
		})
		for _, r := range rows {
			if r.cells.Len() == 0 {
				continue
			}
			cells := make([]Cell, 0, r.cells.Len())
			r.cells.Ascend(func(c *cellData) bool {
				cells = append(cells, c.view(r.index))
				return true
			})
			if !yield(r.index, cells) {
				return
			}
		}
	}
}
