package grid

import (
	"slices"

	"pixelgrid/internal/pkg/errs"
)

const (
	// Size is the number of cells along each edge of the grid.
	Size          = 100
	CellCount     = Size * Size
	PixelsPerCell = 100

	// MaxSelection bounds a single request; a selection can never exceed the grid.
	MaxSelection = CellCount
)

var (
	ErrEmptySelection  = errs.Mark(errs.New("no cells selected"), errs.ErrInvalidSelection)
	ErrCellOutOfRange  = errs.Mark(errs.New("cell index out of range"), errs.ErrInvalidSelection)
	ErrSelectionTooBig = errs.Mark(errs.New("selection exceeds grid"), errs.ErrInvalidSelection)
)

type CellState string

const (
	CellFree   CellState = "free"
	CellLocked CellState = "locked"
	CellSold   CellState = "sold"
)

// NormalizeCells validates a selection and returns it sorted with duplicates removed.
func NormalizeCells(cells []int) ([]int, error) {
	if len(cells) == 0 {
		return nil, ErrEmptySelection
	}
	if len(cells) > MaxSelection {
		return nil, ErrSelectionTooBig
	}
	out := make([]int, 0, len(cells))
	for _, c := range cells {
		if c < 0 || c >= CellCount {
			return nil, errs.Wrapf(ErrCellOutOfRange, "cell %d", c)
		}
		out = append(out, c)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func CellXY(cell int) (x, y int) {
	return cell % Size, cell / Size
}
