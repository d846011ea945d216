package grid

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// regionNamespace scopes the name-based UUIDs used as region ids.
var regionNamespace = uuid.MustParse("6f1c3a52-8f0e-4d0b-9a57-2b7c4e1d9a30")

type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type Region struct {
	ID            string
	Rect          Rect
	CellIndices   []int
	Owner         string
	ImageURL      string
	Name          string
	LinkURL       string
	ReservedUntil time.Time
	SoldAt        time.Time
}

func (r Region) Sold() bool {
	return !r.SoldAt.IsZero()
}

// RegionID derives the id from the owner and the selection; order and duplicates do not matter.
func RegionID(owner string, cells []int) string {
	sorted := slices.Clone(cells)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var b strings.Builder
	b.WriteString(owner)
	b.WriteByte(0)
	for i, c := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(c))
	}
	return uuid.NewSHA1(regionNamespace, []byte(b.String())).String()
}

// BoundingBox returns the minimal rect covering cells, in cell units.
func BoundingBox(cells []int) Rect {
	if len(cells) == 0 {
		return Rect{}
	}
	minX, minY := Size, Size
	maxX, maxY := -1, -1
	for _, c := range cells {
		x, y := CellXY(c)
		minX = min(minX, x)
		minY = min(minY, y)
		maxX = max(maxX, x)
		maxY = max(maxY, y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1}
}

func newRegion(owner string, cells []int) Region {
	return Region{
		ID:          RegionID(owner, cells),
		Rect:        BoundingBox(cells),
		CellIndices: slices.Clone(cells),
		Owner:       owner,
	}
}
