package grid

import (
	"maps"
	"slices"
	"time"
)

// SchemaVersion is the document layout produced by this code. Older layouts are
// normalised on read by the store codec.
const SchemaVersion = 2

// Sale is immutable once written.
type Sale struct {
	Name     string
	LinkURL  string
	SoldAt   time.Time
	RegionID string
}

// Document is the single shared value holding every cell's state.
type Document struct {
	Sold    map[int]Sale
	Locks   map[int]Lock
	Regions map[string]Region
}

func NewDocument() *Document {
	return &Document{
		Sold:    map[int]Sale{},
		Locks:   map[int]Lock{},
		Regions: map[string]Region{},
	}
}

// Clone returns a deep copy so that a store snapshot can never be mutated through a caller.
func (d *Document) Clone() *Document {
	if d == nil {
		return NewDocument()
	}
	out := &Document{
		Sold:    maps.Clone(d.Sold),
		Locks:   maps.Clone(d.Locks),
		Regions: make(map[string]Region, len(d.Regions)),
	}
	for id, r := range d.Regions {
		r.CellIndices = slices.Clone(r.CellIndices)
		out.Regions[id] = r
	}
	out.ensureMaps()
	return out
}

func (d *Document) ensureMaps() {
	if d.Sold == nil {
		d.Sold = map[int]Sale{}
	}
	if d.Locks == nil {
		d.Locks = map[int]Lock{}
	}
	if d.Regions == nil {
		d.Regions = map[string]Region{}
	}
}

func (d *Document) SoldCount() int {
	return len(d.Sold)
}

func (d *Document) CellState(cell int, now time.Time) CellState {
	if _, ok := d.Sold[cell]; ok {
		return CellSold
	}
	if l, ok := d.Locks[cell]; ok && l.ActiveAt(now) {
		return CellLocked
	}
	return CellFree
}

// EffectiveLocks returns only the locks that currently exclude other owners.
func (d *Document) EffectiveLocks(now time.Time) map[int]Lock {
	out := make(map[int]Lock, len(d.Locks))
	for c, l := range d.Locks {
		if _, sold := d.Sold[c]; sold {
			continue
		}
		if l.ActiveAt(now) {
			out[c] = l
		}
	}
	return out
}

// CollectGarbage drops locks past their hard cap, locks shadowed by a sale and
// reservation-only regions that no lock refers to any more. It also refreshes
// reservedUntil on the surviving reservation regions.
//
// A soft-expired lock is kept until its hard cap so that the same owner cannot
// reset the cap by letting the lease lapse and re-acquiring.
func (d *Document) CollectGarbage(now time.Time) {
	d.ensureMaps()
	for c, l := range d.Locks {
		if _, sold := d.Sold[c]; sold || l.HardExpiredAt(now) {
			delete(d.Locks, c)
		}
	}
	d.refreshRegions()
}

// refreshRegions rebuilds every unsold region from the locks still referring to it, so a
// cell taken over by a newer region of the same owner leaves the older one.
func (d *Document) refreshRegions() {
	until := map[string]time.Time{}
	cells := map[string][]int{}
	for c, l := range d.Locks {
		if l.RegionID == "" {
			continue
		}
		if cur, ok := until[l.RegionID]; !ok || l.SoftExpiry.After(cur) {
			until[l.RegionID] = l.SoftExpiry
		}
		cells[l.RegionID] = append(cells[l.RegionID], c)
	}
	for id, r := range d.Regions {
		if r.Sold() {
			continue
		}
		u, referenced := until[id]
		if !referenced {
			delete(d.Regions, id)
			continue
		}
		held := cells[id]
		slices.Sort(held)
		r.CellIndices = held
		r.Rect = BoundingBox(held)
		r.ReservedUntil = u
		d.Regions[id] = r
	}
}

// SoldCells returns the sold subset of cells, sorted.
func (d *Document) SoldCells(cells []int) []int {
	var out []int
	for _, c := range cells {
		if _, ok := d.Sold[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (d *Document) RegionIDs() []string {
	return slices.Sorted(maps.Keys(d.Regions))
}
