package grid

import (
	"slices"
	"time"
)

type AcquireResult struct {
	Granted   []int
	Conflicts []int
	RegionID  string
	// LeaseUntil is the earliest soft expiry among the granted cells.
	LeaseUntil time.Time
	// HardExpiry is the earliest hard cap among the granted cells.
	HardExpiry time.Time
}

// Acquire locks every grantable cell of the selection for owner and reports the rest as
// conflicts. cells must already be normalised. The document is mutated in place.
func (d *Document) Acquire(owner string, cells []int, lease time.Duration, maxDuration time.Duration, now time.Time) AcquireResult {
	d.ensureMaps()
	var res AcquireResult
	for _, c := range cells {
		if d.grantable(owner, c, now) {
			res.Granted = append(res.Granted, c)
		} else {
			res.Conflicts = append(res.Conflicts, c)
		}
	}
	if len(res.Granted) == 0 {
		return res
	}

	region := newRegion(owner, res.Granted)
	if existing, ok := d.Regions[region.ID]; ok && !existing.Sold() {
		region.ImageURL, region.Name, region.LinkURL = existing.ImageURL, existing.Name, existing.LinkURL
	}
	res.RegionID = region.ID

	for _, c := range res.Granted {
		l, held := d.Locks[c]
		if !held || !l.renewableBy(owner, now) {
			l = Lock{
				Owner:           owner,
				FirstAcquiredAt: now,
				HardExpiry:      now.Add(maxDuration),
			}
		}
		l.SoftExpiry = minTime(now.Add(lease), l.HardExpiry)
		l.RegionID = region.ID
		d.Locks[c] = l

		res.LeaseUntil = earliest(res.LeaseUntil, l.SoftExpiry)
		res.HardExpiry = earliest(res.HardExpiry, l.HardExpiry)
	}

	d.Regions[region.ID] = region
	d.refreshRegions()
	return res
}

func (d *Document) grantable(owner string, cell int, now time.Time) bool {
	if _, sold := d.Sold[cell]; sold {
		return false
	}
	l, ok := d.Locks[cell]
	if !ok {
		return true
	}
	if l.Owner == owner {
		return true
	}
	return !l.ActiveAt(now)
}

type RenewResult struct {
	Renewed    []int
	Lost       []int
	LeaseUntil time.Time
	HardExpiry time.Time
}

// Renew extends locks owner still holds, never past their hard cap. It never takes new
// cells: anything not renewable by owner is reported as lost.
func (d *Document) Renew(owner string, cells []int, lease time.Duration, now time.Time) RenewResult {
	d.ensureMaps()
	var res RenewResult
	for _, c := range cells {
		l, ok := d.Locks[c]
		_, sold := d.Sold[c]
		if !ok || sold || !l.renewableBy(owner, now) {
			res.Lost = append(res.Lost, c)
			continue
		}
		l.SoftExpiry = maxTime(l.SoftExpiry, minTime(now.Add(lease), l.HardExpiry))
		d.Locks[c] = l
		res.Renewed = append(res.Renewed, c)
		res.LeaseUntil = earliest(res.LeaseUntil, l.SoftExpiry)
		res.HardExpiry = earliest(res.HardExpiry, l.HardExpiry)
	}
	if len(res.Renewed) > 0 {
		d.refreshRegions()
	}
	return res
}

// Release deletes the locks owner holds among cells and returns the released cells.
// Cells held by someone else or not locked at all are left untouched.
func (d *Document) Release(owner string, cells []int) []int {
	d.ensureMaps()
	var released []int
	for _, c := range cells {
		if l, ok := d.Locks[c]; ok && l.Owner == owner {
			delete(d.Locks, c)
			released = append(released, c)
		}
	}
	if len(released) > 0 {
		d.refreshRegions()
	}
	return released
}

// IsHeld reports whether owner holds every cell with at least grace left on the lease.
func (d *Document) IsHeld(owner string, cells []int, grace time.Duration, now time.Time) bool {
	if len(cells) == 0 {
		return false
	}
	return len(d.NotHeld(owner, cells, grace, now)) == 0
}

// NotHeld lists the cells of the selection owner does not hold with at least grace left.
func (d *Document) NotHeld(owner string, cells []int, grace time.Duration, now time.Time) []int {
	deadline := now.Add(grace)
	var missing []int
	for _, c := range cells {
		l, ok := d.Locks[c]
		if _, sold := d.Sold[c]; sold || !ok || l.Owner != owner || !l.SoftExpiry.After(deadline) {
			missing = append(missing, c)
		}
	}
	return missing
}

// OwnedCells lists the cells owner currently holds, sorted.
func (d *Document) OwnedCells(owner string, now time.Time) []int {
	var out []int
	for c, l := range d.Locks {
		if l.Owner == owner && l.ActiveAt(now) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(cur, t time.Time) time.Time {
	if cur.IsZero() || t.Before(cur) {
		return t
	}
	return cur
}
