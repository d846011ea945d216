package grid

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type RejectReason string

const (
	ReasonAlreadySold        RejectReason = "ALREADY_SOLD"
	ReasonLockExpiredMissing RejectReason = "LOCK_EXPIRED_OR_MISSING"
	ReasonPriceMismatch      RejectReason = "PRICE_MISMATCH"
)

// Rejection is a typed refusal to settle. Nothing of the batch has been written when it is returned.
type Rejection struct {
	Reason RejectReason
	Cells  []int
	Detail string
	// AuthoritativeTotal is set on PRICE_MISMATCH, formatted with two decimals.
	AuthoritativeTotal string
}

func (r *Rejection) Error() string {
	var b strings.Builder
	b.WriteString(string(r.Reason))
	if len(r.Cells) > 0 {
		fmt.Fprintf(&b, " cells=%v", r.Cells)
	}
	if r.Detail != "" {
		b.WriteString(": ")
		b.WriteString(r.Detail)
	}
	return b.String()
}

func Reject(reason RejectReason, cells []int, detail string) *Rejection {
	return &Rejection{Reason: reason, Cells: cells, Detail: detail}
}

type SaleMetadata struct {
	Name     string
	LinkURL  string
	ImageURL string
	// Replace overwrites metadata already set on the region instead of keeping the first write.
	Replace bool
}

type Settlement struct {
	Owner    string
	Cells    []int
	RegionID string
	Metadata SaleMetadata
	Grace    time.Duration
}

// AlreadySettled reports whether every cell is sold under regionID, which makes a
// repeated settlement a no-op.
func (d *Document) AlreadySettled(regionID string, cells []int) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		s, ok := d.Sold[c]
		if !ok || s.RegionID != regionID {
			return false
		}
	}
	return true
}

// CheckSettlement validates the lock and sale preconditions against this document.
func (d *Document) CheckSettlement(s Settlement, now time.Time) *Rejection {
	if sold := d.SoldCells(s.Cells); len(sold) > 0 {
		return Reject(ReasonAlreadySold, sold, "")
	}
	if missing := d.NotHeld(s.Owner, s.Cells, s.Grace, now); len(missing) > 0 {
		return Reject(ReasonLockExpiredMissing, missing, "")
	}
	return nil
}

// ApplySettlement writes one sale per cell, drops their locks and upserts the region.
// Callers must have run CheckSettlement on this same document.
func (d *Document) ApplySettlement(s Settlement, now time.Time) Region {
	d.ensureMaps()
	for _, c := range s.Cells {
		d.Sold[c] = Sale{
			Name:     s.Metadata.Name,
			LinkURL:  s.Metadata.LinkURL,
			SoldAt:   now,
			RegionID: s.RegionID,
		}
		delete(d.Locks, c)
	}

	region, ok := d.Regions[s.RegionID]
	if !ok {
		region = Region{ID: s.RegionID, Owner: s.Owner}
	}
	region.CellIndices = slices.Clone(s.Cells)
	region.Rect = BoundingBox(s.Cells)
	region.SoldAt = now
	region.ReservedUntil = time.Time{}
	region.ImageURL = firstWrite(region.ImageURL, s.Metadata.ImageURL, s.Metadata.Replace)
	region.Name = firstWrite(region.Name, s.Metadata.Name, s.Metadata.Replace)
	region.LinkURL = firstWrite(region.LinkURL, s.Metadata.LinkURL, s.Metadata.Replace)
	d.Regions[s.RegionID] = region

	d.refreshRegions()
	return region
}

func firstWrite(current, incoming string, replace bool) string {
	if incoming == "" {
		return current
	}
	if current == "" || replace {
		return incoming
	}
	return current
}
