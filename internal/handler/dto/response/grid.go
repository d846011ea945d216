package response

import (
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/pricing"
	"pixelgrid/internal/usecase/commands"
	"pixelgrid/internal/usecase/queries"

	"github.com/jinzhu/copier"
	"github.com/shopspring/decimal"
)

// moneyConverter renders decimals as two-decimal strings wherever copier meets one.
var moneyConverter = copier.TypeConverter{
	SrcType: decimal.Decimal{},
	DstType: copier.String,
	Fn: func(src any) (any, error) {
		return src.(decimal.Decimal).StringFixed(2), nil
	},
}

var copyOpts = copier.Option{
	DeepCopy:   true,
	Converters: []copier.TypeConverter{moneyConverter},
}

type ReserveResponse struct {
	Granted    []int     `json:"granted"`
	Conflicts  []int     `json:"conflicts"`
	RegionID   string    `json:"regionId,omitempty"`
	LeaseUntil time.Time `json:"leaseUntil,omitzero"`
	HardExpiry time.Time `json:"hardExpiry,omitzero"`
}

type HeartbeatResponse struct {
	Renewed    []int     `json:"renewed"`
	Lost       []int     `json:"lost"`
	LeaseUntil time.Time `json:"leaseUntil,omitzero"`
	HardExpiry time.Time `json:"hardExpiry,omitzero"`
}

type UnlockResponse struct {
	OK       bool  `json:"ok"`
	Released []int `json:"released"`
}

type SaleResponse struct {
	Name     string    `json:"name,omitempty"`
	LinkURL  string    `json:"linkUrl,omitempty"`
	SoldAt   time.Time `json:"soldAt"`
	RegionID string    `json:"regionId"`
}

type LockResponse struct {
	Owner           string    `json:"owner"`
	FirstAcquiredAt time.Time `json:"firstAcquiredAt"`
	SoftExpiry      time.Time `json:"softExpiry"`
	HardExpiry      time.Time `json:"hardExpiry"`
	RegionID        string    `json:"regionId,omitempty"`
}

type RegionResponse struct {
	ID            string    `json:"id"`
	Rect          grid.Rect `json:"rect"`
	CellIndices   []int     `json:"cellIndices"`
	Owner         string    `json:"owner"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	Name          string    `json:"name,omitempty"`
	LinkURL       string    `json:"linkUrl,omitempty"`
	ReservedUntil time.Time `json:"reservedUntil,omitzero"`
	SoldAt        time.Time `json:"soldAt,omitzero"`
}

type GridStatusResponse struct {
	Sold      map[int]SaleResponse      `json:"sold"`
	Locks     map[int]LockResponse      `json:"locks"`
	Regions   map[string]RegionResponse `json:"regions"`
	SoldCount int                       `json:"soldCount"`
	Version   string                    `json:"version"`
	ReadAt    time.Time                 `json:"readAt"`
}

type PriceResponse struct {
	UnitPrice     string `json:"unitPrice"`
	Currency      string `json:"currency"`
	SoldCellCount int    `json:"soldCellCount"`
	TierSize      int    `json:"tierSize"`
}

type QuoteResponse struct {
	UnitPrice string `json:"unitPrice"`
	Total     string `json:"total"`
	CellCount int    `json:"cellCount"`
	SoldCells int    `json:"soldCellCount"`
	Currency  string `json:"currency"`
}

type FinalizeResponse struct {
	OK        bool            `json:"ok"`
	RegionID  string          `json:"regionId"`
	Cells     []int           `json:"cellIndices"`
	UnitPrice string          `json:"unitPrice,omitempty"`
	Total     string          `json:"total,omitempty"`
	Currency  string          `json:"currency"`
	SoldAt    time.Time       `json:"soldAt"`
	Region    *RegionResponse `json:"region,omitempty"`
	Replayed  bool            `json:"replayed"`
}

// RejectionDetail is the body detail of a typed settlement refusal.
type RejectionDetail struct {
	Reason             string `json:"reason"`
	Cells              []int  `json:"cells,omitempty"`
	AuthoritativeTotal string `json:"authoritativeTotal,omitempty"`
}

func FromAcquireResult(r *commands.AcquireResult) (*ReserveResponse, error) {
	resp := &ReserveResponse{}
	if err := copier.CopyWithOption(resp, r, copyOpts); err != nil {
		return nil, err
	}
	resp.Granted, resp.Conflicts = nonNil(resp.Granted), nonNil(resp.Conflicts)
	return resp, nil
}

func FromRenewResult(r *commands.RenewResult) (*HeartbeatResponse, error) {
	resp := &HeartbeatResponse{}
	if err := copier.CopyWithOption(resp, r, copyOpts); err != nil {
		return nil, err
	}
	resp.Renewed, resp.Lost = nonNil(resp.Renewed), nonNil(resp.Lost)
	return resp, nil
}

func FromGridStatus(s *queries.GridStatus) (*GridStatusResponse, error) {
	resp := &GridStatusResponse{
		Sold:      make(map[int]SaleResponse, len(s.Sold)),
		Locks:     make(map[int]LockResponse, len(s.Locks)),
		Regions:   make(map[string]RegionResponse, len(s.Regions)),
		SoldCount: s.SoldCount,
		Version:   string(s.Version),
		ReadAt:    s.ReadAt,
	}
	for cell, sale := range s.Sold {
		var v SaleResponse
		if err := copier.CopyWithOption(&v, sale, copyOpts); err != nil {
			return nil, err
		}
		resp.Sold[cell] = v
	}
	for cell, lock := range s.Locks {
		var v LockResponse
		if err := copier.CopyWithOption(&v, lock, copyOpts); err != nil {
			return nil, err
		}
		resp.Locks[cell] = v
	}
	for id, region := range s.Regions {
		v, err := FromRegion(region)
		if err != nil {
			return nil, err
		}
		resp.Regions[id] = *v
	}
	return resp, nil
}

func FromRegion(r grid.Region) (*RegionResponse, error) {
	v := &RegionResponse{}
	if err := copier.CopyWithOption(v, r, copyOpts); err != nil {
		return nil, err
	}
	v.CellIndices = nonNil(v.CellIndices)
	return v, nil
}

func FromPriceView(p *queries.PriceView) (*PriceResponse, error) {
	resp := &PriceResponse{}
	if err := copier.CopyWithOption(resp, p, copyOpts); err != nil {
		return nil, err
	}
	return resp, nil
}

func FromQuote(q *pricing.Quote) (*QuoteResponse, error) {
	resp := &QuoteResponse{}
	if err := copier.CopyWithOption(resp, q, copyOpts); err != nil {
		return nil, err
	}
	return resp, nil
}

// FromFinalizeResult omits prices on a replay; the original sale priced the cells.
func FromFinalizeResult(r *commands.FinalizeResult) (*FinalizeResponse, error) {
	resp := &FinalizeResponse{OK: true}
	if err := copier.CopyWithOption(resp, r, copyOpts); err != nil {
		return nil, err
	}
	if r.Replayed {
		resp.UnitPrice, resp.Total = "", ""
	}
	region, err := FromRegion(r.Region)
	if err != nil {
		return nil, err
	}
	resp.Region = region
	return resp, nil
}

func FromRejection(r *grid.Rejection) RejectionDetail {
	return RejectionDetail{
		Reason:             string(r.Reason),
		Cells:              r.Cells,
		AuthoritativeTotal: r.AuthoritativeTotal,
	}
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
