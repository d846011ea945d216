package request

import (
	"pixelgrid/internal/domain/grid"

	"github.com/shopspring/decimal"
)

type ReserveRequest struct {
	CellIndices []int `json:"cellIndices" binding:"required,min=1,max=10000,dive,min=0,max=9999"`
	// LeaseMs of zero selects the configured default lease.
	LeaseMs int64 `json:"leaseMs" binding:"omitempty,min=0"`
}

type HeartbeatRequest struct {
	CellIndices []int `json:"cellIndices" binding:"required,min=1,max=10000,dive,min=0,max=9999"`
	LeaseMs     int64 `json:"leaseMs" binding:"omitempty,min=0"`
}

type UnlockRequest struct {
	CellIndices []int `json:"cellIndices" binding:"required,min=1,max=10000,dive,min=0,max=9999"`
}

type SaleMetadataRequest struct {
	Name     string `json:"name" binding:"max=200"`
	LinkURL  string `json:"linkUrl" binding:"omitempty,url,max=2048"`
	ImageURL string `json:"imageUrl" binding:"omitempty,url,max=2048"`
	// ReplaceMetadata overwrites a name, link or image already set on the region.
	ReplaceMetadata bool `json:"replaceMetadata"`
}

func (r SaleMetadataRequest) ToDomain() grid.SaleMetadata {
	return grid.SaleMetadata{
		Name:     r.Name,
		LinkURL:  r.LinkURL,
		ImageURL: r.ImageURL,
		Replace:  r.ReplaceMetadata,
	}
}

type FinalizeRequest struct {
	CellIndices   []int               `json:"cellIndices" binding:"required,min=1,max=10000,dive,min=0,max=9999"`
	RegionID      string              `json:"regionId" binding:"required,uuid"`
	SaleMetadata  SaleMetadataRequest `json:"saleMetadata"`
	ExpectedTotal *decimal.Decimal    `json:"expectedTotal" binding:"required"`
}
