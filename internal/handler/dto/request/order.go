package request

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	CellIndices   []int               `json:"cellIndices" binding:"required,min=1,max=10000,dive,min=0,max=9999"`
	RegionID      string              `json:"regionId" binding:"required,uuid"`
	SaleMetadata  SaleMetadataRequest `json:"saleMetadata"`
	ExpectedTotal *decimal.Decimal    `json:"expectedTotal" binding:"required"`
}

type CaptureRequest struct {
	OrderID            uuid.UUID `json:"orderId" binding:"required"`
	ExternalPaymentRef string    `json:"externalPaymentRef" binding:"max=128"`
}
