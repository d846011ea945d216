package response

import (
	"time"

	"pixelgrid/internal/usecase/commands"
	"pixelgrid/internal/usecase/queries"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type OrderResponse struct {
	ID                uuid.UUID `json:"id"`
	CellIndices       []int     `json:"cellIndices"`
	RegionID          string    `json:"regionId"`
	Name              string    `json:"name,omitempty"`
	LinkURL           string    `json:"linkUrl,omitempty"`
	ImageURL          string    `json:"imageUrl,omitempty"`
	UnitPriceAtQuote  string    `json:"unitPriceAtQuote"`
	TotalAtQuote      string    `json:"totalAtQuote"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	PaymentRef        string    `json:"paymentRef,omitempty"`
	CaptureRef        string    `json:"captureRef,omitempty"`
	NeedsManualRefund bool      `json:"needsManualRefund"`
	FailureReason     string    `json:"failureReason,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type OrderListResponse struct {
	Orders     []*OrderResponse `json:"orders"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

type CaptureResponse struct {
	Status   string            `json:"status"`
	OrderID  uuid.UUID         `json:"orderId"`
	RegionID string            `json:"regionId"`
	Reason   string            `json:"reason,omitempty"`
	Message  string            `json:"message,omitempty"`
	Order    *OrderResponse    `json:"order"`
	Sale     *FinalizeResponse `json:"sale,omitempty"`
}

func FromOrderView(v *queries.OrderView) (*OrderResponse, error) {
	resp := &OrderResponse{}
	if err := copier.CopyWithOption(resp, v, copyOpts); err != nil {
		return nil, err
	}
	resp.CellIndices = nonNil(resp.CellIndices)
	return resp, nil
}

func FromOrderViews(views []*queries.OrderView, next *queries.Cursor) (*OrderListResponse, error) {
	resp := &OrderListResponse{Orders: make([]*OrderResponse, 0, len(views))}
	for _, v := range views {
		o, err := FromOrderView(v)
		if err != nil {
			return nil, err
		}
		resp.Orders = append(resp.Orders, o)
	}
	if next != nil {
		resp.NextCursor = next.After
	}
	return resp, nil
}

func FromCaptureOutcome(out *commands.CaptureOutcome, message string) (*CaptureResponse, error) {
	order, err := FromOrderView(queries.NewOrderView(out.Order))
	if err != nil {
		return nil, err
	}
	resp := &CaptureResponse{
		Status:   order.Status,
		OrderID:  order.ID,
		RegionID: order.RegionID,
		Reason:   out.Reason,
		Message:  message,
		Order:    order,
	}
	if out.Finalize != nil {
		if resp.Sale, err = FromFinalizeResult(out.Finalize); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
