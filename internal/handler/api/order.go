package api

import (
	"net/http"
	"strconv"

	"pixelgrid/internal/domain/order"
	reqdto "pixelgrid/internal/handler/dto/request"
	resdto "pixelgrid/internal/handler/dto/response"
	"pixelgrid/internal/handler/httperr"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/commands"
	"pixelgrid/internal/usecase/queries"
	"pixelgrid/internal/usecase/shared"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const pendingMessage = "payment processing, check back later"

type OrderHandler struct {
	checkout commands.CheckoutCommands
	q        queries.OrderQueries
}

func NewOrderHandler(checkout commands.CheckoutCommands, q queries.OrderQueries) *OrderHandler {
	return &OrderHandler{checkout: checkout, q: q}
}

// @Summary Create order
// @Description Quote held cells, open a provider payment and persist a pending order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.CreateOrderRequest true "Create order request"
// @Success 201 {object} resdto.OrderResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Failure 409 {object} httperr.Response
// @Failure 410 {object} httperr.Response
// @Failure 502 {object} httperr.Response
// @Router /api/orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var req reqdto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request", nil)
		return
	}
	o, err := h.checkout.CreateOrder(c.Request.Context(), commands.CreateOrderInput{
		Owner:         owner,
		Cells:         req.CellIndices,
		RegionID:      req.RegionID,
		Metadata:      req.SaleMetadata.ToDomain(),
		ExpectedTotal: *req.ExpectedTotal,
	})
	if err != nil {
		abortWithUsecaseError(c, err, "Create order failed")
		return
	}
	resp, err := resdto.FromOrderView(queries.NewOrderView(o))
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal error", nil)
		return
	}
	c.Header("Location", "/api/orders/"+o.ID().String())
	c.JSON(http.StatusCreated, resp)
}

// @Summary Get order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} resdto.OrderResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Router /api/orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid id", nil)
		return
	}
	view, err := h.q.GetByID(c.Request.Context(), owner, id)
	if err != nil {
		abortWithUsecaseError(c, err, "Failed to load order")
		return
	}
	resp, err := resdto.FromOrderView(view)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal error", nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary List own orders
// @Description Newest first with keyset pagination
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max items (default 20)"
// @Param after query string false "Cursor for keyset pagination"
// @Success 200 {object} resdto.OrderListResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Router /api/orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	limit := queries.DefaultListLimit
	if v := c.Query("limit"); v != "" {
		if iv, e := strconv.Atoi(v); e == nil {
			limit = queries.ValidateLimit(iv)
		}
	}
	var cursor *queries.Cursor
	if after := c.Query("after"); after != "" {
		cursor = &queries.Cursor{After: after}
	}
	views, next, err := h.q.ListByOwner(c.Request.Context(), owner, cursor, limit)
	if err != nil {
		abortWithUsecaseError(c, err, "Failed to list orders")
		return
	}
	resp, err := resdto.FromOrderViews(views, next)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal error", nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Capture and finalize
// @Description Capture the approved payment and settle the cells. An unknown provider outcome answers 202 with status pending.
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.CaptureRequest true "Capture request"
// @Success 200 {object} resdto.CaptureResponse
// @Success 202 {object} resdto.CaptureResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Failure 502 {object} httperr.Response
// @Router /api/orders/capture [post]
func (h *OrderHandler) Capture(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var req reqdto.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request", nil)
		return
	}
	out, err := h.checkout.CaptureAndFinalize(c.Request.Context(), owner, req.OrderID, req.ExternalPaymentRef)
	h.respondOutcome(c, out, err, "Capture failed")
}

// @Summary Reconcile order
// @Description Poll the provider and drive an order left pending, stale or awaiting refund
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} resdto.CaptureResponse
// @Success 202 {object} resdto.CaptureResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Failure 404 {object} httperr.Response
// @Router /api/orders/{id}/reconcile [post]
func (h *OrderHandler) Reconcile(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid id", nil)
		return
	}
	out, err := h.checkout.Reconcile(c.Request.Context(), owner, id)
	h.respondOutcome(c, out, err, "Reconcile failed")
}

// respondOutcome answers 202 while money may still move and 200 once the order is terminal.
func (h *OrderHandler) respondOutcome(c *gin.Context, out *commands.CaptureOutcome, err error, fallback string) {
	if err != nil && (out == nil || !errs.Is(err, shared.ErrPaymentOutcomeUnknown)) {
		abortWithUsecaseError(c, err, fallback)
		return
	}

	status := http.StatusOK
	message := ""
	if !out.Order.Status().IsTerminal() {
		status, message = http.StatusAccepted, pendingMessage
	}
	if out.Order.Status() == order.StatusRefundFailed {
		message = "refund could not be completed automatically, support will follow up"
	}
	resp, convErr := resdto.FromCaptureOutcome(out, message)
	if convErr != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, convErr, "Internal error", nil)
		return
	}
	c.JSON(status, resp)
}
