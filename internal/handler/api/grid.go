package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	reqdto "pixelgrid/internal/handler/dto/request"
	resdto "pixelgrid/internal/handler/dto/response"
	"pixelgrid/internal/handler/httperr"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/commands"
	"pixelgrid/internal/usecase/queries"

	"github.com/gin-gonic/gin"
)

type GridHandler struct {
	locks     commands.LockCommands
	finalizer commands.FinalizeCommands
	q         queries.GridQueries
}

func NewGridHandler(locks commands.LockCommands, finalizer commands.FinalizeCommands, q queries.GridQueries) *GridHandler {
	return &GridHandler{locks: locks, finalizer: finalizer, q: q}
}

// @Summary Reserve cells
// @Description Lock the free cells of a selection for the caller; taken cells come back as conflicts
// @Tags grid
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.ReserveRequest true "Reserve request"
// @Success 200 {object} resdto.ReserveResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Failure 429 {object} httperr.Response
// @Failure 503 {object} httperr.Response
// @Router /api/grid/reserve [post]
func (h *GridHandler) Reserve(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var req reqdto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request", nil)
		return
	}
	res, err := h.locks.Acquire(c.Request.Context(), owner, req.CellIndices, time.Duration(req.LeaseMs)*time.Millisecond)
	if err != nil {
		abortWithUsecaseError(c, err, "Reserve failed")
		return
	}
	resp, err := resdto.FromAcquireResult(res)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal error", nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Lease heartbeat
// @Description Extend the caller's leases on held cells, never past their hard expiry
// @Tags grid
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.HeartbeatRequest true "Heartbeat request"
// @Success 200 {object} resdto.HeartbeatResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Failure 429 {object} httperr.Response
// @Router /api/grid/heartbeat [post]
func (h *GridHandler) Heartbeat(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var req reqdto.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request", nil)
		return
	}
	res, err := h.locks.Renew(c.Request.Context(), owner, req.CellIndices, time.Duration(req.LeaseMs)*time.Millisecond)
	if err != nil {
		abortWithUsecaseError(c, err, "Heartbeat failed")
		return
	}
	resp, err := resdto.FromRenewResult(res)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal error", nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Release cells
// @Tags grid
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.UnlockRequest true "Unlock request"
// @Success 200 {object} resdto.UnlockResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Router /api/grid/unlock [post]
func (h *GridHandler) Unlock(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var req reqdto.UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request", nil)
		return
	}
	released, err := h.locks.Release(c.Request.Context(), owner, req.CellIndices)
	if err != nil {
		abortWithUsecaseError(c, err, "Unlock failed")
		return
	}
	if released == nil {
		released = []int{}
	}
	c.JSON(http.StatusOK, resdto.UnlockResponse{OK: true, Released: released})
}

// @Summary Finalize sale
// @Description Settle held cells as sold at the authoritative price
// @Tags grid
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body reqdto.FinalizeRequest true "Finalize request"
// @Success 200 {object} resdto.FinalizeResponse
// @Failure 400 {object} httperr.Response
// @Failure 401 {object} httperr.Response
// @Failure 409 {object} httperr.Response "ALREADY_SOLD or PRICE_MISMATCH"
// @Failure 410 {object} httperr.Response "LOCK_EXPIRED_OR_MISSING"
// @Failure 503 {object} httperr.Response
// @Router /api/grid/finalize [post]
func (h *GridHandler) Finalize(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	var req reqdto.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid request", nil)
		return
	}
	res, err := h.finalizer.Finalize(c.Request.Context(), commands.FinalizeInput{
		Owner:         owner,
		Cells:         req.CellIndices,
		RegionID:      req.RegionID,
		Metadata:      req.SaleMetadata.ToDomain(),
		ExpectedTotal: *req.ExpectedTotal,
	})
	if err != nil {
		abortWithUsecaseError(c, err, "Finalize failed")
		return
	}
	resp, err := resdto.FromFinalizeResult(res)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal error", nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Grid status
// @Description Sold cells, locks still in force and live regions
// @Tags grid
// @Produce json
// @Success 200 {object} resdto.GridStatusResponse
// @Failure 503 {object} httperr.Response
// @Router /api/grid/status [get]
func (h *GridHandler) Status(c *gin.Context) {
	status, err := h.q.Status(c.Request.Context())
	if err != nil {
		abortWithUsecaseError(c, err, "Failed to read grid")
		return
	}
	resp, err := resdto.FromGridStatus(status)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal error", nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Current unit price
// @Tags grid
// @Produce json
// @Success 200 {object} resdto.PriceResponse
// @Router /api/grid/price [get]
func (h *GridHandler) Price(c *gin.Context) {
	price, err := h.q.Price(c.Request.Context())
	if err != nil {
		abortWithUsecaseError(c, err, "Failed to read price")
		return
	}
	resp, err := resdto.FromPriceView(price)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal error", nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Quote a selection
// @Description Advisory price for a selection; finalization re-prices authoritatively
// @Tags grid
// @Produce json
// @Param cells query string true "Comma separated cell indices"
// @Success 200 {object} resdto.QuoteResponse
// @Failure 400 {object} httperr.Response
// @Router /api/grid/quote [get]
func (h *GridHandler) Quote(c *gin.Context) {
	cells, err := parseCells(c.Query("cells"))
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid cells parameter", nil)
		return
	}
	quote, err := h.q.Quote(c.Request.Context(), cells)
	if err != nil {
		abortWithUsecaseError(c, err, "Quote failed")
		return
	}
	resp, err := resdto.FromQuote(quote)
	if err != nil {
		httperr.AbortWithError(c, http.StatusInternalServerError, err, "Internal error", nil)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func parseCells(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errs.Mark(errs.New("cells required"), errs.ErrInvalidSelection)
	}
	parts := strings.Split(raw, ",")
	cells := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errs.Mark(errs.Wrapf(err, "cell %q", p), errs.ErrInvalidSelection)
		}
		cells = append(cells, n)
	}
	return cells, nil
}
