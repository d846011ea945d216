package api

import (
	"net/http"

	"pixelgrid/internal/domain/grid"
	resdto "pixelgrid/internal/handler/dto/response"
	"pixelgrid/internal/handler/httperr"
	"pixelgrid/internal/handler/middleware"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/commands"
	"pixelgrid/internal/usecase/queries"
	"pixelgrid/internal/usecase/shared"

	"github.com/gin-gonic/gin"
)

// abortWithUsecaseError maps use case errors onto HTTP statuses. Unknown errors become 500.
func abortWithUsecaseError(c *gin.Context, err error, fallback string) {
	var rej *grid.Rejection
	if errs.As(err, &rej) {
		status := http.StatusConflict
		msg := "Cells already sold"
		switch rej.Reason {
		case grid.ReasonLockExpiredMissing:
			status, msg = http.StatusGone, "Lock expired or missing"
		case grid.ReasonPriceMismatch:
			msg = "Price changed"
		}
		httperr.AbortWithError(c, status, err, msg, resdto.FromRejection(rej))
		return
	}

	switch {
	case errs.Is(err, errs.ErrUnauthorized):
		httperr.AbortWithError(c, http.StatusUnauthorized, err, "Unauthorized", nil)
	case errs.Is(err, errs.ErrInvalidSelection):
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid cell selection", nil)
	case errs.Is(err, queries.ErrInvalidCursor):
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid cursor", nil)
	case errs.Is(err, shared.ErrOrderNotFound):
		httperr.AbortWithError(c, http.StatusNotFound, err, "Order not found", nil)
	case errs.Is(err, commands.ErrPaymentRefMismatch):
		httperr.AbortWithError(c, http.StatusConflict, err, "Payment reference does not match order", nil)
	case errs.Is(err, commands.ErrOrderNotPayable):
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Order has no payment attached", nil)
	case errs.Is(err, shared.ErrPaymentNotApproved):
		httperr.AbortWithError(c, http.StatusConflict, err, "Payment not approved yet", nil)
	case errs.Is(err, shared.ErrPaymentDeclined):
		httperr.AbortWithError(c, http.StatusPaymentRequired, err, "Payment declined", nil)
	case errs.Is(err, shared.ErrPaymentNotFound):
		httperr.AbortWithError(c, http.StatusNotFound, err, "Payment not found", nil)
	case errs.Is(err, shared.ErrInvalidWebhookSignature):
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid webhook", nil)
	case errs.Is(err, shared.ErrProviderUnavailable):
		httperr.AbortWithError(c, http.StatusBadGateway, err, "Payment provider unavailable", nil)
	case errs.Is(err, shared.ErrStoreContention), errs.Is(err, errs.ErrStoreUnavailable):
		c.Header("Retry-After", "1")
		httperr.AbortWithError(c, http.StatusServiceUnavailable, err, "Service busy, retry later", nil)
	default:
		httperr.AbortWithError(c, http.StatusInternalServerError, err, fallback, nil)
	}
}

func requireOwner(c *gin.Context) (string, bool) {
	owner, ok := middleware.GetOwner(c)
	if !ok {
		httperr.AbortWithError(c, http.StatusUnauthorized, errs.ErrUnauthorized, "Unauthorized", nil)
		return "", false
	}
	return owner, true
}
