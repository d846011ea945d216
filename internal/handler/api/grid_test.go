//go:build unit

package api_test

import (
	"net/http"
	"testing"
	"time"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/domain/pricing"
	"pixelgrid/internal/handler/api"
	"pixelgrid/internal/handler/middleware"
	"pixelgrid/internal/usecase/commands"
	"pixelgrid/internal/usecase/queries"
	"pixelgrid/internal/usecase/shared"
	"pixelgrid/tests/common/builder"
	"pixelgrid/tests/common/httptest"
	"pixelgrid/tests/common/testutil"
	commandsmock "pixelgrid/tests/mock/commands"
	queriesmock "pixelgrid/tests/mock/queries"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeAuth authenticates any bearer token as the owner "alice".
func fakeAuth(c *gin.Context) {
	if c.GetHeader("Authorization") == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Unauthorized"}})
		return
	}
	middleware.SetOwner(c, "alice")
	c.Next()
}

type GridHandlerTestSuite struct {
	suite.Suite
	router        *gin.Engine
	mockCtrl      *gomock.Controller
	mockLocks     *commandsmock.MockLockCommands
	mockFinalizer *commandsmock.MockFinalizeCommands
	mockQueries   *queriesmock.MockGridQueries
}

func (s *GridHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()

	s.mockCtrl = gomock.NewController(s.T())
	s.mockLocks = commandsmock.NewMockLockCommands(s.mockCtrl)
	s.mockFinalizer = commandsmock.NewMockFinalizeCommands(s.mockCtrl)
	s.mockQueries = queriesmock.NewMockGridQueries(s.mockCtrl)
	h := api.NewGridHandler(s.mockLocks, s.mockFinalizer, s.mockQueries)

	s.router.GET("/grid/status", h.Status)
	s.router.GET("/grid/price", h.Price)
	s.router.GET("/grid/quote", h.Quote)
	s.router.POST("/grid/reserve", fakeAuth, h.Reserve)
	s.router.POST("/grid/heartbeat", fakeAuth, h.Heartbeat)
	s.router.POST("/grid/unlock", fakeAuth, h.Unlock)
	s.router.POST("/grid/finalize", fakeAuth, h.Finalize)
}

func (s *GridHandlerTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func TestGridHandlerSuite(t *testing.T) {
	suite.Run(t, new(GridHandlerTestSuite))
}

// ================================================================================
// Reserve / Heartbeat / Unlock
// ================================================================================

func (s *GridHandlerTestSuite) TestReserve() {
	url := "/grid/reserve"
	reqBody := map[string]any{"cellIndices": []int{1, 2, 3}, "leaseMs": 30000}

	s.Run("success: granted and conflicting cells", func() {
		s.mockLocks.EXPECT().Acquire(gomock.Any(), "alice", []int{1, 2, 3}, 30*time.Second).
			Return(&commands.AcquireResult{
				Granted:    []int{1, 2},
				Conflicts:  []int{3},
				RegionID:   "region-1",
				LeaseUntil: t0.Add(30 * time.Second),
				HardExpiry: t0.Add(10 * time.Minute),
			}, nil)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "token")

		var body struct {
			Granted   []int  `json:"granted"`
			Conflicts []int  `json:"conflicts"`
			RegionID  string `json:"regionId"`
		}
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
		s.Equal([]int{1, 2}, body.Granted)
		s.Equal([]int{3}, body.Conflicts)
		s.Equal("region-1", body.RegionID)
	})

	s.Run("success: nothing granted renders empty arrays", func() {
		s.mockLocks.EXPECT().Acquire(gomock.Any(), "alice", gomock.Any(), gomock.Any()).
			Return(&commands.AcquireResult{Conflicts: []int{1, 2, 3}}, nil)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "token")

		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"granted":[]`)
	})

	validation := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{name: "missing cellIndices", mutate: testutil.Field("cellIndices", nil)},
		{name: "empty cellIndices", mutate: testutil.Field("cellIndices", []int{})},
		{name: "cell above grid", mutate: testutil.Field("cellIndices", []int{10000})},
		{name: "negative cell", mutate: testutil.Field("cellIndices", []int{-1})},
		{name: "negative lease", mutate: testutil.Field("leaseMs", -5)},
	}
	for _, tc := range validation {
		s.Run("error: 400 on "+tc.name, func() {
			rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, testutil.DtoMap(s.T(), reqBody, tc.mutate), "token")
			httptest.AssertErrorResponse(s.T(), rec, http.StatusBadRequest, "Invalid request")
		})
	}

	s.Run("error: 401 without token", func() {
		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("error: 503 with Retry-After on store contention", func() {
		s.mockLocks.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, shared.ErrStoreContention)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "token")

		httptest.AssertErrorResponse(s.T(), rec, http.StatusServiceUnavailable, "retry later")
		httptest.AssertHeaders(s.T(), rec, map[string]string{"Retry-After": "1"})
	})
}

func (s *GridHandlerTestSuite) TestHeartbeat() {
	s.mockLocks.EXPECT().Renew(gomock.Any(), "alice", []int{4}, time.Duration(0)).
		Return(&commands.RenewResult{Lost: []int{4}}, nil)

	rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, "/grid/heartbeat", map[string]any{"cellIndices": []int{4}}, "token")

	var body struct {
		Renewed []int `json:"renewed"`
		Lost    []int `json:"lost"`
	}
	httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
	s.Empty(body.Renewed)
	s.Equal([]int{4}, body.Lost)
}

func (s *GridHandlerTestSuite) TestUnlock() {
	s.mockLocks.EXPECT().Release(gomock.Any(), "alice", []int{4, 5}).Return(nil, nil)

	rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, "/grid/unlock", map[string]any{"cellIndices": []int{4, 5}}, "token")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"ok":true,"released":[]}`, rec.Body.String())
}

// ================================================================================
// Finalize
// ================================================================================

func (s *GridHandlerTestSuite) TestFinalize() {
	url := "/grid/finalize"
	b := builder.NewOrderBuilder()
	reqBody := b.BuildFinalizeRequestDTO()

	s.Run("success: returns the sale", func() {
		s.mockFinalizer.EXPECT().Finalize(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, in commands.FinalizeInput) (*commands.FinalizeResult, error) {
				s.Equal("alice", in.Owner)
				s.Equal(b.RegionID(), in.RegionID)
				s.True(in.ExpectedTotal.Equal(b.Total))
				s.Nil(in.OrderID)
				return &commands.FinalizeResult{
					RegionID:  in.RegionID,
					Cells:     in.Cells,
					UnitPrice: decimal.RequireFromString("1"),
					Total:     decimal.RequireFromString("400"),
					Currency:  "USD",
					SoldAt:    t0,
					Region:    grid.Region{ID: in.RegionID, Owner: "alice", CellIndices: in.Cells},
				}, nil
			})

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "token")

		var body struct {
			OK       bool   `json:"ok"`
			RegionID string `json:"regionId"`
			Total    string `json:"total"`
			Replayed bool   `json:"replayed"`
		}
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
		s.True(body.OK)
		s.Equal(b.RegionID(), body.RegionID)
		s.Equal("400.00", body.Total)
		s.False(body.Replayed)
	})

	rejections := []struct {
		name       string
		rejection  *grid.Rejection
		wantCode   int
		wantReason string
	}{
		{name: "already sold", rejection: grid.Reject(grid.ReasonAlreadySold, []int{1}, ""), wantCode: http.StatusConflict, wantReason: "ALREADY_SOLD"},
		{name: "lock expired", rejection: grid.Reject(grid.ReasonLockExpiredMissing, []int{0}, ""), wantCode: http.StatusGone, wantReason: "LOCK_EXPIRED_OR_MISSING"},
		{name: "price mismatch", rejection: &grid.Rejection{Reason: grid.ReasonPriceMismatch, AuthoritativeTotal: "404.00"}, wantCode: http.StatusConflict, wantReason: "PRICE_MISMATCH"},
	}
	for _, tc := range rejections {
		s.Run("error: "+tc.name, func() {
			s.mockFinalizer.EXPECT().Finalize(gomock.Any(), gomock.Any()).Return(nil, tc.rejection)

			rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, reqBody, "token")

			s.Equal(tc.wantCode, rec.Code)
			var body struct {
				Detail struct {
					Reason             string `json:"reason"`
					AuthoritativeTotal string `json:"authoritativeTotal"`
				} `json:"detail"`
			}
			httptest.DecodeResponseBody(s.T(), rec.Body, &body)
			s.Equal(tc.wantReason, body.Detail.Reason)
			s.Equal(tc.rejection.AuthoritativeTotal, body.Detail.AuthoritativeTotal)
		})
	}

	validation := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{name: "regionId not a uuid", mutate: testutil.Field("regionId", "r-1")},
		{name: "missing expectedTotal", mutate: testutil.Field("expectedTotal", nil)},
		{name: "bad link url", mutate: testutil.Field("saleMetadata", map[string]any{"linkUrl": "not a url"})},
	}
	for _, tc := range validation {
		s.Run("error: 400 on "+tc.name, func() {
			rec := httptest.PerformRequest(s.T(), s.router, http.MethodPost, url, testutil.DtoMap(s.T(), reqBody, tc.mutate), "token")
			s.Equal(http.StatusBadRequest, rec.Code)
		})
	}
}

// ================================================================================
// Public reads
// ================================================================================

func (s *GridHandlerTestSuite) TestStatus() {
	s.mockQueries.EXPECT().Status(gomock.Any()).Return(&queries.GridStatus{
		Sold:      map[int]grid.Sale{7: {RegionID: "r-1", SoldAt: t0}},
		Locks:     map[int]grid.Lock{},
		Regions:   map[string]grid.Region{"r-1": {ID: "r-1", Owner: "bob", CellIndices: []int{7}, SoldAt: t0}},
		SoldCount: 1,
		Version:   "v1",
		ReadAt:    t0,
	}, nil)

	rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/grid/status", nil, "")

	var body struct {
		Sold      map[string]map[string]any `json:"sold"`
		SoldCount int                       `json:"soldCount"`
		Version   string                    `json:"version"`
	}
	httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
	s.Equal(1, body.SoldCount)
	s.Equal("r-1", body.Sold["7"]["regionId"])
	s.Equal("v1", body.Version)
}

func (s *GridHandlerTestSuite) TestPrice() {
	s.mockQueries.EXPECT().Price(gomock.Any()).Return(&queries.PriceView{
		UnitPrice:     decimal.RequireFromString("1.01"),
		Currency:      "USD",
		SoldCellCount: 10,
		TierSize:      10,
	}, nil)

	rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/grid/price", nil, "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"unitPrice":"1.01","currency":"USD","soldCellCount":10,"tierSize":10}`, rec.Body.String())
}

func (s *GridHandlerTestSuite) TestQuote() {
	s.Run("success: parses the cell list", func() {
		s.mockQueries.EXPECT().Quote(gomock.Any(), []int{1, 2}).Return(&pricing.Quote{
			UnitPrice: decimal.RequireFromString("1"),
			Total:     decimal.RequireFromString("200"),
			Currency:  "USD",
		}, nil)

		rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/grid/quote?cells=1,%202", nil, "")

		var body map[string]any
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
		s.Equal("200.00", body["total"])
	})

	for _, raw := range []string{"", "a", "1,,2"} {
		s.Run("error: 400 on cells="+raw, func() {
			rec := httptest.PerformRequest(s.T(), s.router, http.MethodGet, "/grid/quote?cells="+raw, nil, "")
			httptest.AssertErrorResponse(s.T(), rec, http.StatusBadRequest, "Invalid cells parameter")
		})
	}
}
