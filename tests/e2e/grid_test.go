//go:build e2e

package e2e

import (
	"net/http"
	"sync"
	"testing"

	"pixelgrid/internal/pkg/config"
	"pixelgrid/tests/common/authtest"
	"pixelgrid/tests/common/dbtest"
	"pixelgrid/tests/common/httptest"

	"github.com/stretchr/testify/suite"
)

type GridTestSuite struct {
	SharedSuite
	jwt *authtest.JWTHelper
}

func (s *GridTestSuite) SetupSuite() {
	s.SharedSuite.SetupSuite()
	s.jwt = authtest.NewJWTHelper(s.Config.JWT)
}

func TestGridPostgresSuite(t *testing.T) {
	suite.Run(t, new(GridTestSuite))
}

func TestGridRedisSuite(t *testing.T) {
	s := new(GridTestSuite)
	s.Driver = config.StoreDriverRedis
	suite.Run(t, s)
}

type reserveResponse struct {
	Granted   []int  `json:"granted"`
	Conflicts []int  `json:"conflicts"`
	RegionID  string `json:"regionId"`
}

func (s *GridTestSuite) reserve(token string, cells ...int) reserveResponse {
	rec := httptest.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/grid/reserve",
		map[string]any{"cellIndices": cells}, token)
	var body reserveResponse
	httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
	return body
}

func (s *GridTestSuite) TestReserveAndFinalize() {
	alice := s.jwt.GenerateToken(s.T(), "alice")
	bob := s.jwt.GenerateToken(s.T(), "bob")

	held := s.reserve(alice, 0, 1, 100, 101)
	s.Equal([]int{0, 1, 100, 101}, held.Granted)
	s.Empty(held.Conflicts)

	s.Run("a competing reserve only gets the free cells", func() {
		got := s.reserve(bob, 1, 2)
		s.Equal([]int{2}, got.Granted)
		s.Equal([]int{1}, got.Conflicts)
	})

	s.Run("quote matches the tier price", func() {
		rec := httptest.PerformRequest(s.T(), s.Router, http.MethodGet, "/api/grid/quote?cells=0,1,100,101", nil, "")
		var body map[string]any
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
		s.Equal("400.00", body["total"])
	})

	s.Run("finalize at a stale price is rejected", func() {
		rec := httptest.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/grid/finalize", map[string]any{
			"cellIndices":   []int{0, 1, 100, 101},
			"regionId":      held.RegionID,
			"expectedTotal": "399.00",
		}, alice)
		httptest.AssertErrorResponse(s.T(), rec, http.StatusConflict, "Price changed")
	})

	s.Run("finalize sells the cells", func() {
		req := map[string]any{
			"cellIndices":   []int{0, 1, 100, 101},
			"regionId":      held.RegionID,
			"expectedTotal": "400.00",
			"saleMetadata":  map[string]any{"name": "Alice", "linkUrl": "https://alice.example"},
		}
		rec := httptest.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/grid/finalize", req, alice)
		var body map[string]any
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
		s.Equal(false, body["replayed"])
		s.Equal(4, dbtest.CountRows(s.T(), s.DB, "cell_sales"))

		rec = httptest.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/grid/finalize", req, alice)
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &body)
		s.Equal(true, body["replayed"])
	})

	s.Run("sold cells show in status and move the price", func() {
		rec := httptest.PerformRequest(s.T(), s.Router, http.MethodGet, "/api/grid/status", nil, "")
		var status struct {
			Sold      map[string]any `json:"sold"`
			Locks     map[string]any `json:"locks"`
			SoldCount int            `json:"soldCount"`
		}
		httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &status)
		s.Equal(4, status.SoldCount)
		s.Contains(status.Sold, "100")
		s.Contains(status.Locks, "2")
		s.NotContains(status.Locks, "0")

		got := s.reserve(bob, 0, 3)
		s.Equal([]int{3}, got.Granted)
		s.Equal([]int{0}, got.Conflicts)
	})
}

func (s *GridTestSuite) TestConcurrentReservesGrantEachCellOnce() {
	owners := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	results := make([]reserveResponse, len(owners))

	var wg sync.WaitGroup
	for i, owner := range owners {
		token := s.jwt.GenerateToken(s.T(), owner)
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.reserve(token, 500, 501, 502)
		}()
	}
	wg.Wait()

	granted := map[int]int{}
	for _, r := range results {
		for _, c := range r.Granted {
			granted[c]++
		}
	}
	s.Equal(map[int]int{500: 1, 501: 1, 502: 1}, granted)
}

func (s *GridTestSuite) TestHeartbeatAndUnlock() {
	alice := s.jwt.GenerateToken(s.T(), "alice")
	s.reserve(alice, 40, 41)

	rec := httptest.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/grid/heartbeat",
		map[string]any{"cellIndices": []int{40, 41, 42}}, alice)
	var hb struct {
		Renewed []int `json:"renewed"`
		Lost    []int `json:"lost"`
	}
	httptest.AssertSuccessResponse(s.T(), rec, http.StatusOK, &hb)
	s.Equal([]int{40, 41}, hb.Renewed)
	s.Equal([]int{42}, hb.Lost)

	rec = httptest.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/grid/unlock",
		map[string]any{"cellIndices": []int{40, 41}}, alice)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"ok":true,"released":[40,41]}`, rec.Body.String())
}

func (s *GridTestSuite) TestAuthRequired() {
	rec := httptest.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/grid/reserve", map[string]any{"cellIndices": []int{1}}, "")
	s.Equal(http.StatusUnauthorized, rec.Code)

	expired := s.jwt.CreateExpiredToken(s.T(), "alice")
	rec = httptest.PerformRequest(s.T(), s.Router, http.MethodPost, "/api/grid/reserve", map[string]any{"cellIndices": []int{1}}, expired)
	s.Equal(http.StatusUnauthorized, rec.Code)
}
