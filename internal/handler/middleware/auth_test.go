//go:build unit

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"pixelgrid/internal/handler/middleware"
	"pixelgrid/internal/pkg/errs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubValidator map[string]string

func (v stubValidator) ValidateToken(token string) (string, error) {
	if owner, ok := v[token]; ok {
		return owner, nil
	}
	return "", errs.ErrUnauthorized
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := middleware.NewAuthMiddleware(stubValidator{"good": "alice"})
	router := gin.New()
	router.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		owner, ok := middleware.GetOwner(c)
		assert.True(t, ok)
		c.String(http.StatusOK, owner)
	})

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "valid token", header: "Bearer good", wantCode: http.StatusOK, wantBody: "alice"},
		{name: "missing header", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", wantCode: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer bad", wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := middleware.NewAuthMiddleware(stubValidator{"good": "alice"})
	router := gin.New()
	router.GET("/grid", auth.OptionalAuth(), func(c *gin.Context) {
		owner, _ := middleware.GetOwner(c)
		c.String(http.StatusOK, owner)
	})

	for header, want := range map[string]string{"Bearer good": "alice", "Bearer bad": "", "": ""} {
		req := httptest.NewRequest(http.MethodGet, "/grid", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, rec.Body.String())
	}
}
