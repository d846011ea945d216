//go:build unit || e2e

package authtest

import (
	"testing"
	"time"

	"pixelgrid/internal/pkg/config"
	"pixelgrid/internal/pkg/jwt"

	"github.com/stretchr/testify/require"
)

type JWTHelper struct {
	service *jwt.Service
}

func NewJWTHelper(cfg config.JWTConfig) *JWTHelper {
	return &JWTHelper{service: jwt.NewService(cfg.Secret, time.Hour)}
}

func (h *JWTHelper) GenerateToken(t *testing.T, uid string) string {
	t.Helper()
	token, err := h.service.GenerateToken(uid)
	require.NoError(t, err)
	return token
}

func (h *JWTHelper) CreateExpiredToken(t *testing.T, uid string) string {
	t.Helper()
	token, err := h.service.GenerateTokenWithExpiry(uid, time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	return token
}
