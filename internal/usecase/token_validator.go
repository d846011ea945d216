package usecase

import (
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/pkg/jwt"
)

// TokenValidator resolves a bearer token to the owner uid used for locks and orders.
type TokenValidator interface {
	ValidateToken(tokenString string) (string, error)
}

type tokenValidatorImpl struct {
	jwtService *jwt.Service
}

func NewTokenValidator(jwtService *jwt.Service) TokenValidator {
	return &tokenValidatorImpl{
		jwtService: jwtService,
	}
}

func (t *tokenValidatorImpl) ValidateToken(tokenString string) (string, error) {
	claims, err := t.jwtService.ValidateToken(tokenString)
	if err != nil {
		return "", errs.Mark(err, errs.ErrUnauthorized)
	}
	return claims.UID, nil
}
