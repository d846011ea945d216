package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingOwner = errors.New("token carries no owner uid")
)

// Claims identify the owner of cell locks and orders. The uid is opaque to this service.
type Claims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

type Service struct {
	secretKey     []byte
	tokenDuration time.Duration
}

func NewService(secretKey string, tokenDuration time.Duration) *Service {
	return &Service{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
	}
}

// GenerateToken mints a token for local tooling and tests; production tokens are issued elsewhere.
func (s *Service) GenerateToken(uid string) (string, error) {
	return s.generate(uid, time.Now(), s.tokenDuration)
}

func (s *Service) GenerateTokenWithExpiry(uid string, issuedAt time.Time, ttl time.Duration) (string, error) {
	return s.generate(uid, issuedAt, ttl)
}

func (s *Service) generate(uid string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.UID == "" {
		claims.UID = claims.Subject
	}
	if claims.UID == "" {
		return nil, ErrMissingOwner
	}

	return claims, nil
}
