package services

import (
	"time"

	opschat_errors "opschat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

type AccessClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// AuthService issues and parses bearer tokens. The platform's login/OTP flow
// lives elsewhere; this service only covers what the messaging API needs.
type AuthService struct {
	secret    []byte
	expiryMin int
}

func NewAuthService(secret string, expiryMin int) *AuthService {
	return &AuthService{secret: []byte(secret), expiryMin: expiryMin}
}

func (s *AuthService) IssueAccessToken(userID string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expiryMin) * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *AuthService) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	if tokenString == "" {
		return nil, opschat_errors.ErrUnauthorized
	}
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, opschat_errors.ErrUnauthorized
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, opschat_errors.ErrUnauthorized
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || claims.UserID == "" {
		return nil, opschat_errors.ErrUnauthorized
	}
	return claims, nil
}
