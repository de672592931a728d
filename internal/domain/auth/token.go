package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingSubject = errors.New("token has no user id")
	ErrUnexpectedAlg  = errors.New("unexpected signing method")
)

// Claims carry who is calling, which plan they are on and which other
// household members granted them read access to their payroll data.
type Claims struct {
	UserID    string   `json:"uid"`
	Plan      string   `json:"plan"`
	Household []string `json:"hh,omitempty"`
	jwt.RegisteredClaims
}

type UserContext struct {
	UserID    string
	Plan      string
	Household []string
}

func (u UserContext) CanRead(subjectID string) bool {
	return subjectID == u.UserID || slices.Contains(u.Household, subjectID)
}

func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrUnexpectedAlg
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

func (c Claims) User() UserContext {
	return UserContext{
		UserID:    c.UserID,
		Plan:      c.Plan,
		Household: slices.Clone(c.Household),
	}
}
