// Package auth validates the identity tokens issued by the platform.
// The engine never issues sessions itself; GenerateToken exists for the
// terminal client and tests.
package auth

import (
	"fmt"
	"time"

	"lecture-chat/domain"
	"lecture-chat/errors"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the identity data stored inside the JWT.
type CustomClaims struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserImage string `json:"user_image"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) Verifier {
	return Verifier{secret: secret}
}

// ValidateToken parses and validates the signature and expiration of a JWT
// string and maps its claims to a connection identity.
func (v Verifier) ValidateToken(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrAuth, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok {
		return domain.Identity{}, errors.ErrAuth
	}

	role := domain.Role(claims.Role)
	switch role {
	case domain.RoleStudent, domain.RoleCreator, domain.RoleAdmin:
	default:
		return domain.Identity{}, fmt.Errorf("%w: unknown role %q", errors.ErrAuth, claims.Role)
	}

	return domain.Identity{
		UserID:    claims.UserID,
		UserName:  claims.UserName,
		UserImage: claims.UserImage,
		Role:      role,
	}, nil
}

// GenerateToken creates a signed JWT for a specific identity.
func (v Verifier) GenerateToken(id domain.Identity, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:    id.UserID,
		UserName:  id.UserName,
		UserImage: id.UserImage,
		Role:      string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "lecture-chat",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
