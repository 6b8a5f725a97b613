package auth

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the claims in a dashboard API token
type JWTClaims struct {
	Subject string `json:"subject"`
	Role    string `json:"role"` // "dashboard"
	jwt.RegisteredClaims
}

// jwtSecret signs dashboard tokens. Loaded once from the environment; the
// fallback only exists so local development works without configuration.
var jwtSecret = func() []byte {
	if secret := os.Getenv("API_JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("dev-only-secret")
}()

// GenerateDashboardToken generates a JWT token for dashboard access
func GenerateDashboardToken(subject string) (string, error) {
	claims := &JWTClaims{
		Subject: subject,
		Role:    "dashboard",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
