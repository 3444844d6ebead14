package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const ClaimsContextKey ContextKey = "claims"

// Claims carried in a repotutor access token.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the optional bearer-token gate. Tokens are minted out of
// band with the shared secret; there is no login flow.
type Config struct {
	Enabled bool
	Secret  []byte
}

// GenerateToken mints an HS256 token for distribution to clients.
func (c *Config) GenerateToken(subject string, ttl time.Duration) (string, error) {
	if len(c.Secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	claims := Claims{
		Name: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   subject,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.Secret)
}

// Validate parses and checks a bearer token.
func (c *Config) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return c.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// Middleware enforces a bearer token when auth is enabled.
// If auth is disabled, it allows all requests through.
func (c *Config) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		// CORS preflights carry no credentials.
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		var tokenString string
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if tokenString == "" {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		claims, err := c.Validate(tokenString)
		if err != nil {
			http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetClaims extracts validated claims from the request context.
func GetClaims(r *http.Request) *Claims {
	if claims, ok := r.Context().Value(ClaimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}
