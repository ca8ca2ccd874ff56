package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bases-server/internal/shared/config"
	"bases-server/internal/shared/errors"
	"bases-server/internal/shared/response"

	"github.com/golang-jwt/jwt/v5"
)

// PlayerClaims identifies the player behind a request. Tokens are issued by
// the account service; this server only validates them and extracts identity.
type PlayerClaims struct {
	PlayerID   string `json:"player_id"`
	Subscriber bool   `json:"subscriber"`
	jwt.RegisteredClaims
}

type contextKey string

const playerContextKey contextKey = "player"

// GenerateToken signs a player identity token. Exposed for tests and tooling.
func GenerateToken(playerID string, subscriber bool) (string, error) {
	cfg := config.GlobalConfig

	claims := PlayerClaims{
		PlayerID:   playerID,
		Subscriber: subscriber,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.Auth.TokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   playerID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Auth.JWTSecret))
}

func validateToken(tokenString string) (*PlayerClaims, error) {
	cfg := config.GlobalConfig

	token, err := jwt.ParseWithClaims(tokenString, &PlayerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.Auth.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*PlayerClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.PlayerID == "" {
		return nil, fmt.Errorf("token missing player id")
	}

	return claims, nil
}

// Identity extracts the player from the Authorization bearer token and puts
// the claims into the request context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := slog.With(
			"middleware", "identity",
			"method", r.Method,
			"path", r.URL.Path,
		)

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Error(w, r, logger, errors.Unauthorized("authentication required"))
			return
		}

		claims, err := validateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Error(w, r, logger, errors.Unauthorized("invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), playerContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PlayerFromContext returns the claims placed by Identity, or nil.
func PlayerFromContext(r *http.Request) *PlayerClaims {
	if claims, ok := r.Context().Value(playerContextKey).(*PlayerClaims); ok {
		return claims
	}
	return nil
}
