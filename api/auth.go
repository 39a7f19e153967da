/*
auth.go - JWT authentication and role gates

PURPOSE:
  Issues and verifies bearer tokens. Customers log in with their
  national code and registered phone number; the token carries their
  role so admin routes can be gated without another lookup.

TOKEN:
  HMAC-SHA256 (golang-jwt), 24h expiry. The signing secret comes from
  the JWT_SECRET environment variable; a fixed development secret is
  used when unset.

ROLES:
  "customer": sees only their own policies and installments
  "admin":    full access, including scenario loading

SEE ALSO:
  - server.go: where the middleware is mounted
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/isth3root/bz-exp/engine"
)

const devSecret = "dev-only-insecure-secret"

type contextKey string

const claimsKey contextKey = "auth-claims"

// Claims is the JWT payload.
type Claims struct {
	CustomerID   int64  `json:"customer_id"`
	NationalCode string `json:"national_code"`
	Role         string `json:"role"`
	jwt.RegisteredClaims
}

func signingSecret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte(devSecret)
}

// Login authenticates by national code and phone and returns a token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.NationalCode == "" {
		writeError(w, http.StatusBadRequest, "national_code is required", nil)
		return
	}

	customer, err := h.Customers.GetByNationalCode(r.Context(), req.NationalCode)
	if err != nil {
		if engine.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to authenticate", err)
		return
	}
	if customer.Phone != "" && customer.Phone != req.Phone {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	now := h.now()
	claims := Claims{
		CustomerID:   customer.ID,
		NationalCode: customer.NationalCode,
		Role:         customer.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customer.NationalCode,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingSecret())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sign token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:    token,
		Role:     customer.Role,
		Customer: toCustomerDTO(*customer),
	})
}

// RequireAuth verifies the bearer token and stores its claims in the
// request context.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return signingSecret(), nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "Invalid token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin tokens. Must be mounted after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil || claims.Role != "admin" {
			writeError(w, http.StatusForbidden, "Admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClaimsFromContext returns the verified claims, or nil outside RequireAuth.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}
