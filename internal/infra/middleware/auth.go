package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wanderbot/internal/domain"
)

// TokenVerifier validates a bearer token and reports the user it belongs to.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// JWTVerifier verifies HS256-signed JWTs. The user ID is the sub claim.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier with the given HMAC secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify parses and validates tokenStr and returns the sub claim.
func (v *JWTVerifier) Verify(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", domain.ErrAuthInvalid)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrAuthInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims type", domain.ErrAuthInvalid)
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: missing sub claim", domain.ErrAuthInvalid)
	}
	return sub, nil
}

// IssueToken creates a signed token for userID, valid for expiresIn. Used by
// dev tooling and tests.
func (v *JWTVerifier) IssueToken(userID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// RequireBearer authenticates requests with the verifier and stores the user
// ID in the request context. When disabled, every request acts as testUser
// and no token is checked.
func RequireBearer(verifier TokenVerifier, disabled bool, testUser string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if disabled {
				next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), testUser)))
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("rejected bearer token", "error", err)
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}
