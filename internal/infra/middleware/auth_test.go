package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wanderbot/internal/domain"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.IssueToken("alice", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	userID, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "alice" {
		t.Errorf("userID = %q, want %q", userID, "alice")
	}
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.IssueToken("bob", -time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	_, err = v.Verify(token)
	if err == nil {
		t.Fatal("expected error for expired token")
	}
	if !errors.Is(err, domain.ErrAuthInvalid) {
		t.Errorf("error = %v, want ErrAuthInvalid", err)
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("error %q should mention expiry", err.Error())
	}
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	issuer := NewJWTVerifier([]byte("secret-a"))
	verifier := NewJWTVerifier([]byte("secret-b"))

	token, err := issuer.IssueToken("carol", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, domain.ErrAuthInvalid) {
		t.Errorf("error = %v, want ErrAuthInvalid", err)
	}
}

func TestJWTVerifier_Garbage(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	if _, err := v.Verify("not-a-token"); !errors.Is(err, domain.ErrAuthInvalid) {
		t.Errorf("error = %v, want ErrAuthInvalid", err)
	}
}

func TestJWTVerifier_MissingSub(t *testing.T) {
	secret := []byte("test-secret")
	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	v := NewJWTVerifier(secret)
	_, err = v.Verify(token)
	if !errors.Is(err, domain.ErrAuthInvalid) {
		t.Errorf("error = %v, want ErrAuthInvalid", err)
	}
	if err == nil || !strings.Contains(err.Error(), "sub") {
		t.Errorf("error %v should mention the missing sub claim", err)
	}
}

func userEchoHandler(t *testing.T, wantUser string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := UserIDFromContext(r.Context()); got != wantUser {
			t.Errorf("user in context = %q, want %q", got, wantUser)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireBearer_Disabled(t *testing.T) {
	mw := RequireBearer(nil, true, "test-user", newTestLogger())
	handler := mw(userEchoHandler(t, "test-user"))

	req := httptest.NewRequest("POST", "/prompt", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequireBearer_MissingToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	called := false
	mw := RequireBearer(v, false, "", newTestLogger())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("POST", "/prompt", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if called {
		t.Error("handler should not run without a token")
	}
}

func TestRequireBearer_InvalidToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	mw := RequireBearer(v, false, "", newTestLogger())
	handler := mw(okHandler())

	req := httptest.NewRequest("POST", "/prompt", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRequireBearer_ValidToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	token, err := v.IssueToken("dave", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	mw := RequireBearer(v, false, "", newTestLogger())
	handler := mw(userEchoHandler(t, "dave"))

	req := httptest.NewRequest("POST", "/prompt", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", w.Code, http.StatusOK)
	}
}
