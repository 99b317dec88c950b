package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// testHash hashes a key with bcrypt.MinCost so tests stay fast.
func testHash(t *testing.T, key string) string {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt.GenerateFromPassword: %v", err)
	}
	return string(hashed)
}

func TestAPIKeyService_Verify(t *testing.T) {
	svc, err := NewAPIKeyService(testHash(t, "correct-key"))
	if err != nil {
		t.Fatalf("NewAPIKeyService: %v", err)
	}

	if err := svc.Verify("correct-key"); err != nil {
		t.Errorf("Verify() with correct key: %v", err)
	}
	if err := svc.Verify("wrong-key"); err == nil {
		t.Error("Verify() should reject a wrong key")
	}
	if err := svc.Verify(""); err == nil {
		t.Error("Verify() should reject an empty key")
	}
}

func TestNewAPIKeyService_RejectsBadHash(t *testing.T) {
	if _, err := NewAPIKeyService(""); err == nil {
		t.Error("NewAPIKeyService() should reject an empty hash")
	}
	if _, err := NewAPIKeyService("not-a-bcrypt-hash"); err == nil {
		t.Error("NewAPIKeyService() should reject a malformed hash")
	}
}

func TestHashKey_RoundTrip(t *testing.T) {
	hash, err := HashKey("my-secret-key")
	if err != nil {
		t.Fatalf("HashKey() error = %v", err)
	}

	svc, err := NewAPIKeyService(hash)
	if err != nil {
		t.Fatalf("NewAPIKeyService: %v", err)
	}
	if err := svc.Verify("my-secret-key"); err != nil {
		t.Errorf("Verify() after HashKey: %v", err)
	}
}

func TestHashKey_RejectsOverlongKey(t *testing.T) {
	if _, err := HashKey(strings.Repeat("x", 73)); err == nil {
		t.Error("HashKey() should reject keys longer than 72 bytes")
	}
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)

	var gotSubject string
	protected := RequireAuth(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid bearer token", func(t *testing.T) {
		token, err := ts.Generate("agent-1")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		protected.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rr.Code)
		}
		if gotSubject != "agent-1" {
			t.Errorf("subject = %q, want %q", gotSubject, "agent-1")
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rr := httptest.NewRecorder()

		protected.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rr := httptest.NewRecorder()

		protected.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rr := httptest.NewRecorder()

		protected.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
	})
}
