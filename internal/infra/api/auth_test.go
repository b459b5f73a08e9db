//go:build !integration

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthManager(t *testing.T) {
	mgr := NewAuthManager("test-secret", time.Hour)

	request := func(token string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/subscription/status", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		return r
	}

	t.Run("should round-trip a minted token", func(t *testing.T) {
		token, err := mgr.Mint("user-1", "user")
		if err != nil {
			t.Fatalf("mint failed: %v", err)
		}

		claims, err := mgr.ParseFromRequest(request(token))
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if claims.Subject != "user-1" || claims.Role != "user" {
			t.Errorf("unexpected claims: subject=%q role=%q", claims.Subject, claims.Role)
		}
		if claims.IsAdmin() {
			t.Error("user role must not read as admin")
		}
	})

	t.Run("should reject a token signed with a different secret", func(t *testing.T) {
		other := NewAuthManager("other-secret", time.Hour)
		token, err := other.Mint("user-1", "user")
		if err != nil {
			t.Fatalf("mint failed: %v", err)
		}

		if _, err := mgr.ParseFromRequest(request(token)); err == nil {
			t.Error("foreign token must be rejected")
		}
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		shortLived := NewAuthManager("test-secret", -time.Minute)
		token, err := shortLived.Mint("user-1", "user")
		if err != nil {
			t.Fatalf("mint failed: %v", err)
		}

		if _, err := mgr.ParseFromRequest(request(token)); err == nil {
			t.Error("expired token must be rejected")
		}
	})

	t.Run("should reject a missing bearer header", func(t *testing.T) {
		if _, err := mgr.ParseFromRequest(request("")); err == nil {
			t.Error("missing header must be rejected")
		}
	})
}

func TestAuthMiddleware(t *testing.T) {
	mgr := NewAuthManager("test-secret", time.Hour)

	serve := func(mw Middleware, token string) (*httptest.ResponseRecorder, string) {
		var seenUser string
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenUser = UserID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		h.ServeHTTP(rec, req)
		return rec, seenUser
	}

	t.Run("RequireUser should pass a valid token and expose the user id", func(t *testing.T) {
		token, _ := mgr.Mint("user-1", "user")
		rec, seenUser := serve(mgr.RequireUser(), token)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if seenUser != "user-1" {
			t.Errorf("expected user id in context, got %q", seenUser)
		}
	})

	t.Run("RequireUser should answer 401 without a token", func(t *testing.T) {
		rec, _ := serve(mgr.RequireUser(), "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("RequireAdmin should answer 403 for a plain user", func(t *testing.T) {
		token, _ := mgr.Mint("user-1", "user")
		rec, _ := serve(mgr.RequireAdmin(), token)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("RequireAdmin should pass an admin token", func(t *testing.T) {
		token, _ := mgr.Mint("admin-1", "admin")
		rec, seenUser := serve(mgr.RequireAdmin(), token)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if seenUser != "admin-1" {
			t.Errorf("expected admin id in context, got %q", seenUser)
		}
	})
}
