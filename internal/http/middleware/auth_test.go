package middlewarex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"rentledger/internal/auth"
	"rentledger/internal/store/repositories"
)

type fakeTokenRepo struct {
	byHash map[string]auth.Actor
}

func (f *fakeTokenRepo) FindActorByTokenHash(_ context.Context, hash string) (auth.Actor, error) {
	a, ok := f.byHash[hash]
	if !ok {
		return auth.Actor{}, repositories.ErrNotFound
	}
	return a, nil
}

func hashOf(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func TestTokenAuth(t *testing.T) {
	repo := &fakeTokenRepo{byHash: map[string]auth.Actor{
		hashOf("good-token"): {UserID: 3, Role: auth.RoleTenant},
	}}

	var gotActor auth.Actor
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor, _ = auth.ActorFrom(r.Context())
		called = true
	})
	handler := TokenAuth(repo)(next)

	// Valid token resolves the actor.
	req := httptest.NewRequest("GET", "/api/v1/payments", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("valid token: called=%v status=%d", called, rec.Code)
	}
	if gotActor.UserID != 3 || gotActor.Role != auth.RoleTenant {
		t.Errorf("actor = %+v", gotActor)
	}

	// Unknown token is rejected.
	called = false
	req = httptest.NewRequest("GET", "/api/v1/payments", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if called || rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: called=%v status=%d", called, rec.Code)
	}

	// Missing header is rejected.
	called = false
	req = httptest.NewRequest("GET", "/api/v1/payments", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if called || rec.Code != http.StatusUnauthorized {
		t.Errorf("no header: called=%v status=%d", called, rec.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	var called bool
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	handler := AdminAuth("s3cret")(next)

	req := httptest.NewRequest("POST", "/admin/gateway-configs", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if !called {
		t.Error("correct admin token must pass")
	}

	called = false
	req = httptest.NewRequest("POST", "/admin/gateway-configs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if called || rec.Code != http.StatusForbidden {
		t.Errorf("wrong token: called=%v status=%d", called, rec.Code)
	}

	// Empty configured token disables the surface entirely.
	called = false
	handler = AdminAuth("")(next)
	req = httptest.NewRequest("POST", "/admin/gateway-configs", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if called || rec.Code != http.StatusForbidden {
		t.Errorf("disabled admin: called=%v status=%d", called, rec.Code)
	}
}
