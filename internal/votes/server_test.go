package votes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"goldbot/internal/store"
	"goldbot/internal/testsupport"
)

func newTestServer(t *testing.T) (*Server, *testsupport.MemStore) {
	t.Helper()
	clock := testsupport.NewClock(time.Now().Add(-24 * time.Hour))
	proc, st, _ := newTestProcessor(t, clock)
	return NewServer(proc, "vote-secret", "jwt-secret", st), st
}

func TestHandleVoteAuthorization(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/webhook/vote", strings.NewReader(`{"user":"1","type":"upvote"}`))
	req.Header.Set("Authorization", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleVoteGrants(t *testing.T) {
	srv, st := newTestServer(t)
	st.AddUser(store.User{UserID: 42})
	handler := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/webhook/vote", strings.NewReader(`{"user":"42","type":"upvote","isWeekend":false}`))
	req.Header.Set("Authorization", "vote-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "success") {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if st.Records[42].Balance != 15000 {
		t.Fatalf("balance = %d, want 15000", st.Records[42].Balance)
	}
}

func TestHandleVoteBadPayload(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()

	for _, body := range []string{"not json", `{"user":"abc"}`} {
		req := httptest.NewRequest(http.MethodPost, "/webhook/vote", strings.NewReader(body))
		req.Header.Set("Authorization", "vote-secret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestAdminStatsJWT(t *testing.T) {
	srv, st := newTestServer(t)
	st.AddUser(store.User{UserID: 1})
	st.AddUser(store.User{UserID: 2})
	handler := srv.Router()

	t.Run("no token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "admin",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("jwt-secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"users":2`) {
			t.Fatalf("body = %s", rec.Body.String())
		}
	})

	t.Run("disabled without secret", func(t *testing.T) {
		clock := testsupport.NewClock(time.Now())
		proc, memStore, _ := newTestProcessor(t, clock)
		disabled := NewServer(proc, "s", "", memStore).Router()
		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		rec := httptest.NewRecorder()
		disabled.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
