package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/deposit-ledger/pkg/errors"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func approvalRequest(userID, remote string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ledger-entries/e1/approve", nil)
	req.RemoteAddr = remote
	return req.WithContext(WithUserID(req.Context(), userID))
}

func TestApprovalRateLimitPerUser(t *testing.T) {
	store := newFakeRateStore()
	handler := ApprovalRateLimit(NewApprovalRateLimitPolicy("approve", time.Minute, 2, 100), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, approvalRequest("rep-1", "1.2.3.4:5000"))
		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, rec.Code)
		}
		if i == 2 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429 got %d", rec.Code)
			}
			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
				t.Fatalf("unexpected code %s", payload.Error.Code)
			}
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, approvalRequest("rep-2", "1.2.3.4:5000"))
	if rec.Code != http.StatusOK {
		t.Fatalf("other user should not share the counter, got %d", rec.Code)
	}
}

func TestApprovalRateLimitPerIP(t *testing.T) {
	store := newFakeRateStore()
	handler := ApprovalRateLimit(NewApprovalRateLimitPolicy("approve", time.Minute, 0, 1), store, nil)(okHandler())

	req := approvalRequest("rep-1", "9.9.9.9:1")
	req.Header.Set("X-Forwarded-For", "5.6.7.8, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	req = approvalRequest("rep-2", "9.9.9.9:1")
	req.Header.Set("X-Forwarded-For", "5.6.7.8")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if store.counts["approve:ip:5.6.7.8"] != 2 {
		t.Fatalf("unexpected ip counter %v", store.counts)
	}
}

func TestApprovalRateLimitStoreFailure(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis down")
	handler := ApprovalRateLimit(NewApprovalRateLimitPolicy("approve", time.Minute, 5, 5), store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, approvalRequest("rep-1", "1.2.3.4:5000"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestApprovalRateLimitDisabled(t *testing.T) {
	handler := ApprovalRateLimit(NewApprovalRateLimitPolicy("approve", 0, 1, 1), newFakeRateStore(), nil)(okHandler())
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, approvalRequest("rep-1", "1.2.3.4:5000"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected disabled policy to pass, got %d", rec.Code)
		}
	}
}
