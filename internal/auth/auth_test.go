package auth

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestParseBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer ghk_abcdef1234", "ghk_abcdef1234", false},
		{"bearer ghk_abcdef1234", "ghk_abcdef1234", false},
		{"Bearer tsk_wrongprefix", "", true},
		{"ghk_nobearer", "ghk_nobearer", false},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBearerToken(tt.header)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBearerToken(%q) err=%v, wantErr=%v", tt.header, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

// fakeCallerStore is mutex-guarded because background refreshes hit it from
// other goroutines.
type fakeCallerStore struct {
	mu    sync.Mutex
	calls int
	row   *callerRow
	err   error
}

func (s *fakeCallerStore) LookupByPrefix(context.Context, string) (*callerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.row == nil {
		return nil, sql.ErrNoRows
	}
	return s.row, nil
}

func (s *fakeCallerStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeCallerStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func hashKey(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func TestPostgresAuthenticator_ValidKey(t *testing.T) {
	key := "ghk_test1234567890"
	store := &fakeCallerStore{row: &callerRow{
		CallerID:   "caller-1",
		APIKeyHash: hashKey(t, key),
		Subsystem:  "research",
	}}
	a := NewPostgresAuthenticatorWithStore(store, time.Minute, zap.NewNop())

	caller, err := a.Authenticate(context.Background(), key)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if caller.CallerID != "caller-1" || caller.Subsystem != "research" {
		t.Errorf("unexpected caller %+v", caller)
	}
}

func TestPostgresAuthenticator_WrongKey(t *testing.T) {
	store := &fakeCallerStore{row: &callerRow{
		CallerID:   "caller-1",
		APIKeyHash: hashKey(t, "ghk_rightkey1234"),
		Subsystem:  "research",
	}}
	a := NewPostgresAuthenticatorWithStore(store, time.Minute, zap.NewNop())

	if _, err := a.Authenticate(context.Background(), "ghk_rightkey9999"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestPostgresAuthenticator_ShortToken(t *testing.T) {
	a := NewPostgresAuthenticatorWithStore(&fakeCallerStore{}, time.Minute, zap.NewNop())
	if _, err := a.Authenticate(context.Background(), "ghk"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestPostgresAuthenticator_CachesHits(t *testing.T) {
	key := "ghk_test1234567890"
	store := &fakeCallerStore{row: &callerRow{
		CallerID:   "caller-1",
		APIKeyHash: hashKey(t, key),
		Subsystem:  "research",
	}}
	a := NewPostgresAuthenticatorWithStore(store, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		if _, err := a.Authenticate(context.Background(), key); err != nil {
			t.Fatalf("Authenticate %d: %v", i, err)
		}
	}
	if store.calls != 1 {
		t.Errorf("store hit %d times, want 1 (cached)", store.calls)
	}
}

func TestPostgresAuthenticator_RefreshFailureRetries(t *testing.T) {
	key := "ghk_test1234567890"
	store := &fakeCallerStore{row: &callerRow{
		CallerID:   "caller-1",
		APIKeyHash: hashKey(t, key),
		Subsystem:  "research",
	}}
	a := NewPostgresAuthenticatorWithStore(store, 10*time.Millisecond, zap.NewNop())

	// Warm the cache, then let the entry expire while the store is down.
	if _, err := a.Authenticate(context.Background(), key); err != nil {
		t.Fatalf("warm authenticate: %v", err)
	}
	store.setErr(errors.New("connection refused"))
	time.Sleep(20 * time.Millisecond)

	// Stale read still serves; its failed background refresh must drop the
	// entry instead of pinning it behind the refreshing flag forever.
	if _, err := a.Authenticate(context.Background(), key); err != nil {
		t.Fatalf("stale authenticate should still serve: %v", err)
	}

	// Once the store recovers, a later authenticate must reach it again.
	store.setErr(nil)
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := a.Authenticate(context.Background(), key)
		if err == nil && store.callCount() >= 3 {
			break // warm + failed refresh + recovery fetch
		}
		if time.Now().After(deadline) {
			t.Fatalf("store never consulted again after a failed refresh (%d calls)", store.callCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAuthCache_StaleWhileRevalidate(t *testing.T) {
	c := NewAuthCache(10 * time.Millisecond)
	c.Set("k", &CallerContext{CallerID: "caller-1"})

	if got := c.Get("k"); !got.Hit || got.NeedsRefresh {
		t.Fatalf("fresh entry: %+v", got)
	}

	time.Sleep(20 * time.Millisecond)

	first := c.Get("k")
	if !first.Hit || !first.NeedsRefresh {
		t.Fatalf("stale entry should hit with NeedsRefresh: %+v", first)
	}
	if second := c.Get("k"); second.NeedsRefresh {
		t.Error("only one caller per expiry wins the refresh")
	}
}

func TestStaticAuthenticator(t *testing.T) {
	a := NewStaticAuthenticator()
	caller, err := a.Authenticate(context.Background(), "ghk_devkey123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if caller.CallerID != "static-ghk_devk" {
		t.Errorf("caller id %q", caller.CallerID)
	}
	if _, err := a.Authenticate(context.Background(), "short"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("short token should fail, got %v", err)
	}
}
