package catalog

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestStaticCatalog_Lookups(t *testing.T) {
	cat, err := NewStaticCatalog(
		[]*TemplateDefinition{{Name: "researcher-base", ContentHash: "sha256:abc", AgentType: "researcher"}},
		[]*AgentTypeProfile{{AgentType: "researcher", MaxNetworkAccess: "internal", MaxAutonomy: "scoped"}},
	)
	if err != nil {
		t.Fatalf("NewStaticCatalog: %v", err)
	}

	td, err := cat.GetTemplate(context.Background(), "researcher-base")
	if err != nil || td == nil || td.ContentHash != "sha256:abc" {
		t.Fatalf("GetTemplate = %+v, %v", td, err)
	}

	td, err = cat.GetTemplate(context.Background(), "ghost")
	if err != nil || td != nil {
		t.Fatalf("unknown template should be nil,nil; got %+v, %v", td, err)
	}

	p, err := cat.GetProfile(context.Background(), "researcher")
	if err != nil || p == nil || p.MaxAutonomy != "scoped" {
		t.Fatalf("GetProfile = %+v, %v", p, err)
	}
}

func TestStaticCatalog_BadSchemaRejected(t *testing.T) {
	_, err := NewStaticCatalog([]*TemplateDefinition{{
		Name:         "broken",
		ContentHash:  "sha256:abc",
		ConfigSchema: map[string]any{"type": 17},
	}}, nil)
	if err == nil {
		t.Fatal("invalid schema must fail at construction")
	}
}

func TestValidateMetadata(t *testing.T) {
	cat, err := NewStaticCatalog([]*TemplateDefinition{{
		Name:        "researcher-base",
		ContentHash: "sha256:abc",
		ConfigSchema: map[string]any{
			"type":     "object",
			"required": []any{"corpus"},
			"properties": map[string]any{
				"corpus":    map[string]any{"type": "string"},
				"max_depth": map[string]any{"type": "integer", "maximum": 5},
			},
		},
	}}, nil)
	if err != nil {
		t.Fatalf("NewStaticCatalog: %v", err)
	}
	td, _ := cat.GetTemplate(context.Background(), "researcher-base")

	if err := td.ValidateMetadata(map[string]any{"corpus": "arxiv", "max_depth": 3}); err != nil {
		t.Errorf("valid metadata rejected: %v", err)
	}
	if err := td.ValidateMetadata(map[string]any{"corpus": "arxiv", "max_depth": 9}); err == nil {
		t.Error("out-of-range metadata accepted")
	}
	if err := td.ValidateMetadata(nil); err == nil {
		t.Error("nil metadata must fail a schema with required fields")
	}
}

func TestValidateMetadata_NoSchemaAcceptsAnything(t *testing.T) {
	td := &TemplateDefinition{Name: "open", ContentHash: "sha256:abc"}
	if err := td.ValidateMetadata(map[string]any{"anything": true}); err != nil {
		t.Errorf("schema-less template rejected metadata: %v", err)
	}
}

// fakeTemplateStore counts lookups so cache behavior is observable. Guarded
// by a mutex because background refreshes hit it from other goroutines.
type fakeTemplateStore struct {
	mu            sync.Mutex
	templateCalls int
	profileCalls  int
	template      *templateRow
	profile       *profileRow
	err           error
}

func (s *fakeTemplateStore) LookupTemplate(context.Context, string) (*templateRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templateCalls++
	if s.err != nil {
		return nil, s.err
	}
	if s.template == nil {
		return nil, sql.ErrNoRows
	}
	return s.template, nil
}

func (s *fakeTemplateStore) LookupProfile(context.Context, string) (*profileRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileCalls++
	if s.err != nil {
		return nil, s.err
	}
	if s.profile == nil {
		return nil, sql.ErrNoRows
	}
	return s.profile, nil
}

func (s *fakeTemplateStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeTemplateStore) profileCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileCalls
}

func TestPostgresCatalog_CachesLookups(t *testing.T) {
	store := &fakeTemplateStore{
		template: &templateRow{
			ID: "t1", Name: "researcher-base", ContentHash: "sha256:abc", AgentType: "researcher",
			ConfigSchema: sql.NullString{String: `{"type":"object"}`, Valid: true},
		},
	}
	cat := newPostgresCatalogWithStore(store, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		td, err := cat.GetTemplate(context.Background(), "researcher-base")
		if err != nil || td == nil {
			t.Fatalf("GetTemplate: %+v, %v", td, err)
		}
		if td.compiled == nil {
			t.Fatal("schema should be compiled from the config_schema column")
		}
	}
	if store.templateCalls != 1 {
		t.Errorf("store hit %d times, want 1 (cached)", store.templateCalls)
	}
}

func TestPostgresCatalog_NegativeCache(t *testing.T) {
	store := &fakeTemplateStore{}
	cat := newPostgresCatalogWithStore(store, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		p, err := cat.GetProfile(context.Background(), "ghost")
		if err != nil || p != nil {
			t.Fatalf("unknown profile should be nil,nil; got %+v, %v", p, err)
		}
	}
	if store.profileCalls != 1 {
		t.Errorf("store hit %d times, want 1 (negative cached)", store.profileCalls)
	}
}

func TestPostgresCatalog_RefreshFailureRetries(t *testing.T) {
	store := &fakeTemplateStore{
		profile: &profileRow{AgentType: "researcher", MaxNetworkAccess: "internal", MaxAutonomy: "scoped", BaseRiskTier: "low"},
	}
	cat := newPostgresCatalogWithStore(store, 10*time.Millisecond, zap.NewNop())

	// Warm the cache, then let the entry expire while the store is down.
	if p, err := cat.GetProfile(context.Background(), "researcher"); err != nil || p == nil {
		t.Fatalf("warm lookup: %+v, %v", p, err)
	}
	store.setErr(errors.New("connection refused"))
	time.Sleep(20 * time.Millisecond)

	// Stale read: served from cache, background refresh fails and must drop
	// the entry rather than leave it pinned behind the refreshing flag.
	if p, err := cat.GetProfile(context.Background(), "researcher"); err != nil || p == nil {
		t.Fatalf("stale lookup should still serve: %+v, %v", p, err)
	}

	// Once the store recovers, a later lookup must reach it again.
	store.setErr(nil)
	deadline := time.Now().Add(2 * time.Second)
	for {
		p, err := cat.GetProfile(context.Background(), "researcher")
		if err == nil && p != nil && store.profileCallCount() >= 3 {
			break // warm + failed refresh + recovery fetch
		}
		if time.Now().After(deadline) {
			t.Fatalf("store never consulted again after a failed refresh (%d calls)", store.profileCallCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTTLCache_StaleWhileRevalidate(t *testing.T) {
	c := newTTLCache[string](10 * time.Millisecond)
	v := "hello"
	c.Set("k", &v)

	got := c.Get("k")
	if !got.Hit || got.NeedsRefresh {
		t.Fatalf("fresh entry: %+v", got)
	}

	time.Sleep(20 * time.Millisecond)

	first := c.Get("k")
	if !first.Hit || !first.NeedsRefresh {
		t.Fatalf("stale entry should hit with NeedsRefresh: %+v", first)
	}
	if first.Value == nil || *first.Value != "hello" {
		t.Error("stale value should still be served")
	}

	second := c.Get("k")
	if second.NeedsRefresh {
		t.Error("only one caller per expiry wins the refresh")
	}
}
