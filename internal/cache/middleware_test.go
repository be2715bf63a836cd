package cache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// memoryStore is an in-memory Store with a failure toggle.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	broken  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string][]byte)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return nil, errors.New("store unavailable")
	}
	val, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return val, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return errors.New("store unavailable")
	}
	s.entries[key] = value
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return false, errors.New("store unavailable")
	}
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok, nil
}

// DeletePattern supports the trailing-star globs the invalidator uses.
func (s *memoryStore) DeletePattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return 0, errors.New("store unavailable")
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var removed int64
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *memoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func newCachedRouter(store Store, hits *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	menus := r.Group("/api/v1/menus")
	menus.Use(ResponseCache(store, "menu", time.Minute))
	menus.GET("/:slug", func(c *gin.Context) {
		*hits++
		slug := c.Param("slug")
		if slug == "missing" {
			c.JSON(http.StatusNotFound, gin.H{"error": "restaurant not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"slug": slug})
	})
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestResponseCacheMissThenHit(t *testing.T) {
	store := newMemoryStore()
	hits := 0
	r := newCachedRouter(store, &hits)

	first := get(r, "/api/v1/menus/borscht")
	if first.Code != http.StatusOK {
		t.Fatalf("First status = %d, want 200", first.Code)
	}
	if got := first.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("First X-Cache = %q, want MISS", got)
	}

	second := get(r, "/api/v1/menus/borscht")
	if got := second.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("Second X-Cache = %q, want HIT", got)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("Cached body %q differs from original %q", second.Body.String(), first.Body.String())
	}
	if hits != 1 {
		t.Errorf("Handler invoked %d times, want 1", hits)
	}
}

func TestResponseCacheBypassOnStoreError(t *testing.T) {
	store := newMemoryStore()
	store.broken = true
	hits := 0
	r := newCachedRouter(store, &hits)

	w := get(r, "/api/v1/menus/borscht")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Cache"); got != "BYPASS" {
		t.Errorf("X-Cache = %q, want BYPASS", got)
	}
	if hits != 1 {
		t.Errorf("Handler invoked %d times, want 1", hits)
	}
}

func TestResponseCacheSkipsNon2xx(t *testing.T) {
	store := newMemoryStore()
	hits := 0
	r := newCachedRouter(store, &hits)

	get(r, "/api/v1/menus/missing")
	get(r, "/api/v1/menus/missing")

	if store.size() != 0 {
		t.Errorf("Store holds %d entries after 404s, want 0", store.size())
	}
	if hits != 2 {
		t.Errorf("Handler invoked %d times, want 2 (errors never cached)", hits)
	}
}

func TestInvalidateTenantForcesRefetch(t *testing.T) {
	store := newMemoryStore()
	hits := 0
	r := newCachedRouter(store, &hits)
	inv := NewInvalidator(store, "menu", nil)

	get(r, "/api/v1/menus/borscht")
	get(r, "/api/v1/menus/pelmeni")
	if store.size() != 2 {
		t.Fatalf("Store holds %d entries, want 2", store.size())
	}

	if removed := inv.InvalidateTenant(context.Background(), "borscht"); removed != 1 {
		t.Errorf("InvalidateTenant removed %d, want 1", removed)
	}

	// The invalidated tenant is re-rendered; the other still hits the cache
	if w := get(r, "/api/v1/menus/borscht"); w.Header().Get("X-Cache") != "MISS" {
		t.Errorf("Invalidated tenant X-Cache = %q, want MISS", w.Header().Get("X-Cache"))
	}
	if w := get(r, "/api/v1/menus/pelmeni"); w.Header().Get("X-Cache") != "HIT" {
		t.Errorf("Untouched tenant X-Cache = %q, want HIT", w.Header().Get("X-Cache"))
	}
}

func TestInvalidateKeyAbsorbsStoreFailure(t *testing.T) {
	store := newMemoryStore()
	inv := NewInvalidator(store, "menu", nil)

	if err := store.Set(context.Background(), Key("menu", "/api/v1/menus/borscht"), []byte("{}"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if !inv.InvalidateKey(context.Background(), "/api/v1/menus/borscht") {
		t.Error("InvalidateKey should report removal of an existing entry")
	}

	store.broken = true
	if inv.InvalidateKey(context.Background(), "/api/v1/menus/borscht") {
		t.Error("InvalidateKey against a broken store should report false, not panic")
	}
	if got := inv.InvalidatePattern(context.Background(), "/api/v1/menus/*"); got != 0 {
		t.Errorf("InvalidatePattern against a broken store = %d, want 0", got)
	}
}
