package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey("search", "gemini-3-flash-preview", "Smith family")
	b := CacheKey("search", "gemini-3-flash-preview", "Smith family")
	if a != b {
		t.Error("CacheKey must be deterministic")
	}
	if !strings.HasPrefix(a, "originpoint:v1:") {
		t.Errorf("unexpected prefix: %s", a)
	}
	if CacheKey("ab", "c") == CacheKey("a", "bc") {
		t.Error("part boundaries must change the key")
	}
	if CacheKey("map", "m", "q") == CacheKey("search", "m", "q") {
		t.Error("operation must change the key")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := c.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := CacheKey("search", "m", "q")
	if err := c.Set(key, []byte(`{"text":"x"}`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := c.Get(key); !ok || string(got) != `{"text":"x"}` {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || strings.Contains(entries[0].Name(), ":") {
		t.Fatalf("unexpected cache files: %v", entries)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get(key); ok {
		t.Error("expected expired entry to miss")
	}
	if _, err := os.Stat(filepath.Join(dir, entries[0].Name())); !os.IsNotExist(err) {
		t.Error("expired entry should be removed from disk")
	}
}

func TestDiskCache_Prune(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	_ = c.Set("fresh", []byte("1"), time.Hour)
	_ = c.Set("stale", []byte("2"), time.Minute)
	_ = os.WriteFile(filepath.Join(dir, "junk.cache"), []byte("not json"), 0o644)

	now = now.Add(10 * time.Minute)
	removed, err := c.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("Prune removed %d, want 2", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive")
	}

	missing := NewDiskCache(filepath.Join(dir, "nope"), time.Hour)
	if n, err := missing.Prune(); err != nil || n != 0 {
		t.Errorf("Prune on missing dir = %d, %v", n, err)
	}
}

func TestDiskCache_DeleteMissing(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	if err := c.Delete("absent"); err != nil {
		t.Errorf("Delete of absent key should succeed, got %v", err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Hour)
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// A fresh process sees only the disk layer
	fresh := NewLayeredCache(time.Minute, dir, time.Hour)
	if got, ok := fresh.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("disk hit expected, got %q, %v", got, ok)
	}
	if _, ok := fresh.memory.Get("k"); !ok {
		t.Error("disk hit should be promoted to memory")
	}

	if err := fresh.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := fresh.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestLayeredCache_DiskKeepsItsOwnTTL(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(30*time.Minute, dir, 24*time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.disk.now = func() time.Time { return now }

	if err := c.Set("k", []byte("v"), 30*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, err := os.ReadFile(c.disk.path("k"))
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if want := now.Add(24 * time.Hour); !entry.ExpiresAt.Equal(want) {
		t.Errorf("disk expires_at = %v, want %v", entry.ExpiresAt, want)
	}

	// Past the memory TTL a fresh process still hits disk
	now = now.Add(2 * time.Hour)
	fresh := NewLayeredCache(30*time.Minute, dir, 24*time.Hour)
	fresh.disk.now = func() time.Time { return now }
	if _, ok := fresh.Get("k"); !ok {
		t.Error("disk entry should outlive the memory TTL")
	}
}

func TestLayeredCache_Prune(t *testing.T) {
	dir := t.TempDir()
	c := NewLayeredCache(time.Minute, dir, time.Hour)
	if err := c.Set("fresh", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := NewDiskCache(dir, time.Hour).Set("stale", []byte("v"), -time.Minute); err != nil {
		t.Fatalf("Set stale: %v", err)
	}

	removed, err := c.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive prune")
	}
}

func TestJSONHelpers(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	type payload struct {
		Text string `json:"text"`
	}

	if err := SetJSON(c, "k", payload{Text: "hello"}, 0); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var got payload
	if !GetJSON(c, "k", &got) || got.Text != "hello" {
		t.Fatalf("GetJSON = %+v", got)
	}

	_ = c.Set("bad", []byte("{"), 0)
	if GetJSON(c, "bad", &got) {
		t.Error("undecodable value should miss")
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("undecodable value should be evicted")
	}

	var nop Nop
	_ = SetJSON(nop, "k", payload{}, 0)
	if GetJSON(nop, "k", &got) {
		t.Error("Nop cache must always miss")
	}
}
