package shader

import (
	"errors"
	"testing"

	"github.com/kestrel-engine/rhi/engine/renderer/pipeline"
)

func noopFactory(p pipeline.Pipeline) error { return nil }

func TestGetCachesAndReusesBuiltPipeline(t *testing.T) {
	c := NewVariantCache()
	builds := 0
	key := VariantKey{ShaderKey: "unlit"}
	factory := func(p pipeline.Pipeline) error { builds++; return nil }

	p1, err := c.Get(key, nil, nil, factory)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	p2, err := c.Get(key, nil, nil, factory)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if builds != 1 {
		t.Fatalf("factory called %d times, want 1 (second Get should hit cache)", builds)
	}
	if p1 != p2 {
		t.Fatal("second Get returned a different pipeline than the first for the same key")
	}
}

func TestGetEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := NewVariantCache()
	keys := make([]VariantKey, MaxVariants+1)
	for i := range keys {
		keys[i] = VariantKey{ShaderKey: string(rune('a' + i))}
	}

	for _, k := range keys[:MaxVariants] {
		if _, err := c.Get(k, nil, nil, noopFactory); err != nil {
			t.Fatalf("Get(%v): %v", k, err)
		}
	}
	if c.Len() != MaxVariants {
		t.Fatalf("Len() = %d, want %d", c.Len(), MaxVariants)
	}

	// Touch everything but the first key so it becomes the LRU victim.
	for _, k := range keys[1:MaxVariants] {
		if _, err := c.Get(k, nil, nil, noopFactory); err != nil {
			t.Fatalf("Get(%v): %v", k, err)
		}
	}

	if _, err := c.Get(keys[MaxVariants], nil, nil, noopFactory); err != nil {
		t.Fatalf("Get(%v): %v", keys[MaxVariants], err)
	}
	if c.Len() != MaxVariants {
		t.Fatalf("Len() after eviction = %d, want %d", c.Len(), MaxVariants)
	}
	if _, ok := c.entries[keys[0]]; ok {
		t.Fatal("least-recently-used entry was not evicted")
	}
	if _, ok := c.entries[keys[MaxVariants]]; !ok {
		t.Fatal("newly inserted entry is missing after eviction")
	}
}

func TestGetPropagatesFactoryError(t *testing.T) {
	c := NewVariantCache()
	wantErr := errors.New("boom")
	_, err := c.Get(VariantKey{ShaderKey: "broken"}, nil, nil, func(p pipeline.Pipeline) error { return wantErr })
	if err == nil {
		t.Fatal("expected error from a failing factory")
	}
}
