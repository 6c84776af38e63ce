package memory

import (
	"context"
	"testing"
)

func TestCacheGetSet(t *testing.T) {
	c := NewCache()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "cachedNews"); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	in := []byte(`{"articles":[],"timestamp":1}`)
	if err := c.Set(ctx, "cachedNews", in); err != nil {
		t.Fatalf("Set: %v", err)
	}
	in[0] = 'X'

	got, ok, err := c.Get(ctx, "cachedNews")
	if !ok || err != nil || string(got) != `{"articles":[],"timestamp":1}` {
		t.Fatalf("Get = %q, %v, %v", got, ok, err)
	}
}
