package provider

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetMissingIsNotAnError(t *testing.T) {
	r := NewRegistry()

	p, ok := r.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, p)

	p, ok = r.GetDefault()
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestRegistry_DefaultIsMostRecentlyMarked(t *testing.T) {
	r := NewRegistry()
	r.Register("claude", NewMockProvider("claude"))
	r.Register("gpt", NewMockProvider("gpt"))

	require.True(t, r.SetDefault("claude"))
	p, ok := r.GetDefault()
	require.True(t, ok)
	assert.Equal(t, "claude", p.Info().Name)

	require.True(t, r.SetDefault("gpt"))
	p, ok = r.GetDefault()
	require.True(t, ok)
	assert.Equal(t, "gpt", p.Info().Name)
	assert.Equal(t, "gpt", r.DefaultName())
}

func TestRegistry_SetDefaultUnknownName(t *testing.T) {
	r := NewRegistry()
	r.Register("claude", NewMockProvider("claude"))
	require.True(t, r.SetDefault("claude"))

	assert.False(t, r.SetDefault("missing"))
	p, ok := r.GetDefault()
	require.True(t, ok, "failed SetDefault must leave the previous default in place")
	assert.Equal(t, "claude", p.Info().Name)
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Register("backend", NewMockProvider("v1"))
	r.Register("backend", NewMockProvider("v2"))

	p, ok := r.Get("backend")
	require.True(t, ok)
	assert.Equal(t, "v2", p.Info().Name)
	assert.Equal(t, []string{"backend"}, r.Names())
}

func TestRegistry_ConcurrentRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("seed", NewMockProvider("seed"))
	require.True(t, r.SetDefault("seed"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Register(fmt.Sprintf("backend-%d-%d", n, j), NewMockProvider("x"))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				// A lookup racing a registration sees either the pre- or
				// post-registration snapshot, never a partial one.
				if _, ok := r.GetDefault(); !ok {
					t.Error("default disappeared during concurrent registration")
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, r.Names(), 8*100+1)
}
