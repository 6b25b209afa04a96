package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_FirstAttribute(t *testing.T) {
	id := &Identity{Attributes: map[string][]string{
		"dept":  {"eng", "ops"},
		"empty": {},
	}}

	v, ok := id.FirstAttribute("dept")
	assert.True(t, ok)
	assert.Equal(t, "eng", v)

	_, ok = id.FirstAttribute("empty")
	assert.False(t, ok)

	_, ok = id.FirstAttribute("missing")
	assert.False(t, ok)
}

func TestIdentity_DistinctClientIDs(t *testing.T) {
	id := &Identity{ClientIDs: []string{"web", "api", "web", "cli", "api"}}
	assert.Equal(t, []string{"web", "api", "cli"}, id.DistinctClientIDs())
}

// mapAttributes is a minimal host-provided store without dedupe support
type mapAttributes map[string]any

func (m mapAttributes) Get(key string) (any, bool) { v, ok := m[key]; return v, ok }
func (m mapAttributes) Set(key string, value any)  { m[key] = value }

func TestGetOrResolve(t *testing.T) {
	stores := map[string]func() Attributes{
		"issuance context": func() Attributes { return NewIssuanceContext() },
		"plain store":      func() Attributes { return mapAttributes{} },
	}

	for name, newStore := range stores {
		t.Run(name+" caches within one store", func(t *testing.T) {
			attrs := newStore()
			calls := 0
			fn := func() (string, error) {
				calls++
				return "payload", nil
			}

			v1, err := GetOrResolve(attrs, RemoteAuthorizationsAttr, fn)
			require.NoError(t, err)
			v2, err := GetOrResolve(attrs, RemoteAuthorizationsAttr, fn)
			require.NoError(t, err)

			assert.Equal(t, "payload", v1)
			assert.Equal(t, "payload", v2)
			assert.Equal(t, 1, calls)
		})

		t.Run(name+" does not cache errors", func(t *testing.T) {
			attrs := newStore()
			calls := 0
			fn := func() (string, error) {
				calls++
				if calls == 1 {
					return "", errors.New("boom")
				}
				return "ok", nil
			}

			_, err := GetOrResolve(attrs, "k", fn)
			require.Error(t, err)
			v, err := GetOrResolve(attrs, "k", fn)
			require.NoError(t, err)
			assert.Equal(t, "ok", v)
			assert.Equal(t, 2, calls)
		})
	}

	t.Run("distinct stores resolve separately", func(t *testing.T) {
		calls := 0
		fn := func() (int, error) {
			calls++
			return calls, nil
		}

		_, _ = GetOrResolve(NewIssuanceContext(), "k", fn)
		_, _ = GetOrResolve(NewIssuanceContext(), "k", fn)
		assert.Equal(t, 2, calls)
	})

	t.Run("nil store always resolves", func(t *testing.T) {
		calls := 0
		fn := func() (int, error) {
			calls++
			return calls, nil
		}

		v1, _ := GetOrResolve[int](nil, "k", fn)
		v2, _ := GetOrResolve[int](nil, "k", fn)
		assert.Equal(t, 1, v1)
		assert.Equal(t, 2, v2)
	})

	t.Run("type mismatch is reported", func(t *testing.T) {
		attrs := NewIssuanceContext()
		attrs.Set("k", 42)

		_, err := GetOrResolve(attrs, "k", func() (string, error) { return "x", nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), `attribute "k"`)
	})
}

func TestIssuanceContext_ConcurrentResolveCallsOnce(t *testing.T) {
	attrs := NewIssuanceContext()
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := GetOrResolve(attrs, "k", func() (string, error) {
				calls.Add(1)
				<-release
				return "v", nil
			})
			assert.NoError(t, err)
		}()
	}

	close(release)
	wg.Wait()

	// Late arrivals hit the stored value, early ones share the flight
	assert.Equal(t, int32(1), calls.Load())
}

func TestIssuanceContext_ID(t *testing.T) {
	a := NewIssuanceContext()
	b := NewIssuanceContext()
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
