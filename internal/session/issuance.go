package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// RemoteAuthorizationsAttr is the attribute under which resolved remote
// claim payloads are memoized for the current pass
const RemoteAuthorizationsAttr = "remote-authorizations"

// Attributes is an issuance-scoped get/set store supplied by the host.
// Access token, ID token and user-info mapping within one pass share it.
type Attributes interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// resolver is implemented by attribute stores that can collapse concurrent
// resolutions of the same key
type resolver interface {
	GetOrResolve(key string, fn func() (any, error)) (any, error)
}

// IssuanceContext is the in-memory Attributes implementation used for one
// token-issuance pass. It must not be shared across passes.
type IssuanceContext struct {
	id    string
	mu    sync.RWMutex
	attrs map[string]any
	group singleflight.Group
}

// NewIssuanceContext creates an empty context with a fresh pass id
func NewIssuanceContext() *IssuanceContext {
	return &IssuanceContext{
		id:    uuid.NewString(),
		attrs: make(map[string]any),
	}
}

// ID identifies the issuance pass
func (c *IssuanceContext) ID() string {
	return c.id
}

// Get implements Attributes
func (c *IssuanceContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.attrs[key]
	return v, ok
}

// Set implements Attributes
func (c *IssuanceContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attrs[key] = value
}

// GetOrResolve returns the value stored under key, calling fn at most once
// across concurrent callers on a miss. Errors are returned but not stored.
func (c *IssuanceContext) GetOrResolve(key string, fn func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	return v, err
}

// GetOrResolve returns the T cached under key in attrs, or calls fn and
// caches its result. A nil attrs means there is no pass to memoize into,
// so fn is always called.
func GetOrResolve[T any](attrs Attributes, key string, fn func() (T, error)) (T, error) {
	if attrs == nil {
		return fn()
	}

	if r, ok := attrs.(resolver); ok {
		v, err := r.GetOrResolve(key, func() (any, error) { return fn() })
		if err != nil {
			var zero T
			return zero, err
		}
		typed, ok := v.(T)
		if !ok {
			var zero T
			return zero, fmt.Errorf("attribute %q holds %T, not %T", key, v, zero)
		}
		return typed, nil
	}

	if v, ok := attrs.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := fn()
	if err != nil {
		return v, err
	}
	attrs.Set(key, v)
	return v, nil
}
