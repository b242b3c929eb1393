package cache

import (
	"sync"
	"time"
)

type item struct {
	body []byte
	exp  time.Time
}

// TTLCache is an in-process BytesCache with lazy expiry. Entries are
// dropped on the first read past their deadline.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]item
}

func NewTTLCache() *TTLCache {
	return &TTLCache{items: make(map[string]item)}
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !it.exp.IsZero() && time.Now().After(it.exp) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return it.body, true, nil
}

func (c *TTLCache) SetBytes(key string, body []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = item{body: body, exp: exp}
	c.mu.Unlock()
	return nil
}
