package memory

import (
	"context"
	"sync"

	"pulseboard/internal/application/port"
)

// Cache 进程内缓存，重启后丢失
type Cache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ port.CacheStore = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{data: make(map[string][]byte)}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), value...)
	return nil
}
