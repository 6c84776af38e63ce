package port

import "context"

// CacheStore 键值缓存。实现不得自行过期数据：过期的记录仍需可读，新鲜度由调用方判断。
type CacheStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}
