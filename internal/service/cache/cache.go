// Package cache provides response-body caches for the HTTP API handlers.
package cache

import "time"

// BytesCache stores rendered response bodies under a string key with a TTL.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
