// Package caching holds short-lived in-memory counters shared by the web layer.
package caching

import (
	"time"

	"github.com/patrickmn/go-cache"
)

type Cache struct {
	memoryCache *cache.Cache
}

func NewCache() *Cache {
	return &Cache{}
}

func (s *Cache) Init() error {
	s.memoryCache = cache.New(time.Minute, 10*time.Minute)
	return nil
}

// Hit counts one event for key in a fixed window that starts with the first
// event, and returns the number of events seen in the current window.
func (s *Cache) Hit(key string, window time.Duration) int {
	if err := s.memoryCache.Add(key, 1, window); err == nil {
		return 1
	}
	n, err := s.memoryCache.IncrementInt(key, 1)
	if err != nil {
		// Expired between Add and IncrementInt.
		s.memoryCache.Set(key, 1, window)
		return 1
	}
	return n
}

func (s *Cache) Flush() error {
	if s.memoryCache != nil {
		s.memoryCache.Flush()
	}
	return nil
}
