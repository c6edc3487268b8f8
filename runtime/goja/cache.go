package goja

import (
	"sync"

	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru"
)

// DefaultCacheSize the default number of compiled programs kept in memory
const DefaultCacheSize = 256

// Cache the compiled program cache, programs are immutable and can be run
// by any goja runtime
type Cache struct {
	arc *lru.ARCCache
}

var programs *Cache
var programsOnce sync.Once

// NewCache create a new program cache
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	arc, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &Cache{arc: arc}, nil
}

// Compile compile the source, or returns the cached program
func (cache *Cache) Compile(name string, source string) (*goja.Program, error) {
	key := name + "\x00" + source
	if value, ok := cache.arc.Get(key); ok {
		return value.(*goja.Program), nil
	}

	program, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, err
	}
	cache.arc.Add(key, program)
	return program, nil
}

// Len the number of cached programs
func (cache *Cache) Len() int {
	return cache.arc.Len()
}

// Purge clear the cache
func (cache *Cache) Purge() {
	cache.arc.Purge()
}

// shared the process-wide cache, the first interpreter decides its size
func shared(size int) *Cache {
	programsOnce.Do(func() {
		cache, err := NewCache(size)
		if err != nil {
			cache, _ = NewCache(DefaultCacheSize)
		}
		programs = cache
	})
	return programs
}
