package v8

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"rogchap.com/v8go"
)

// DefaultCacheSize the default number of code caches kept in memory
const DefaultCacheSize = 256

// Cache the compiler code cache. A compiled script belongs to its isolate,
// the code cache can be consumed by any isolate.
type Cache struct {
	arc *lru.ARCCache
}

var codes *Cache
var codesErr error
var codesOnce sync.Once

// NewCache create a new code cache
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

// Compile compile the source on the isolate, the code cache is used when present
func (cache *Cache) Compile(iso *v8go.Isolate, name string, source string) (*v8go.UnboundScript, error) {
	key := name + "\x00" + source
	if value, ok := cache.arc.Get(key); ok {
		script, err := iso.CompileUnboundScript(source, name, v8go.CompileOptions{CachedData: value.(*v8go.CompilerCachedData)})
		if err == nil {
			return script, nil
		}
		cache.arc.Remove(key)
	}

	script, err := iso.CompileUnboundScript(source, name, v8go.CompileOptions{})
	if err != nil {
		return nil, err
	}
	cache.arc.Add(key, script.CreateCodeCache())
	return script, nil
}

// Len the number of cached codes
func (cache *Cache) Len() int {
	return cache.arc.Len()
}

// Purge clear the cache
func (cache *Cache) Purge() {
	cache.arc.Purge()
}

// shared the process-wide cache, the first interpreter decides its size
func shared(size int) (*Cache, error) {
	codesOnce.Do(func() {
		codes, codesErr = NewCache(size)
	})
	return codes, codesErr
}
