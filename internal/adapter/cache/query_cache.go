package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// QueryCache is an LRU cache of search results with a TTL. Invalidate
// drops every entry and bumps the store generation so that results
// computed before a change are never served after it.
type QueryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List // front is most recently used
	maxSize    int
	ttl        time.Duration
	generation uint64

	revision     int
	haveRevision bool
}

type cacheEntry struct {
	key      string
	results  []domain.ScoredChunk
	storedAt time.Time
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// cacheKey length-prefixes every field so that different splits of the
// same bytes never collide.
func cacheKey(q domain.Query) string {
	h := sha256.New()
	var n [8]byte
	for _, part := range []string{q.Text, q.Filters.Category, q.Filters.Year} {
		binary.BigEndian.PutUint64(n[:], uint64(len(part)))
		h.Write(n[:])
		h.Write([]byte(part))
	}
	binary.BigEndian.PutUint64(n[:], uint64(q.TopK))
	h.Write(n[:])
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *QueryCache) Get(q domain.Query) ([]domain.ScoredChunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[cacheKey(q)]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Since(entry.storedAt) > c.ttl {
		c.remove(elem)
		return nil, false
	}

	c.lru.MoveToFront(elem)
	return entry.results, true
}

func (c *QueryCache) Put(q domain.Query, results []domain.ScoredChunk) {
	c.putAt(q, results, c.currentGeneration())
}

// putAt stores results computed against generation gen. Results from an
// older generation are dropped.
func (c *QueryCache) putAt(q domain.Query, results []domain.ScoredChunk, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	key := cacheKey(q)
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.results = results
		entry.storedAt = time.Now()
		c.lru.MoveToFront(elem)
		return
	}

	for c.lru.Len() >= c.maxSize {
		c.remove(c.lru.Back())
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, results: results, storedAt: time.Now()})
}

// Invalidate drops every entry. Results being computed concurrently are
// not stored when they complete.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *QueryCache) invalidateLocked() {
	clear(c.entries)
	c.lru.Init()
	c.generation++
}

// observeRevision records the store revision seen by a search and drops
// every entry when it differs from the previous one.
func (c *QueryCache) observeRevision(rev int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.haveRevision && rev != c.revision {
		c.invalidateLocked()
	}
	c.revision = rev
	c.haveRevision = true
}

func (c *QueryCache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *QueryCache) remove(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.entries, elem.Value.(*cacheEntry).key)
}

var _ port.Retriever = (*CachedRetriever)(nil)

// RevisionFunc reports a value that changes whenever the store's content
// changes, such as its row count.
type RevisionFunc func(ctx context.Context) (int, error)

// CachedRetriever serves repeated queries from a QueryCache. When a
// revision function is set it is checked on every search, so writes made
// by another process holding the same store are seen on the next query.
type CachedRetriever struct {
	retriever port.Retriever
	cache     *QueryCache
	revision  RevisionFunc
}

func NewCachedRetriever(retriever port.Retriever, cache *QueryCache, revision RevisionFunc) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		cache:     cache,
		revision:  revision,
	}
}

func (r *CachedRetriever) Search(ctx context.Context, q domain.Query) ([]domain.ScoredChunk, error) {
	if r.revision != nil {
		rev, err := r.revision(ctx)
		if err != nil {
			return nil, err
		}
		r.cache.observeRevision(rev)
	}

	if results, hit := r.cache.Get(q); hit {
		return results, nil
	}

	gen := r.cache.currentGeneration()
	results, err := r.retriever.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	r.cache.putAt(q, results, gen)

	return results, nil
}

// Invalidate drops all cached results. Call it after the store changes.
func (r *CachedRetriever) Invalidate() {
	r.cache.Invalidate()
}
