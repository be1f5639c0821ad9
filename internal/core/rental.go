package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"golang.org/x/sync/singleflight"

	"worldbuilder/pkg/domain"
)

// CacheConfig tunes the document cache's background sweep.
type CacheConfig struct {
	// IdleTimeout is how long an unrented entry survives before eviction.
	IdleTimeout time.Duration
	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration
}

// DefaultCacheConfig returns the sweep settings used when none are supplied.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{IdleTimeout: 5 * time.Minute, SweepInterval: 30 * time.Second}
}

func (c CacheConfig) withDefaults() CacheConfig {
	def := DefaultCacheConfig()
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	return c
}

// cacheEntry wraps one cached document: a strong reference held only while
// the rent count is positive, a weak reference held always, and the time the
// entry was last rented or returned.
type cacheEntry struct {
	id         string
	rents      int64
	strong     *domain.LandscapeDocument
	weakRef    weak.Pointer[domain.LandscapeDocument]
	lastAccess time.Time
}

// Rental is a scoped, reference-counted handle on a cached document. Release
// it when editing work against the document completes; Release is idempotent.
type Rental struct {
	cache    *DocumentCache
	entry    *cacheEntry
	doc      *domain.LandscapeDocument
	released atomic.Bool
}

// Document returns the rented document. The pointer stays valid for the life
// of the rental.
func (r *Rental) Document() *domain.LandscapeDocument { return r.doc }

// Release returns the rental. When the last rental of a document is
// released, the cache drops its strong reference and retains only the weak
// lookup handle. Releasing twice is a no-op.
func (r *Rental) Release() {
	if r == nil || r.released.Swap(true) {
		return
	}
	r.cache.release(r.entry)
}

// DocumentCache is the concurrency-safe, reference-counted, lazily-populated
// cache of landscape documents keyed by id. Loads from the backing store are
// collapsed through a singleflight group so concurrent renters of a missing
// document trigger one deserialization. A background sweep evicts entries
// that have sat unrented past the idle timeout, and entries whose weak
// reference no longer resolves, as two independent eviction reasons.
//
// One coarse mutex guards all cache bookkeeping; it is never held across
// store I/O.
type DocumentCache struct {
	store   domain.DocumentStore
	metrics domain.MetricsRecorder
	logger  domain.Logger
	cfg     CacheConfig

	mu      sync.Mutex
	entries map[string]*cacheEntry
	closed  bool

	// docLocks serializes command application per document id. Locks outlive
	// their entries so writers racing an eviction or invalidation still
	// contend on the same mutex.
	docLocks map[string]*sync.Mutex

	loads singleflight.Group
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewDocumentCache constructs a cache over the store and starts its sweep
// loop. Close must be called to stop the sweep.
func NewDocumentCache(store domain.DocumentStore, cfg CacheConfig, metrics domain.MetricsRecorder, logger domain.Logger) *DocumentCache {
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	if logger == nil {
		logger = domain.NoopLogger{}
	}
	c := &DocumentCache{
		store:    store,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		entries:  make(map[string]*cacheEntry),
		docLocks: make(map[string]*sync.Mutex),
		stop:     make(chan struct{}),
	}
	c.wg.Add(1)
	go c.sweepLoop()
	return c
}

// Create persists a brand-new document through the transaction and caches it
// with an initial rent. It fails with ConflictError if the id is already
// cached or stored.
func (c *DocumentCache) Create(ctx context.Context, doc *domain.LandscapeDocument, tx domain.Tx) (*Rental, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, domain.DisposedError{Resource: "document cache"}
	}
	if _, exists := c.entries[doc.ID]; exists {
		c.mu.Unlock()
		return nil, domain.ConflictError{Entity: "document", ID: doc.ID}
	}
	c.mu.Unlock()

	blob, err := doc.MarshalBlob()
	if err != nil {
		return nil, err
	}
	if err := tx.InsertDocument(ctx, doc.ID, domain.DocumentTypeName, blob, doc.Version); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, domain.DisposedError{Resource: "document cache"}
	}
	if _, exists := c.entries[doc.ID]; exists {
		return nil, domain.ConflictError{Entity: "document", ID: doc.ID}
	}
	entry := &cacheEntry{
		id:         doc.ID,
		rents:      1,
		strong:     doc,
		weakRef:    weak.Make(doc),
		lastAccess: time.Now(),
	}
	c.entries[doc.ID] = entry
	c.metrics.RecordCacheEvent("create")
	return &Rental{cache: c, entry: entry, doc: doc}, nil
}

// Rent returns a handle on the cached document, reviving it through the weak
// reference or loading it from the store when necessary. It fails with
// NotFoundError when the id is absent from both cache and store.
func (c *DocumentCache) Rent(ctx context.Context, id string) (*Rental, error) {
	if rental, ok, err := c.rentCached(id); err != nil || ok {
		return rental, err
	}

	// Load outside the lock; collapse concurrent loads of the same id.
	loaded, err, _ := c.loads.Do(id, func() (any, error) {
		blob, err := c.store.GetDocumentBlob(ctx, id)
		if err != nil {
			return nil, err
		}
		return domain.UnmarshalDocumentBlob(blob)
	})
	if err != nil {
		c.metrics.RecordCacheEvent("load_miss")
		return nil, err
	}
	doc := loaded.(*domain.LandscapeDocument)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, domain.DisposedError{Resource: "document cache"}
	}
	// Another renter may have inserted the entry while we loaded.
	if entry, ok := c.entries[id]; ok && entry.strong != nil {
		entry.rents++
		entry.lastAccess = time.Now()
		return &Rental{cache: c, entry: entry, doc: entry.strong}, nil
	}
	entry := &cacheEntry{
		id:         id,
		rents:      1,
		strong:     doc,
		weakRef:    weak.Make(doc),
		lastAccess: time.Now(),
	}
	c.entries[id] = entry
	c.metrics.RecordCacheEvent("load")
	return &Rental{cache: c, entry: entry, doc: doc}, nil
}

// rentCached serves a rent from the cached strong or weak reference. The
// second return reports whether the request was satisfied.
func (c *DocumentCache) rentCached(id string) (*Rental, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false, domain.DisposedError{Resource: "document cache"}
	}
	entry, ok := c.entries[id]
	if !ok {
		return nil, false, nil
	}
	if entry.strong != nil {
		entry.rents++
		entry.lastAccess = time.Now()
		c.metrics.RecordCacheEvent("hit")
		return &Rental{cache: c, entry: entry, doc: entry.strong}, true, nil
	}
	if doc := entry.weakRef.Value(); doc != nil {
		entry.strong = doc
		entry.rents = 1
		entry.lastAccess = time.Now()
		c.metrics.RecordCacheEvent("weak_revive")
		return &Rental{cache: c, entry: entry, doc: doc}, true, nil
	}
	// The weak reference died; drop the entry and fall through to a load.
	delete(c.entries, id)
	c.metrics.RecordCacheEvent("weak_dead")
	return nil, false, nil
}

// Persist serializes the rented document and writes it through to the store
// inside the transaction. The rental stays open.
func (c *DocumentCache) Persist(ctx context.Context, rental *Rental, tx domain.Tx) error {
	if rental == nil || rental.released.Load() {
		return domain.ArgumentError{Msg: "cannot persist a released rental"}
	}
	doc := rental.Document()
	blob, err := doc.MarshalBlob()
	if err != nil {
		return err
	}
	return tx.UpdateDocument(ctx, doc.ID, blob, doc.Version)
}

// LockDocument takes the per-document mutex so commands against one document
// apply one at a time while different documents proceed in parallel. The
// returned func releases it.
func (c *DocumentCache) LockDocument(id string) func() {
	c.mu.Lock()
	l, ok := c.docLocks[id]
	if !ok {
		l = &sync.Mutex{}
		c.docLocks[id] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Invalidate drops the cached entries for the given ids, strong and weak
// references both, so the next Rent reloads the last committed blob. Open
// rentals keep their document pointers.
func (c *DocumentCache) Invalidate(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if _, ok := c.entries[id]; ok {
			delete(c.entries, id)
			c.metrics.RecordCacheEvent("invalidate")
		}
	}
}

func (c *DocumentCache) release(entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.rents--
	entry.lastAccess = time.Now()
	if entry.rents <= 0 {
		entry.rents = 0
		entry.strong = nil
	}
	c.metrics.RecordCacheEvent("release")
}

// Rented reports the current rent count for a document id, for tests and
// instrumentation.
func (c *DocumentCache) Rented(id string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[id]; ok {
		return entry.rents
	}
	return 0
}

// Contains reports whether an entry for id is present, rented or not.
func (c *DocumentCache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// Close stops the sweep loop and tears the cache down. Subsequent operations
// fail with DisposedError.
func (c *DocumentCache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
	close(c.stop)
	c.wg.Wait()
}

func (c *DocumentCache) sweepLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

// sweep applies the two eviction rules: entries unrented past the idle
// timeout, and entries whose weak reference no longer resolves.
func (c *DocumentCache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.entries {
		if entry.rents > 0 {
			continue
		}
		if entry.weakRef.Value() == nil {
			delete(c.entries, id)
			c.metrics.RecordCacheEvent("evict_weak")
			c.logger.Logf("evicted document %s: weak reference dead", id)
			continue
		}
		if now.Sub(entry.lastAccess) > c.cfg.IdleTimeout {
			delete(c.entries, id)
			c.metrics.RecordCacheEvent("evict_idle")
			c.logger.Logf("evicted document %s: idle", id)
		}
	}
}
