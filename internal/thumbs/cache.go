package thumbs

import (
	"container/list"
	"fmt"
	"image"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/justyntemme/shelf/internal/debug"
	"github.com/justyntemme/shelf/internal/metrics"
)

// Defaults applied by NewCache to zero-valued options.
const (
	DefaultMaxEntries    = 1000
	DefaultMaxDiskBytes  = 500 * 1024 * 1024
	DefaultDiskWorkers   = 4
	DefaultQuality       = 85
	DefaultMaintainEvery = 32

	writeQueueSize  = 256
	errorBufferSize = 64
)

// CacheOptions configures a Cache.
type CacheOptions struct {
	Dir           string // Disk tier directory, owned exclusively by the cache
	MaxEntries    int    // Memory tier capacity in items
	MaxDiskBytes  int64  // Disk tier budget
	DiskWorkers   int    // Background JPEG writers
	Quality       int    // JPEG quality for disk entries
	MaintainEvery int    // Run a maintenance pass every N disk writes
}

func (o *CacheOptions) applyDefaults() {
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.MaxDiskBytes <= 0 {
		o.MaxDiskBytes = DefaultMaxDiskBytes
	}
	if o.DiskWorkers <= 0 {
		o.DiskWorkers = DefaultDiskWorkers
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.MaintainEvery <= 0 {
		o.MaintainEvery = DefaultMaintainEvery
	}
}

// CacheError describes a failed disk tier operation. Op is one of "read",
// "write", "remove", or "maintain".
type CacheError struct {
	Key  string
	Path string
	Op   string
	Err  error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("thumbnail cache %s %s (key %q): %v", e.Op, e.Path, e.Key, e.Err)
	}
	return fmt.Sprintf("thumbnail cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// Stats is a point-in-time view of both tiers.
type Stats struct {
	MemoryEntries int
	MaxEntries    int
	DiskFiles     int
	DiskBytes     int64
	MaxDiskBytes  int64
}

// Cache is a two-tier thumbnail cache: a strict LRU of decoded images in
// memory backed by JPEG files on disk. Memory operations are serialized by
// one mutex; disk I/O never happens while holding it.
type Cache struct {
	opts CacheOptions

	mu      sync.Mutex
	entries map[string]*list.Element // key -> element holding *cacheEntry
	lru     *list.List               // front = most recent
	pending map[string]writeJob      // newest queued write per key, until it lands
	seq     uint64

	// Disk writer pool. Each key always hashes to the same writer, so
	// writes for one key reach the disk in Set order.
	closeMu sync.RWMutex
	closed  bool
	writes  []chan writeJob
	wg      sync.WaitGroup
	written atomic.Int64

	maintainMu sync.Mutex
	errs       chan CacheError
}

type cacheEntry struct {
	key   string
	image image.Image
}

// NewCache creates the cache directory if needed, removes any files left in
// it, and starts the disk writers.
func NewCache(opts CacheOptions) (*Cache, error) {
	opts.applyDefaults()
	if opts.Dir == "" {
		return nil, fmt.Errorf("thumbnail cache: no directory configured")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("thumbnail cache: create %s: %w", opts.Dir, err)
	}

	c := &Cache{
		opts:    opts,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		pending: make(map[string]writeJob),
		writes:  make([]chan writeJob, opts.DiskWorkers),
		errs:    make(chan CacheError, errorBufferSize),
	}
	perWorker := max(writeQueueSize/opts.DiskWorkers, 1)
	for i := range c.writes {
		c.writes[i] = make(chan writeJob, perWorker)
	}

	// Cold start: nothing on disk is trusted from a previous run.
	c.wipeDisk()
	if _, err := c.Maintain(); err != nil {
		log.Printf("Warning: thumbnail cache maintenance failed: %v", err)
	}

	for _, ch := range c.writes {
		c.wg.Add(1)
		go c.diskWriter(ch)
	}

	debug.Log(debug.CACHE, "NewCache: dir=%q maxEntries=%d maxDiskBytes=%d workers=%d",
		opts.Dir, opts.MaxEntries, opts.MaxDiskBytes, opts.DiskWorkers)
	return c, nil
}

// Dir returns the disk tier directory.
func (c *Cache) Dir() string {
	return c.opts.Dir
}

// Errors returns the side channel on which disk failures are reported.
// Sends never block; errors are dropped when nobody drains the channel.
func (c *Cache) Errors() <-chan CacheError {
	return c.errs
}

// Get returns the image cached under key. The memory tier is consulted
// first, then writes still queued for disk; on a miss the disk tier is read
// and a decoded hit is promoted into memory. A disk file that fails to
// decode is deleted and counts as a miss.
func (c *Cache) Get(key string) (image.Image, bool) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		img := el.Value.(*cacheEntry).image
		c.mu.Unlock()
		metrics.RecordCacheHit("memory")
		return img, true
	}
	if job, ok := c.pending[key]; ok {
		c.insertLocked(key, job.image)
		c.mu.Unlock()
		metrics.RecordCacheHit("memory")
		return job.image, true
	}
	c.mu.Unlock()

	img, ok := c.readDisk(key)
	if !ok {
		metrics.RecordCacheMiss()
		return nil, false
	}
	metrics.RecordCacheHit("disk")

	c.mu.Lock()
	defer c.mu.Unlock()
	// A Set may have raced the disk read; the newer value wins.
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		return el.Value.(*cacheEntry).image, true
	}
	if job, ok := c.pending[key]; ok {
		img = job.image
	}
	c.insertLocked(key, img)
	return img, true
}

// Set stores img under key in memory and queues a disk write. It never
// waits on disk I/O. When the write queue is full, or the cache has been
// closed, only the memory tier is updated; a full queue keeps the image
// readable through Get until a later write for key lands.
func (c *Cache) Set(key string, img image.Image) {
	if img == nil {
		return
	}

	c.closeMu.RLock()
	defer c.closeMu.RUnlock()

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).image = img
		c.lru.MoveToFront(el)
	} else {
		c.insertLocked(key, img)
	}
	var job writeJob
	if !c.closed {
		c.seq++
		job = writeJob{key: key, image: img, seq: c.seq}
		c.pending[key] = job
	}
	c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.writerFor(key) <- job:
	default:
		c.report(CacheError{Key: key, Path: c.KeyFile(key), Op: "write", Err: fmt.Errorf("write queue full")})
	}
}

func (c *Cache) writerFor(key string) chan writeJob {
	return c.writes[xxhash.Sum64String(key)%uint64(len(c.writes))]
}

// landed forgets job once it is no longer the newest write for its key.
func (c *Cache) landed(job writeJob) {
	c.mu.Lock()
	if p, ok := c.pending[job.key]; ok && p.seq == job.seq {
		delete(c.pending, job.key)
	}
	c.mu.Unlock()
}

// superseded reports whether a newer write for job's key has been queued.
func (c *Cache) superseded(job writeJob) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[job.key]
	return ok && p.seq != job.seq
}

// insertLocked adds a new entry, evicting the least recently used one when
// the cap is reached. Caller holds c.mu.
func (c *Cache) insertLocked(key string, img image.Image) {
	if c.lru.Len() >= c.opts.MaxEntries {
		if oldest := c.lru.Back(); oldest != nil {
			old := oldest.Value.(*cacheEntry)
			delete(c.entries, old.key)
			c.lru.Remove(oldest)
			metrics.RecordCacheEviction("memory", 1)
			debug.Log(debug.CACHE, "evicted %s", old.key)
		}
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, image: img})
	metrics.SetCacheMemoryEntries(c.lru.Len())
}

// Contains reports whether key is in the memory tier without promoting it.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of thumbnails held in memory.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns memory tier keys, most recently used first.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*cacheEntry).key)
	}
	return keys
}

// Stats reports memory occupancy and the current disk tier usage.
func (c *Cache) Stats() Stats {
	s := Stats{
		MemoryEntries: c.Len(),
		MaxEntries:    c.opts.MaxEntries,
		MaxDiskBytes:  c.opts.MaxDiskBytes,
	}
	files, total, err := c.diskFiles()
	if err != nil {
		c.report(CacheError{Path: c.opts.Dir, Op: "maintain", Err: err})
	}
	s.DiskFiles = len(files)
	s.DiskBytes = total
	return s
}

// Clear empties both tiers. Writes still queued may land afterwards.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*list.Element)
	c.lru = list.New()
	c.pending = make(map[string]writeJob)
	c.mu.Unlock()
	metrics.SetCacheMemoryEntries(0)

	c.wipeDisk()
	debug.Log(debug.CACHE, "Clear: cache cleared")
}

// Close stops accepting disk writes and waits up to timeout for queued
// writes to finish. Memory operations keep working after Close.
func (c *Cache) Close(timeout time.Duration) error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	for _, ch := range c.writes {
		close(ch)
	}
	c.closeMu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		debug.Log(debug.CACHE, "Close: disk writers drained")
		return nil
	case <-time.After(timeout):
		queued := 0
		for _, ch := range c.writes {
			queued += len(ch)
		}
		return fmt.Errorf("thumbnail cache: %d disk writes still pending after %s", queued, timeout)
	}
}

// report logs err and forwards it on the error channel without blocking.
func (c *Cache) report(e CacheError) {
	log.Printf("Warning: %v", &e)
	metrics.RecordCacheError(e.Op)
	select {
	case c.errs <- e:
	default:
	}
}
