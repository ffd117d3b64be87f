package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/justyntemme/shelf/internal/config"
	"github.com/justyntemme/shelf/internal/debug"
	"github.com/justyntemme/shelf/internal/fs"
	"github.com/justyntemme/shelf/internal/metrics"
	"github.com/justyntemme/shelf/internal/store"
	"github.com/justyntemme/shelf/internal/thumbs"
)

const cacheCloseTimeout = 5 * time.Second

// lastDirSetting is the settings key holding the directory last shown by
// Navigate.
const lastDirSetting = "library.lastDir"

// Tile identifies one on-screen thumbnail slot. A result is delivered only
// while its path is still tracked.
type Tile struct {
	Path string
	ID   uint64
}

// Completion is a finished thumbnail for a live tile.
type Completion struct {
	Tile  Tile
	Image image.Image
	Err   error
}

// Library coordinates listing, search, tags, and thumbnails for one item
// library. Listing and search run on the fs.System actor; history and the
// session go through the store actor.
type Library struct {
	cfg config.Config

	fs      *fs.System
	store   *store.DB
	cache   *thumbs.Cache
	gen     *thumbs.Generator
	watcher *DirectoryWatcher
	session *Session
	sources thumbs.SourceOptions

	reqGen    atomic.Int64
	waitMu    sync.Mutex
	waiters   map[int64]chan fs.Response
	storeDone chan struct{}
	done      chan struct{}
	loopDone  chan struct{}

	mu      sync.Mutex
	tiles   map[string]uint64 // path -> live tile ID
	nextID  uint64
	pending map[string]bool // paths with a generation job in flight
	current string          // directory shown by Navigate

	snapMu   sync.Mutex
	history  []store.HistoryEntry // last snapshot from the store actor
	settings map[string]string    // loaded at Open, then written through

	completions chan Completion
	refreshes   chan string
}

// Open wires up every component from cfg and starts the actors.
func Open(cfg config.Config) (*Library, error) {
	db := store.NewDB()
	db.HistoryLimit = cfg.Search.HistoryLimit
	if err := db.Open(cfg.Library.Database); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cache, err := thumbs.NewCache(thumbs.CacheOptions{
		Dir:           cfg.Cache.Dir,
		MaxEntries:    cfg.Cache.MaxEntries,
		MaxDiskBytes:  cfg.Cache.MaxDiskBytes(),
		DiskWorkers:   cfg.Cache.DiskWorkers,
		Quality:       cfg.Cache.Quality,
		MaintainEvery: cfg.Cache.MaintainEvery,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	l := &Library{
		cfg:   cfg,
		fs:    fs.NewSystem(),
		store: db,
		cache: cache,
		gen: thumbs.NewGenerator(cache, thumbs.GeneratorOptions{
			Workers:   cfg.Thumbnails.Workers,
			QueueSize: cfg.Thumbnails.QueueSize,
			MaxPixels: cfg.Thumbnails.MaxPixels,
		}),
		session:     NewSession(cfg.Search.RecentFolders),
		sources:     thumbs.SourceOptions{EmptyFolderImage: cfg.Thumbnails.EmptyFolderImage, PlaceholderSize: cfg.Thumbnails.Size},
		waiters:     make(map[int64]chan fs.Response),
		storeDone:   make(chan struct{}),
		done:        make(chan struct{}),
		loopDone:    make(chan struct{}),
		settings:    make(map[string]string),
		tiles:       make(map[string]uint64),
		pending:     make(map[string]bool),
		completions: make(chan Completion, 64),
		refreshes:   make(chan string, 10),
	}

	if cfg.Watcher.Enabled {
		w, err := NewDirectoryWatcher(cfg.Watcher.Debounce())
		if err != nil {
			log.Printf("Warning: directory watcher unavailable: %v", err)
		} else {
			l.watcher = w
		}
	}

	if folders, err := db.RecentFolders(); err != nil {
		log.Printf("Warning: failed to load recent folders: %v", err)
	} else {
		l.session.Restore(folders)
	}
	if dir, ok := db.Setting(lastDirSetting); ok {
		l.settings[lastDirSetting] = dir
	}

	go l.fs.Start()
	go func() {
		l.store.Start()
		close(l.storeDone)
	}()
	go l.processEvents()

	l.store.RequestChan <- store.Request{Op: store.FetchHistory}

	debug.Log(debug.APP, "Open: base=%q db=%q cache=%q", cfg.Library.Base, cfg.Library.Database, cfg.Cache.Dir)
	return l, nil
}

// Close persists the session and shuts every component down.
func (l *Library) Close() error {
	l.store.RequestChan <- store.Request{Op: store.SaveRecentFolders, Folders: l.session.Recent()}
	close(l.store.RequestChan)
	<-l.storeDone

	close(l.done)
	<-l.loopDone

	close(l.fs.RequestChan)
	if l.watcher != nil {
		l.watcher.UnwatchAll()
		l.watcher.Close()
	}

	l.gen.Close()
	err := l.cache.Close(cacheCloseTimeout)
	l.store.Close()

	debug.Log(debug.APP, "Close: library closed")
	return err
}

func (l *Library) Config() config.Config { return l.cfg }
func (l *Library) Cache() *thumbs.Cache { return l.cache }
func (l *Library) Store() *store.DB { return l.store }
func (l *Library) Session() *Session { return l.session }
func (l *Library) Completions() <-chan Completion { return l.completions }

// Refreshes emits directories whose listing changed on disk.
func (l *Library) Refreshes() <-chan string { return l.refreshes }

// processEvents routes actor responses to their waiters, mirrors store
// updates, and forwards watcher notifications.
func (l *Library) processEvents() {
	defer close(l.loopDone)

	var notify <-chan string
	if l.watcher != nil {
		notify = l.watcher.Notify()
	}

	for {
		select {
		case <-l.done:
			return

		case resp := <-l.fs.ResponseChan:
			l.waitMu.Lock()
			ch, ok := l.waiters[resp.Gen]
			delete(l.waiters, resp.Gen)
			l.waitMu.Unlock()
			if !ok {
				debug.Log(debug.APP, "Dropping stale fs response gen=%d", resp.Gen)
				continue
			}
			ch <- resp

		case p := <-l.fs.ProgressChan:
			debug.Log(debug.APP, "Progress gen=%d: %s", p.Gen, p.Label)

		case resp := <-l.store.ResponseChan:
			l.handleStoreResponse(resp)

		case dir := <-notify:
			select {
			case l.refreshes <- dir:
			default:
				debug.Log(debug.APP, "Refresh channel full, dropping %s", dir)
			}
		}
	}
}

func (l *Library) handleStoreResponse(resp store.Response) {
	if resp.Err != nil {
		log.Printf("Store Error: %v", resp.Err)
		return
	}
	switch resp.Op {
	case store.FetchHistory:
		l.snapMu.Lock()
		l.history = resp.History
		l.snapMu.Unlock()
	case store.FetchSettings:
		// The local snapshot already holds what Navigate saved.
		debug.Log(debug.APP, "Store: %d settings saved", len(resp.Settings))
	case store.FetchRecentFolders:
		debug.Log(debug.APP, "Store: %d recent folders saved", len(resp.Folders))
	}
}

// request sends req to the fs actor and waits for its response. A
// cancelled ctx also cancels a running search.
func (l *Library) request(ctx context.Context, req fs.Request) (fs.Response, error) {
	req.Gen = l.reqGen.Add(1)
	ch := make(chan fs.Response, 1)

	l.waitMu.Lock()
	l.waiters[req.Gen] = ch
	l.waitMu.Unlock()

	l.fs.RequestChan <- req

	select {
	case resp := <-ch:
		if resp.Cancelled {
			return resp, context.Canceled
		}
		return resp, resp.Err
	case <-ctx.Done():
		l.waitMu.Lock()
		delete(l.waiters, req.Gen)
		l.waitMu.Unlock()
		if req.Op != fs.FetchDir {
			l.fs.RequestChan <- fs.Request{Op: fs.CancelSearch, Gen: req.Gen}
		}
		return fs.Response{}, ctx.Err()
	}
}

// List returns the filtered, sorted children of dir.
func (l *Library) List(ctx context.Context, dir string, mode fs.SortMode, filter string) ([]fs.Entry, error) {
	resp, err := l.request(ctx, fs.Request{Op: fs.FetchDir, Path: dir, Sort: mode, Filter: filter})
	return resp.Entries, err
}

// Navigate lists dir with the configured default order, records it in the
// session, and moves the watcher to it.
func (l *Library) Navigate(ctx context.Context, dir, filter string) ([]fs.Entry, error) {
	dir = filepath.Clean(dir)
	entries, err := l.List(ctx, dir, fs.ParseSortMode(l.cfg.Library.DefaultSort), filter)
	if err != nil {
		return nil, err
	}

	l.session.Touch(dir)

	l.mu.Lock()
	prev := l.current
	l.current = dir
	l.mu.Unlock()

	if prev != dir {
		l.snapMu.Lock()
		l.settings[lastDirSetting] = dir
		l.snapMu.Unlock()
		l.store.RequestChan <- store.Request{Op: store.SaveSetting, Key: lastDirSetting, Value: dir}
	}

	if l.watcher != nil {
		if prev != "" && prev != dir {
			l.watcher.Unwatch(prev)
		}
		if err := l.watcher.Watch(dir); err != nil {
			log.Printf("Warning: cannot watch %s: %v", dir, err)
		}
	}
	return entries, nil
}

// Current returns the directory last shown by Navigate.
func (l *Library) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// SearchTags finds item folders under the library base carrying every tag
// in text ("red, large") and records the search in history.
func (l *Library) SearchTags(ctx context.Context, text string) ([]fs.Entry, error) {
	start := time.Now()
	resp, err := l.request(ctx, fs.Request{
		Op:    fs.SearchTags,
		Path:  l.cfg.Library.Base,
		Query: text,
		Sort:  fs.ParseSortMode(l.cfg.Library.DefaultSort),
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSearch(store.SearchTypeTags, len(resp.Entries), time.Since(start))
	l.store.RequestChan <- store.Request{Op: store.AddHistory, Type: store.SearchTypeTags, Criteria: text, Count: len(resp.Entries)}
	return resp.Entries, nil
}

// SearchAdvanced runs a directive query ("ext:png size:>1MB") below dir,
// or below the library base when dir is empty.
func (l *Library) SearchAdvanced(ctx context.Context, dir, query string) ([]fs.Entry, error) {
	if dir == "" {
		dir = l.cfg.Library.Base
	}
	start := time.Now()
	resp, err := l.request(ctx, fs.Request{
		Op:    fs.SearchAdvanced,
		Path:  dir,
		Query: query,
		Sort:  fs.ParseSortMode(l.cfg.Library.DefaultSort),
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSearch(store.SearchTypeAdvanced, len(resp.Entries), time.Since(start))
	l.store.RequestChan <- store.Request{Op: store.AddHistory, Type: store.SearchTypeAdvanced, Criteria: query, Count: len(resp.Entries)}
	return resp.Entries, nil
}

// LastDirectory returns the directory last shown by Navigate, in this run
// or a previous one, falling back to the library base.
func (l *Library) LastDirectory() string {
	l.snapMu.Lock()
	defer l.snapMu.Unlock()
	if dir := l.settings[lastDirSetting]; dir != "" {
		return dir
	}
	return l.cfg.Library.Base
}

// RecentHistory returns the history snapshot last pushed by the store actor.
func (l *Library) RecentHistory() []store.HistoryEntry {
	l.snapMu.Lock()
	defer l.snapMu.Unlock()
	return append([]store.HistoryEntry(nil), l.history...)
}

// Track registers a live tile for path, replacing any previous tile for it.
func (l *Library) Track(path string) Tile {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.tiles[path] = l.nextID
	return Tile{Path: path, ID: l.nextID}
}

// Forget unregisters t. Results for it arriving later are discarded.
func (l *Library) Forget(t Tile) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tiles[t.Path] == t.ID {
		delete(l.tiles, t.Path)
	}
}

// Thumbnail returns the cached thumbnail for t, or dispatches a generation
// job and returns false. The finished image arrives on Completions() if t
// is still tracked by then.
func (l *Library) Thumbnail(t Tile) (image.Image, bool) {
	src, err := thumbs.NewSource(t.Path, l.sources)
	if err != nil {
		debug.Log(debug.APP, "Thumbnail: %v", err)
		return thumbs.ErrorImage(), true
	}

	if img, ok := l.cache.Get(src.Key()); ok {
		return img, true
	}

	l.mu.Lock()
	if l.pending[t.Path] {
		l.mu.Unlock()
		return nil, false
	}
	l.pending[t.Path] = true
	l.mu.Unlock()

	if !l.gen.Submit(src, l.deliver) {
		l.mu.Lock()
		delete(l.pending, t.Path)
		l.mu.Unlock()
	}
	return nil, false
}

// deliver runs on a generator worker.
func (l *Library) deliver(res thumbs.Result) {
	l.mu.Lock()
	delete(l.pending, res.Path)
	id, live := l.tiles[res.Path]
	l.mu.Unlock()

	if !live {
		debug.Log(debug.APP, "Thumbnail for %s arrived after its tile went away", res.Path)
		return
	}
	if res.Err != nil {
		log.Printf("Warning: thumbnail %s: %v", res.Path, res.Err)
	}

	select {
	case l.completions <- Completion{Tile: Tile{Path: res.Path, ID: id}, Image: res.Image, Err: res.Err}:
	default:
		debug.Log(debug.APP, "Completion channel full, dropping %s", res.Path)
	}
}
