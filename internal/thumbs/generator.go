package thumbs

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"

	"github.com/justyntemme/shelf/internal/debug"
	"github.com/justyntemme/shelf/internal/metrics"
)

const defaultQueueSize = 256

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	Workers   int  // Decode workers, default max(1, NumCPU-1)
	QueueSize int  // Pending job capacity
	MaxPixels int  // Downscale so neither side exceeds this; 0 keeps full size
	Results   bool // Also publish every result on Results()
}

// Result is the outcome of one generation job. Image is never nil; Err is
// set when Image is a placeholder standing in for a failed decode.
type Result struct {
	Path  string
	Key   string
	Image image.Image
	Err   error
}

type job struct {
	src      Source
	callback func(Result)
}

// Generator runs thumbnail jobs on a fixed pool of workers and stores each
// result in the cache before delivering it.
type Generator struct {
	cache *Cache
	opts  GeneratorOptions

	mu      sync.RWMutex
	closed  bool
	jobs    chan job
	results chan Result
	wg      sync.WaitGroup

	group singleflight.Group
}

func defaultWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

// NewGenerator starts the worker pool. cache may be nil, in which case
// results are only delivered.
func NewGenerator(cache *Cache, opts GeneratorOptions) *Generator {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	g := &Generator{
		cache: cache,
		opts:  opts,
		jobs:  make(chan job, opts.QueueSize),
	}
	if opts.Results {
		g.results = make(chan Result, opts.QueueSize)
	}

	for i := 0; i < opts.Workers; i++ {
		g.wg.Add(1)
		go g.worker()
	}

	debug.Log(debug.THUMB, "NewGenerator: workers=%d queue=%d maxPixels=%d", opts.Workers, opts.QueueSize, opts.MaxPixels)
	return g
}

// Results returns the result channel, or nil unless Results was enabled.
// Callers that enable it must drain it; workers block on a full channel.
func (g *Generator) Results() <-chan Result {
	return g.results
}

// Submit queues src for generation. callback, if non-nil, runs on a worker
// goroutine when the job finishes. Submit never blocks; it returns false
// when the queue is full or the generator is closed.
func (g *Generator) Submit(src Source, callback func(Result)) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return false
	}

	select {
	case g.jobs <- job{src: src, callback: callback}:
		metrics.SetQueueDepth(len(g.jobs))
		return true
	default:
		metrics.RecordJobDropped()
		debug.Log(debug.THUMB, "Submit: queue full, dropping %s", src.Path())
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (g *Generator) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	close(g.jobs)
	g.mu.Unlock()

	g.wg.Wait()
	if g.results != nil {
		close(g.results)
	}
	debug.Log(debug.THUMB, "Close: generator stopped")
}

func (g *Generator) worker() {
	defer g.wg.Done()
	for j := range g.jobs {
		metrics.SetQueueDepth(len(g.jobs))

		start := time.Now()
		res := g.generate(j.src)
		metrics.RecordJob(time.Since(start), res.Err == nil)

		if j.callback != nil {
			j.callback(res)
		}
		if g.results != nil {
			g.results <- res
		}
	}
}

// generate produces the result for src. It never panics; a panicking
// source yields the error sentinel.
func (g *Generator) generate(src Source) (res Result) {
	res = Result{Path: src.Path(), Key: src.Key()}

	defer func() {
		if r := recover(); r != nil {
			debug.Log(debug.THUMB, "generate %s: panic: %v", res.Path, r)
			res.Image = ErrorImage()
			res.Err = fmt.Errorf("%w: %s: panic: %v", ErrDecode, res.Path, r)
		}
	}()

	// Concurrent jobs for one key share a single decode.
	v, err, shared := g.group.Do(res.Key, func() (interface{}, error) {
		img, err := src.Load()
		if img == nil {
			img = ErrorImage()
		}
		img = g.scale(img)
		if g.cache != nil {
			g.cache.Set(res.Key, img)
		}
		return img, err
	})
	if shared {
		debug.Log(debug.THUMB, "generate %s: shared in-flight result", res.Key)
	}

	res.Image = v.(image.Image)
	res.Err = err
	return res
}

// scale shrinks src so that neither side exceeds MaxPixels.
func (g *Generator) scale(src image.Image) image.Image {
	maxPixels := g.opts.MaxPixels
	if maxPixels <= 0 {
		return src
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= maxPixels && height <= maxPixels {
		return src
	}

	var scale float64
	if width > height {
		scale = float64(maxPixels) / float64(width)
	} else {
		scale = float64(maxPixels) / float64(height)
	}

	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
