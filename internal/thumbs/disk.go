package thumbs

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/disintegration/imaging"
	"github.com/justyntemme/shelf/internal/debug"
	"github.com/justyntemme/shelf/internal/metrics"
)

const tempPrefix = ".tmp-"

type writeJob struct {
	key   string
	image image.Image
	seq   uint64
}

// KeyFile returns the disk tier filename for key. The name is stable
// across runs and platforms.
func KeyFile(key string) string {
	return fmt.Sprintf("%016x.jpg", xxhash.Sum64String(key))
}

// KeyFile returns the full disk tier path for key.
func (c *Cache) KeyFile(key string) string {
	return filepath.Join(c.opts.Dir, KeyFile(key))
}

// readDisk decodes the disk entry for key. Decode failures delete the file.
func (c *Cache) readDisk(key string) (image.Image, bool) {
	path := c.KeyFile(key)
	if _, err := os.Stat(path); err != nil {
		return nil, false
	}

	img, err := imaging.Open(path)
	if err != nil {
		c.report(CacheError{Key: key, Path: path, Op: "read", Err: err})
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.report(CacheError{Key: key, Path: path, Op: "remove", Err: rmErr})
		}
		return nil, false
	}

	debug.Log(debug.CACHE, "disk hit %s -> %s", key, filepath.Base(path))
	return img, true
}

func (c *Cache) diskWriter(jobs <-chan writeJob) {
	defer c.wg.Done()
	for job := range jobs {
		if c.superseded(job) {
			debug.Log(debug.CACHE, "skipping superseded write for %s", job.key)
			continue
		}
		c.writeDisk(job)
		c.landed(job)
		if n := c.written.Add(1); n%int64(c.opts.MaintainEvery) == 0 {
			if _, err := c.Maintain(); err != nil {
				c.report(CacheError{Path: c.opts.Dir, Op: "maintain", Err: err})
			}
		}
	}
}

// writeDisk encodes the job as JPEG into a temp file and renames it over
// the entry so readers never observe a partial file.
func (c *Cache) writeDisk(job writeJob) {
	path := c.KeyFile(job.key)

	tmp, err := os.CreateTemp(c.opts.Dir, tempPrefix+"*")
	if err != nil {
		c.report(CacheError{Key: job.key, Path: path, Op: "write", Err: err})
		return
	}
	tmpName := tmp.Name()

	err = imaging.Encode(tmp, job.image, imaging.JPEG, imaging.JPEGQuality(c.opts.Quality))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		os.Remove(tmpName)
		c.report(CacheError{Key: job.key, Path: path, Op: "write", Err: err})
		return
	}

	debug.Log(debug.CACHE, "wrote %s -> %s", job.key, filepath.Base(path))
}

type diskFile struct {
	name    string
	size    int64
	modTime time.Time
}

// diskFiles lists completed cache files and their total size.
func (c *Cache) diskFiles() ([]diskFile, int64, error) {
	dirEntries, err := os.ReadDir(c.opts.Dir)
	if err != nil {
		return nil, 0, err
	}

	var files []diskFile
	var total int64
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), tempPrefix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed concurrently
			continue
		}
		files = append(files, diskFile{name: de.Name(), size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}
	return files, total, nil
}

// Maintain deletes the oldest disk entries until the disk tier fits within
// its byte budget. Files are removed by ascending modification time, ties
// broken by name. It returns how many files were removed.
func (c *Cache) Maintain() (int, error) {
	c.maintainMu.Lock()
	defer c.maintainMu.Unlock()

	files, total, err := c.diskFiles()
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", c.opts.Dir, err)
	}

	removed := 0
	var errs []error
	if total > c.opts.MaxDiskBytes {
		sort.Slice(files, func(i, j int) bool {
			if !files[i].modTime.Equal(files[j].modTime) {
				return files[i].modTime.Before(files[j].modTime)
			}
			return files[i].name < files[j].name
		})

		for _, f := range files {
			if total <= c.opts.MaxDiskBytes {
				break
			}
			path := filepath.Join(c.opts.Dir, f.name)
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
				continue
			}
			total -= f.size
			removed++
		}
		metrics.RecordCacheEviction("disk", removed)
		debug.Log(debug.CACHE, "Maintain: removed %d files, %d bytes remain", removed, total)
	}

	metrics.SetCacheDiskBytes(total)
	return removed, errors.Join(errs...)
}

// wipeDisk removes every file in the cache directory.
func (c *Cache) wipeDisk() {
	dirEntries, err := os.ReadDir(c.opts.Dir)
	if err != nil {
		c.report(CacheError{Path: c.opts.Dir, Op: "remove", Err: err})
		return
	}
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(c.opts.Dir, de.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.report(CacheError{Path: path, Op: "remove", Err: err})
		}
	}
	metrics.SetCacheDiskBytes(0)
}
