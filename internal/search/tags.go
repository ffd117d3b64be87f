package search

import (
	"context"
	"io/fs"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/justyntemme/shelf/internal/debug"
	"github.com/justyntemme/shelf/internal/tags"
)

// ParseTagQuery turns comma-separated free text like "red, large" into the
// normalized query set.
func ParseTagQuery(text string) map[string]struct{} {
	return tags.NormalizeQuery(strings.Split(text, ","))
}

// Tags walks the tree below base and returns every folder whose tag set is
// a superset of query. A matched folder's subtree is not descended into.
// An empty query matches nothing. Results are unordered.
func Tags(ctx context.Context, base string, query map[string]struct{}) ([]string, error) {
	// Re-normalize so callers may pass raw user tags.
	q := make([]string, 0, len(query))
	for t := range query {
		q = append(q, t)
	}
	norm := tags.NormalizeQuery(q)
	if len(norm) == 0 {
		debug.Log(debug.SEARCH, "Tags: empty query, not walking %q", base)
		return nil, nil
	}

	debug.Log(debug.SEARCH, "Tags: base=%q query=%v", base, norm)

	var results []string
	var mu sync.Mutex

	// Don't follow symlinks to avoid cycles.
	conf := &fastwalk.Config{
		Follow: false,
	}

	err := fastwalk.Walk(conf, base, func(fullPath string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			debug.Log(debug.FS_WALK, "Tags: error at %q: %v", fullPath, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		if tags.Contains(tags.ReadSet(fullPath), norm) {
			debug.Log(debug.FS_WALK, "Tags: MATCH %s", fullPath)
			mu.Lock()
			results = append(results, fullPath)
			mu.Unlock()
			return fastwalk.SkipDir
		}
		return nil
	})

	if ctx.Err() != nil {
		return results, ctx.Err()
	}
	if err != nil {
		debug.Log(debug.SEARCH, "Tags: walk error: %v", err)
		return results, err
	}

	debug.Log(debug.SEARCH, "Tags: %d matches", len(results))
	return results, nil
}
