// Package transcript provides an ordered, in-memory chat log whose lines can
// optionally expire after a retention period.
package transcript

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// Transcript is an append-only list of display lines. Lines are returned in
// the order they were added. It is safe for concurrent use.
type Transcript struct {
	cache     *cache.Cache
	retention time.Duration
	seq       atomic.Uint64
}

// line is the stored form of a transcript entry.
type line struct {
	seq  uint64
	text string
}

// New creates a Transcript. A positive retention makes every line expire
// that long after it was added; expired lines are purged every
// cleanupInterval. A retention of zero or less keeps lines until Clear.
//
// Parameters:
//   - retention: How long a line is kept (<= 0 keeps it forever)
//   - cleanupInterval: Interval of the expiry janitor (ignored without retention)
//
// Returns:
//   - A new, empty Transcript
func New(retention, cleanupInterval time.Duration) *Transcript {
	expiration := cache.NoExpiration
	if retention > 0 {
		expiration = retention
	} else {
		cleanupInterval = 0
	}

	return &Transcript{
		cache:     cache.New(expiration, cleanupInterval),
		retention: retention,
	}
}

// Add appends text as a new line.
func (t *Transcript) Add(text string) {
	seq := t.seq.Add(1)
	t.cache.SetDefault(key(seq), line{seq: seq, text: text})
}

// Lines returns the unexpired lines in insertion order.
func (t *Transcript) Lines() []string {
	items := t.cache.Items()
	entries := make([]line, 0, len(items))
	for _, item := range items {
		if l, ok := item.Object.(line); ok {
			entries = append(entries, l)
		}
	}

	slices.SortFunc(entries, func(a, b line) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	out := make([]string, len(entries))
	for i, l := range entries {
		out[i] = l.text
	}

	return out
}

// Len returns the number of unexpired lines.
func (t *Transcript) Len() int {
	return len(t.cache.Items())
}

// Clear removes every line.
func (t *Transcript) Clear() {
	t.cache.Flush()
}

// Retention returns the configured retention period.
func (t *Transcript) Retention() time.Duration {
	return t.retention
}

// Prune removes expired lines immediately instead of waiting for the
// janitor. It returns early with ctx's error when ctx is done.
func (t *Transcript) Prune(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.cache.DeleteExpired()
	return nil
}

func key(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}
