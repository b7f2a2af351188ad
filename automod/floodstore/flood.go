// In-process flood detection.
//
// Detector implements the configurable per-chat sliding window ("N messages within T seconds"). DuplicateDetector implements the always-on repeated-message check. Both keep state per (chat, user) in a concurrent map with a mutex per key, so different senders never contend.
package floodstore

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

type key struct {
	chatID int64
	userID int64
}

type window struct {
	lk    sync.Mutex
	times []time.Time
	last  time.Time
}

type Detector struct {
	windows *xsync.Map[key, *window]
}

func NewDetector() *Detector {
	return &Detector{
		windows: xsync.NewMap[key, *window](),
	}
}

// Records a message at time "at" and reports whether the sender has now posted at least "threshold" messages within "timeframe".
//
// Entries are kept while at - t < timeframe. Out-of-order timestamps are tolerated; they are simply trimmed on a later observation.
func (d *Detector) Observe(chatID, userID int64, at time.Time, threshold int, timeframe time.Duration) bool {
	w, _ := d.windows.LoadOrCompute(key{chatID, userID}, func() (*window, bool) {
		return &window{}, false
	})
	w.lk.Lock()
	defer w.lk.Unlock()

	w.times = append(w.times, at)
	kept := w.times[:0]
	for _, t := range w.times {
		if at.Sub(t) < timeframe {
			kept = append(kept, t)
		}
	}
	w.times = kept
	if at.After(w.last) {
		w.last = at
	}
	return len(w.times) >= threshold
}

// Clears the window for a sender, typically right after a flood was acted upon.
func (d *Detector) Reset(chatID, userID int64) {
	w, ok := d.windows.Load(key{chatID, userID})
	if !ok {
		return
	}
	w.lk.Lock()
	defer w.lk.Unlock()
	w.times = nil
}

// Number of timestamps currently retained for a sender.
func (d *Detector) Len(chatID, userID int64) int {
	w, ok := d.windows.Load(key{chatID, userID})
	if !ok {
		return 0
	}
	w.lk.Lock()
	defer w.lk.Unlock()
	return len(w.times)
}

// Drops windows with no activity since "idleBefore". Returns the number removed.
func (d *Detector) Sweep(idleBefore time.Time) int {
	removed := 0
	d.windows.Range(func(k key, w *window) bool {
		w.lk.Lock()
		idle := w.last.Before(idleBefore)
		w.lk.Unlock()
		if idle {
			d.windows.Delete(k)
			removed++
		}
		return true
	})
	return removed
}
