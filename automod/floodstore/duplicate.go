package floodstore

import (
	"sync"
	"time"

	"github.com/iris-chat/warden/automod/helpers"

	"github.com/puzpuzpuz/xsync/v4"
)

var (
	// a repeat must arrive within this long of the sender's previous message
	DuplicateWindow = 5 * time.Second
	// repeat count above which messages are treated as flood
	DuplicateLimit = 3
)

type dupState struct {
	lk       sync.Mutex
	lastHash string
	repeats  int
	lastAt   time.Time
}

type DuplicateResult struct {
	// consecutive identical messages, including this one
	Repeats int
	// the message is part of a duplicate flood and should be removed
	Triggered bool
	// first message of the current spree to trigger; the strike is only recorded once per spree
	FirstInSpree bool
}

type DuplicateDetector struct {
	states *xsync.Map[key, *dupState]
}

func NewDuplicateDetector() *DuplicateDetector {
	return &DuplicateDetector{
		states: xsync.NewMap[key, *dupState](),
	}
}

// Records a message and reports whether it is a repeated-message flood.
//
// A message counts as a repeat when its text equals the previous message and it arrives within DuplicateWindow of the previous message (of any text). Different text restarts the count at one.
func (d *DuplicateDetector) Observe(chatID, userID int64, rawText string, at time.Time) DuplicateResult {
	st, _ := d.states.LoadOrCompute(key{chatID, userID}, func() (*dupState, bool) {
		return &dupState{}, false
	})
	h := helpers.HashOfString(rawText)

	st.lk.Lock()
	defer st.lk.Unlock()
	if st.repeats > 0 && h == st.lastHash && at.Sub(st.lastAt) < DuplicateWindow {
		st.repeats++
	} else {
		st.repeats = 1
		st.lastHash = h
	}
	st.lastAt = at

	return DuplicateResult{
		Repeats:      st.repeats,
		Triggered:    st.repeats > DuplicateLimit,
		FirstInSpree: st.repeats == DuplicateLimit+1,
	}
}

// Drops state for senders idle since "idleBefore". Returns the number removed.
func (d *DuplicateDetector) Sweep(idleBefore time.Time) int {
	removed := 0
	d.states.Range(func(k key, st *dupState) bool {
		st.lk.Lock()
		idle := st.lastAt.Before(idleBefore)
		st.lk.Unlock()
		if idle {
			d.states.Delete(k)
			removed++
		}
		return true
	})
	return removed
}
