package storage

import (
	"context"
	"sync"
	"time"

	"github.com/agencyrun/agency/internal/kernel"
)

// Autosaver debounces session snapshots so a burst of kernel steps in quick
// succession costs one disk write, not one per step (spec §4.4 Persistence:
// "debounced, at most every ~500ms").
type Autosaver struct {
	store     *Storage
	debounce  time.Duration
	incognito bool

	trigger  chan Snapshot
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewAutosaver starts the debounced writer goroutine. Call Stop to flush
// and shut it down. If incognito is true, every Save call is a no-op:
// nothing ever touches disk.
func NewAutosaver(store *Storage, debounce time.Duration, incognito bool) *Autosaver {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	a := &Autosaver{
		store:     store,
		debounce:  debounce,
		incognito: incognito,
		trigger:   make(chan Snapshot, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	if !incognito {
		go a.run()
	}
	return a
}

// Save schedules snap to be written within one debounce window. A pending
// snapshot is replaced by a newer one rather than queued, since only the
// latest state matters.
func (a *Autosaver) Save(snap Snapshot) {
	if a.incognito {
		return
	}
	select {
	case a.trigger <- snap:
	default:
		// drain the stale pending snapshot and replace it; if another
		// producer won the race, theirs is newer anyway
		select {
		case <-a.trigger:
		default:
		}
		select {
		case a.trigger <- snap:
		default:
		}
	}
}

// retryDelay is how soon the writer tries again after finding the
// session's lock held by another writer (e.g. a concurrent Delete).
const retryDelay = 20 * time.Millisecond

func (a *Autosaver) run() {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	var pending *Snapshot

	for {
		select {
		case snap := <-a.trigger:
			s := snap
			pending = &s
			timer.Reset(a.debounce)
		case <-timer.C:
			if pending != nil {
				if ok, _ := a.store.TryPut(context.Background(), *pending); ok {
					pending = nil
				} else {
					// Lock contended: newer writes still coalesce onto
					// pending via Save, so a short retry costs nothing.
					timer.Reset(retryDelay)
				}
			}
		case <-a.done:
			// Drain anything Saved after the last timer fire, then flush.
			select {
			case snap := <-a.trigger:
				s := snap
				pending = &s
			default:
			}
			if pending != nil {
				a.store.Put(context.Background(), *pending)
			}
			close(a.stopped)
			return
		}
	}
}

// Stop flushes any pending snapshot and halts the writer, returning once
// the final write has completed. Safe to call more than once.
func (a *Autosaver) Stop() {
	if a.incognito {
		return
	}
	a.stopOnce.Do(func() { close(a.done) })
	<-a.stopped
}

// SnapshotFrom builds a Snapshot from a live kernel for the autosave path.
func SnapshotFrom(sessionID string, step uint64, state *kernel.State, now time.Time) Snapshot {
	return Snapshot{SessionID: sessionID, Step: step, State: *state, SavedAt: now}
}
