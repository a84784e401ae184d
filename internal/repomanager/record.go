package repomanager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/reposync/internal/core"
)

// subscriberBuffer is the per-subscriber broadcast channel depth. A full
// channel drops the update rather than blocking the publisher.
const subscriberBuffer = 16

// recordEntry wraps one RepositoryRecord with the per-record lock and
// subscriber set the registry's two-tier locking model calls for: the
// registry map itself is read-mostly (sync.Map), while the fields a running
// job mutates (status, progress, last error) are guarded here instead.
type recordEntry struct {
	mu     sync.Mutex
	record core.RepositoryRecord

	subs    map[int]chan core.IndexingUpdate
	nextSub int

	cancel context.CancelFunc
}

func newRecordEntry(rec core.RepositoryRecord) *recordEntry {
	return &recordEntry{
		record: rec,
		subs:   make(map[int]chan core.IndexingUpdate),
	}
}

func (e *recordEntry) snapshot() core.RepositoryRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record
}

func (e *recordEntry) setStatus(status core.Status, progress float64, lastError string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if progress > e.record.Progress || status != core.StatusIndexing {
		e.record.Progress = progress
	}
	e.record.Status = status
	e.record.LastError = lastError
	e.record.UpdatedAt = now()
	if status == core.StatusCompleted {
		t := now()
		e.record.IndexedAt = &t
	}
}

// beginRun resets the record for a fresh indexing run. Progress is
// monotonically non-decreasing only within a run; the reset here is what
// lets a reindex of a Completed record (progress 1.0) report its own
// progress from zero again.
func (e *recordEntry) beginRun() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record.Status = core.StatusIndexing
	e.record.Progress = 0
	e.record.LastError = ""
	e.record.UpdatedAt = now()
}

func (e *recordEntry) setSkipped(skipped []core.SkippedFile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record.SkippedFiles = skipped
}

func (e *recordEntry) setCancel(cancel context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancel = cancel
}

func (e *recordEntry) cancelRun() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// subscribe registers a new broadcast channel and returns it plus an unsub
// func. The channel is closed by unsub, never by the publisher, so a
// publish after unsubscribe never panics on a closed channel.
func (e *recordEntry) subscribe() (<-chan core.IndexingUpdate, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan core.IndexingUpdate, subscriberBuffer)
	e.subs[id] = ch
	unsub := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
	return ch, unsub
}

// publish fans an update out to every current subscriber without blocking.
// A subscriber whose channel is full misses an in-progress (Indexing)
// update; a terminal update instead displaces the oldest queued update, so
// every subscriber still receives the final state.
func (e *recordEntry) publish(update core.IndexingUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- update:
		default:
			if update.Status == core.StatusIndexing {
				continue
			}
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- update:
			default:
			}
		}
	}
}

func (e *recordEntry) closeSubs() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}

func now() time.Time { return time.Now().UTC() }

var newUUID = uuid.New
