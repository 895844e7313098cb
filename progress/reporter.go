package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/logger"
)

const minUpdateInterval = time.Second

// Reporter publishes transfer progress to a Store from its own goroutine.
//
// Posting never blocks the transfer: each Post overwrites a single pending
// slot, so a slow database only means intermediate values are skipped, never
// that the sender stalls. Database writes and rate logging are throttled to
// one per second; the final value always goes out.
type Reporter struct {
	store *Store
	id    uuid.UUID
	total int64
	tag   string

	mu      sync.Mutex
	cond    *sync.Cond
	pending int64
	dirty   bool
	done    bool
	stopped chan struct{}
}

// NewReporter starts the reporting loop for one transfer.
func NewReporter(store *Store, id uuid.UUID, total int64) *Reporter {
	r := &Reporter{
		store:   store,
		id:      id,
		total:   total,
		tag:     "Progress",
		stopped: make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	go r.run()
	return r
}

// Post records the latest byte count. Only the most recent value posted
// between flushes is kept.
func (r *Reporter) Post(current int64) {
	r.mu.Lock()
	r.pending = current
	r.dirty = true
	r.mu.Unlock()
	r.cond.Signal()
}

// Exit flushes the final value and stops the loop. It blocks until the loop
// has drained.
func (r *Reporter) Exit() {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
	r.cond.Signal()
	<-r.stopped
}

func (r *Reporter) run() {
	defer close(r.stopped)

	var lastFlush time.Time
	var lastBytes int64
	for {
		r.mu.Lock()
		for !r.dirty && !r.done {
			r.cond.Wait()
		}
		current, dirty, done := r.pending, r.dirty, r.done
		r.dirty = false
		r.mu.Unlock()

		if dirty {
			now := time.Now()
			if done || now.Sub(lastFlush) >= minUpdateInterval {
				rec := Record{CurrentBytes: current, TotalBytes: r.total, UpdatedAt: now.UnixMilli()}
				if err := r.store.Put(r.id, rec); err != nil {
					logger.Warn(r.tag, "store %s: %v", r.id, err)
				}
				if elapsed := now.Sub(lastFlush); !lastFlush.IsZero() && elapsed > 0 {
					rate := float64(current-lastBytes) / elapsed.Seconds()
					logger.Debug(r.tag, "%s: %d/%d bytes (%.0f B/s)", r.id, current, r.total, rate)
				}
				lastFlush = now
				lastBytes = current
			} else {
				// Too soon; leave the value pending for the next pass.
				r.mu.Lock()
				if !r.dirty {
					r.pending = current
					r.dirty = true
				}
				r.mu.Unlock()
				time.Sleep(minUpdateInterval - now.Sub(lastFlush))
				continue
			}
		}
		if done {
			return
		}
	}
}
