package persistence

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/talgya/mini-garden/internal/engine"
)

// Store is what a Journal writes to. *DB implements it.
type Store interface {
	SaveEvents(events []engine.Event) error
	SaveStats(sample engine.StatsSample) error
}

type record struct {
	events []engine.Event
	stats  *engine.StatsSample
}

// Journal is an engine.Sink that writes to a Store from its own
// goroutine. The simulation never waits on disk: when the buffer is full
// records are dropped and counted.
type Journal struct {
	store Store
	log   *slog.Logger
	ch    chan record

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Uint64
	written atomic.Uint64
}

// NewJournal starts a journal holding up to buffer pending records.
func NewJournal(store Store, buffer int, log *slog.Logger) *Journal {
	if buffer <= 0 {
		buffer = 1
	}
	if log == nil {
		log = slog.Default()
	}
	j := &Journal{
		store: store,
		log:   log,
		ch:    make(chan record, buffer),
		done:  make(chan struct{}),
	}
	go j.run()
	return j
}

// SaveEvents queues a batch of journal entries.
func (j *Journal) SaveEvents(events []engine.Event) {
	if len(events) == 0 {
		return
	}
	j.send(record{events: append([]engine.Event(nil), events...)}, uint64(len(events)))
}

// SaveStats queues one stats sample.
func (j *Journal) SaveStats(sample engine.StatsSample) {
	j.send(record{stats: &sample}, 1)
}

func (j *Journal) send(r record, n uint64) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(n)
		return
	}
	select {
	case j.ch <- r:
	default:
		if j.dropped.Add(n) == n {
			j.log.Warn("journal buffer full, dropping records")
		}
	}
}

// Dropped returns how many records were discarded.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Written returns how many records reached the store.
func (j *Journal) Written() uint64 {
	return j.written.Load()
}

// Close flushes queued records and stops the writer. Later saves are
// dropped. Safe to call more than once.
func (j *Journal) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.ch)
	}
	j.mu.Unlock()
	<-j.done
}

func (j *Journal) run() {
	defer close(j.done)
	for r := range j.ch {
		if r.stats != nil {
			if err := j.store.SaveStats(*r.stats); err != nil {
				j.log.Error("failed to save stats", "cycle", r.stats.Cycle, "error", err)
				continue
			}
			j.written.Add(1)
			continue
		}
		if err := j.store.SaveEvents(r.events); err != nil {
			j.log.Error("failed to save events", "count", len(r.events), "error", err)
			continue
		}
		j.written.Add(uint64(len(r.events)))
	}
	if n := j.dropped.Load(); n > 0 {
		j.log.Warn("journal closed with dropped records", "dropped", n)
	}
}
