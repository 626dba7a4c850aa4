package database

import (
	"context"
	"sync"
	"time"

	"campus-chat/internal/models"
	"campus-chat/pkg/logger"
)

type journalEntry struct {
	identity string
	kind     models.EventType
	online   int
	at       time.Time
}

// Journal records presence announcements through a repository on a
// background worker, so the coordinator never waits on the database.
type Journal struct {
	repo    PresenceRepository
	entries chan journalEntry
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewJournal(repo PresenceRepository, buffer int) *Journal {
	if buffer <= 0 {
		buffer = 1024
	}
	j := &Journal{
		repo:    repo,
		entries: make(chan journalEntry, buffer),
		timeout: 5 * time.Second,
	}
	j.wg.Add(1)
	go j.run()
	return j
}

// ObservePresence queues the announcement; it is dropped when the queue is
// full or the journal is closed.
func (j *Journal) ObservePresence(_ context.Context, kind models.EventType, identity string, online int) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.entries <- journalEntry{identity: identity, kind: kind, online: online, at: time.Now().UTC()}:
	default:
		logger.Warn("Presence journal queue full, dropping %s for %s", kind, identity)
	}
}

func (j *Journal) run() {
	defer j.wg.Done()
	for e := range j.entries {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		if err := j.repo.RecordPresence(ctx, e.identity, e.kind, e.online, e.at); err != nil {
			logger.Error("Error recording presence of %s: %v", e.identity, err)
		}
		cancel()
	}
}

// Close stops accepting entries and waits for the queued ones to be written.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.entries)
	j.mu.Unlock()
	j.wg.Wait()
}
