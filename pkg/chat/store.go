package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"chatledger/pkg/bus"
	"chatledger/pkg/logger"
	"chatledger/pkg/models"
	"chatledger/pkg/store"
	"chatledger/pkg/utils"
)

// Options configures a chat store.
type Options struct {
	// WelcomeTitle/WelcomeText seed the bootstrap thread created when an
	// owner has no persisted chats.
	WelcomeTitle string
	WelcomeText  string
}

// Store owns the full set of chat threads for one owner and is the sole
// writer of chat persistence. Threads live under per-owner keys
// (chats:<owner>:<threadID>) so switching owners never mixes data.
type Store struct {
	mu      sync.Mutex
	kv      *store.KV
	hub     *bus.Bus
	owner   string
	opts    Options
	threads map[string]*models.Thread
	// dirty tracks threads whose last persist attempt failed; the
	// autosave timer retries them.
	dirty map[string]bool
}

// SearchResult pairs a thread with the messages matching a query.
type SearchResult struct {
	Thread   models.Thread    `json:"thread"`
	Messages []models.Message `json:"messages"`
}

// New loads the owner's threads from storage. If none exist a single
// default thread with one welcome bot message is created.
func New(kv *store.KV, hub *bus.Bus, owner string, opts Options) *Store {
	s := &Store{
		kv:    kv,
		hub:   hub,
		owner: owner,
		opts:  opts,
		dirty: map[string]bool{},
	}
	s.mu.Lock()
	s.loadLocked()
	s.mu.Unlock()
	return s
}

func chatKey(owner, threadID string) string {
	return fmt.Sprintf("chats:%s:%s", owner, threadID)
}

func chatPrefix(owner string) string {
	return fmt.Sprintf("chats:%s:", owner)
}

// loadLocked reads all threads for the current owner and bootstraps the
// welcome thread when the namespace is empty. Caller holds s.mu.
func (s *Store) loadLocked() {
	s.threads = map[string]*models.Thread{}
	for _, key := range s.kv.Keys(chatPrefix(s.owner)) {
		var th models.Thread
		if !s.kv.Get(key, &th) {
			continue
		}
		s.threads[th.ID] = &th
	}
	logger.Info("chat_store_loaded", "owner", s.owner, "threads", len(s.threads))
	if len(s.threads) == 0 {
		s.bootstrapLocked()
	}
}

func (s *Store) bootstrapLocked() {
	now := time.Now().UTC().UnixNano()
	th := &models.Thread{
		ID:        utils.GenThreadID(),
		Title:     s.opts.WelcomeTitle,
		Owner:     s.owner,
		CreatedTS: now,
		UpdatedTS: now,
	}
	th.Messages = append(th.Messages, models.Message{
		ID:     utils.GenID(),
		Thread: th.ID,
		Author: models.AuthorBot,
		TS:     now,
		Text:   s.opts.WelcomeText,
	})
	s.threads[th.ID] = th
	s.persistLocked(th)
	logger.Info("chat_store_bootstrapped", "owner", s.owner, "thread", th.ID)
}

// Owner returns the identity the store is currently scoped to.
func (s *Store) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// SetOwner rescopes the store to a new owner, flushing pending writes
// and reloading threads from the new owner's namespace. The previous
// owner's persisted threads are left untouched.
func (s *Store) SetOwner(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner == s.owner {
		return
	}
	s.flushLocked()
	logger.Info("chat_store_owner_changed", "prev", s.owner, "owner", owner)
	s.owner = owner
	s.dirty = map[string]bool{}
	s.loadLocked()
}

// CreateThread makes a new empty thread and publishes thread-created.
func (s *Store) CreateThread(title string) models.Thread {
	now := time.Now().UTC().UnixNano()
	s.mu.Lock()
	th := &models.Thread{
		ID:        utils.GenThreadID(),
		Title:     title,
		Owner:     s.owner,
		CreatedTS: now,
		UpdatedTS: now,
	}
	s.threads[th.ID] = th
	s.persistLocked(th)
	out := snapshot(th)
	s.mu.Unlock()

	logger.Info("thread_created", "thread", out.ID, "owner", out.Owner)
	bus.Publish(s.hub, bus.ThreadCreated, models.ThreadCreated{Thread: out})
	return out
}

// RenameThread updates a thread's title.
func (s *Store) RenameThread(threadID, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.liveLocked(threadID)
	if !ok {
		return false
	}
	th.Title = title
	th.UpdatedTS = time.Now().UTC().UnixNano()
	s.persistLocked(th)
	return true
}

// AppendMessage appends m to the thread. Returns false for unknown or
// deleted threads. The message id and timestamp are filled when absent.
func (s *Store) AppendMessage(threadID string, m models.Message) bool {
	s.mu.Lock()
	th, ok := s.liveLocked(threadID)
	if !ok {
		s.mu.Unlock()
		return false
	}
	if m.ID == "" {
		m.ID = utils.GenID()
	}
	if m.TS == 0 {
		m.TS = time.Now().UTC().UnixNano()
	}
	m.Thread = threadID
	th.Messages = append(th.Messages, m)
	th.UpdatedTS = time.Now().UTC().UnixNano()
	s.persistLocked(th)
	s.mu.Unlock()

	logger.Debug("message_appended", "thread", threadID, "id", m.ID, "author", m.Author)
	bus.Publish(s.hub, bus.MessageAppended, models.MessageAppended{ThreadID: threadID, Message: m})
	return true
}

// UpdateMessage replaces a message's text and clears its processing
// flag, finalizing placeholders in place. False if either id is unknown.
func (s *Store) UpdateMessage(threadID, messageID, newText string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.liveLocked(threadID)
	if !ok {
		return false
	}
	for i := range th.Messages {
		if th.Messages[i].ID != messageID {
			continue
		}
		th.Messages[i].Text = newText
		th.Messages[i].Processing = false
		th.UpdatedTS = time.Now().UTC().UnixNano()
		s.persistLocked(th)
		return true
	}
	return false
}

// RemoveMessage deletes a message from the thread.
func (s *Store) RemoveMessage(threadID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.liveLocked(threadID)
	if !ok {
		return false
	}
	for i := range th.Messages {
		if th.Messages[i].ID != messageID {
			continue
		}
		th.Messages = append(th.Messages[:i], th.Messages[i+1:]...)
		th.UpdatedTS = time.Now().UTC().UnixNano()
		s.persistLocked(th)
		return true
	}
	return false
}

// ClearMessages empties a thread's message list.
func (s *Store) ClearMessages(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.liveLocked(threadID)
	if !ok {
		return false
	}
	th.Messages = nil
	th.UpdatedTS = time.Now().UTC().UnixNano()
	s.persistLocked(th)
	return true
}

// DeleteThread soft-deletes a thread. The tombstone stays in storage
// until the retention runner purges it.
func (s *Store) DeleteThread(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.liveLocked(threadID)
	if !ok {
		return false
	}
	now := time.Now().UTC().UnixNano()
	th.Deleted = true
	th.DeletedTS = now
	th.UpdatedTS = now
	s.persistLocked(th)
	logger.Info("thread_soft_deleted", "thread", threadID, "owner", s.owner)
	return true
}

// GetThread returns a snapshot of the thread.
func (s *Store) GetThread(threadID string) (models.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.liveLocked(threadID)
	if !ok {
		return models.Thread{}, false
	}
	return snapshot(th), true
}

// ListThreads returns snapshots of all live threads, most recently
// updated first.
func (s *Store) ListThreads() []models.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Thread, 0, len(s.threads))
	for _, th := range s.threads {
		if th.Deleted {
			continue
		}
		out = append(out, snapshot(th))
	}
	sortThreads(out)
	return out
}

// Search does a case-insensitive substring match over message text and
// returns each matching thread with its matching messages.
func (s *Store) Search(query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SearchResult
	for _, th := range s.threads {
		if th.Deleted {
			continue
		}
		var hits []models.Message
		for _, m := range th.Messages {
			if strings.Contains(strings.ToLower(m.Text), q) {
				hits = append(hits, m)
			}
		}
		if len(hits) > 0 {
			out = append(out, SearchResult{Thread: snapshot(th), Messages: hits})
		}
	}
	return out
}

// PurgeTombstones hard-deletes soft-deleted threads whose deletion time
// is older than minAge. Returns the ids purged; with dryRun the ids are
// reported but nothing is removed.
func (s *Store) PurgeTombstones(minAge time.Duration, dryRun bool) []string {
	cutoff := time.Now().UTC().Add(-minAge).UnixNano()
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged []string
	for id, th := range s.threads {
		if !th.Deleted || th.DeletedTS > cutoff {
			continue
		}
		purged = append(purged, id)
		if dryRun {
			continue
		}
		s.kv.Delete(chatKey(s.owner, id))
		delete(s.threads, id)
		delete(s.dirty, id)
	}
	return purged
}

// StartAutosave runs the periodic persistence safety net until ctx is
// canceled. Mutations persist immediately; the timer retries threads
// whose last write failed.
func (s *Store) StartAutosave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.Flush()
				return
			case <-t.C:
				s.Flush()
			}
		}
	}()
}

// Flush retries persistence for any thread with a failed write.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Store) flushLocked() {
	for id := range s.dirty {
		if th, ok := s.threads[id]; ok {
			s.persistLocked(th)
		} else {
			delete(s.dirty, id)
		}
	}
}

// persistLocked writes the thread snapshot; on failure the thread is
// marked dirty for the autosave retry. Caller holds s.mu.
func (s *Store) persistLocked(th *models.Thread) {
	if s.kv.Put(chatKey(s.owner, th.ID), th) {
		delete(s.dirty, th.ID)
		return
	}
	s.dirty[th.ID] = true
}

// liveLocked resolves a non-deleted thread. Caller holds s.mu.
func (s *Store) liveLocked(threadID string) (*models.Thread, bool) {
	th, ok := s.threads[threadID]
	if !ok || th.Deleted {
		return nil, false
	}
	return th, true
}

// snapshot copies a thread so callers cannot mutate store-owned state.
func snapshot(th *models.Thread) models.Thread {
	out := *th
	out.Messages = append([]models.Message(nil), th.Messages...)
	return out
}

func sortThreads(ts []models.Thread) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].UpdatedTS > ts[j].UpdatedTS })
}
