package journal

import (
	"context"
	"sync"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
)

// MemoryJournal keeps transcripts in process memory.
type MemoryJournal struct {
	mu       sync.RWMutex
	sessions map[string][]entities.Message
	seen     map[string]struct{} // message IDs
	order    []string            // session IDs, least recently written first
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		sessions: make(map[string][]entities.Message),
		seen:     make(map[string]struct{}),
	}
}

// Record appends msg to the session transcript.
func (j *MemoryJournal) Record(ctx context.Context, sessionID string, msg entities.Message) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, dup := j.seen[msg.ID]; dup && msg.ID != "" {
		return nil
	}
	j.seen[msg.ID] = struct{}{}
	j.sessions[sessionID] = append(j.sessions[sessionID], msg.Clone())
	j.touch(sessionID)
	return nil
}

func (j *MemoryJournal) touch(sessionID string) {
	for i, id := range j.order {
		if id == sessionID {
			j.order = append(j.order[:i], j.order[i+1:]...)
			break
		}
	}
	j.order = append(j.order, sessionID)
}

// Load returns a copy of the session transcript.
func (j *MemoryJournal) Load(ctx context.Context, sessionID string) ([]entities.Message, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stored := j.sessions[sessionID]
	if len(stored) == 0 {
		return nil, nil
	}
	out := make([]entities.Message, len(stored))
	for i, m := range stored {
		out[i] = m.Clone()
	}
	return out, nil
}

// Sessions lists session IDs, most recently written first.
func (j *MemoryJournal) Sessions(ctx context.Context) ([]string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	ids := make([]string, len(j.order))
	for i, id := range j.order {
		ids[len(j.order)-1-i] = id
	}
	return ids, nil
}

// Close is a no-op.
func (j *MemoryJournal) Close() error { return nil }
