// Package usecases contains the session orchestration rules: the conversation
// log, context windowing, the document inventory and the query lifecycle.
// They depend only on port interfaces; transports and storage live in adapters.
package usecases

import (
	"sync"
	"time"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"github.com/google/uuid"
)

// Log is the append-only conversation transcript.
// Append is the only mutator; readers always get copies.
type Log struct {
	mu       sync.RWMutex
	appendMu sync.Mutex // keeps notification order equal to append order
	messages []entities.Message
	now      func() time.Time
	notify   *notifier
}

// NewLog creates an empty, unobserved log.
func NewLog() *Log {
	return newLog(time.Now, nil)
}

func newLog(now func() time.Time, n *notifier) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now, notify: n}
}

// Append stores msg with a fresh ID and timestamp and returns the stored copy.
func (l *Log) Append(msg entities.Message) entities.Message {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	stored := msg.Clone()
	stored.ID = uuid.NewString()
	stored.Timestamp = l.now()

	l.mu.Lock()
	l.messages = append(l.messages, stored)
	l.mu.Unlock()

	out := stored.Clone()
	l.notify.publish(Event{Kind: EventMessageAppended, Message: &out})
	return stored.Clone()
}

// restore seeds the log with a previously recorded transcript, keeping the
// recorded IDs and timestamps. It does not notify.
func (l *Log) restore(msgs []entities.Message) {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, m := range msgs {
		if !m.Type.Valid() {
			continue
		}
		l.messages = append(l.messages, m.Clone())
	}
}

// Messages returns the transcript in append order.
func (l *Log) Messages() []entities.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]entities.Message, len(l.messages))
	for i, m := range l.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of appended messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

func systemMessage(content string) entities.Message {
	return entities.Message{Type: entities.MessageSystem, Content: content}
}

func errorMessage(content string) entities.Message {
	return entities.Message{Type: entities.MessageError, Content: content}
}
