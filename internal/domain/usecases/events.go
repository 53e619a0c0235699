package usecases

import (
	"sync"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
	"go.uber.org/zap"
)

// EventKind identifies what part of the session changed.
type EventKind string

const (
	EventMessageAppended  EventKind = "message_appended"
	EventDocumentsChanged EventKind = "documents_changed"
	EventSelectionChanged EventKind = "selection_changed"
	EventStateChanged     EventKind = "state_changed"
)

// Event is delivered to subscribers after a state change.
// Message is set only for EventMessageAppended.
type Event struct {
	Kind    EventKind         `json:"kind"`
	Message *entities.Message `json:"message,omitempty"`
}

// Handler observes session events. Handlers run synchronously in publish
// order and must not issue session commands from the calling goroutine.
type Handler func(Event)

type subscription struct {
	id      int
	handler Handler
}

// notifier fans events out to subscribers, one event at a time.
type notifier struct {
	mu       sync.RWMutex
	subs     []subscription
	nextID   int
	dispatch sync.Mutex
	logger   *zap.Logger
}

func newNotifier(logger *zap.Logger) *notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &notifier{logger: logger}
}

// subscribe registers h and returns its cancel func.
func (n *notifier) subscribe(h Handler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { n.unsubscribe(id) })
	}
}

func (n *notifier) unsubscribe(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

// reset drops every subscriber.
func (n *notifier) reset() {
	n.mu.Lock()
	n.subs = nil
	n.mu.Unlock()
}

func (n *notifier) publish(ev Event) {
	if n == nil {
		return
	}
	n.dispatch.Lock()
	defer n.dispatch.Unlock()

	n.mu.RLock()
	subs := make([]subscription, len(n.subs))
	copy(subs, n.subs)
	n.mu.RUnlock()

	for _, s := range subs {
		n.deliver(ev, s.handler)
	}
}

func (n *notifier) deliver(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("event handler panicked",
				zap.String("kind", string(ev.Kind)),
				zap.Any("panic", r),
			)
		}
	}()
	h(ev)
}
