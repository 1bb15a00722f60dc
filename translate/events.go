package translate

import "sync"

// EventKind identifies an Event.
type EventKind int

const (
	// EventTranslated carries one completed translation (Original, Translated).
	EventTranslated EventKind = iota
	// EventError carries a failed translation (Message, Original, Err).
	EventError
	// EventProgress carries batch progress (Current, Total).
	EventProgress
	// EventCompleted ends a batch and carries its Results.
	EventCompleted
	// EventCanceled ends a canceled batch.
	EventCanceled
)

func (k EventKind) String() string {
	switch k {
	case EventTranslated:
		return "translated"
	case EventError:
		return "error"
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventCanceled:
		return "canceled"
	}
	return "unknown"
}

// Event is a notification from the client or its batch orchestrator.
type Event struct {
	Kind       EventKind
	Original   string
	Translated string
	Message    string
	Current    int
	Total      int
	// Results maps source text to translation (EventCompleted only).
	Results map[string]string
	Err     error
	// Batch is set on events that belong to a batch job.
	Batch bool
}

// eventQueue is an unbounded FIFO feeding a channel, so that push never
// blocks and may be called while holding locks.
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	closed bool

	wake chan struct{}
	done chan struct{}
	out  chan Event
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan Event),
	}
	go q.run()
	return q
}

func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, e)
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) run() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-q.wake:
				continue
			case <-q.done:
				return
			}
		}
		e := q.items[0]
		q.items[0] = Event{}
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- e:
		case <-q.done:
			return
		}
	}
}

// close stops delivery. Undelivered events are dropped and the output
// channel is closed.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
}
