// Package sse streams admissions changes and dispatch progress to console clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ConsoleUpdated is the derived event telling consoles to refetch their view.
const ConsoleUpdated = "console.updated"

// reconnectDelay is the retry hint sent to every new stream, in milliseconds.
const reconnectDelay = 3000

type recordEvent struct {
	kind string
	data any
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithHeartbeat sets how often idle streams receive a comment line.
// Zero disables heartbeats.
func WithHeartbeat(d time.Duration) BrokerOption {
	return func(b *Broker) { b.heartbeat = d }
}

// Broker fans events out to console streams.
//
// A single loop goroutine owns the client set, the event id counter and the
// console throttle timestamp. Public methods talk to it over channels.
type Broker struct {
	consoleMin time.Duration
	heartbeat  time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	recordCh      chan recordEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits console.updated at most once per
// consoleThrottle.
func NewBroker(consoleThrottle time.Duration, opts ...BrokerOption) *Broker {
	if consoleThrottle <= 0 {
		consoleThrottle = time.Second
	}

	b := &Broker{
		consoleMin:    consoleThrottle,
		heartbeat:     15 * time.Second,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		recordCh:      make(chan recordEvent, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// encode renders one SSE frame. An id of zero is omitted.
func encode(id uint64, event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event.Type, payload), nil
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", id, event.Type, payload), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastConsole time.Time
		seq         uint64
	)

	broadcast := func(event Event) {
		raw, err := encode(seq+1, event)
		if err != nil {
			return
		}
		seq++
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow consoles lose frames; they resync on the next console.updated.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case rec := <-b.recordCh:
			broadcast(Event{Type: rec.kind, Data: rec.data})

			if now := time.Now(); now.Sub(lastConsole) >= b.consoleMin {
				lastConsole = now
				broadcast(Event{Type: ConsoleUpdated, Data: map[string]string{"cause": rec.kind}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and ends every open stream.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishRecordEvent publishes a committed record change followed by a
// throttled console.updated event.
func (b *Broker) PublishRecordEvent(kind string, data any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.recordCh <- recordEvent{kind: kind, data: data}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events without a greeting.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.Stream(nil).ServeHTTP(w, r)
}

// Stream returns the SSE endpoint handler (GET /api/admin/events). greeting,
// if non-nil, supplies events written to each new stream before any
// broadcast, so a console that connects mid-dispatch sees where it stands.
func (b *Broker) Stream(greeting func() []Event) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)

		ch := b.Subscribe()
		defer b.Unsubscribe(ch)

		_, _ = fmt.Fprintf(w, "retry: %d\n\n", reconnectDelay)
		if greeting != nil {
			for _, e := range greeting() {
				if raw, err := encode(0, e); err == nil {
					_, _ = w.Write(raw)
				}
			}
		}
		flusher.Flush()

		var beat <-chan time.Time
		if b.heartbeat > 0 {
			ticker := time.NewTicker(b.heartbeat)
			defer ticker.Stop()
			beat = ticker.C
		}

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-beat:
				_, _ = w.Write([]byte(": ping\n\n"))
				flusher.Flush()
			case msg, ok := <-ch:
				if !ok {
					return
				}
				_, _ = w.Write(msg)
				flusher.Flush()
			}
		}
	})
}
