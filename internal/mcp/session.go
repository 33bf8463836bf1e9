// CLAUDE:SUMMARY Session transport layer — session-id-keyed transport instances, insert-if-absent creation, explicit termination, idle sweep
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidSession is returned on any lookup miss for a non-establishing
// operation. The transport reports it with the fixed client-error body.
var ErrInvalidSession = errors.New("invalid or missing session ID")

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	requestIDKey
)

func withSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the session identifier of the transport
// handling the current request, or "" outside a session.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the raw JSON-RPC id of the envelope being
// handled, or "" for notifications and out-of-band calls.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Transport is the stateful per-session endpoint. It serializes envelope
// handling on its own mutex, so overlapping POSTs on one session id are
// queued rather than interleaved, and carries the push channel used by the
// long-lived GET stream.
type Transport struct {
	id        string
	createdAt time.Time

	dispatcher *Dispatcher

	mu sync.Mutex // serializes Handle per session

	// seenMu guards lastSeen and initialized. Kept separate from mu so the
	// sweep can read idleness without waiting on an in-flight handler.
	seenMu      sync.Mutex
	lastSeen    time.Time
	initialized bool

	notify    chan *Response
	done      chan struct{}
	closeOnce sync.Once
}

func newTransport(id string, d *Dispatcher) *Transport {
	now := time.Now()
	return &Transport{
		id:         id,
		createdAt:  now,
		lastSeen:   now,
		dispatcher: d,
		notify:     make(chan *Response, 16),
		done:       make(chan struct{}),
	}
}

// ID returns the session identifier this transport is keyed by.
func (t *Transport) ID() string { return t.id }

// Handle processes one envelope to completion. Requests on the same session
// are serialized here; requests on different sessions proceed independently.
func (t *Transport) Handle(ctx context.Context, req *Request) *Response {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seenMu.Lock()
	t.lastSeen = time.Now()
	if req.Method == "initialize" {
		t.initialized = true
	}
	t.seenMu.Unlock()
	return t.dispatcher.Dispatch(withSessionID(ctx, t.id), req)
}

// Initialized reports whether this transport has seen an initialize call.
func (t *Transport) Initialized() bool {
	t.seenMu.Lock()
	defer t.seenMu.Unlock()
	return t.initialized
}

// Notify queues a server-initiated message for delivery on the session's
// push stream. Returns false if the buffer is full or the session is closed;
// no delivery is guaranteed after streaming has been abandoned.
func (t *Transport) Notify(resp *Response) bool {
	select {
	case <-t.done:
		return false
	default:
	}
	select {
	case t.notify <- resp:
		return true
	default:
		return false
	}
}

// Close releases the transport, unblocking any open push stream. Idempotent.
func (t *Transport) Close() {
	t.closeOnce.Do(func() { close(t.done) })
}

// Done is closed when the transport has been terminated.
func (t *Transport) Done() <-chan struct{} { return t.done }

func (t *Transport) idleSince() time.Time {
	t.seenMu.Lock()
	defer t.seenMu.Unlock()
	return t.lastSeen
}

func (t *Transport) touch() {
	t.seenMu.Lock()
	t.lastSeen = time.Now()
	t.seenMu.Unlock()
}

// SessionStore maps session identifiers to live transport instances. It is
// the only owner of per-session state: no other component holds a transport
// reference across requests. Injectable so it can be unit-tested in
// isolation and swapped for a distributed store.
type SessionStore struct {
	mu         sync.Mutex
	sessions   map[string]*Transport
	dispatcher *Dispatcher
}

func NewSessionStore(d *Dispatcher) *SessionStore {
	return &SessionStore{
		sessions:   make(map[string]*Transport),
		dispatcher: d,
	}
}

// ResolveOrCreate returns the transport for id, creating one when permitted.
// An empty id with an establishing method gets a fresh generated identifier.
// An unmapped id with an establishing method is registered as-is, so
// duplicate creates are idempotent and never overwrite a live mapping.
// Everything else is a client error.
func (s *SessionStore) ResolveOrCreate(id string, establishing bool) (*Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		if !establishing {
			return nil, ErrInvalidSession
		}
		id = uuid.NewString()
		t := newTransport(id, s.dispatcher)
		s.sessions[id] = t
		slog.Debug("session created", "session_id", id)
		return t, nil
	}

	if t, ok := s.sessions[id]; ok {
		return t, nil
	}
	if !establishing {
		return nil, ErrInvalidSession
	}
	t := newTransport(id, s.dispatcher)
	s.sessions[id] = t
	slog.Debug("session created", "session_id", id)
	return t, nil
}

// Get looks up a live transport without creating one.
func (s *SessionStore) Get(id string) (*Transport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sessions[id]
	return t, ok
}

// Terminate closes the transport for id and removes the mapping.
// Terminating an unknown session is a client error, not a silent success.
func (s *SessionStore) Terminate(id string) error {
	s.mu.Lock()
	t, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrInvalidSession
	}
	t.Close()
	slog.Info("session terminated", "session_id", id)
	return nil
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle longer than maxIdle and returns the count.
func (s *SessionStore) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	var expired []*Transport
	for id, t := range s.sessions {
		if t.idleSince().Before(cutoff) {
			delete(s.sessions, id)
			expired = append(expired, t)
		}
	}
	s.mu.Unlock()

	for _, t := range expired {
		t.Close()
		slog.Info("session expired", "session_id", t.id, "age", time.Since(t.createdAt))
	}
	return len(expired)
}

// RunSweeper evicts idle sessions on a fixed interval until ctx is done.
// Bounds memory growth for clients that never send DELETE.
func (s *SessionStore) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("session sweeper started", "interval", interval, "max_idle", maxIdle)
	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if n := s.Sweep(maxIdle); n > 0 {
				slog.Info("idle sessions evicted", "count", n)
			}
		}
	}
}

// CloseAll terminates every live session. Used at shutdown.
func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	transports := make([]*Transport, 0, len(s.sessions))
	for id, t := range s.sessions {
		transports = append(transports, t)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, t := range transports {
		t.Close()
	}
}
