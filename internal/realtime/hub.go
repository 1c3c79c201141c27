package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/domain"
	"github.com/spec-kit/helpdesk-chat/internal/observability"
)

// ErrUnknownSession is returned when an operation names a session that is not registered.
var ErrUnknownSession = errors.New("realtime: unknown session")

const (
	defaultSendBuffer       = 64
	defaultResubscribeDelay = time.Second
	maxResubscribeDelay     = 30 * time.Second
)

// Envelope is one event addressed to a room, or to every session when Room is
// empty. A non-empty Role narrows a room-less envelope to sessions of that role.
type Envelope struct {
	Room    string      `json:"room,omitempty"`
	Role    domain.Role `json:"role,omitempty"`
	Event   string      `json:"event"`
	Payload any         `json:"payload"`
}

// Session is a connected client. Events are queued on a bounded FIFO outbox.
type Session struct {
	ID       string
	Identity domain.Sender

	send      chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

// Outbox yields queued events in broadcast order.
func (s *Session) Outbox() <-chan Envelope {
	return s.send
}

// Done is closed when the session is unregistered or evicted.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Options configures a Hub.
type Options struct {
	SendBuffer       int
	Broker           Broker
	// ResubscribeDelay is the first wait before retrying a failed broker subscription.
	ResubscribeDelay time.Duration
	Logger           *zap.Logger
	Metrics          *observability.Metrics
}

// Hub tracks sessions and ticket rooms and fans events out to them.
type Hub struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	rooms      map[string]map[string]*Session
	membership map[string]map[string]struct{}
	closing    map[string]struct{}

	sendBuffer       int
	broker           Broker
	subscribed       atomic.Bool
	resubscribeDelay time.Duration
	logger           *zap.Logger
	metrics          *observability.Metrics
}

// NewHub builds an empty hub. Without a broker, broadcasts are delivered in-process.
func NewHub(opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.ResubscribeDelay <= 0 {
		opts.ResubscribeDelay = defaultResubscribeDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Hub{
		sessions:   make(map[string]*Session),
		rooms:      make(map[string]map[string]*Session),
		membership: make(map[string]map[string]struct{}),
		closing:    make(map[string]struct{}),
		sendBuffer:       opts.SendBuffer,
		broker:           opts.Broker,
		resubscribeDelay: opts.ResubscribeDelay,
		logger:           opts.Logger,
		metrics:          opts.Metrics,
	}
}

// Run consumes the broker feed until ctx is cancelled, resubscribing with
// backoff whenever the subscription fails. While no subscription is live,
// broadcasts are also delivered to local sessions. It returns immediately
// without a broker.
func (h *Hub) Run(ctx context.Context) error {
	if h.broker == nil {
		return nil
	}
	delay := h.resubscribeDelay
	ready := func() {
		h.subscribed.Store(true)
		delay = h.resubscribeDelay
	}
	for {
		err := h.broker.Subscribe(ctx, ready, h.deliver)
		h.subscribed.Store(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.logger.Warn("broker subscription lost; delivering locally",
			zap.Duration("retry_in", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxResubscribeDelay)
	}
}

// Subscribed reports whether broadcasts currently round-trip through the broker.
func (h *Hub) Subscribed() bool {
	return h.subscribed.Load()
}

// Register adds a connected session for identity.
func (h *Hub) Register(identity domain.Sender) *Session {
	session := &Session{
		ID:       uuid.NewString(),
		Identity: identity,
		send:     make(chan Envelope, h.sendBuffer),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.sessions[session.ID] = session
	h.reportLocked()
	h.mu.Unlock()

	h.logger.Debug("session registered",
		zap.String("session_id", session.ID),
		zap.String("role", string(identity.Role)),
		zap.String("name", identity.Name))
	return session
}

// Unregister drops the session from every room and closes it.
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	session, ok := h.sessions[sessionID]
	if ok {
		h.removeLocked(session)
	}
	h.mu.Unlock()
}

// Join adds the session to the ticket room. Joining again has no effect.
func (h *Hub) Join(sessionID, ticketID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	room, ok := h.rooms[ticketID]
	if !ok {
		room = make(map[string]*Session)
		h.rooms[ticketID] = room
	}
	room[sessionID] = session

	joined, ok := h.membership[sessionID]
	if !ok {
		joined = make(map[string]struct{})
		h.membership[sessionID] = joined
	}
	joined[ticketID] = struct{}{}
	h.reportLocked()
	return nil
}

// Leave removes the session from every room it joined. Emptied rooms are pruned at once.
func (h *Hub) Leave(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sessionID)
	h.reportLocked()
}

// LeaveRoom removes the session from a single room.
func (h *Hub) LeaveRoom(sessionID, ticketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if joined, ok := h.membership[sessionID]; ok {
		delete(joined, ticketID)
		if len(joined) == 0 {
			delete(h.membership, sessionID)
		}
	}
	h.dropFromRoomLocked(sessionID, ticketID)
	h.reportLocked()
}

// Broadcast sends an event to every member of the ticket room. An empty room is a no-op.
func (h *Hub) Broadcast(ctx context.Context, ticketID, event string, payload any) {
	h.publish(ctx, Envelope{Room: ticketID, Event: event, Payload: payload})
}

// BroadcastGlobal sends an event to every connected session.
func (h *Hub) BroadcastGlobal(ctx context.Context, event string, payload any) {
	h.publish(ctx, Envelope{Event: event, Payload: payload})
}

// BroadcastToRole sends an event to every connected session of role.
func (h *Hub) BroadcastToRole(ctx context.Context, role domain.Role, event string, payload any) {
	h.publish(ctx, Envelope{Role: role, Event: event, Payload: payload})
}

// Send queues an event for a single session, typically an error reply.
func (h *Hub) Send(sessionID, event string, payload any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	h.enqueueLocked(session, Envelope{Event: event, Payload: payload})
	return nil
}

// BeginClose marks a close request as pending. It reports false when one is already pending.
func (h *Hub) BeginClose(ticketID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, pending := h.closing[ticketID]; pending {
		return false
	}
	h.closing[ticketID] = struct{}{}
	return true
}

// EndClose clears a pending close request.
func (h *Hub) EndClose(ticketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.closing, ticketID)
}

// ClosePending reports whether a close request awaits the customer's answer.
func (h *Hub) ClosePending(ticketID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, pending := h.closing[ticketID]
	return pending
}

// Members lists the session ids in a room, sorted.
func (h *Hub) Members(ticketID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[ticketID]
	ids := make([]string, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomCount returns the number of non-empty rooms.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) publish(ctx context.Context, env Envelope) {
	h.metrics.RecordBroadcast(env.Event)
	if h.broker == nil {
		h.deliver(env)
		return
	}
	if err := h.broker.Publish(ctx, env); err != nil {
		h.logger.Warn("broker publish failed; delivering locally",
			zap.String("event", env.Event),
			zap.String("room", env.Room),
			zap.Error(err))
		h.deliver(env)
		return
	}
	if !h.subscribed.Load() {
		h.deliver(env)
	}
}

// deliver enqueues env for its targets while holding the lock, so every member
// observes events in the same order they were delivered.
func (h *Hub) deliver(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if env.Room == "" {
		for _, session := range h.sessions {
			if env.Role != "" && session.Identity.Role != env.Role {
				continue
			}
			h.enqueueLocked(session, env)
		}
		return
	}
	for _, session := range h.rooms[env.Room] {
		h.enqueueLocked(session, env)
	}
}

func (h *Hub) enqueueLocked(session *Session, env Envelope) {
	select {
	case session.send <- env:
	default:
		h.logger.Warn("session outbox full; evicting",
			zap.String("session_id", session.ID),
			zap.String("event", env.Event))
		h.metrics.RecordEviction()
		h.removeLocked(session)
	}
}

func (h *Hub) removeLocked(session *Session) {
	if _, ok := h.sessions[session.ID]; !ok {
		return
	}
	h.leaveLocked(session.ID)
	delete(h.sessions, session.ID)
	session.close()
	h.reportLocked()
}

func (h *Hub) leaveLocked(sessionID string) {
	for ticketID := range h.membership[sessionID] {
		h.dropFromRoomLocked(sessionID, ticketID)
	}
	delete(h.membership, sessionID)
}

func (h *Hub) dropFromRoomLocked(sessionID, ticketID string) {
	room, ok := h.rooms[ticketID]
	if !ok {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(h.rooms, ticketID)
	}
}

func (h *Hub) reportLocked() {
	h.metrics.SetHubSize(len(h.sessions), len(h.rooms))
}
