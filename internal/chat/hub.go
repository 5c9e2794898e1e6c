package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Options struct {
	// Applied when a conversation or request enables self-destruct
	// without naming a delay.
	DefaultDestructSeconds int
	SendQueueSize          int
	MaxMessageBytes        int
}

func (o Options) withDefaults() Options {
	if o.DefaultDestructSeconds <= 0 {
		o.DefaultDestructSeconds = 30
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 64
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 16384
	}
	return o
}

// Hub owns the room-subscription table, the per-user connection counts and
// the self-destruct timers for one gateway process. Fan-out goes through a
// Bus so a shared subscription layer (NATS) can replace in-process delivery
// without touching the component logic.
type Hub struct {
	store Store
	bus   Bus
	log   *slog.Logger
	opts  Options

	table     *roomTable
	connCount map[string]int // user id -> open connections

	// stateMu serializes message state transitions (read set, ack set,
	// countdown, deletion) so set-adds stay idempotent under concurrent
	// read events.
	stateMu sync.Mutex

	RegisterChan   chan *Client
	UnregisterChan chan *Client

	destruct *destructScheduler
	now      func() time.Time
}

func NewHub(store Store, log *slog.Logger, opts Options) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		store:          store,
		log:            log,
		opts:           opts.withDefaults(),
		table:          newRoomTable(),
		connCount:      map[string]int{},
		RegisterChan:   make(chan *Client),
		UnregisterChan: make(chan *Client),
		now:            time.Now,
	}
	h.bus = localBus{h}
	h.destruct = newDestructScheduler(h)
	return h
}

// SetBus swaps in-process delivery for an external fan-out layer. Call
// before Run.
func (h *Hub) SetBus(bus Bus) {
	h.bus = bus
}

// Run processes connection lifecycle events. One loop per process, as in a
// single gateway owning all connections.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.RegisterChan:
			h.bindConn(client)
		case client := <-h.UnregisterChan:
			h.dropConn(client)
		}
	}
}

// bindConn subscribes a freshly authenticated connection to one channel per
// conversation the user participates in, plus the private per-user channel,
// and drives the offline→online presence transition.
func (h *Hub) bindConn(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.table.addUserConn(c)
	ids, err := h.store.ConversationIDsForUser(ctx, c.UserID)
	if err != nil {
		h.log.Error("conversation enumeration failed", "user", c.UserID, "err", err)
	}
	for _, id := range ids {
		h.table.subscribe(c, id)
	}

	h.connCount[c.UserID]++
	if h.connCount[c.UserID] == 1 {
		h.setPresence(ctx, c.UserID, true)
	}
	h.log.Info("connection bound", "user", c.UserID, "conn", c.ID, "rooms", len(ids))
}

// dropConn unsubscribes the connection from everything and, when it was the
// user's last device, drives the online→offline transition.
func (h *Hub) dropConn(c *Client) {
	registered := h.table.dropConn(c)
	c.shutdown()
	if !registered {
		return // duplicate unregister
	}

	h.connCount[c.UserID]--
	if h.connCount[c.UserID] == 0 {
		delete(h.connCount, c.UserID)
		// Persistence must never block disconnect cleanup.
		go h.setPresence(context.Background(), c.UserID, false)
	}
	h.log.Info("connection dropped", "user", c.UserID, "conn", c.ID)
}

// setPresence persists the transition (one retry) and broadcasts it to all
// other connected users.
func (h *Hub) setPresence(ctx context.Context, userID string, online bool) {
	now := h.now()
	if err := h.store.SetPresence(ctx, userID, online, now); err != nil {
		h.log.Warn("presence persist failed, retrying", "user", userID, "err", err)
		if err := h.store.SetPresence(ctx, userID, online, now); err != nil {
			h.log.Error("presence persist failed", "user", userID, "err", err)
		}
	}
	h.broadcastAll(ctx, userID, EventPresenceChanged, PresenceEvent{
		UserID:     userID,
		IsOnline:   online,
		LastSeenAt: now,
	})
}

// Dispatch routes one inbound frame. Returned errors are reported to the
// originating connection only.
func (h *Hub) Dispatch(ctx context.Context, c *Client, f *Frame) error {
	switch f.Op {
	case OpSend:
		var req SendRequest
		if err := decode(f.Data, &req); err != nil {
			return err
		}
		_, err := h.Send(ctx, c, req)
		return err
	case OpJoin:
		var req JoinRequest
		if err := decode(f.Data, &req); err != nil {
			return err
		}
		return h.Join(ctx, c, req)
	case OpTyping:
		var req TypingRequest
		if err := decode(f.Data, &req); err != nil {
			return err
		}
		return h.Typing(ctx, c, req)
	case OpRead:
		var req ReadRequest
		if err := decode(f.Data, &req); err != nil {
			return err
		}
		return h.MarkRead(ctx, c, req)
	case OpEdit:
		var req EditRequest
		if err := decode(f.Data, &req); err != nil {
			return err
		}
		return h.Edit(ctx, c, req)
	case OpDelete:
		var req DeleteRequest
		if err := decode(f.Data, &req); err != nil {
			return err
		}
		return h.Delete(ctx, c, req)
	default:
		return fmt.Errorf("unknown op %q: %w", f.Op, ErrValidation)
	}
}

func decode(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing payload: %w", ErrValidation)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("malformed payload: %w", ErrValidation)
	}
	return nil
}

// Join subscribes the connection to a conversation discovered after connect
// (for example one created while already online).
func (h *Hub) Join(ctx context.Context, c *Client, req JoinRequest) error {
	if req.ConversationID == "" {
		return fmt.Errorf("conversation_id required: %w", ErrValidation)
	}
	conv, err := h.store.ConversationByID(ctx, req.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(c.UserID) {
		return ErrAuthorization
	}
	h.table.subscribe(c, conv.ID)
	h.broadcastRoom(ctx, conv.ID, "", EventMemberAdded, MemberAddedEvent{
		ConversationID: conv.ID,
		UserID:         c.UserID,
	})
	return nil
}

// Typing rebroadcasts an ephemeral typing-state change to every other
// connection in the room. Nothing is persisted, nothing is retried.
func (h *Hub) Typing(ctx context.Context, c *Client, req TypingRequest) error {
	if req.ConversationID == "" {
		return fmt.Errorf("conversation_id required: %w", ErrValidation)
	}
	h.broadcastRoom(ctx, req.ConversationID, c.UserID, EventTyping, TypingEvent{
		ConversationID: req.ConversationID,
		UserID:         c.UserID,
		IsTyping:       req.IsTyping,
	})
	return nil
}

// broadcast helpers: encode once, hand to the bus.

func (h *Hub) broadcastRoom(ctx context.Context, roomID, excludeUser, event string, data interface{}) {
	if err := h.bus.PublishRoom(ctx, roomID, excludeUser, encodeEvent(event, data)); err != nil {
		h.log.Error("room broadcast failed", "room", roomID, "event", event, "err", err)
	}
}

func (h *Hub) broadcastUser(ctx context.Context, userID, event string, data interface{}) {
	if err := h.bus.PublishUser(ctx, userID, encodeEvent(event, data)); err != nil {
		h.log.Error("user broadcast failed", "user", userID, "event", event, "err", err)
	}
}

func (h *Hub) broadcastAll(ctx context.Context, excludeUser, event string, data interface{}) {
	if err := h.bus.PublishAll(ctx, excludeUser, encodeEvent(event, data)); err != nil {
		h.log.Error("global broadcast failed", "event", event, "err", err)
	}
}

// Local delivery. The NATS bridge calls back into these after a round trip;
// the local bus calls them directly.

func (h *Hub) DeliverRoom(roomID, excludeUser string, data []byte) {
	for _, c := range h.table.roomConns(roomID, excludeUser) {
		c.push(data)
	}
}

func (h *Hub) DeliverUser(userID string, data []byte) {
	for _, c := range h.table.userConns(userID) {
		c.push(data)
	}
}

func (h *Hub) DeliverAll(excludeUser string, data []byte) {
	for _, c := range h.table.allConns(excludeUser) {
		c.push(data)
	}
}
