package server

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itiky/collaborate-board/model"
)

const writeTimeout = 5 * time.Second

type (
	// Broadcaster delivers server messages to session participants.
	// Delivery is send and forget: no retry, no buffering for unreachable participants.
	Broadcaster interface {
		// Broadcast sends the message to all connected participants
		Broadcast(msg model.Message)
		// Send sends the message to a single participant
		Send(to model.ParticipantId, msg model.Message)
	}

	// Hub implements Broadcaster over websocket connections.
	Hub struct {
		sync.Mutex
		subscribers map[model.ParticipantId]*subscriber
		monitor     *Monitor
		logger      *log.Logger
	}

	subscriber struct {
		mu     sync.Mutex
		conn   *websocket.Conn
		closed bool
	}
)

func (s *subscriber) write(data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Subscribe associates the connection with the participant (an existing connection is closed).
// The welcome message is written before any message broadcasted after the subscription.
func (h *Hub) Subscribe(id model.ParticipantId, conn *websocket.Conn, welcome func() (model.Message, error)) error {
	sub := &subscriber{conn: conn}
	sub.mu.Lock()
	defer sub.mu.Unlock()

	h.Lock()
	if existing, found := h.subscribers[id]; found {
		existing.conn.Close()
	}
	h.subscribers[id] = sub
	h.Unlock()

	if welcome == nil {
		return nil
	}

	msg, err := welcome()
	if err != nil {
		return fmt.Errorf("welcome message: %w", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", msg.Op, err)
	}
	if err := sub.write(data); err != nil {
		return fmt.Errorf("%s: write: %w", msg.Op, err)
	}

	return nil
}

// Unsubscribe removes the participant connection.
// Returns false if the connection was already replaced by a newer one.
func (h *Hub) Unsubscribe(id model.ParticipantId, conn *websocket.Conn) bool {
	h.Lock()
	defer h.Unlock()

	if sub, found := h.subscribers[id]; found && sub.conn == conn {
		delete(h.subscribers, id)
		return true
	}

	return false
}

// Len returns the number of connected participants.
func (h *Hub) Len() int {
	h.Lock()
	defer h.Unlock()

	return len(h.subscribers)
}

// Broadcast implements Broadcaster interface.
// Writes to different connections happen concurrently, the call returns once all writes are done,
// so messages of consecutive calls reach every connection in call order.
func (h *Hub) Broadcast(msg model.Message) {
	start := time.Now()

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("Hub: %s: marshal: %v", msg.Op, err)
		return
	}

	h.Lock()
	targets := make(map[model.ParticipantId]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		targets[id] = sub
	}
	h.Unlock()

	wg := sync.WaitGroup{}
	for id, sub := range targets {
		wg.Add(1)
		go func(id model.ParticipantId, sub *subscriber) {
			defer wg.Done()
			h.deliver(id, sub, msg.Op, data)
		}(id, sub)
	}
	wg.Wait()

	if h.monitor != nil {
		h.monitor.BroadcastServed(len(targets), time.Since(start))
	}
}

// Send implements Broadcaster interface.
func (h *Hub) Send(to model.ParticipantId, msg model.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("Hub: %s: marshal: %v", msg.Op, err)
		return
	}

	h.Lock()
	sub, found := h.subscribers[to]
	h.Unlock()
	if !found {
		h.logger.Printf("Hub: %s: participant %s not connected: dropped", msg.Op, to)
		return
	}

	h.deliver(to, sub, msg.Op, data)
}

// deliver writes data to the subscriber closing the connection on failure
// (the connection reader unsubscribes it).
func (h *Hub) deliver(id model.ParticipantId, sub *subscriber, op string, data []byte) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}
	if err := sub.write(data); err != nil {
		h.logger.Printf("Hub: %s: write to %s: %v: closing connection", op, id, err)
		sub.closed = true
		sub.conn.Close()
	}
}

// NewHub creates a new Hub object, monitor and logger are optional.
func NewHub(monitor *Monitor, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}

	return &Hub{
		subscribers: make(map[model.ParticipantId]*subscriber),
		monitor:     monitor,
		logger:      logger,
	}
}
