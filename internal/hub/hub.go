// Package hub routes detection broadcasts to viewers subscribed to a camera.
//
// The Hub itself is transport agnostic: anything implementing Subscriber can
// join. Client adapts a websocket connection.
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Event names on the wire.
const (
	EventObjectDetection = "object_detection"
	EventSubscribe       = "subscribe_camera"
	EventUnsubscribe     = "unsubscribe_camera"
	EventError           = "error"
)

const topicPrefix = "camera_"

var ErrUnknownConnection = errors.New("unknown connection")

// Subscriber receives encoded frames. Deliver must not block; it reports
// whether the frame was accepted.
type Subscriber interface {
	Deliver(frame []byte) bool
}

// Frame is the envelope of every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Ack answers a subscribe or unsubscribe request.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// EncodeFrame wraps data in a Frame.
func EncodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// TopicFor names the topic carrying a camera's detections.
func TopicFor(camID string) string {
	return topicPrefix + camID
}

type connection struct {
	sub    Subscriber
	topics map[string]struct{}
}

type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*connection
	topics map[string]map[string]Subscriber
	logger *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]*connection),
		topics: make(map[string]map[string]Subscriber),
		logger: logger,
	}
}

// OnConnect registers a connection with no subscriptions. Reusing a live
// connID replaces the previous subscriber and drops its subscriptions.
func (h *Hub) OnConnect(connID string, sub Subscriber) {
	h.mu.Lock()
	h.removeLocked(connID)
	h.conns[connID] = &connection{sub: sub, topics: make(map[string]struct{})}
	total := len(h.conns)
	h.mu.Unlock()

	h.logger.Info("viewer connected", "conn_id", connID, "connections", total)
}

// OnDisconnect removes the connection from every topic it joined.
func (h *Hub) OnDisconnect(connID string) {
	h.mu.Lock()
	removed := h.removeLocked(connID)
	total := len(h.conns)
	h.mu.Unlock()

	if removed {
		h.logger.Info("viewer disconnected", "conn_id", connID, "connections", total)
	}
}

func (h *Hub) removeLocked(connID string) bool {
	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	for topic := range c.topics {
		h.leaveLocked(topic, connID)
	}
	delete(h.conns, connID)
	return true
}

func (h *Hub) leaveLocked(topic, connID string) {
	subs := h.topics[topic]
	delete(subs, connID)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// Subscribe adds connID to camID's topic. Subscribing twice is harmless.
func (h *Hub) Subscribe(connID, camID string) (Ack, error) {
	if camID == "" {
		return Ack{Message: "Camera ID is required"}, nil
	}
	topic := TopicFor(camID)

	h.mu.Lock()
	c, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return Ack{}, ErrUnknownConnection
	}
	c.topics[topic] = struct{}{}
	subs := h.topics[topic]
	if subs == nil {
		subs = make(map[string]Subscriber)
		h.topics[topic] = subs
	}
	subs[connID] = c.sub
	h.mu.Unlock()

	h.logger.Debug("viewer subscribed", "conn_id", connID, "cam_id", camID)
	return Ack{Success: true, Message: "Subscribed to camera " + camID}, nil
}

// Unsubscribe removes connID from camID's topic. Unsubscribing from a topic
// that was never joined succeeds.
func (h *Hub) Unsubscribe(connID, camID string) (Ack, error) {
	if camID == "" {
		return Ack{Message: "Camera ID is required"}, nil
	}
	topic := TopicFor(camID)

	h.mu.Lock()
	c, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return Ack{}, ErrUnknownConnection
	}
	delete(c.topics, topic)
	h.leaveLocked(topic, connID)
	h.mu.Unlock()

	h.logger.Debug("viewer unsubscribed", "conn_id", connID, "cam_id", camID)
	return Ack{Success: true, Message: "Unsubscribed from camera " + camID}, nil
}

// Publish sends payload as an object_detection event to every subscriber of
// camID and returns how many accepted it. Delivery happens outside the lock,
// so a slow subscriber cannot stall publishers or other subscribers.
func (h *Hub) Publish(camID string, payload any) int {
	frame, err := EncodeFrame(EventObjectDetection, payload)
	if err != nil {
		h.logger.Error("failed to encode broadcast", "cam_id", camID, "error", err)
		return 0
	}

	h.mu.RLock()
	subs := h.topics[TopicFor(camID)]
	targets := make([]Subscriber, 0, len(subs))
	for _, sub := range subs {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		if sub.Deliver(frame) {
			delivered++
		}
	}
	if dropped := len(targets) - delivered; dropped > 0 {
		h.logger.Warn("broadcast dropped for slow viewers", "cam_id", camID, "dropped", dropped)
	}
	return delivered
}

// Subscriptions lists the camera ids connID is subscribed to, sorted.
func (h *Hub) Subscriptions(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[connID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(c.topics))
	for topic := range c.topics {
		ids = append(ids, strings.TrimPrefix(topic, topicPrefix))
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) SubscriberCount(camID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[TopicFor(camID)])
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
