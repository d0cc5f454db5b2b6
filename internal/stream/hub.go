// Package stream fans live activity updates out to websocket viewers. With
// redis configured every instance publishes to a shared channel so viewers
// connected to any node see the same feed.
package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"backend-strideup/internal/logger"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "activity:"
	channelSuffix  = ":live"
	channelPattern = channelPrefix + "*" + channelSuffix
	ownerSuffix    = "/owner"
)

// Event is the envelope written to live viewers.
type Event struct {
	Type       string `json:"type"`
	ActivityID string `json:"activity_id"`
	Data       any    `json:"data,omitempty"`
	// OwnerOnly keeps the event off the public topic.
	OwnerOnly bool `json:"-"`
}

// OwnerTopic is the topic the activity owner's sessions register on. It gets
// every event for the activity, owner-only ones included.
func OwnerTopic(activityID string) string {
	return activityID + ownerSuffix
}

type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	log     *logger.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	ActivityID string
	Send       chan []byte
}

func NewHub(redisClient *redis.Client, log *logger.Logger) *Hub {
	h := &Hub{
		log:     logger.OrNop(log),
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ps := redisClient.PSubscribe(ctx, channelPattern)
		if _, err := ps.Receive(ctx); err != nil {
			h.log.Warn("live stream subscribe failed, using local fan-out only", "error", err)
			_ = ps.Close()
		} else {
			h.redis = redisClient
			h.pubsub = ps
			go h.forward(ps)
		}
	}
	return h
}

func (h *Hub) Register(activityID string) *Client {
	client := &Client{
		ActivityID: activityID,
		Send:       make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[activityID] == nil {
		h.clients[activityID] = map[*Client]struct{}{}
	}
	h.clients[activityID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if activityClients, ok := h.clients[client.ActivityID]; ok {
		delete(activityClients, client)
		if len(activityClients) == 0 {
			delete(h.clients, client.ActivityID)
		}
	}
	close(client.Send)
}

// Broadcast goes through redis when it is available, so local viewers get the
// message exactly once via the subscription. A failed publish falls back to
// local delivery.
func (h *Hub) Broadcast(activityID string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(activityID), payload).Err()
		if err == nil {
			return
		}
		h.log.Warn("live stream publish failed", "activity_id", activityID, "error", err)
	}
	h.deliver(activityID, payload)
}

func (h *Hub) Publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode live event", "activity_id", ev.ActivityID, "error", err)
		return
	}
	h.Broadcast(OwnerTopic(ev.ActivityID), payload)
	if !ev.OwnerOnly {
		h.Broadcast(ev.ActivityID, payload)
	}
}

func (h *Hub) Close() error {
	if h.pubsub != nil {
		return h.pubsub.Close()
	}
	return nil
}

func (h *Hub) deliver(activityID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[activityID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) forward(ps *redis.PubSub) {
	for msg := range ps.Channel() {
		activityID := activityIDFromChannel(msg.Channel)
		if activityID == "" {
			continue
		}
		h.deliver(activityID, []byte(msg.Payload))
	}
}

func redisChannel(activityID string) string {
	return channelPrefix + activityID + channelSuffix
}

// activityIDFromChannel parses activity:{id}:live.
func activityIDFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
