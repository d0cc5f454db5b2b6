package stream

import (
	"context"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Gate decides who may follow an activity live. owner selects the topic that
// also carries raw coordinates.
type Gate interface {
	CanWatch(ctx context.Context, viewerID, activityID string) (owner bool, err error)
}

const topicKey = "stream_topic"

func RegisterRoutes(r fiber.Router, hub *Hub, authMiddleware fiber.Handler, gate Gate) {
	r.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	r.Get("/ws/:activityID", authMiddleware, func(c *fiber.Ctx) error {
		activityID := c.Params("activityID")
		owner, err := gate.CanWatch(c.Context(), auth.UserID(c), activityID)
		if err != nil {
			return apperr.ToFiber(err)
		}
		topic := activityID
		if owner {
			topic = OwnerTopic(activityID)
		}
		c.Locals(topicKey, topic)
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		topic, _ := c.Locals(topicKey).(string)
		client := hub.Register(topic)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}
