package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/emberchat/ember/internal/chat"
	"github.com/emberchat/ember/internal/config"
	"github.com/emberchat/ember/internal/storage"
)

type Handler struct {
	Hub   *chat.Hub
	Auth  chat.Authenticator
	Store *storage.Store
	Cfg   *config.Config
}

func New(hub *chat.Hub, auth chat.Authenticator, store *storage.Store, cfg *config.Config) *Handler {
	return &Handler{Hub: hub, Auth: auth, Store: store, Cfg: cfg}
}

func (h *Handler) Register(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(h.ServeWS))

	app.Get("/api/conversations", h.ListConversations)
	app.Get("/api/conversations/:id/messages", h.History)
}

// ServeWS binds the session: resolves the bearer credential to a user,
// rejects on failure with no side effects, and on success hands the
// connection to the hub and runs the pumps.
func (h *Handler) ServeWS(c *websocket.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	user, err := h.Auth.Authenticate(ctx, c.Query("token"))
	cancel()
	if err != nil {
		b, _ := json.Marshal(chat.Envelope{Event: chat.EventError, Data: chat.ErrorEvent{
			Code:    chat.ErrorCode(chat.ErrAuthentication),
			Message: "authentication failed",
		}})
		_ = c.WriteMessage(websocket.TextMessage, b)
		_ = c.Close()
		return
	}

	pongWait := time.Duration(h.Cfg.Chat.PongWaitSeconds) * time.Second
	c.SetReadLimit(int64(h.Cfg.Chat.MaxMessageBytes))
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})

	client := chat.NewClient(uuid.NewString(), user, c, h.Hub)
	h.Hub.RegisterChan <- client

	// Ping a bit more often than the pong deadline.
	go client.WritePump(pongWait * 9 / 10)
	client.ReadPump() // unregisters on exit
}
