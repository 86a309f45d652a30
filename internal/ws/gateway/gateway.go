package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kgellert/teamchat/internal/domain/chat"
	"github.com/kgellert/teamchat/internal/domain/message"
	"github.com/kgellert/teamchat/internal/lib/logger/sl"
	"github.com/kgellert/teamchat/internal/ws"
	"github.com/kgellert/teamchat/internal/ws/hub"
)

// Store is the slice of the persistence layer the gateway needs. Membership
// is checked point-in-time before every mutating action; the two write calls
// are transactional on the storage side.
type Store interface {
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	CreateMessage(ctx context.Context, chatID, senderID, content string, contentType message.ContentType, fileURL *string) (message.Message, error)
	MarkChatRead(ctx context.Context, chatID, userID string) (time.Time, error)
	GetParticipantIDs(ctx context.Context, chatID string) ([]string, error)
}

// Rooms is the room membership registry surface the gateway drives.
type Rooms interface {
	Join(c *hub.Connection, room string)
	Leave(c *hub.Connection, room string)
	Broadcast(room string, payload []byte)
	BroadcastExcept(room string, payload []byte, exclude *hub.Connection)
}

// Gateway coordinates room membership, message ingestion and event fan-out
// for authenticated websocket connections. Every handler is isolated: a
// failure is logged and the handler returns without a broadcast, no error
// frame is sent back to the actor.
type Gateway struct {
	store Store
	rooms Rooms
	log   *slog.Logger
}

func New(store Store, rooms Rooms, log *slog.Logger) *Gateway {
	return &Gateway{store: store, rooms: rooms, log: log}
}

// JoinUser subscribes the connection to its own user room, used for
// cross-chat notifications (chat-updated, chat-created).
func (g *Gateway) JoinUser(c *hub.Connection) {
	g.rooms.Join(c, ws.UserRoom(c.UserID()))
}

// JoinChat subscribes without a membership check: subscribing is read-only,
// membership is enforced on the mutating actions instead.
func (g *Gateway) JoinChat(c *hub.Connection, chatID string) {
	if chatID == "" {
		return
	}
	g.rooms.Join(c, ws.ChatRoom(chatID))
}

func (g *Gateway) LeaveChat(c *hub.Connection, chatID string) {
	if chatID == "" {
		return
	}
	g.rooms.Leave(c, ws.ChatRoom(chatID))
}

// SendMessage validates, persists and fans out one message. Invalid input and
// non-participant sends are dropped without a reply; nothing is broadcast
// until the message row is durably committed.
func (g *Gateway) SendMessage(ctx context.Context, c *hub.Connection, p ws.SendMessagePayload) {
	const op = "gateway.SendMessage"

	log := g.log.With(
		slog.String("op", op),
		slog.String("user_id", c.UserID()),
		slog.String("chat_id", p.ChatID),
	)

	if p.ChatID == "" || strings.TrimSpace(p.Content) == "" {
		return
	}

	isMember, err := g.store.IsParticipant(ctx, p.ChatID, c.UserID())
	if err != nil {
		log.Error("membership check failed", sl.Err(err))
		return
	}
	if !isMember {
		log.Warn("sender is not a chat participant, dropping message")
		return
	}

	msg, err := g.store.CreateMessage(ctx, p.ChatID, c.UserID(), p.Content, message.ContentTypeText, nil)
	if err != nil {
		log.Error("failed to persist message", sl.Err(err))
		return
	}

	g.FanOutNewMessage(ctx, msg)
}

// FanOutNewMessage broadcasts an already-persisted message: new-message to
// the chat room (sender's other devices included), then chat-updated to every
// other participant's user room so chat lists refresh without the chat room
// being open. Also used by the HTTP message handler after its own persist.
func (g *Gateway) FanOutNewMessage(ctx context.Context, msg message.Message) {
	const op = "gateway.FanOutNewMessage"

	log := g.log.With(slog.String("op", op), slog.String("chat_id", msg.ChatID))

	payload, err := ws.NewMessageEvent(msg)
	if err != nil {
		log.Error("failed to marshal new-message event", sl.Err(err))
		return
	}

	g.rooms.Broadcast(ws.ChatRoom(msg.ChatID), payload)

	participantIDs, err := g.store.GetParticipantIDs(ctx, msg.ChatID)
	if err != nil {
		log.Error("failed to load participants for chat-updated fan-out", sl.Err(err))
		return
	}

	updated, err := ws.NewEvent(ws.EventChatUpdated, ws.ChatUpdatedPayload{
		ChatID:          msg.ChatID,
		LastMessage:     msg,
		IncrementUnread: true,
	})
	if err != nil {
		log.Error("failed to marshal chat-updated event", sl.Err(err))
		return
	}

	for _, userID := range participantIDs {
		if userID == msg.SenderID {
			continue
		}
		g.rooms.Broadcast(ws.UserRoom(userID), updated)
	}
}

// MarkAsRead flags the requester's unread messages in the chat as read and
// tells the other room members via messages-read. Idempotent: a repeat call
// with nothing unread broadcasts the same terminal state again.
func (g *Gateway) MarkAsRead(ctx context.Context, c *hub.Connection, chatID string) {
	const op = "gateway.MarkAsRead"

	log := g.log.With(
		slog.String("op", op),
		slog.String("user_id", c.UserID()),
		slog.String("chat_id", chatID),
	)

	if chatID == "" {
		return
	}

	readAt, err := g.store.MarkChatRead(ctx, chatID, c.UserID())
	if err != nil {
		log.Error("failed to mark chat read", sl.Err(err))
		return
	}

	payload, err := ws.NewEvent(ws.EventMessagesRead, ws.MessagesReadPayload{
		ChatID:   chatID,
		ReaderID: c.UserID(),
		ReadAt:   readAt,
	})
	if err != nil {
		log.Error("failed to marshal messages-read event", sl.Err(err))
		return
	}

	g.rooms.BroadcastExcept(ws.ChatRoom(chatID), payload, c)
}

// Typing relays a best-effort typing signal to the chat room, excluding the
// sender. Nothing is persisted and no delivery is guaranteed; a client that
// disconnects mid-typing leaves receivers to clear the indicator on their own
// timer.
func (g *Gateway) Typing(c *hub.Connection, chatID string) {
	g.relayTyping(ws.EventUserTyping, c, chatID)
}

func (g *Gateway) StopTyping(c *hub.Connection, chatID string) {
	g.relayTyping(ws.EventUserStopTyping, c, chatID)
}

func (g *Gateway) relayTyping(eventType string, c *hub.Connection, chatID string) {
	if chatID == "" {
		return
	}

	payload, err := ws.NewEvent(eventType, ws.TypingPayload{
		ChatID: chatID,
		UserID: c.UserID(),
	})
	if err != nil {
		g.log.Error("failed to marshal typing event", sl.Err(err))
		return
	}

	g.rooms.BroadcastExcept(ws.ChatRoom(chatID), payload, c)
}

// NotifyChatCreated pushes a freshly created (or rediscovered) chat to every
// participant's user room, so it appears in all chat lists without a reload.
func (g *Gateway) NotifyChatCreated(c chat.Chat) {
	const op = "gateway.NotifyChatCreated"

	payload, err := ws.ChatCreatedEvent(c)
	if err != nil {
		g.log.Error("failed to marshal chat-created event",
			slog.String("op", op), sl.Err(err))
		return
	}

	for _, p := range c.Participants {
		g.rooms.Broadcast(ws.UserRoom(p.UserID), payload)
	}
}
