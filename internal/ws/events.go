package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kgellert/teamchat/internal/domain/chat"
	"github.com/kgellert/teamchat/internal/domain/message"
)

// The socket protocol is a closed set of event names. Inbound frames are
// decoded into typed payloads before any handler sees them; unknown names
// are rejected at decode time instead of falling through a string match.

// Client → server.
const (
	EventJoinUser    = "join-user"
	EventJoinChat    = "join-chat"
	EventLeaveChat   = "leave-chat"
	EventSendMessage = "send-message"
	EventMarkAsRead  = "mark-as-read"
	EventTyping      = "typing"
	EventStopTyping  = "stop-typing"
)

// Server → client.
const (
	EventNewMessage     = "new-message"
	EventChatUpdated    = "chat-updated"
	EventChatCreated    = "chat-created"
	EventMessagesRead   = "messages-read"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
)

var ErrUnknownEvent = errors.New("unknown event type")

// ClientEvent is the inbound frame envelope.
type ClientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the outbound frame envelope.
type ServerEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type SendMessagePayload struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

// ChatRefPayload covers the inbound events that carry only a chat id:
// join-chat, leave-chat, mark-as-read, typing, stop-typing.
type ChatRefPayload struct {
	ChatID string `json:"chatId"`
}

type ChatUpdatedPayload struct {
	ChatID          string          `json:"chatId"`
	LastMessage     message.Message `json:"lastMessage"`
	IncrementUnread bool            `json:"incrementUnread"`
}

type MessagesReadPayload struct {
	ChatID   string    `json:"chatId"`
	ReaderID string    `json:"readerId"`
	ReadAt   time.Time `json:"readAt"`
}

type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// Inbound is a decoded client frame: exactly one payload field is set,
// matching Type.
type Inbound struct {
	Type        string
	SendMessage SendMessagePayload
	ChatRef     ChatRefPayload
}

func DecodeClientEvent(data []byte) (Inbound, error) {
	var env ClientEvent
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("decode envelope: %w", err)
	}

	in := Inbound{Type: env.Type}

	switch env.Type {
	case EventJoinUser:
		return in, nil

	case EventSendMessage:
		if err := json.Unmarshal(env.Data, &in.SendMessage); err != nil {
			return Inbound{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		return in, nil

	case EventJoinChat, EventLeaveChat, EventMarkAsRead, EventTyping, EventStopTyping:
		// join-chat/leave-chat historically carried a bare chat id string, the
		// rest carry {chatId}. Accept both shapes for all five.
		if len(env.Data) > 0 {
			var raw string
			if err := json.Unmarshal(env.Data, &raw); err == nil {
				in.ChatRef.ChatID = raw
				return in, nil
			}
			if err := json.Unmarshal(env.Data, &in.ChatRef); err != nil {
				return Inbound{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
			}
		}
		return in, nil

	default:
		return Inbound{}, fmt.Errorf("%q: %w", env.Type, ErrUnknownEvent)
	}
}

// NewEvent marshals an outbound frame.
func NewEvent(eventType string, data any) ([]byte, error) {
	payload, err := json.Marshal(ServerEvent{Type: eventType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	return payload, nil
}

func NewMessageEvent(msg message.Message) ([]byte, error) {
	return NewEvent(EventNewMessage, msg)
}

func ChatCreatedEvent(c chat.Chat) ([]byte, error) {
	return NewEvent(EventChatCreated, c)
}

// UserRoom is the per-identity room used for cross-chat notifications.
func UserRoom(userID string) string { return "user:" + userID }

// ChatRoom is the per-conversation room used for message and typing fan-out.
func ChatRoom(chatID string) string { return "chat:" + chatID }
