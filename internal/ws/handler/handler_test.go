package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kgellert/teamchat/internal/domain/message"
	"github.com/kgellert/teamchat/internal/ws"
	"github.com/kgellert/teamchat/internal/ws/gateway"
	"github.com/kgellert/teamchat/internal/ws/hub"
)

type staticVerifier map[string]string

func (v staticVerifier) VerifyToken(token string) (string, error) {
	if userID, ok := v[token]; ok {
		return userID, nil
	}
	return "", errors.New("invalid token")
}

type memStore struct {
	mu      sync.Mutex
	members map[string][]string
	unread  map[string]map[string]int64
	nextID  int
}

func newMemStore(members map[string][]string) *memStore {
	return &memStore{members: members, unread: make(map[string]map[string]int64)}
}

func (s *memStore) IsParticipant(_ context.Context, chatID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.members[chatID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateMessage(_ context.Context, chatID, senderID, content string, contentType message.ContentType, fileURL *string) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	if s.unread[chatID] == nil {
		s.unread[chatID] = make(map[string]int64)
	}
	for _, id := range s.members[chatID] {
		if id != senderID {
			s.unread[chatID][id]++
		}
	}

	return message.Message{
		ID:          fmt.Sprintf("m%d", s.nextID),
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		ContentType: contentType,
		FileURL:     fileURL,
		CreatedAt:   time.Now(),
	}, nil
}

func (s *memStore) MarkChatRead(_ context.Context, chatID, userID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unread[chatID] != nil {
		s.unread[chatID][userID] = 0
	}
	return time.Now(), nil
}

func (s *memStore) GetParticipantIDs(_ context.Context, chatID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.members[chatID]...), nil
}

func (s *memStore) unreadCount(chatID, userID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[chatID][userID]
}

func startServer(t *testing.T, store *memStore) *httptest.Server {
	t.Helper()

	h := hub.NewHub()
	go h.Run()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := gateway.New(store, h, log)

	verifier := staticVerifier{
		"token-alice": "alice",
		"token-bob":   "bob",
	}

	srv := httptest.NewServer(WSHandler(h, g, verifier, log, Options{}))
	t.Cleanup(srv.Close)

	return srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, data any) {
	t.Helper()

	frame, err := json.Marshal(map[string]any{"type": eventType, "data": data})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) ws.ServerEvent {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}

	var event ws.ServerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}

	return event
}

// settle gives the server's read loops time to apply previously sent frames.
func settle() { time.Sleep(50 * time.Millisecond) }

func TestHandshake_RejectsBadToken(t *testing.T) {
	srv := startServer(t, newMemStore(nil))

	for _, token := range []string{"", "forged"} {
		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		if token != "" {
			url += "?token=" + token
		}
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatalf("dial with token %q succeeded, want rejection", token)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %v, want 401", token, resp)
		}
	}
}

func TestSendMessage_DeliveredToChatRoom(t *testing.T) {
	store := newMemStore(map[string][]string{"c1": {"alice", "bob"}})
	srv := startServer(t, store)

	alice := dial(t, srv, "token-alice")
	bob := dial(t, srv, "token-bob")

	send(t, bob, ws.EventJoinUser, nil)
	send(t, bob, ws.EventJoinChat, "c1")
	send(t, alice, ws.EventJoinChat, "c1")
	settle()

	send(t, alice, ws.EventSendMessage, map[string]string{"chatId": "c1", "content": "hi"})

	event := readEvent(t, bob)
	if event.Type != ws.EventNewMessage {
		t.Fatalf("bob got %s, want new-message", event.Type)
	}

	var msg message.Message
	raw, _ := json.Marshal(event.Data)
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Content != "hi" || msg.SenderID != "alice" {
		t.Fatalf("message = %+v", msg)
	}

	settle()
	if got := store.unreadCount("c1", "bob"); got != 1 {
		t.Fatalf("bob's unread = %d, want 1", got)
	}
}

func TestMarkAsRead_NotifiesOtherParticipants(t *testing.T) {
	store := newMemStore(map[string][]string{"c1": {"alice", "bob"}})
	srv := startServer(t, store)

	alice := dial(t, srv, "token-alice")
	bob := dial(t, srv, "token-bob")

	send(t, alice, ws.EventJoinChat, "c1")
	send(t, bob, ws.EventJoinChat, "c1")
	settle()

	send(t, bob, ws.EventMarkAsRead, map[string]string{"chatId": "c1"})

	event := readEvent(t, alice)
	if event.Type != ws.EventMessagesRead {
		t.Fatalf("alice got %s, want messages-read", event.Type)
	}

	var p ws.MessagesReadPayload
	raw, _ := json.Marshal(event.Data)
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.ChatID != "c1" || p.ReaderID != "bob" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestTyping_NotEchoedToSender(t *testing.T) {
	store := newMemStore(map[string][]string{"c1": {"alice", "bob"}})
	srv := startServer(t, store)

	alice := dial(t, srv, "token-alice")
	bob := dial(t, srv, "token-bob")

	send(t, alice, ws.EventJoinChat, "c1")
	send(t, bob, ws.EventJoinChat, "c1")
	settle()

	send(t, alice, ws.EventTyping, map[string]string{"chatId": "c1"})

	event := readEvent(t, bob)
	if event.Type != ws.EventUserTyping {
		t.Fatalf("bob got %s, want user-typing", event.Type)
	}

	// Alice must not receive her own typing event.
	_ = alice.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := alice.ReadMessage(); err == nil {
		t.Fatal("sender received her own typing event")
	}
}

func TestRoomIsolation_SecondDeviceWithoutJoinSeesNothing(t *testing.T) {
	store := newMemStore(map[string][]string{"c1": {"alice", "bob"}})
	srv := startServer(t, store)

	alice := dial(t, srv, "token-alice")
	aliceTablet := dial(t, srv, "token-alice")
	bob := dial(t, srv, "token-bob")

	send(t, alice, ws.EventJoinChat, "c1")
	send(t, bob, ws.EventJoinChat, "c1")
	settle()

	send(t, alice, ws.EventSendMessage, map[string]string{"chatId": "c1", "content": "hi"})

	if event := readEvent(t, bob); event.Type != ws.EventNewMessage {
		t.Fatalf("bob got %s, want new-message", event.Type)
	}

	_ = aliceTablet.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := aliceTablet.ReadMessage(); err == nil {
		t.Fatal("device that never joined the chat room received an event")
	}
}
