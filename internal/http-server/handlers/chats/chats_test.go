package chatsHandler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kgellert/teamchat/internal/domain/chat"
	resp "github.com/kgellert/teamchat/internal/lib/api/response"
	storage "github.com/kgellert/teamchat/internal/storage/postgres"
)

type fakeChatsService struct {
	createdType  chat.Type
	participants []string
	chat         chat.Chat
	isNew        bool
	err          error

	chats    []chat.ChatListItem
	chatsErr error
}

func (f *fakeChatsService) CreateChat(_ context.Context, chatType chat.Type, _, _ *string, ids []string) (chat.Chat, bool, error) {
	f.createdType = chatType
	f.participants = ids
	return f.chat, f.isNew, f.err
}

func (f *fakeChatsService) GetChat(_ context.Context, chatID string) (chat.Chat, error) {
	if f.chat.ID == chatID {
		return f.chat, nil
	}
	return chat.Chat{}, storage.ErrChatNotFound
}

func (f *fakeChatsService) GetUserChats(_ context.Context, _ string) ([]chat.ChatListItem, error) {
	return f.chats, f.chatsErr
}

type fakeNotifier struct {
	notified []chat.Chat
}

func (f *fakeNotifier) NotifyChatCreated(c chat.Chat) {
	f.notified = append(f.notified, c)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) resp.Response {
	t.Helper()
	var body resp.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
	return body
}

func TestCreateChat_NewPrivateChat(t *testing.T) {
	svc := &fakeChatsService{
		chat:  chat.Chat{ID: "c1", Type: chat.TypePrivate},
		isNew: true,
	}
	notifier := &fakeNotifier{}
	h := New(svc, notifier, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/chat/create-chat",
		strings.NewReader(`{"participants":["u1","u2"]}`))
	rec := httptest.NewRecorder()
	h.CreateChat()(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if svc.createdType != chat.TypePrivate {
		t.Fatalf("chat type = %s, want PRIVATE", svc.createdType)
	}
	if len(notifier.notified) != 1 || notifier.notified[0].ID != "c1" {
		t.Fatalf("notified = %+v, want one push for c1", notifier.notified)
	}

	body := decodeResponse(t, rec)
	if !body.Success || body.Message != "Chat created successfully" {
		t.Fatalf("body = %+v", body)
	}
}

func TestCreateChat_ExistingPrivateChatReturns200(t *testing.T) {
	svc := &fakeChatsService{
		chat:  chat.Chat{ID: "c1", Type: chat.TypePrivate},
		isNew: false,
	}
	notifier := &fakeNotifier{}
	h := New(svc, notifier, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/chat/create-chat",
		strings.NewReader(`{"participants":["u1","u2"]}`))
	rec := httptest.NewRecorder()
	h.CreateChat()(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeResponse(t, rec)
	if body.Message != "Chat already exists" {
		t.Fatalf("message = %q", body.Message)
	}
	// The existing chat is still pushed so late joiners get it in their list.
	if len(notifier.notified) != 1 {
		t.Fatalf("notified %d times, want 1", len(notifier.notified))
	}
}

func TestCreateChat_ThreeParticipantsMakesGroup(t *testing.T) {
	svc := &fakeChatsService{chat: chat.Chat{ID: "g1", Type: chat.TypeGroup}, isNew: true}
	h := New(svc, &fakeNotifier{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/chat/create-chat",
		strings.NewReader(`{"participants":["u1","u2","u3"],"groupName":"team"}`))
	rec := httptest.NewRecorder()
	h.CreateChat()(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if svc.createdType != chat.TypeGroup {
		t.Fatalf("chat type = %s, want GROUP", svc.createdType)
	}
}

func TestCreateChat_DeduplicatesBeforeClassifying(t *testing.T) {
	svc := &fakeChatsService{chat: chat.Chat{ID: "c1", Type: chat.TypePrivate}, isNew: true}
	h := New(svc, &fakeNotifier{}, discardLogger())

	// Three entries, two distinct users: still a PRIVATE pair.
	req := httptest.NewRequest(http.MethodPost, "/api/chat/create-chat",
		strings.NewReader(`{"participants":["u1","u2","u2"]}`))
	rec := httptest.NewRecorder()
	h.CreateChat()(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if svc.createdType != chat.TypePrivate {
		t.Fatalf("chat type = %s, want PRIVATE", svc.createdType)
	}
	if len(svc.participants) != 2 || svc.participants[0] != "u1" || svc.participants[1] != "u2" {
		t.Fatalf("forwarded participants = %v, want [u1 u2]", svc.participants)
	}
}

func TestCreateChat_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"no participants", `{"participants":[]}`},
		{"single participant", `{"participants":["u1"]}`},
		{"same id twice", `{"participants":["u1","u1"]}`},
		{"empty ids only", `{"participants":["","u1",""]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeChatsService{}
			notifier := &fakeNotifier{}
			h := New(svc, notifier, discardLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/chat/create-chat",
				strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.CreateChat()(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if len(notifier.notified) != 0 {
				t.Fatal("notifier called on rejected request")
			}
		})
	}
}

func TestGetChat_NotFound(t *testing.T) {
	h := New(&fakeChatsService{}, &fakeNotifier{}, discardLogger())

	r := chi.NewRouter()
	r.Get("/api/chat/{chatId}", h.GetChat())

	req := httptest.NewRequest(http.MethodGet, "/api/chat/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decodeResponse(t, rec)
	if body.Success {
		t.Fatal("success = true on a 404")
	}
}

func TestGetUserChats(t *testing.T) {
	svc := &fakeChatsService{
		chats: []chat.ChatListItem{{ID: "c1", ChatName: "Alice"}},
	}
	h := New(svc, &fakeNotifier{}, discardLogger())

	r := chi.NewRouter()
	r.Get("/api/chat/user-chats/{userId}", h.GetUserChats())

	req := httptest.NewRequest(http.MethodGet, "/api/chat/user-chats/u1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeResponse(t, rec)
	if !body.Success {
		t.Fatalf("body = %+v", body)
	}
}
