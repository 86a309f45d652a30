package messagesHandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kgellert/teamchat/internal/auth"
	"github.com/kgellert/teamchat/internal/domain/message"
	resp "github.com/kgellert/teamchat/internal/lib/api/response"
)

type fakeMessagesService struct {
	members map[string][]string

	created   []message.Message
	createErr error

	messages []message.Message
}

func (f *fakeMessagesService) IsParticipant(_ context.Context, chatID, userID string) (bool, error) {
	for _, id := range f.members[chatID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMessagesService) CreateMessage(_ context.Context, chatID, senderID, content string, contentType message.ContentType, fileURL *string) (message.Message, error) {
	if f.createErr != nil {
		return message.Message{}, f.createErr
	}
	msg := message.Message{
		ID:          "m1",
		ChatID:      chatID,
		SenderID:    senderID,
		Content:     content,
		ContentType: contentType,
		FileURL:     fileURL,
		CreatedAt:   time.Now(),
	}
	f.created = append(f.created, msg)
	return msg, nil
}

func (f *fakeMessagesService) GetMessages(_ context.Context, _ string) ([]message.Message, error) {
	return f.messages, nil
}

type fakeFanOut struct {
	fanned []message.Message
}

func (f *fakeFanOut) FanOutNewMessage(_ context.Context, msg message.Message) {
	f.fanned = append(f.fanned, msg)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sendMessageRequest(t *testing.T, h *MessagesHandler, userID, chatID, body string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Post("/api/chat/{chatId}/messages", h.SendMessage())

	req := httptest.NewRequest(http.MethodPost, "/api/chat/"+chatID+"/messages",
		strings.NewReader(body))
	if userID != "" {
		req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}

func TestSendMessage_PersistsThenFansOut(t *testing.T) {
	svc := &fakeMessagesService{members: map[string][]string{"c1": {"u1", "u2"}}}
	fan := &fakeFanOut{}
	h := New(svc, fan, discardLogger())

	rec := sendMessageRequest(t, h, "u1", "c1", `{"content":"hello"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if len(svc.created) != 1 {
		t.Fatalf("created %d messages, want 1", len(svc.created))
	}
	if len(fan.fanned) != 1 || fan.fanned[0].ID != svc.created[0].ID {
		t.Fatalf("fanned = %+v, want the persisted message", fan.fanned)
	}

	var body resp.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success {
		t.Fatalf("body = %+v", body)
	}
}

func TestSendMessage_NonParticipantForbidden(t *testing.T) {
	svc := &fakeMessagesService{members: map[string][]string{"c1": {"u1", "u2"}}}
	fan := &fakeFanOut{}
	h := New(svc, fan, discardLogger())

	rec := sendMessageRequest(t, h, "intruder", "c1", `{"content":"hello"}`)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if len(svc.created) != 0 {
		t.Fatal("message persisted for a non-participant")
	}
	if len(fan.fanned) != 0 {
		t.Fatal("fan-out ran for a rejected message")
	}
}

func TestSendMessage_RejectsEmptyContent(t *testing.T) {
	svc := &fakeMessagesService{members: map[string][]string{"c1": {"u1"}}}
	h := New(svc, &fakeFanOut{}, discardLogger())

	for _, body := range []string{`{"content":""}`, `{"content":"   "}`, `not json`} {
		rec := sendMessageRequest(t, h, "u1", "c1", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestSendMessage_RejectsUnknownContentType(t *testing.T) {
	svc := &fakeMessagesService{members: map[string][]string{"c1": {"u1"}}}
	fan := &fakeFanOut{}
	h := New(svc, fan, discardLogger())

	rec := sendMessageRequest(t, h, "u1", "c1", `{"content":"hi","contentType":"BOGUS"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(svc.created) != 0 || len(fan.fanned) != 0 {
		t.Fatal("message with unknown content type was processed")
	}

	// The declared types and the empty default all pass.
	for _, contentType := range []string{"TEXT", "IMAGE", "FILE", ""} {
		body := `{"content":"hi","contentType":"` + contentType + `"}`
		if rec := sendMessageRequest(t, h, "u1", "c1", body); rec.Code != http.StatusCreated {
			t.Fatalf("contentType %q: status = %d, want 201", contentType, rec.Code)
		}
	}
}

func TestSendMessage_StoreFailureSkipsFanOut(t *testing.T) {
	svc := &fakeMessagesService{
		members:   map[string][]string{"c1": {"u1"}},
		createErr: errors.New("db down"),
	}
	fan := &fakeFanOut{}
	h := New(svc, fan, discardLogger())

	rec := sendMessageRequest(t, h, "u1", "c1", `{"content":"hello"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if len(fan.fanned) != 0 {
		t.Fatal("fan-out ran after a failed persist")
	}
}

func TestGetMessages(t *testing.T) {
	svc := &fakeMessagesService{
		messages: []message.Message{
			{ID: "m1", ChatID: "c1", Content: "first"},
			{ID: "m2", ChatID: "c1", Content: "second"},
		},
	}
	h := New(svc, &fakeFanOut{}, discardLogger())

	r := chi.NewRouter()
	r.Get("/api/chat/{chatId}/messages", h.GetMessages())

	req := httptest.NewRequest(http.MethodGet, "/api/chat/c1/messages", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body resp.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success {
		t.Fatalf("body = %+v", body)
	}
}
