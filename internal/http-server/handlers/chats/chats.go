package chatsHandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kgellert/teamchat/internal/domain/chat"
	resp "github.com/kgellert/teamchat/internal/lib/api/response"
	"github.com/kgellert/teamchat/internal/lib/logger/sl"
	storage "github.com/kgellert/teamchat/internal/storage/postgres"
)

type ChatsService interface {
	CreateChat(ctx context.Context, chatType chat.Type, groupName, groupAvatar *string, participantIDs []string) (chat.Chat, bool, error)
	GetChat(ctx context.Context, chatID string) (chat.Chat, error)
	GetUserChats(ctx context.Context, userID string) ([]chat.ChatListItem, error)
}

// Notifier is the gateway surface the chat handler needs: pushing a created
// chat into every participant's user room. Injected explicitly, never reached
// through global state.
type Notifier interface {
	NotifyChatCreated(c chat.Chat)
}

type ChatsHandler struct {
	Service  ChatsService
	Notifier Notifier
	Log      *slog.Logger
}

func New(service ChatsService, notifier Notifier, log *slog.Logger) *ChatsHandler {
	return &ChatsHandler{Service: service, Notifier: notifier, Log: log}
}

type CreateChatRequest struct {
	Participants []string `json:"participants"`
	GroupName    *string  `json:"groupName"`
	GroupAvatar  *string  `json:"groupAvatar"`
}

// CreateChat creates a chat, or returns the existing one for a private pair.
// More than two participants makes a GROUP chat. Either way every participant
// gets a chat-created push so the chat shows up in all lists without a poll.
func (h *ChatsHandler) CreateChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chats.CreateChat"

		log := h.Log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CreateChatRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid body"))
			return
		}

		// Classification below counts distinct users, so a repeated id must
		// not slip a one-person chat past the gate or promote a pair to GROUP.
		req.Participants = dedupeIDs(req.Participants)
		if len(req.Participants) < 2 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("at least 2 distinct participants are required"))
			return
		}

		chatType := chat.TypePrivate
		if len(req.Participants) > 2 {
			chatType = chat.TypeGroup
		}

		var groupName, groupAvatar *string
		if chatType == chat.TypeGroup {
			groupName = req.GroupName
			groupAvatar = req.GroupAvatar
		}

		created, isNew, err := h.Service.CreateChat(r.Context(), chatType, groupName, groupAvatar, req.Participants)
		if err != nil {
			if errors.Is(err, storage.ErrEmptyParticipants) || errors.Is(err, storage.ErrPrivateParticipants) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error(err.Error()))
				return
			}
			log.Error("failed to create chat", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to create chat"))
			return
		}

		h.Notifier.NotifyChatCreated(created)

		if isNew {
			render.Status(r, http.StatusCreated)
			render.JSON(w, r, resp.OK(created, "Chat created successfully"))
			return
		}

		render.JSON(w, r, resp.OK(created, "Chat already exists"))
	}
}

func (h *ChatsHandler) GetUserChats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chats.GetUserChats"

		log := h.Log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := chi.URLParam(r, "userId")
		if userID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("userId is required"))
			return
		}

		chats, err := h.Service.GetUserChats(r.Context(), userID)
		if err != nil {
			log.Error("failed to get chats", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to get chats"))
			return
		}

		render.JSON(w, r, resp.OK(chats, "Chats retrieved successfully"))
	}
}

func (h *ChatsHandler) GetChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.chats.GetChat"

		log := h.Log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		chatID := chi.URLParam(r, "chatId")
		if chatID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("chatId is required"))
			return
		}

		c, err := h.Service.GetChat(r.Context(), chatID)
		if err != nil {
			if errors.Is(err, storage.ErrChatNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("chat not found"))
				return
			}
			log.Error("failed to get chat", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to get chat"))
			return
		}

		render.JSON(w, r, resp.OK(c, "Chat retrieved successfully"))
	}
}

// dedupeIDs drops empty and repeated ids, keeping first-seen order.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
