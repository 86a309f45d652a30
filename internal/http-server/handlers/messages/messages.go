package messagesHandler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kgellert/teamchat/internal/auth"
	"github.com/kgellert/teamchat/internal/domain/message"
	resp "github.com/kgellert/teamchat/internal/lib/api/response"
	"github.com/kgellert/teamchat/internal/lib/logger/sl"
)

type MessagesService interface {
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	CreateMessage(ctx context.Context, chatID, senderID, content string, contentType message.ContentType, fileURL *string) (message.Message, error)
	GetMessages(ctx context.Context, chatID string) ([]message.Message, error)
}

// Notifier reuses the gateway's fan-out for messages created over HTTP, so
// both ingestion paths share the persist-then-broadcast ordering.
type Notifier interface {
	FanOutNewMessage(ctx context.Context, msg message.Message)
}

type MessagesHandler struct {
	Service  MessagesService
	Notifier Notifier
	Log      *slog.Logger
}

func New(service MessagesService, notifier Notifier, log *slog.Logger) *MessagesHandler {
	return &MessagesHandler{Service: service, Notifier: notifier, Log: log}
}

type CreateMessageRequest struct {
	Content     string              `json:"content"`
	ContentType message.ContentType `json:"contentType"`
	FileURL     *string             `json:"fileUrl"`
}

func (h *MessagesHandler) GetMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.GetMessages"

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

		messages, err := h.Service.GetMessages(r.Context(), chatID)
		if err != nil {
			log.Error("failed to get messages", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to get messages"))
			return
		}

		render.JSON(w, r, resp.OK(messages, "Messages retrieved successfully"))
	}
}

func (h *MessagesHandler) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.SendMessage"

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

		var req CreateMessageRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid body"))
			return
		}

		if strings.TrimSpace(req.Content) == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("content is required"))
			return
		}

		// Closed set; empty defaults to TEXT at the storage layer.
		switch req.ContentType {
		case "", message.ContentTypeText, message.ContentTypeImage, message.ContentTypeFile:
		default:
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("contentType must be one of TEXT, IMAGE, FILE"))
			return
		}

		userID := auth.UserID(r)

		isMember, err := h.Service.IsParticipant(r.Context(), chatID, userID)
		if err != nil {
			log.Error("membership check failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to send message"))
			return
		}
		if !isMember {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, resp.Error("not a chat participant"))
			return
		}

		msg, err := h.Service.CreateMessage(r.Context(), chatID, userID, req.Content, req.ContentType, req.FileURL)
		if err != nil {
			log.Error("failed to create message", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to send message"))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, resp.OK(msg, "Message sent successfully"))

		h.Notifier.FanOutNewMessage(r.Context(), msg)
	}
}
