package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/kgellert/teamchat/internal/auth"
	"github.com/kgellert/teamchat/internal/lib/logger/sl"
	"github.com/kgellert/teamchat/internal/ws"
	"github.com/kgellert/teamchat/internal/ws/gateway"
	"github.com/kgellert/teamchat/internal/ws/hub"
)

const readDeadline = 60 * time.Second

// TokenVerifier resolves a handshake session token to a user id.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

type Options struct {
	// SendRateLimit caps mutating events (send-message, mark-as-read) per
	// connection, in events per minute. Zero disables the limiter.
	SendRateLimit int
	SendBurst     int
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades the connection after a successful token check, registers
// it with the hub and runs the read loop. A missing or invalid token rejects
// the handshake with 401 before any event is processed.
func WSHandler(h *hub.Hub, g *gateway.Gateway, verifier TokenVerifier, log *slog.Logger, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "ws.handler.WSHandler"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := auth.TokenFromRequest(r)
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		userID, err := verifier.VerifyToken(token)
		if err != nil {
			log.Warn("handshake rejected", sl.Err(err))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("ws upgrade error", sl.Err(err))
			return
		}
		defer conn.Close()

		log = log.With(slog.String("user_id", userID))
		log.Info("user connected")

		hc := hub.NewConnection(conn, userID)
		go hc.WritePump()

		h.Register(hc)
		defer h.Unregister(hc)

		var limiter *rate.Limiter
		if opts.SendRateLimit > 0 {
			limiter = rate.NewLimiter(
				rate.Every(time.Minute/time.Duration(opts.SendRateLimit)),
				max(opts.SendBurst, 1),
			)
		}

		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
			return nil
		})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Info("user disconnected", sl.Err(err))
				return
			}

			in, err := ws.DecodeClientEvent(data)
			if err != nil {
				log.Warn("ws bad frame", sl.Err(err))
				continue
			}

			switch in.Type {
			case ws.EventJoinUser:
				g.JoinUser(hc)

			case ws.EventJoinChat:
				g.JoinChat(hc, in.ChatRef.ChatID)

			case ws.EventLeaveChat:
				g.LeaveChat(hc, in.ChatRef.ChatID)

			case ws.EventSendMessage:
				if limiter != nil && !limiter.Allow() {
					log.Warn("send-message rate limited")
					continue
				}
				g.SendMessage(r.Context(), hc, in.SendMessage)

			case ws.EventMarkAsRead:
				if limiter != nil && !limiter.Allow() {
					log.Warn("mark-as-read rate limited")
					continue
				}
				g.MarkAsRead(r.Context(), hc, in.ChatRef.ChatID)

			case ws.EventTyping:
				g.Typing(hc, in.ChatRef.ChatID)

			case ws.EventStopTyping:
				g.StopTyping(hc, in.ChatRef.ChatID)
			}
		}
	}
}
