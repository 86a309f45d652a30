package authHandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kgellert/teamchat/internal/auth"
	"github.com/kgellert/teamchat/internal/domain/user"
	resp "github.com/kgellert/teamchat/internal/lib/api/response"
	"github.com/kgellert/teamchat/internal/lib/logger/sl"
	storage "github.com/kgellert/teamchat/internal/storage/postgres"
)

const verificationTokenTTL = 24 * time.Hour

type UserStore interface {
	CreateUser(ctx context.Context, displayName, email, passwordHash string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (storage.Credentials, error)
	CreateVerificationToken(ctx context.Context, userID string, ttl time.Duration) (string, error)
	ConsumeVerificationToken(ctx context.Context, token string) (string, error)
}

type AuthHandler struct {
	Store UserStore
	JWT   *auth.JWTManager
	Log   *slog.Logger
}

func New(store UserStore, jwtManager *auth.JWTManager, log *slog.Logger) *AuthHandler {
	return &AuthHandler{Store: store, JWT: jwtManager, Log: log}
}

type RegisterRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User user.User `json:"user"`
	// VerificationToken is returned in the response because this service does
	// not send email; the caller delivers it out of band.
	VerificationToken string `json:"verificationToken"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User      user.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.auth.Register"

		log := h.Log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req RegisterRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid body"))
			return
		}

		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if req.DisplayName == "" || req.Email == "" || len(req.Password) < 8 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("displayName, email and a password of at least 8 characters are required"))
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			log.Error("failed to hash password", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to register"))
			return
		}

		u, err := h.Store.CreateUser(r.Context(), req.DisplayName, req.Email, hash)
		if err != nil {
			if errors.Is(err, storage.ErrEmailTaken) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("email already registered"))
				return
			}
			log.Error("failed to create user", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to register"))
			return
		}

		token, err := h.Store.CreateVerificationToken(r.Context(), u.ID, verificationTokenTTL)
		if err != nil {
			log.Error("failed to create verification token", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to register"))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, resp.OK(RegisterResponse{
			User:              u,
			VerificationToken: token,
		}, "User registered successfully"))
	}
}

func (h *AuthHandler) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.auth.Login"

		log := h.Log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req LoginRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid body"))
			return
		}

		creds, err := h.Store.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			if !errors.Is(err, storage.ErrUserNotFound) {
				log.Error("failed to load user", sl.Err(err))
			}
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("invalid email or password"))
			return
		}

		if err := auth.CheckPassword(creds.PasswordHash, req.Password); err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("invalid email or password"))
			return
		}

		token, expiresAt, err := h.JWT.IssueToken(creds.ID, creds.Email)
		if err != nil {
			log.Error("failed to issue token", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to log in"))
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "session_token",
			Value:    token,
			Path:     "/",
			Expires:  expiresAt,
			HttpOnly: true,
		})

		render.JSON(w, r, resp.OK(LoginResponse{
			User:      creds.User,
			Token:     token,
			ExpiresAt: expiresAt,
		}, "Logged in successfully"))
	}
}

func (h *AuthHandler) VerifyEmail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.auth.VerifyEmail"

		log := h.Log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req VerifyEmailRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil || req.Token == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid body"))
			return
		}

		if _, err := h.Store.ConsumeVerificationToken(r.Context(), req.Token); err != nil {
			if errors.Is(err, storage.ErrTokenNotFound) || errors.Is(err, storage.ErrTokenExpired) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("invalid or expired token"))
				return
			}
			log.Error("failed to consume token", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to verify email"))
			return
		}

		render.JSON(w, r, resp.OK(nil, "Email verified"))
	}
}
