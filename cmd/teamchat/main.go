package main

import (
	"context"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/kgellert/teamchat/internal/auth"
	appConfig "github.com/kgellert/teamchat/internal/config"
	authHandler "github.com/kgellert/teamchat/internal/http-server/handlers/auth"
	chatsHandler "github.com/kgellert/teamchat/internal/http-server/handlers/chats"
	messagesHandler "github.com/kgellert/teamchat/internal/http-server/handlers/messages"
	uploadsHandler "github.com/kgellert/teamchat/internal/http-server/handlers/uploads"
	mwLogger "github.com/kgellert/teamchat/internal/http-server/middleware/logger"
	"github.com/kgellert/teamchat/internal/lib/logger/handlers/slogpretty"
	"github.com/kgellert/teamchat/internal/lib/logger/sl"
	storage "github.com/kgellert/teamchat/internal/storage/postgres"
	"github.com/kgellert/teamchat/internal/uploads"
	"github.com/kgellert/teamchat/internal/ws/gateway"
	wsHandler "github.com/kgellert/teamchat/internal/ws/handler"
	"github.com/kgellert/teamchat/internal/ws/hub"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

func main() {
	if err := godotenv.Load("infra/.env"); err != nil {
		stdlog.Println("No .env file found, skipping...")
	}

	cfg := appConfig.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting teamchat", slog.String("env", cfg.Env))

	ctx := context.Background()

	store, err := storage.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	h := hub.NewHub()
	go h.Run()

	gw := gateway.New(store, h, log)

	uploadService := setupUploads(ctx, cfg, log)

	ah := authHandler.New(store, jwtManager, log)
	ch := chatsHandler.New(store, gw, log)
	mh := messagesHandler.New(store, gw, log)
	uh := uploadsHandler.New(uploadService, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Post("/api/auth/register", ah.Register())
	router.Post("/api/auth/login", ah.Login())
	router.Post("/api/auth/verify-email", ah.VerifyEmail())

	router.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(jwtManager))

		r.Post("/api/chat", ch.CreateChat())
		r.Get("/api/chat/user/{userId}", ch.GetUserChats())
		r.Get("/api/chat/{chatId}", ch.GetChat())

		r.Get("/api/chat/{chatId}/messages", mh.GetMessages())
		r.Post("/api/chat/{chatId}/messages", mh.SendMessage())

		r.Post("/api/uploads/presign-upload", uh.PresignUpload())
		r.Post("/api/uploads/presign-download", uh.PresignDownload())
	})

	// The websocket handshake authenticates itself via the session token.
	router.Get("/socket", wsHandler.WSHandler(h, gw, jwtManager, log, wsHandler.Options{
		SendRateLimit: cfg.WS.SendRateLimit,
		SendBurst:     cfg.WS.SendBurst,
	}))

	log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if err := srv.ListenAndServe(); err != nil {
		log.Error("failed to start server", sl.Err(err))
	}

	log.Error("server stopped")
}

func setupUploads(ctx context.Context, cfg *appConfig.Config, log *slog.Logger) uploads.Service {
	bucket := os.Getenv("S3_BUCKET")
	region := os.Getenv("S3_REGION")
	endpoint := os.Getenv("S3_ENDPOINT")
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		log.Error("failed to load aws config", sl.Err(err))
		os.Exit(1)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	presigner := s3.NewPresignClient(s3Client)

	return uploads.NewService(
		bucket,
		presigner,
		uploads.Policy{MaxFileSize: cfg.Uploads.MaxFileSize},
		time.Duration(cfg.Uploads.PresignTTLSec)*time.Second,
	)
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return setupPrettySlog()
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
