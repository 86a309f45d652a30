package uploadsHandler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	resp "github.com/kgellert/teamchat/internal/lib/api/response"
	"github.com/kgellert/teamchat/internal/lib/logger/sl"
	"github.com/kgellert/teamchat/internal/uploads"
)

type UploadsHandler struct {
	Service uploads.Service
	Log     *slog.Logger
}

func New(service uploads.Service, log *slog.Logger) *UploadsHandler {
	return &UploadsHandler{Service: service, Log: log}
}

type PresignUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type PresignUploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type PresignDownloadRequest struct {
	Key string `json:"key"`
}

type PresignDownloadResponse struct {
	URL string `json:"url"`
}

func (h *UploadsHandler) PresignUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.PresignUpload"

		log := h.Log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req PresignUploadRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid body"))
			return
		}

		key, url, err := h.Service.PresignUpload(r.Context(), req.Filename, req.ContentType, req.Size)
		if err != nil {
			if errors.Is(err, uploads.ErrUnsupportedContentType) ||
				errors.Is(err, uploads.ErrExtensionMismatch) ||
				errors.Is(err, uploads.ErrFileTooLarge) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error(err.Error()))
				return
			}
			log.Error("failed to presign upload", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to presign upload"))
			return
		}

		render.JSON(w, r, resp.OK(PresignUploadResponse{Key: key, URL: url}, ""))
	}
}

func (h *UploadsHandler) PresignDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.PresignDownload"

		log := h.Log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req PresignDownloadRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil || req.Key == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid body"))
			return
		}

		url, err := h.Service.PresignDownload(r.Context(), req.Key)
		if err != nil {
			log.Error("failed to presign download", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to presign download"))
			return
		}

		render.JSON(w, r, resp.OK(PresignDownloadResponse{URL: url}, ""))
	}
}
