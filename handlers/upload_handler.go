package handlers

import (
	"bufio"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"beatspace/apperr"
	"beatspace/authz"
	"beatspace/utils"
)

const (
	maxUploadBytes = 10 << 20
	uploadField    = "file"
)

// UploadImage stores a listing photo on the image CDN and returns its URL.
// Only admins and sellers may upload.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := authz.Allow(p, authz.UploadMedia, authz.Target{}); err != nil {
		utils.RespondWithAppError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondWithAppError(w, r, apperr.New(apperr.KindValidation, "image must be at most 10MB"))
			return
		}
		utils.RespondWithAppError(w, r, apperr.Wrap(apperr.KindValidation, "invalid multipart form", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		utils.RespondWithAppError(w, r, apperr.New(apperr.KindValidation, "file field is required"))
		return
	}
	defer file.Close()
	if header.Size > maxUploadBytes {
		utils.RespondWithAppError(w, r, apperr.New(apperr.KindValidation, "image must be at most 10MB"))
		return
	}

	buffered := bufio.NewReader(file)
	head, _ := buffered.Peek(512)
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		utils.RespondWithAppError(w, r, apperr.New(apperr.KindValidation, "file must be an image"))
		return
	}

	result, err := h.uploader.Upload(r.Context(), header.Filename, buffered)
	if err == nil {
		slog.Info("image uploaded", "event", "image_uploaded", "module", "media", "user_id", p.ID, "public_id", result.PublicID)
	}
	respond(w, r, result, err)
}
