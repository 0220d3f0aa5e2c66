package handler

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/parallelhq/parallel/internal/ctxkeys"
	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/service"
	"github.com/parallelhq/parallel/internal/validation"
)

type UploadHandler struct {
	fileService *service.FileService
}

func NewUploadHandler(fileService *service.FileService) *UploadHandler {
	return &UploadHandler{fileService: fileService}
}

// Photo stores one of the user's face photos. It expects a multipart form with
// "file" and "slot" (front, left, right, smile, skin or hairline) and answers
// with the stored object's URL. Routes decide who may upload.
func (h *UploadHandler) Photo(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, validation.PhotoConstraints.MaxSize+(1<<20))
	if err := r.ParseMultipartForm(validation.PhotoConstraints.MaxSize); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	slot := r.FormValue("slot")
	if !slices.Contains(model.PhotoSlots, slot) {
		writeError(w, http.StatusBadRequest, "slot must be one of front, left, right, smile, skin, hairline")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Error("failed to close file", "error", closeErr)
		}
	}()

	mimeType, err := validation.ValidateUpload(header, validation.PhotoConstraints)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, url, err := h.fileService.Upload(r.Context(), service.Upload{
		UserID:    user.ID,
		OwnerType: model.FileOwnerUser,
		OwnerID:   user.ID,
		Type:      model.FileTypePhoto,
		Slot:      slot,
		MimeType:  mimeType,
		Size:      header.Size,
		Body:      file,
	})
	if err != nil {
		slog.Error("failed to upload photo", "error", err, "user_id", user.ID, "slot", slot)
		writeError(w, http.StatusInternalServerError, "failed to upload photo")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"fileId": stored.ID,
		"slot":   slot,
		"url":    url,
	})
}
