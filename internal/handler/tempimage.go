package handler

import (
	"net/http"
	"strconv"

	"github.com/parallelhq/parallel/internal/imagestore"
	"github.com/parallelhq/parallel/internal/validation"
)

// TempImageHandler serves images held briefly in memory so AI providers can
// fetch them by URL.
type TempImageHandler struct {
	store  *imagestore.Store
	appURL string
}

func NewTempImageHandler(store *imagestore.Store, appURL string) *TempImageHandler {
	return &TempImageHandler{store: store, appURL: appURL}
}

type tempImageRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
}

func (h *TempImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req tempImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, _, err := imagestore.Decode(req.Image, req.MimeType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Served back under the sniffed type, never the declared one.
	mimeType, err := validation.ValidateImageBytes(data, validation.PhotoConstraints)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := h.store.Put(data, mimeType)
	writeJSON(w, http.StatusOK, map[string]string{
		"id":  id,
		"url": h.appURL + "/api/temp-image/" + id,
	})
}

func (h *TempImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "image not found or expired")
		return
	}

	w.Header().Set("Content-Type", entry.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(entry.Data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(entry.Data)
}
