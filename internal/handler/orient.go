package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/parallelhq/parallel/internal/orient"
)

type OrientHandler struct {
	orienter *orient.Orienter
}

func NewOrientHandler(orienter *orient.Orienter) *OrientHandler {
	return &OrientHandler{orienter: orienter}
}

// Orient returns the photo at ?url= as an upright JPEG.
func (h *OrientHandler) Orient(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := orient.Request{
		URL:    q.Get("url"),
		RefURL: q.Get("ref"),
	}
	if v := q.Get("preferPortrait"); v != "" {
		prefer, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "preferPortrait must be true or false")
			return
		}
		req.PreferPortrait = prefer
	}
	if v := q.Get("rotate"); v != "" {
		degrees, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, orient.ErrInvalidRotation.Error())
			return
		}
		req.Rotate = &degrees
	}

	data, err := h.orienter.Orient(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, orient.ErrInvalidURL), errors.Is(err, orient.ErrInvalidRotation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, orient.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, orient.ErrDecode):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			slog.Error("orient failed", "error", err)
			writeError(w, http.StatusBadGateway, "failed to fetch image")
		}
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
