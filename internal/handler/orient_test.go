package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/parallelhq/parallel/internal/orient"
)

func TestOrientHandler(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/landscape.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes(t, 40, 20))
	})
	mux.HandleFunc("/garbage.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not an image"))
	})
	images := httptest.NewServer(mux)
	t.Cleanup(images.Close)

	h := NewOrientHandler(orient.New(1<<20, 5*time.Second))

	tests := []struct {
		name   string
		query  url.Values
		status int
	}{
		{"missing url", url.Values{}, http.StatusBadRequest},
		{"bad preferPortrait", url.Values{"url": {images.URL + "/landscape.png"}, "preferPortrait": {"maybe"}}, http.StatusBadRequest},
		{"bad rotate", url.Values{"url": {images.URL + "/landscape.png"}, "rotate": {"45"}}, http.StatusBadRequest},
		{"undecodable", url.Values{"url": {images.URL + "/garbage.png"}}, http.StatusUnprocessableEntity},
		{"portrait", url.Values{"url": {images.URL + "/landscape.png"}, "preferPortrait": {"true"}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Orient(rec, httptest.NewRequest(http.MethodGet, "/api/orient?"+tt.query.Encode(), nil))
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
				t.Fatalf("expected image/jpeg, got %q", ct)
			}
			img, err := imaging.Decode(bytes.NewReader(rec.Body.Bytes()))
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if size := img.Bounds().Size(); size.X >= size.Y {
				t.Fatalf("expected portrait output, got %v", size)
			}
		})
	}
}
