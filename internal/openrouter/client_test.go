package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func serveChoices(t *testing.T, message map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("Authorization = %q", got)
		}
		payload := map[string]any{
			"choices": []any{map[string]any{"message": message, "finish_reason": "stop"}},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAnalyzeImageSendsMultimodalMessage(t *testing.T) {
	var captured Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		captured.Model = raw.Model
		if len(raw.Messages) != 2 {
			t.Fatalf("messages = %d, want 2", len(raw.Messages))
		}
		var parts []ContentPart
		if err := json.Unmarshal(raw.Messages[1].Content, &parts); err != nil {
			t.Fatalf("user content is not parts: %v", err)
		}
		if len(parts) != 2 || parts[1].Type != "image_url" || parts[1].ImageURL.URL != "https://img.example.com/a.jpg" {
			t.Fatalf("unexpected parts: %+v", parts)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"score\":7}"}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	text, err := client.AnalyzeImage(context.Background(), "demo", "system", "describe", "https://img.example.com/a.jpg")
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if captured.Model != "demo" {
		t.Fatalf("model = %q", captured.Model)
	}
	var parsed struct {
		Score int `json:"score"`
	}
	if err := DecodeJSON(text, &parsed); err != nil || parsed.Score != 7 {
		t.Fatalf("DecodeJSON = %+v, %v", parsed, err)
	}
}

func TestCompleteReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.AnalyzeImage(context.Background(), "demo", "s", "u", "https://img.example.com/a.jpg")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || statusErr.Body != "upstream down" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestCompleteRetriesWhenConfigured(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL},
		WithRetryMaxAttempts(2),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	resp, err := client.Complete(context.Background(), Request{Model: "demo"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text() != "ok" || calls.Load() != 2 || len(slept) != 1 {
		t.Fatalf("text=%q calls=%d sleeps=%v", resp.Text(), calls.Load(), slept)
	}
}

func TestCompleteDefaultsToSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	if _, err := client.Complete(context.Background(), Request{Model: "demo"}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Complete(context.Background(), Request{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestGenerateImageFromMessageImages(t *testing.T) {
	server := serveChoices(t, map[string]any{
		"content": "Here is your image",
		"images": []any{
			map[string]any{"type": "image_url", "image_url": map[string]any{"url": "data:image/png;base64,aGVsbG8="}},
		},
	})

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	img, err := client.GenerateImage(context.Background(), "img-model", "enhance", "https://img.example.com/a.jpg")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if img.Shape != ShapeMessageImages || !img.IsDataURI() {
		t.Fatalf("image = %+v", img)
	}
}

func TestExtractImageShapes(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    ImageShape
		url     string
	}{
		{
			name:    "content part",
			message: `{"content":[{"type":"text","text":"done"},{"type":"image_url","image_url":{"url":"https://cdn.example.com/m.png"}}]}`,
			want:    ShapeContentPart,
			url:     "https://cdn.example.com/m.png",
		},
		{
			name:    "data uri text",
			message: `{"content":"data:image/jpeg;base64,/9j/AA=="}`,
			want:    ShapeDataURI,
			url:     "data:image/jpeg;base64,/9j/AA==",
		},
		{
			name:    "remote url text",
			message: `{"content":"  https://cdn.example.com/x.webp  "}`,
			want:    ShapeRemoteURL,
			url:     "https://cdn.example.com/x.webp",
		},
		{
			name:    "markdown image",
			message: `{"content":"Result:\n![morph](https://cdn.example.com/y.png)"}`,
			want:    ShapeMarkdown,
			url:     "https://cdn.example.com/y.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp Response
			if err := json.Unmarshal([]byte(`{"choices":[{"message":`+tt.message+`}]}`), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			img, err := ExtractImage(&resp)
			if err != nil {
				t.Fatalf("ExtractImage: %v", err)
			}
			if img.Shape != tt.want || img.URL != tt.url {
				t.Fatalf("got %+v, want %s %s", img, tt.want, tt.url)
			}
		})
	}
}

func TestExtractImageFailsLoudly(t *testing.T) {
	var resp Response
	body := `{"choices":[{"message":{"content":"I cannot edit photos of people, but see https://cdn.example.com/x.png"}}]}`
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	_, err := ExtractImage(&resp)
	if !errors.Is(err, ErrNoImage) {
		t.Fatalf("err = %v, want ErrNoImage", err)
	}
}

func TestDecodeDataURI(t *testing.T) {
	mimeType, data, err := DecodeDataURI("data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if mimeType != "image/png" || string(data) != "hello" {
		t.Fatalf("got %q %q", mimeType, data)
	}
	if _, _, err := DecodeDataURI("https://example.com/a.png"); err == nil {
		t.Fatal("expected error for non data URI")
	}
}

func TestDecodeJSONCodeFence(t *testing.T) {
	var out map[string]any
	if err := DecodeJSON("```json\n{\"ok\":true}\n```", &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("out = %v", out)
	}
	if err := DecodeJSON("no json here", &out); err == nil || !strings.Contains(err.Error(), "snippet") {
		t.Fatalf("err = %v, want snippet error", err)
	}
}
