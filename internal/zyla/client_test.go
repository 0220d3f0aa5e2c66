package zyla

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnalyzeUnwrapsResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["image"] != "https://img.example.com/skin.jpg" {
			t.Errorf("image = %q", body["image"])
		}
		_, _ = w.Write([]byte(`{"error_code":0,"result":{"skin_age":{"value":27}}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL})
	res, err := client.Analyze(context.Background(), "https://img.example.com/skin.jpg")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if string(res.Skin) != `{"skin_age":{"value":27}}` {
		t.Fatalf("skin = %s", res.Skin)
	}
}

func TestAnalyzeStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL})
	_, err := client.Analyze(context.Background(), "https://img.example.com/skin.jpg")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyzeRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}).Analyze(context.Background(), "https://x"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v", err)
	}
}
