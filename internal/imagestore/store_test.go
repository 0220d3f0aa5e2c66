package imagestore

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	store := New(3, time.Minute)

	first := store.Put([]byte("1"), "image/png")
	second := store.Put([]byte("2"), "image/png")
	store.Put([]byte("3"), "image/png")

	// Touch the first entry so the second becomes the oldest
	if _, ok := store.Get(first); !ok {
		t.Fatal("first entry missing")
	}
	store.Put([]byte("4"), "image/png")

	if store.Len() != 3 {
		t.Fatalf("Len = %d, want 3", store.Len())
	}
	if _, ok := store.Get(second); ok {
		t.Fatal("second entry should have been evicted")
	}
	if _, ok := store.Get(first); !ok {
		t.Fatal("recently used entry was evicted")
	}
}

func TestStoreExpiresEntries(t *testing.T) {
	store := New(10, 20*time.Millisecond)
	id := store.Put([]byte("x"), "image/jpeg")

	if _, ok := store.Get(id); !ok {
		t.Fatal("entry missing before ttl")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := store.Get(id); ok {
		t.Fatal("entry still present after ttl")
	}
}

func TestDecode(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	encoded := base64.StdEncoding.EncodeToString(png)

	tests := []struct {
		name     string
		input    string
		mimeType string
		wantMime string
		wantErr  bool
	}{
		{name: "data uri", input: "data:image/webp;base64," + encoded, wantMime: "image/webp"},
		{name: "bare base64 sniffed", input: encoded, wantMime: "image/png"},
		{name: "bare base64 declared", input: encoded, mimeType: "image/jpeg", wantMime: "image/jpeg"},
		{name: "not base64", input: "%%%", wantErr: true},
		{name: "non image", input: base64.StdEncoding.EncodeToString([]byte("hello")), wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mimeType, err := Decode(tt.input, tt.mimeType)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidImage) {
					t.Fatalf("err = %v, want ErrInvalidImage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if mimeType != tt.wantMime {
				t.Fatalf("mime = %q, want %q", mimeType, tt.wantMime)
			}
		})
	}
}
