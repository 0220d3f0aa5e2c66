// Package imagestore keeps recently uploaded images in memory so AI
// providers can fetch them by URL. Entries are lost on restart.
package imagestore

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var ErrInvalidImage = errors.New("image must be a data URI or base64 string")

type Entry struct {
	Data      []byte
	MimeType  string
	CreatedAt time.Time
}

// Store is a bounded LRU with per-entry TTL. Safe for concurrent use.
type Store struct {
	cache *expirable.LRU[string, Entry]
}

func New(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = 10
	}
	return &Store{cache: expirable.NewLRU[string, Entry](capacity, nil, ttl)}
}

// Put stores data and returns its id. The least recently used entry is
// evicted once the store is full.
func (s *Store) Put(data []byte, mimeType string) string {
	id := uuid.New().String()
	s.cache.Add(id, Entry{Data: data, MimeType: mimeType, CreatedAt: time.Now().UTC()})
	return id
}

func (s *Store) Get(id string) (Entry, bool) {
	return s.cache.Get(id)
}

func (s *Store) Len() int {
	return s.cache.Len()
}

// Decode accepts a data URI or a bare base64 string. A bare string takes
// mimeType, falling back to content sniffing.
func Decode(input, mimeType string) ([]byte, string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, "", ErrInvalidImage
	}

	if rest, ok := strings.CutPrefix(input, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", ErrInvalidImage
		}
		declared, isBase64 := strings.CutSuffix(meta, ";base64")
		if !isBase64 {
			return nil, "", ErrInvalidImage
		}
		input = payload
		if declared != "" {
			mimeType = declared
		}
	}

	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return nil, "", ErrInvalidImage
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", ErrInvalidImage
	}
	return data, mimeType, nil
}
