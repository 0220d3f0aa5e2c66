package model

import (
	"time"
)

const (
	FileOwnerUser     = "user"
	FileOwnerAnalysis = "analysis"
)

const (
	FileTypePhoto = "photo"
	FileTypeMorph = "morph"
)

type File struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`    // Who owns/created this file
	OwnerType   string    `db:"owner_type"` // "user" or "analysis"
	OwnerID     string    `db:"owner_id"`
	Type        string    `db:"type"`
	Filename    string    `db:"filename"`
	MimeType    string    `db:"mime_type"`
	Size        int64     `db:"size"`
	StoragePath string    `db:"storage_path"`
	CreatedAt   time.Time `db:"created_at"`
}
