package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/storage"
)

var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type FileService struct {
	fileRepo repository.FileRepository
	storage  storage.Storage
}

func NewFileService(fileRepo repository.FileRepository, storage storage.Storage) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		storage:  storage,
	}
}

// Upload is one object to store on behalf of a user.
type Upload struct {
	UserID    string
	OwnerType string
	OwnerID   string
	Type      string
	Slot      string // photo slot or morph variant; becomes part of the key
	MimeType  string
	Size      int64
	Body      io.Reader
}

// Upload stores the object and records it. The returned URL is fetchable by
// AI providers. Validation (type, size) happens in the caller.
func (s *FileService) Upload(ctx context.Context, up Upload) (*model.File, string, error) {
	filename := fmt.Sprintf("%s-%s%s", up.Slot, uuid.New().String(), mimeExtensions[up.MimeType])
	storagePath := path.Join(up.Type+"s", up.OwnerID, filename)

	if err := s.storage.Save(ctx, storagePath, up.Body, up.MimeType); err != nil {
		return nil, "", fmt.Errorf("failed to save file: %w", err)
	}

	file := &model.File{
		ID:          uuid.New().String(),
		UserID:      up.UserID,
		OwnerType:   up.OwnerType,
		OwnerID:     up.OwnerID,
		Type:        up.Type,
		Filename:    filename,
		MimeType:    up.MimeType,
		Size:        up.Size,
		StoragePath: storagePath,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.fileRepo.Create(file); err != nil {
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			slog.Error("failed to delete file from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return nil, "", fmt.Errorf("failed to create file record: %w", err)
	}

	url, err := s.storage.URL(ctx, storagePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build file url: %w", err)
	}

	slog.Info("file uploaded", "user_id", up.UserID, "type", up.Type, "slot", up.Slot, "size", up.Size)
	return file, url, nil
}

// SaveMorph stores a generated morph image for an analysis.
func (s *FileService) SaveMorph(ctx context.Context, analysis *model.Analysis, variant, mimeType string, data []byte) (string, error) {
	_, url, err := s.Upload(ctx, Upload{
		UserID:    analysis.UserID,
		OwnerType: model.FileOwnerAnalysis,
		OwnerID:   analysis.ID,
		Type:      model.FileTypeMorph,
		Slot:      variant,
		MimeType:  mimeType,
		Size:      int64(len(data)),
		Body:      bytes.NewReader(data),
	})
	return url, err
}

// Files lists the stored objects of an owner.
func (s *FileService) Files(ownerType, ownerID string) ([]*model.File, error) {
	return s.fileRepo.Files(ownerType, ownerID)
}

// Delete removes a file from storage (best effort) and the database.
func (s *FileService) Delete(ctx context.Context, fileID string) error {
	file, err := s.fileRepo.ByID(fileID)
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}

	if err := s.storage.Delete(ctx, file.StoragePath); err != nil {
		slog.Error("failed to delete file from storage", "error", err, "path", file.StoragePath)
	}

	if err := s.fileRepo.Delete(fileID); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return nil
}
