package validation

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// FileConstraints defines validation rules for uploads
type FileConstraints struct {
	AllowedMimeTypes  map[string]bool
	AllowedExtensions map[string]bool
	MaxSize           int64
}

// PhotoConstraints applies to face photos and generated morphs.
var PhotoConstraints = FileConstraints{
	AllowedMimeTypes: map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
	},
	AllowedExtensions: map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".webp": true,
	},
	MaxSize: 10 << 20, // 10MB
}

// ValidateUpload checks size, sniffed content type and extension of a multipart file.
// It returns the detected content type.
func ValidateUpload(header *multipart.FileHeader, c FileConstraints) (string, error) {
	if header.Size > c.MaxSize {
		return "", fmt.Errorf("file too large: maximum size is %d MB", c.MaxSize/(1<<20))
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// http.DetectContentType looks at the first 512 bytes at most
	buffer := make([]byte, 512)
	n, err := io.ReadFull(file, buffer)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	detected := http.DetectContentType(buffer[:n])
	if !c.AllowedMimeTypes[detected] {
		return "", fmt.Errorf("invalid file type (detected: %s)", detected)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !c.AllowedExtensions[ext] {
		return "", fmt.Errorf("invalid file extension: %s", ext)
	}
	return detected, nil
}

// ValidateImageBytes checks decoded image bytes that did not come from a form,
// such as data URIs returned by image models. It returns the detected content type.
func ValidateImageBytes(data []byte, c FileConstraints) (string, error) {
	if int64(len(data)) > c.MaxSize {
		return "", fmt.Errorf("image too large: maximum size is %d MB", c.MaxSize/(1<<20))
	}
	detected := http.DetectContentType(data)
	if !c.AllowedMimeTypes[detected] {
		return "", fmt.Errorf("invalid image type (detected: %s)", detected)
	}
	return detected, nil
}
