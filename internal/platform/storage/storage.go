package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
)

// MaxImageBytes is the upload limit for leg photos.
const MaxImageBytes = 10 << 20

var (
	ErrImageTooLarge = errors.New("image exceeds 10MB")
	ErrNotAnImage    = errors.New("file is not an image")
	ErrEmptyImage    = errors.New("image is empty")
)

// PhotoStore persists uploaded photos and returns a URL the analyzers and
// admins can fetch them from.
type PhotoStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// ValidateImage checks size and sniffs the content type.
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	if len(data) > MaxImageBytes {
		return "", ErrImageTooLarge
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotAnImage, ct)
	}
	return ct, nil
}

// PhotoKey builds the object key for a session photo.
func PhotoKey(sessionID, contentType string) string {
	return path.Join("photos", sessionID+extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	default:
		return ""
	}
}
