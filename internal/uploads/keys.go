package uploads

import (
	"path/filepath"

	"github.com/google/uuid"
)

var extByMime = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"application/zip": ".zip",
}

func ExtForMime(contentType string) (string, bool) {
	ext, ok := extByMime[contentType]
	return ext, ok
}

// GenerateKey builds a unique object key for an upload. The original filename
// only contributes its extension, which must agree with the declared mime.
func GenerateKey(filename, contentType string) (string, error) {
	ext, ok := ExtForMime(contentType)
	if !ok {
		return "", ErrUnsupportedContentType
	}

	if filename != "" {
		fExt := filepath.Ext(filename)
		if fExt != "" && fExt != ext {
			return "", ErrExtensionMismatch
		}
	}

	return "attachments/" + uuid.NewString() + ext, nil
}
