package uploads

import "strings"

// Policy bounds what a presign request may ask for.
type Policy struct {
	MaxFileSize int64
}

func (p Policy) Validate(contentType string, size int64) error {
	if _, ok := ExtForMime(contentType); !ok {
		return ErrUnsupportedContentType
	}
	if p.MaxFileSize > 0 && size > p.MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// IsImage reports whether an upload should become an IMAGE message rather
// than a FILE one.
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
