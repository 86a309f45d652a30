package uploads

import "errors"

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrExtensionMismatch      = errors.New("file extension does not match content type")
	ErrFileTooLarge           = errors.New("file too large")
)
