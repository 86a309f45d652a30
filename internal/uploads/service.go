package uploads

import "context"

// Service hands out short-lived presigned S3 URLs so attachment bytes never
// pass through the chat server; the message row only carries the resulting
// file URL.
type Service interface {
	PresignUpload(ctx context.Context, filename, contentType string, size int64) (key, url string, err error)
	PresignDownload(ctx context.Context, key string) (url string, err error)
}
