package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"research-chat/internal/observability"
	"research-chat/internal/storage"
)

const discardTimeout = 10 * time.Second

var (
	chatFileTypes  = []string{"application/pdf"}
	groupPhotoType = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
)

// Upload is a file received from a transport.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

type checkedUpload struct {
	data []byte
	mime *mimetype.MIME
}

func (c checkedUpload) reader() io.Reader { return bytes.NewReader(c.data) }

// checkUpload reads at most maxBytes and verifies the sniffed content type.
// Rejections are counted per kind.
func checkUpload(kind string, u Upload, maxBytes int64, allowed []string) (checkedUpload, error) {
	file, err := readUpload(u, maxBytes, allowed)
	if err != nil {
		observability.IncUploadRejected(kind)
	}
	return file, err
}

func readUpload(u Upload, maxBytes int64, allowed []string) (checkedUpload, error) {
	if u.Content == nil {
		return checkedUpload{}, validationError("no file uploaded")
	}
	if maxBytes > 0 && u.Size > maxBytes {
		return checkedUpload{}, validationError(fmt.Sprintf("file exceeds limit of %d bytes", maxBytes))
	}

	r := u.Content
	if maxBytes > 0 {
		r = io.LimitReader(u.Content, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return checkedUpload{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return checkedUpload{}, validationError("file is empty")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return checkedUpload{}, validationError(fmt.Sprintf("file exceeds limit of %d bytes", maxBytes))
	}

	mime := mimetype.Detect(data)
	for _, t := range allowed {
		if mime.Is(t) {
			return checkedUpload{data: data, mime: mime}, nil
		}
	}
	return checkedUpload{}, validationError("file type not allowed, expected " + strings.Join(allowed, ", "))
}

// discardUpload removes a stored object whose message or group update was never
// persisted. It runs even when ctx is already cancelled; failures are only counted.
func discardUpload(ctx context.Context, files storage.FileStore, kind, url string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	if err := files.Delete(ctx, url); err != nil {
		observability.IncUploadOrphaned(kind)
	}
}
