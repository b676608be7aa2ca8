package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore persists uploaded objects and returns a durable URL for them.
// Delete takes a URL previously returned by Save; deleting a missing object is not an error.
type FileStore interface {
	Save(ctx context.Context, folder, ext string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// ErrForeignURL is returned when asked to delete a URL the store did not issue.
var ErrForeignURL = errors.New("storage: url not issued by this store")

// LocalStore writes objects under a directory that the HTTP server exposes at URLPrefix.
type LocalStore struct {
	Dir       string
	BaseURL   string
	URLPrefix string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/"), URLPrefix: "/uploads"}, nil
}

// Save stores r as <folder>/<uuid>-<unix><ext>.
func (s *LocalStore) Save(ctx context.Context, folder, ext string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	folder = filepath.Base(filepath.Clean("/" + folder))
	if err := os.MkdirAll(filepath.Join(s.Dir, folder), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}

	name := fmt.Sprintf("%s-%d%s", uuid.NewString(), time.Now().Unix(), ext)
	path := filepath.Join(s.Dir, folder, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close file: %w", err)
	}
	return fmt.Sprintf("%s%s/%s/%s", s.BaseURL, s.URLPrefix, folder, name), nil
}

func (s *LocalStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, ok := strings.CutPrefix(url, s.BaseURL+s.URLPrefix+"/")
	if !ok {
		return ErrForeignURL
	}
	folder, name, ok := strings.Cut(rel, "/")
	if !ok || !plainSegment(folder) || !plainSegment(name) {
		return ErrForeignURL
	}
	err := os.Remove(filepath.Join(s.Dir, folder, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func plainSegment(seg string) bool {
	return seg != "" && seg != "." && seg != ".." && seg == filepath.Base(seg)
}
