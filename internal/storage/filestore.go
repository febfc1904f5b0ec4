// Package storage keeps uploaded attachment and signature bytes on local disk.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/spec-kit/intervention-service/internal/config"
	apperrors "github.com/spec-kit/intervention-service/pkg/util/errorutil"
)

// Storage folders.
const (
	FolderAttachments = "adjuntos"
	FolderSignatures  = "firmas"
)

// ErrExecutable rejects uploads that start with a Windows or ELF executable header.
var ErrExecutable = apperrors.NewValidationError("executable files are not allowed", map[string]any{"field": "files"})

var executableMagic = [][]byte{
	[]byte("MZ"),
	{0x7f, 'E', 'L', 'F'},
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// StoredFile describes a persisted object.
type StoredFile struct {
	Key          string
	URL          string
	OriginalName string
	Size         int64
	ContentType  string
}

// FileStore is the file storage collaborator used by the HTTP layer.
type FileStore interface {
	Save(folder, originalName string, r io.Reader) (*StoredFile, error)
	Delete(key string) error
	// KeyOf returns the key of an object served by this store from url.
	KeyOf(url string) (string, bool)
}

// LocalStore writes objects under a root directory and serves them from a
// public base URL.
type LocalStore struct {
	root     string
	baseURL  string
	maxBytes int64
	now      func() time.Time
}

// NewLocalStore builds a store from config, creating the root directory.
func NewLocalStore(cfg config.StorageConfig) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{
		root:     cfg.RootDir,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxBytes: cfg.MaxUploadBytes,
		now:      time.Now,
	}, nil
}

// Save stores the bytes of r under folder and returns the object metadata.
func (s *LocalStore) Save(folder, originalName string, r io.Reader) (*StoredFile, error) {
	limit := s.maxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.NewValidationError("file exceeds the maximum upload size", map[string]any{"field": "files", "maxBytes": limit})
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("file is empty", map[string]any{"field": "files"})
	}
	for _, magic := range executableMagic {
		if bytes.HasPrefix(data, magic) {
			return nil, ErrExecutable
		}
	}

	key := path.Join(folder, fmt.Sprintf("%d-%s-%s", s.now().Unix(), uuid.NewString(), SafeName(originalName)))
	target := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return nil, fmt.Errorf("write object: %w", err)
	}

	return &StoredFile{
		Key:          key,
		URL:          s.baseURL + "/" + key,
		OriginalName: originalName,
		Size:         int64(len(data)),
		ContentType:  mimetype.Detect(data).String(),
	}, nil
}

// Delete removes an object. Missing objects are not an error.
func (s *LocalStore) Delete(key string) error {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return apperrors.NewValidationError("invalid storage key", nil)
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// KeyOf maps a URL returned by Save back to its key. URLs of other hosts or
// outside the store are rejected.
func (s *LocalStore) KeyOf(url string) (string, bool) {
	rest, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok {
		return "", false
	}
	key := strings.TrimPrefix(path.Clean("/"+rest), "/")
	if key == "" || key != rest {
		return "", false
	}
	return key, true
}

// SafeName reduces a client supplied file name to a path-safe component.
func SafeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	safe := strings.Trim(unsafeName.ReplaceAllString(base, "_"), "._")
	if safe == "" {
		return "file"
	}
	if len(safe) > 100 {
		safe = safe[len(safe)-100:]
	}
	return safe
}
