package uploads

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
)

const (
	headerContentType  = "Content-Type"
	headerOriginalName = "Original-Name"
	headerUploadedAt   = "Uploaded-At"

	defaultContentType = "application/octet-stream"
)

// Service stores uploads in an fs-jetstream bucket. Objects are named
// "<unix-millis><ext>" and served from PublicPrefix.
type Service struct {
	bucket fsjetstream.FileStoragePort
	mu     sync.Mutex // serializes name allocation
	now    func() time.Time
}

// NewService creates a new upload service over bucket.
func NewService(bucket fsjetstream.FileStoragePort) *Service {
	return &Service{bucket: bucket, now: time.Now}
}

// Store saves data under a fresh timestamp name and returns its public path.
func (s *Service) Store(ctx context.Context, originalName string, data []byte) (*Blob, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	mtype := mimetype.Detect(data)
	ext := strings.ToLower(filepath.Ext(sanitizeFilename(originalName)))
	if ext == "" {
		ext = mtype.Extension()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.allocateName(ext)
	if err != nil {
		return nil, err
	}

	uploadedAt := s.now()
	info, err := s.bucket.Put(ctx, name, data,
		fsjetstream.WithDescription(fmt.Sprintf("Upload: %s", originalName)),
		fsjetstream.WithHeaders(map[string]string{
			headerContentType:  mtype.String(),
			headerOriginalName: originalName,
			headerUploadedAt:   uploadedAt.Format(time.RFC3339),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	return &Blob{
		Name:         name,
		Path:         PublicPrefix + name,
		OriginalName: originalName,
		Size:         int64(info.Size),
		ContentType:  mtype.String(),
		Digest:       info.Digest,
		CreatedAt:    info.ModTime,
	}, nil
}

// allocateName picks the first unused "<millis><ext>" name at or after now.
func (s *Service) allocateName(ext string) (string, error) {
	millis := s.now().UnixMilli()
	for {
		name := fmt.Sprintf("%d%s", millis, ext)
		_, err := s.find(name)
		if errors.Is(err, ErrBlobNotFound) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
		millis++
	}
}

// Open returns the bytes and metadata of a stored upload.
func (s *Service) Open(_ context.Context, name string) ([]byte, *Blob, error) {
	if err := validateName(name); err != nil {
		return nil, nil, err
	}

	obj, err := s.find(name)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.bucket.Get(obj.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}

	return data, buildBlob(obj), nil
}

// List returns metadata for every stored upload.
func (s *Service) List(_ context.Context) ([]Blob, error) {
	objects, err := s.bucket.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}

	blobs := make([]Blob, 0, len(objects))
	for i := range objects {
		blobs = append(blobs, *buildBlob(&objects[i]))
	}
	return blobs, nil
}

func (s *Service) find(name string) (*fsjetstream.ObjectInfo, error) {
	objects, err := s.bucket.List(fsjetstream.WithPrefix(name))
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	for i := range objects {
		if objects[i].Name == name {
			return &objects[i], nil
		}
	}
	return nil, ErrBlobNotFound
}

func buildBlob(obj *fsjetstream.ObjectInfo) *Blob {
	contentType := obj.Headers[headerContentType]
	if contentType == "" {
		contentType = defaultContentType
	}
	return &Blob{
		Name:         obj.Name,
		Path:         PublicPrefix + obj.Name,
		OriginalName: obj.Headers[headerOriginalName],
		Size:         int64(obj.Size),
		ContentType:  contentType,
		Digest:       obj.Digest,
		CreatedAt:    obj.ModTime,
	}
}

// sanitizeFilename removes path separators and dangerous characters from filename.
func sanitizeFilename(filename string) string {
	clean := filepath.Base(filepath.Clean(filename))
	clean = strings.ReplaceAll(clean, "/", "_")
	clean = strings.ReplaceAll(clean, "\\", "_")
	if clean == "." || clean == ".." || clean == "" {
		return "unnamed"
	}
	return clean
}

func validateName(name string) error {
	if name == "" || name != sanitizeFilename(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
