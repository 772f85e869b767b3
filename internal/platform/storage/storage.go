// Package storage uploads documents to object storage buckets. The HTTP
// implementation speaks the Supabase Storage REST contract; the in-memory one
// backs development and tests.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/platform/apperr"
)

var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFile        = errors.New("file is required")
)

// MaxFileSize is the maximum accepted upload (5 MB).
const MaxFileSize = 5 * 1024 * 1024

// AllowedContentTypes lists the document formats accepted for uploads.
var AllowedContentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

// BucketStore stores objects in named buckets and returns their public URL.
type BucketStore interface {
	Upload(ctx context.Context, bucket, objectPath, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, bucket, objectPath string) error
}

// File is a validated upload held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ValidateUpload checks size and content type. The declared type is ignored
// in favour of the sniffed one when they disagree.
func ValidateUpload(name string, data []byte) (*File, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %w: %s is empty", apperr.ErrValidation, ErrMissingFile, name)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %w: %s", apperr.ErrValidation, ErrFileTooLarge, name)
	}
	ct := http.DetectContentType(data)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	if _, ok := AllowedContentTypes[ct]; !ok {
		return nil, fmt.Errorf("%w: %w: %s (%s)", apperr.ErrValidation, ErrInvalidContentType, name, ct)
	}
	return &File{Name: name, ContentType: ct, Data: data}, nil
}

// ReadMultipart opens and validates a multipart file part. A nil header means
// the field was absent.
func ReadMultipart(field string, fh *multipart.FileHeader) (*File, error) {
	if fh == nil {
		return nil, fmt.Errorf("%w: %w: %s", apperr.ErrValidation, ErrMissingFile, field)
	}
	if fh.Size > MaxFileSize {
		return nil, fmt.Errorf("%w: %w: %s", apperr.ErrValidation, ErrFileTooLarge, field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", field, err)
	}
	return ValidateUpload(field, data)
}

// ObjectPath builds prefix/<uuid><ext>, taking the extension from the
// content type so client file names never reach the bucket.
func ObjectPath(prefix, contentType string) string {
	ext := AllowedContentTypes[contentType]
	return path.Join(prefix, uuid.NewString()+ext)
}

// PathFromURL recovers the object path from a URL returned by Upload. Both
// stores place the bucket name directly before the path.
func PathFromURL(bucket, url string) (string, bool) {
	marker := "/" + bucket + "/"
	i := strings.Index(url, marker)
	if i < 0 || i+len(marker) == len(url) {
		return "", false
	}
	return url[i+len(marker):], true
}

// Put uploads a validated file.
func Put(ctx context.Context, s BucketStore, bucket, objectPath string, f *File) (string, error) {
	return s.Upload(ctx, bucket, objectPath, f.ContentType, bytes.NewReader(f.Data))
}

// HTTPBucketStore talks to a Supabase-compatible storage API.
type HTTPBucketStore struct {
	BaseURL    string
	ServiceKey string
	Client     *http.Client
}

func NewHTTPBucketStore(baseURL, serviceKey string) *HTTPBucketStore {
	return &HTTPBucketStore{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ServiceKey: serviceKey,
		Client:     &http.Client{},
	}
}

// PublicURL returns the public address of an object.
func (s *HTTPBucketStore) PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.BaseURL, bucket, objectPath)
}

func (s *HTTPBucketStore) Upload(ctx context.Context, bucket, objectPath, contentType string, r io.Reader) (string, error) {
	url := fmt.Sprintf("%s/object/%s/%s", s.BaseURL, bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.ServiceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	if err := s.do(req); err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", bucket, objectPath, err)
	}
	return s.PublicURL(bucket, objectPath), nil
}

func (s *HTTPBucketStore) Delete(ctx context.Context, bucket, objectPath string) error {
	body := fmt.Sprintf(`{"prefixes":[%q]}`, objectPath)
	url := fmt.Sprintf("%s/object/%s", s.BaseURL, bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.ServiceKey)
	req.Header.Set("Content-Type", "application/json")

	if err := s.do(req); err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

func (s *HTTPBucketStore) do(req *http.Request) error {
	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrObjectNotFound
	}
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: storage returned %d: %s", apperr.ErrUpstream, resp.StatusCode, snippet)
	}
	return nil
}

// MemoryBucketStore keeps objects in a map.
type MemoryBucketStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	BaseURL string
}

type memObject struct {
	contentType string
	data        []byte
}

func NewMemoryBucketStore() *MemoryBucketStore {
	return &MemoryBucketStore{objects: make(map[string]memObject), BaseURL: "memory://storage"}
}

func (s *MemoryBucketStore) Upload(_ context.Context, bucket, objectPath, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[path.Join(bucket, objectPath)] = memObject{contentType: contentType, data: data}
	s.mu.Unlock()
	return fmt.Sprintf("%s/%s/%s", s.BaseURL, bucket, objectPath), nil
}

func (s *MemoryBucketStore) Delete(_ context.Context, bucket, objectPath string) error {
	key := path.Join(bucket, objectPath)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

// Get returns the stored bytes and content type.
func (s *MemoryBucketStore) Get(bucket, objectPath string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[path.Join(bucket, objectPath)]
	return o.data, o.contentType, ok
}

// Len returns the number of stored objects.
func (s *MemoryBucketStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
