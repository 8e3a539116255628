package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage is an interface for reading/writing pipeline artifacts
// Supports both local filesystem and S3
type Storage interface {
	// ReadFile reads a file
	ReadFile(path string) ([]byte, error)

	// WriteFile writes a file, replacing any previous content
	WriteFile(path string, data []byte) error

	// Stat reports whether a file exists and its size in bytes
	Stat(path string) (size int64, exists bool, err error)

	// Remove deletes a file. Removing a missing file is not an error.
	Remove(path string) error

	// IsS3 returns true if this is S3 storage
	IsS3() bool
}

// LocalStorage implements Storage for local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage backend. An empty basePath
// leaves paths untouched.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

func (s *LocalStorage) fullPath(path string) string {
	if s.basePath == "" {
		return path
	}
	return filepath.Join(s.basePath, path)
}

func (s *LocalStorage) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(s.fullPath(path))
}

func (s *LocalStorage) WriteFile(path string, data []byte) error {
	fullPath := s.fullPath(path)
	// Ensure directory exists
	if dir := filepath.Dir(fullPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(fullPath, data, 0644)
}

func (s *LocalStorage) Stat(path string) (int64, bool, error) {
	info, err := os.Stat(s.fullPath(path))
	if err == nil {
		return info.Size(), true, nil
	}
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	return 0, false, err
}

func (s *LocalStorage) Remove(path string) error {
	err := os.Remove(s.fullPath(path))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalStorage) IsS3() bool {
	return false
}

// S3Storage implements Storage for AWS S3. Paths are object keys
// relative to the bucket.
type S3Storage struct {
	bucket     string
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	ctx        context.Context
}

// NewS3Storage creates a new S3 storage backend for one bucket
func NewS3Storage(ctx context.Context, bucket string) (*S3Storage, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &S3Storage{
		bucket:     bucket,
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		ctx:        ctx,
	}, nil
}

func (s *S3Storage) ReadFile(key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer([]byte{})
	_, err := s.downloader.Download(s.ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, key, err)
	}

	return buf.Bytes(), nil
}

func (s *S3Storage) WriteFile(key string, data []byte) error {
	_, err := s.uploader.Upload(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", s.bucket, key, err)
	}

	return nil
}

func (s *S3Storage) Stat(key string) (int64, bool, error) {
	out, err := s.client.HeadObject(s.ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	return aws.ToInt64(out.ContentLength), true, nil
}

func (s *S3Storage) Remove(key string) error {
	_, err := s.client.DeleteObject(s.ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Storage) IsS3() bool {
	return true
}

func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404")
}

// S3URI represents a parsed S3 URI
type S3URI struct {
	Bucket string
	Key    string
}

// ParseS3URI parses an S3 URI like s3://bucket/path/to/object
func ParseS3URI(uri string) (*S3URI, error) {
	if !IsS3URI(uri) {
		return nil, fmt.Errorf("invalid S3 URI: %s (must start with s3://)", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "s3://"), "/", 2)
	if parts[0] == "" {
		return nil, fmt.Errorf("invalid S3 URI: %s (missing bucket name)", uri)
	}
	if len(parts) == 1 || parts[1] == "" {
		return nil, fmt.Errorf("invalid S3 URI: %s (missing object key)", uri)
	}

	return &S3URI{Bucket: parts[0], Key: parts[1]}, nil
}

// IsS3URI checks if a path is an S3 URI
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// Router picks the storage backend for a path: s3:// URIs go to S3, everything
// else to the local filesystem. S3 backends are created lazily, one per bucket.
type Router struct {
	ctx     context.Context
	local   *LocalStorage
	buckets map[string]*S3Storage
}

// NewRouter creates a router. ctx is used for all S3 requests.
func NewRouter(ctx context.Context) *Router {
	return &Router{
		ctx:     ctx,
		local:   NewLocalStorage(""),
		buckets: make(map[string]*S3Storage),
	}
}

// Resolve returns the backend for path and the path relative to it.
func (r *Router) Resolve(path string) (Storage, string, error) {
	if !IsS3URI(path) {
		return r.local, path, nil
	}

	uri, err := ParseS3URI(path)
	if err != nil {
		return nil, "", err
	}

	backend, ok := r.buckets[uri.Bucket]
	if !ok {
		backend, err = NewS3Storage(r.ctx, uri.Bucket)
		if err != nil {
			return nil, "", err
		}
		r.buckets[uri.Bucket] = backend
	}
	return backend, uri.Key, nil
}

// WriteFile writes data to path on the resolved backend
func (r *Router) WriteFile(path string, data []byte) error {
	s, p, err := r.Resolve(path)
	if err != nil {
		return err
	}
	return s.WriteFile(p, data)
}

// ReadFile reads path from the resolved backend
func (r *Router) ReadFile(path string) ([]byte, error) {
	s, p, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}
	return s.ReadFile(p)
}

// Stat stats path on the resolved backend
func (r *Router) Stat(path string) (int64, bool, error) {
	s, p, err := r.Resolve(path)
	if err != nil {
		return 0, false, err
	}
	return s.Stat(p)
}

// Remove removes path from the resolved backend
func (r *Router) Remove(path string) error {
	s, p, err := r.Resolve(path)
	if err != nil {
		return err
	}
	return s.Remove(p)
}
