// Package gcs provides a chunk store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/JakeFAU/catalog-harvester/internal/crawler"
)

const contentType = "application/json"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// ChunkStore reads and writes chunk objects in a configured GCS bucket.
type ChunkStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed chunk store.
func New(client *storage.Client, cfg Config) (*ChunkStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &ChunkStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Get downloads the chunk object stored under name.
func (s *ChunkStore) Get(ctx context.Context, name string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.key(name)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", crawler.ErrChunkNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", s.key(name), err)
	}
	defer reader.Close() //nolint:errcheck // read-only handle
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", s.key(name), err)
	}
	return data, nil
}

// Put uploads data as the chunk object for name. GCS object writes are atomic:
// readers see either the previous generation or the new one.
func (s *ChunkStore) Put(ctx context.Context, name string, data []byte) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("chunk name is required")
	}
	writer := s.client.Bucket(s.bucket).Object(s.key(name)).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// List returns the chunk names stored under the prefix, sorted.
func (s *ChunkStore) List(ctx context.Context) ([]string, error) {
	query := &storage.Query{}
	if s.prefix != "" {
		query.Prefix = s.prefix + "/"
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, query)
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		name := strings.TrimPrefix(attrs.Name, query.Prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *ChunkStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}
