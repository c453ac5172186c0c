// Package checkpoint persists harvested records in fixed-size chunks of the ID
// space, keeping at most one chunk resident in memory.
//
// A chunk covers IDs [index*size, (index+1)*size) and is stored as one JSON
// object through a crawler.ChunkStore. Switching to another chunk first
// flushes the resident one if it holds unflushed mutations, so nothing put
// into the store is lost across a chunk boundary.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-harvester/internal/catalog"
	"github.com/JakeFAU/catalog-harvester/internal/crawler"
)

const chunkNameFormat = "chunk-%08d.json"

// ChunkName returns the storage name of the chunk with the given index.
func ChunkName(index uint64) string {
	return fmt.Sprintf(chunkNameFormat, index)
}

// ParseChunkName extracts the chunk index from a storage name.
func ParseChunkName(name string) (uint64, bool) {
	var index uint64
	if _, err := fmt.Sscanf(name, chunkNameFormat, &index); err != nil {
		return 0, false
	}
	return index, ChunkName(index) == name
}

type chunk struct {
	index   uint64
	records catalog.Chunk
	dirty   bool
}

// Store maps catalog IDs to records. It is not safe for concurrent use.
type Store struct {
	backend   crawler.ChunkStore
	chunkSize uint64
	observer  crawler.Observer
	logger    *zap.Logger
	resident  *chunk
}

// New constructs a Store over backend.
func New(backend crawler.ChunkStore, chunkSize uint64, observer crawler.Observer, logger *zap.Logger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("chunk backend is required")
	}
	if chunkSize == 0 {
		return nil, fmt.Errorf("chunk size must be > 0")
	}
	if observer == nil {
		observer = crawler.NopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:   backend,
		chunkSize: chunkSize,
		observer:  observer,
		logger:    logger,
	}, nil
}

// ChunkIndex returns the index of the chunk owning id.
func (s *Store) ChunkIndex(id uint64) uint64 {
	return id / s.chunkSize
}

// Contains reports whether id has been recorded, as an item or a tombstone.
func (s *Store) Contains(ctx context.Context, id uint64) (bool, error) {
	c, err := s.ensure(ctx, id)
	if err != nil {
		return false, err
	}
	_, ok := c.records[id]
	return ok, nil
}

// Get returns the record stored for id.
func (s *Store) Get(ctx context.Context, id uint64) (catalog.Record, bool, error) {
	c, err := s.ensure(ctx, id)
	if err != nil {
		return catalog.Record{}, false, err
	}
	rec, ok := c.records[id]
	return rec, ok, nil
}

// Put inserts or overwrites the record for id. The change is held in memory
// until the next Flush or chunk switch.
func (s *Store) Put(ctx context.Context, id uint64, rec catalog.Record) error {
	c, err := s.ensure(ctx, id)
	if err != nil {
		return err
	}
	c.records[id] = rec
	c.dirty = true
	return nil
}

// Flush writes the resident chunk to the backend, replacing its previous
// contents. It is a no-op when the resident chunk has no unflushed changes.
func (s *Store) Flush(ctx context.Context) error {
	c := s.resident
	if c == nil || !c.dirty {
		return nil
	}
	start := time.Now()
	data, err := json.Marshal(c.records)
	if err != nil {
		return fmt.Errorf("encode chunk %d: %w", c.index, err)
	}
	name := ChunkName(c.index)
	if err := s.backend.Put(ctx, name, data); err != nil {
		return fmt.Errorf("write chunk %s: %w", name, err)
	}
	c.dirty = false
	s.observer.ObserveChunkFlush(time.Since(start))
	s.logger.Debug("chunk saved",
		zap.String("chunk", name),
		zap.Int("records", len(c.records)),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Close flushes and releases the resident chunk.
func (s *Store) Close(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	s.resident = nil
	return nil
}

// ForEach flushes pending changes and then visits every persisted record in
// ascending ID order.
func (s *Store) ForEach(ctx context.Context, fn func(id uint64, rec catalog.Record) error) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	names, err := s.backend.List(ctx)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	indexes := make([]uint64, 0, len(names))
	for _, name := range names {
		index, ok := ParseChunkName(name)
		if !ok {
			s.logger.Warn("ignoring unexpected object in chunk store", zap.String("name", name))
			continue
		}
		indexes = append(indexes, index)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	for _, index := range indexes {
		records, _, err := s.read(ctx, index)
		if err != nil {
			return err
		}
		ids := make([]uint64, 0, len(records))
		for id := range records {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			if err := fn(id, records[id]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) ensure(ctx context.Context, id uint64) (*chunk, error) {
	index := s.ChunkIndex(id)
	if s.resident != nil && s.resident.index == index {
		return s.resident, nil
	}
	if err := s.Close(ctx); err != nil {
		return nil, err
	}
	records, found, err := s.read(ctx, index)
	if err != nil {
		return nil, err
	}
	s.observer.ObserveChunkLoad(found)
	s.logger.Debug("chunk loaded",
		zap.String("chunk", ChunkName(index)),
		zap.Bool("found", found),
		zap.Int("records", len(records)),
	)
	s.resident = &chunk{index: index, records: records}
	return s.resident, nil
}

func (s *Store) read(ctx context.Context, index uint64) (catalog.Chunk, bool, error) {
	name := ChunkName(index)
	data, err := s.backend.Get(ctx, name)
	if errors.Is(err, crawler.ErrChunkNotFound) {
		return catalog.Chunk{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read chunk %s: %w", name, err)
	}
	records := catalog.Chunk{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("decode chunk %s: %w", name, err)
	}
	for id := range records {
		if s.ChunkIndex(id) != index {
			return nil, false, fmt.Errorf("chunk %s holds foreign id %d", name, id)
		}
	}
	return records, true, nil
}
