package docstore

import (
	"context"
	"strconv"
	"sync"

	"pixelgrid/internal/domain/grid"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"
)

// MemoryStore keeps the encoded document in process memory. Going through the codec keeps
// stored snapshots isolated from callers and matches the persistent drivers byte for byte.
type MemoryStore struct {
	codec *Codec

	mu      sync.Mutex
	data    []byte
	version int64
}

func NewMemoryStore(codec *Codec) *MemoryStore {
	return &MemoryStore{codec: codec}
}

func (s *MemoryStore) Read(_ context.Context) (*grid.Document, shared.Version, error) {
	s.mu.Lock()
	data, version := s.data, s.version
	s.mu.Unlock()

	doc, err := s.codec.Decode(data)
	if err != nil {
		return nil, shared.NoVersion, err
	}
	return doc, memoryVersion(version), nil
}

func (s *MemoryStore) Write(_ context.Context, doc *grid.Document, expected shared.Version) (shared.Version, error) {
	data, err := s.codec.Encode(doc)
	if err != nil {
		return shared.NoVersion, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if memoryVersion(s.version) != expected {
		return shared.NoVersion, errs.Wrapf(shared.ErrVersionConflict, "expected %q, have %q", expected, memoryVersion(s.version))
	}
	s.data = data
	s.version++
	return memoryVersion(s.version), nil
}

// Seed replaces the stored payload unconditionally; used to load legacy documents.
func (s *MemoryStore) Seed(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.version++
}

func memoryVersion(v int64) shared.Version {
	if v == 0 {
		return shared.NoVersion
	}
	return shared.Version(strconv.FormatInt(v, 10))
}
