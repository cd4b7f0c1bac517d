package index

import (
	"sync"

	"github.com/packstore/packstore/pkg/domain"
	"github.com/packstore/packstore/pkg/metrics"
)

// Store is one pack's in-memory index: a mapping from entry identifier to
// index projection. It is a cache over the pack's metadata record and is
// only ever mutated by the synchronizer.
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.IndexRecord
}

func newStore(records map[string]*domain.IndexRecord) *Store {
	if records == nil {
		records = make(map[string]*domain.IndexRecord)
	}
	return &Store{records: records}
}

// Get returns a copy of the projection for an identifier.
func (s *Store) Get(id string) (*domain.IndexRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Len returns the number of indexed identifiers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Each calls fn for every indexed identifier until fn returns false.
// Iteration order is unspecified; callers sort as needed.
func (s *Store) Each(fn func(id string, rec *domain.IndexRecord) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, rec := range s.records {
		if !fn(id, rec) {
			return
		}
	}
}

// applyPatch merges a metadata merge-patch into the cached projections.
func (s *Store) applyPatch(patch map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ApplyMetaPatch(s.records, patch)
}

// replace swaps the cached projections wholesale.
func (s *Store) replace(records map[string]*domain.IndexRecord) {
	if records == nil {
		records = make(map[string]*domain.IndexRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

// Manager lazily materializes per-pack index stores from their metadata
// records and caches them for the life of the process.
type Manager struct {
	mu      sync.RWMutex
	engine  domain.Engine
	stores  map[string]*Store
	metrics *metrics.Metrics
}

// NewManager creates an index manager over the given engine.
func NewManager(engine domain.Engine, m *metrics.Metrics) *Manager {
	return &Manager{
		engine:  engine,
		stores:  make(map[string]*Store),
		metrics: m,
	}
}

// LoadIndex returns the pack's index store, building it from the persisted
// metadata record on first use. Idempotent; once cached it never re-reads
// storage (the synchronizer patches the cache in place).
func (m *Manager) LoadIndex(pack string) (*Store, error) {
	m.mu.RLock()
	store, ok := m.stores[pack]
	m.mu.RUnlock()
	if ok {
		return store, nil
	}

	meta, err := m.engine.GetDocument(pack, MetaDocumentID)
	if err != nil {
		return nil, err
	}

	records, err := DecodeMetaIndex(meta.Envelope.Payload)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have built the store while we were reading.
	if store, ok := m.stores[pack]; ok {
		return store, nil
	}
	store = newStore(records)
	m.stores[pack] = store
	m.metrics.RecordIndexLoad()
	return store, nil
}

// Cached returns the pack's store only if already materialized.
func (m *Manager) Cached(pack string) (*Store, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	store, ok := m.stores[pack]
	return store, ok
}

// IsManaged reports whether a pack carries a metadata record, checked
// against the collection's lightweight identifier index.
func (m *Manager) IsManaged(pack string) bool {
	if _, ok := m.Cached(pack); ok {
		return true
	}
	ids, err := m.engine.CollectionIDs(pack)
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == MetaDocumentID {
			return true
		}
	}
	return false
}
