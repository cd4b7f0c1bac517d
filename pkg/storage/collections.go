package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/packstore/packstore/pkg/domain"
)

// GetCollection loads a collection on-demand (lazy loading)
func (se *StorageEngine) GetCollection(collName string) (*Collection, error) {
	se.mu.RLock()
	defer se.mu.RUnlock()
	return se.getCollectionInternal(collName)
}

// getCollectionInternal contains the actual collection loading logic without locking
func (se *StorageEngine) getCollectionInternal(collName string) (*Collection, error) {
	// First check cache
	if collection, _, found := se.cache.Get(collName); found {
		return collection, nil
	}

	collectionInfo, exists := se.collections[collName]
	if !exists {
		return nil, &domain.NotFoundError{Pack: collName}
	}

	collection, err := se.loadCollectionFromDisk(collName)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", collName, err)
	}

	collectionInfo.State = CollectionStateLoaded
	collectionInfo.LastAccessed = time.Now()
	se.cache.Put(collName, collection, collectionInfo)

	return collection, nil
}

// CreateCollection creates a new collection
func (se *StorageEngine) CreateCollection(collName string) error {
	se.mu.Lock()
	defer se.mu.Unlock()

	if collName == "" {
		return fmt.Errorf("collection name cannot be empty")
	}

	if _, exists := se.collections[collName]; exists {
		return fmt.Errorf("collection %s already exists", collName)
	}

	collection := NewCollection(collName)
	info := &CollectionInfo{
		Name:          collName,
		DocumentCount: 0,
		State:         CollectionStateLoaded,
		LastModified:  time.Now(),
	}

	se.collections[collName] = info
	se.cache.Put(collName, collection, info)

	return nil
}

// HasCollection reports whether a collection exists, loaded or not.
func (se *StorageEngine) HasCollection(collName string) bool {
	se.mu.RLock()
	defer se.mu.RUnlock()
	_, exists := se.collections[collName]
	return exists
}

// CollectionIDs lists the document identifiers in a collection without
// copying document bodies. The result is sorted for determinism.
func (se *StorageEngine) CollectionIDs(collName string) ([]string, error) {
	se.mu.RLock()
	defer se.mu.RUnlock()

	collection, err := se.getCollectionInternal(collName)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(collection.Documents))
	for id := range collection.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// getOrCreateCollection returns the collection, creating it if missing.
// Caller must hold the engine write lock.
func (se *StorageEngine) getOrCreateCollection(collName string) *Collection {
	if collection, err := se.getCollectionInternal(collName); err == nil {
		return collection
	}

	collection := NewCollection(collName)
	info := &CollectionInfo{
		Name:          collName,
		DocumentCount: 0,
		State:         CollectionStateDirty,
		LastModified:  time.Now(),
	}
	se.collections[collName] = info
	se.cache.Put(collName, collection, info)
	return collection
}
