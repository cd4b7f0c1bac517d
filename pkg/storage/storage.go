package storage

import (
	"sync"
	"time"

	"github.com/packstore/packstore/pkg/domain"
)

// CollectionLock provides per-collection concurrency control
type CollectionLock struct {
	mu     sync.RWMutex
	saving bool // Track if collection is being saved
}

// StorageEngine is the in-memory document engine with LRU caching, lazy
// loading and file persistence. It implements domain.Engine.
type StorageEngine struct {
	domain.ObserverHub

	mu          sync.RWMutex
	cache       *LRUCache
	collections map[string]*CollectionInfo // Collection metadata (always in memory)

	// Per-collection locks for better concurrency
	collectionLocks map[string]*CollectionLock
	locksMu         sync.RWMutex

	// Configuration
	maxMemoryMB     int
	dataDir         string
	dataFile        string // Current data file for single-file persistence
	backgroundSave  bool
	transactionSave bool
	saveInterval    time.Duration

	// Background workers
	backgroundWg sync.WaitGroup
	stopChan     chan struct{}
}

var _ domain.Engine = (*StorageEngine)(nil)

// NewStorageEngine creates a new storage engine
func NewStorageEngine(options ...StorageOption) *StorageEngine {
	engine := &StorageEngine{
		collections:     make(map[string]*CollectionInfo),
		collectionLocks: make(map[string]*CollectionLock),
		maxMemoryMB:     1024, // 1GB default
		dataDir:         ".",
		backgroundSave:  false,
		transactionSave: true,
		saveInterval:    5 * time.Minute,
		stopChan:        make(chan struct{}),
	}

	for _, option := range options {
		option(engine)
	}

	// Initialize cache with capacity based on max memory
	engine.cache = NewLRUCache(engine.maxMemoryMB / 100) // Rough estimate: 100MB per collection

	return engine
}

// getOrCreateCollectionLock gets or creates a lock for a collection
func (se *StorageEngine) getOrCreateCollectionLock(collName string) *CollectionLock {
	se.locksMu.RLock()
	if lock, exists := se.collectionLocks[collName]; exists {
		se.locksMu.RUnlock()
		return lock
	}
	se.locksMu.RUnlock()

	se.locksMu.Lock()
	defer se.locksMu.Unlock()

	// Double-check in case another goroutine created it
	if lock, exists := se.collectionLocks[collName]; exists {
		return lock
	}

	lock := &CollectionLock{}
	se.collectionLocks[collName] = lock
	return lock
}

// withCollectionWriteLock executes a function with a write lock on the specified collection
func (se *StorageEngine) withCollectionWriteLock(collName string, fn func() error) error {
	lock := se.getOrCreateCollectionLock(collName)
	lock.mu.Lock()
	defer lock.mu.Unlock()
	return fn()
}

// SaveCollectionAfterTransaction saves a specific collection to disk if
// transaction saves are enabled and the collection is dirty.
func (se *StorageEngine) SaveCollectionAfterTransaction(collName string) error {
	if !se.transactionSave {
		return nil
	}

	se.mu.RLock()
	collInfo, exists := se.collections[collName]
	if !exists || collInfo.State != CollectionStateDirty {
		se.mu.RUnlock()
		return nil
	}
	se.mu.RUnlock()

	return se.saveCollectionToFile(collName)
}

// IsTransactionSaveEnabled returns whether transaction-based saves are enabled
func (se *StorageEngine) IsTransactionSaveEnabled() bool {
	return se.transactionSave
}

// markDirty flags a collection as modified and adjusts its document count.
// Caller must hold the engine lock.
func (se *StorageEngine) markDirty(collName string, countDelta int64) {
	if info, exists := se.collections[collName]; exists {
		info.State = CollectionStateDirty
		info.DocumentCount += countDelta
		info.LastModified = time.Now()
	}
}
