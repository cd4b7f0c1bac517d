package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/packstore/packstore/pkg/domain"
)

// SaveToFile saves all collections to a single file.
func (se *StorageEngine) SaveToFile(filename string) error {
	se.mu.RLock()
	defer se.mu.RUnlock()

	storageData := NewStorageData()
	for collName := range se.collections {
		collection, err := se.getCollectionInternal(collName)
		if err != nil {
			return fmt.Errorf("failed to load collection %s for save: %w", collName, err)
		}
		docs := make(map[string]domain.Document, len(collection.Documents))
		for docID, doc := range collection.Documents {
			docs[docID] = copyDocument(doc)
		}
		storageData.Collections[collName] = docs
	}

	return writeStorageFile(filename, storageData)
}

// LoadCollectionMetadata loads only collection metadata from disk; document
// bodies stay on disk until a collection is first touched.
func (se *StorageEngine) LoadCollectionMetadata(filename string) error {
	// Store the filename for later use in collection loading
	se.dataFile = filename

	storageData, err := readStorageFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	se.mu.Lock()
	defer se.mu.Unlock()
	for collName, docs := range storageData.Collections {
		se.collections[collName] = &CollectionInfo{
			Name:          collName,
			DocumentCount: int64(len(docs)),
			State:         CollectionStateUnloaded,
			LastModified:  time.Now(),
		}
	}

	return nil
}

// loadCollectionFromDisk loads a single collection, preferring its
// per-collection file and falling back to the single data file.
func (se *StorageEngine) loadCollectionFromDisk(collName string) (*Collection, error) {
	perCollection := filepath.Join(se.dataDir, "collections", collName+FileExtension)
	if _, err := os.Stat(perCollection); err == nil {
		return se.loadCollectionFromFile(collName, perCollection)
	}
	if se.dataFile == "" {
		return nil, fmt.Errorf("no data file configured for collection %s", collName)
	}
	return se.loadCollectionFromFile(collName, se.dataFile)
}

func (se *StorageEngine) loadCollectionFromFile(collName, filename string) (*Collection, error) {
	storageData, err := readStorageFile(filename)
	if err != nil {
		return nil, err
	}

	docs, exists := storageData.Collections[collName]
	if !exists {
		return nil, fmt.Errorf("collection %s not found in file %s", collName, filename)
	}

	collection := NewCollection(collName)
	for docID, doc := range docs {
		collection.Documents[docID] = doc
	}

	log.Printf("INFO: Loaded collection '%s' with %d documents from %s",
		collName, len(collection.Documents), filename)

	return collection, nil
}

// saveDirtyCollections saves all dirty collections to individual files
func (se *StorageEngine) saveDirtyCollections() {
	start := time.Now()
	savedCount := 0
	errorCount := 0

	se.mu.RLock()
	var dirtyCollections []string
	for collName, info := range se.collections {
		if info.State == CollectionStateDirty {
			dirtyCollections = append(dirtyCollections, collName)
		}
	}
	se.mu.RUnlock()

	if len(dirtyCollections) == 0 {
		return
	}

	log.Printf("INFO: Background save starting - %d dirty collections to save", len(dirtyCollections))

	for _, collName := range dirtyCollections {
		if err := se.saveCollectionToFile(collName); err != nil {
			log.Printf("ERROR: Failed to save collection %s: %v", collName, err)
			errorCount++
		} else {
			savedCount++
		}
	}

	elapsed := time.Since(start)
	if errorCount > 0 {
		log.Printf("WARN: Background save completed with errors - saved: %d, errors: %d, time: %v",
			savedCount, errorCount, elapsed)
	} else {
		log.Printf("INFO: Background save completed successfully - saved: %d collections in %v",
			savedCount, elapsed)
	}
}

// saveCollectionToFile saves a single collection to its individual file
func (se *StorageEngine) saveCollectionToFile(collName string) error {
	return se.withCollectionWriteLock(collName, func() error {
		return se.saveCollectionToFileUnsafe(collName)
	})
}

// saveCollectionToFileUnsafe saves a collection without acquiring the
// collection lock (caller must hold it).
func (se *StorageEngine) saveCollectionToFileUnsafe(collName string) error {
	lock := se.getOrCreateCollectionLock(collName)
	lock.saving = true
	defer func() { lock.saving = false }()

	cachedCollection, collectionInfo, found := se.cache.Get(collName)
	if !found {
		return fmt.Errorf("collection %s not found in cache", collName)
	}

	// Might have been saved by another goroutine in the meantime
	if collectionInfo.State != CollectionStateDirty {
		return nil
	}

	storageData := NewStorageData()
	docs := make(map[string]domain.Document, len(cachedCollection.Documents))

	se.mu.RLock()
	for docID, doc := range cachedCollection.Documents {
		docs[docID] = copyDocument(doc)
	}
	se.mu.RUnlock()
	storageData.Collections[collName] = docs

	collectionsDir := filepath.Join(se.dataDir, "collections")
	if err := os.MkdirAll(collectionsDir, 0755); err != nil {
		return fmt.Errorf("failed to create collections directory: %w", err)
	}

	filename := filepath.Join(collectionsDir, collName+FileExtension)
	if err := writeStorageFile(filename, storageData); err != nil {
		return err
	}

	se.mu.Lock()
	if info, exists := se.collections[collName]; exists {
		info.State = CollectionStateLoaded // Mark as clean
	}
	se.mu.Unlock()

	return nil
}

// writeStorageFile serializes, compresses and atomically writes storage
// data. The uncompressed length follows the header so readers can size the
// decompression buffer exactly; payloads lz4 cannot shrink are stored raw
// with FlagUncompressed set.
func writeStorageFile(filename string, storageData *StorageData) error {
	msgpackData, err := msgpack.Marshal(storageData)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	compressedData := make([]byte, lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, compressedData, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}

	var flags uint8
	body := compressedData[:n]
	if n == 0 || n >= len(msgpackData) {
		flags = FlagUncompressed
		body = msgpackData
	}

	tempFile := filename + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteHeader(file, flags); err != nil {
		file.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := binary.Write(file, binary.LittleEndian, uint32(len(msgpackData))); err != nil {
		file.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to write data length: %w", err)
	}
	if _, err := file.Write(body); err != nil {
		file.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename data file: %w", err)
	}
	return nil
}

// readStorageFile reads, decompresses and deserializes a storage file.
func readStorageFile(filename string) (*StorageData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	header, err := ReadHeader(file)
	if err != nil {
		return nil, fmt.Errorf("invalid file header in %s: %w", filename, err)
	}

	var rawLen uint32
	if err := binary.Read(file, binary.LittleEndian, &rawLen); err != nil {
		return nil, fmt.Errorf("failed to read data length: %w", err)
	}

	body, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	msgpackData := body
	if header.Flags&FlagUncompressed == 0 {
		decompressed := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, decompressed)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress data: %w", err)
		}
		msgpackData = decompressed[:n]
	}

	var storageData StorageData
	if err := msgpack.Unmarshal(msgpackData, &storageData); err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	if storageData.Collections == nil {
		storageData.Collections = make(map[string]map[string]domain.Document)
	}
	return &storageData, nil
}
