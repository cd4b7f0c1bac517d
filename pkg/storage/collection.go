package storage

import (
	"time"

	"github.com/packstore/packstore/pkg/domain"
)

type CollectionState int

const (
	CollectionStateUnloaded CollectionState = iota
	CollectionStateLoading
	CollectionStateLoaded
	CollectionStateDirty
)

type CollectionInfo struct {
	Name          string
	DocumentCount int64
	SizeOnDisk    int64
	LastModified  time.Time
	State         CollectionState
	AccessCount   int64
	LastAccessed  time.Time
}

// Collection holds one pack's documents while resident in memory.
type Collection struct {
	Name      string
	Documents map[string]domain.Document
}

// NewCollection creates a new collection
func NewCollection(name string) *Collection {
	return &Collection{
		Name:      name,
		Documents: make(map[string]domain.Document),
	}
}
