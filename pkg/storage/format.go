package storage

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/packstore/packstore/pkg/domain"
)

const (
	// Magic bytes to identify our file format
	MagicBytes = "PACK"
	// Current version
	FormatVersion = 1
	// File extension for our optimized format
	FileExtension = ".pack"

	// FlagUncompressed marks a payload stored raw because lz4 could not
	// shrink it (small payloads usually cannot be compressed).
	FlagUncompressed = 0x01
)

// FileHeader represents the header of our storage file
type FileHeader struct {
	Magic    [4]byte // "PACK"
	Version  uint8   // Format version
	Flags    uint8   // Format flags, see FlagUncompressed
	Reserved [2]byte // Reserved for future use
}

// WriteHeader writes the file header to the given writer
func WriteHeader(w io.Writer, flags uint8) error {
	header := FileHeader{
		Magic:    [4]byte{'P', 'A', 'C', 'K'},
		Version:  FormatVersion,
		Flags:    flags,
		Reserved: [2]byte{0, 0},
	}

	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}

	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}

	return &header, nil
}

// StorageData represents the actual data structure we store
type StorageData struct {
	Collections map[string]map[string]domain.Document `msgpack:"collections"`
	Metadata    map[string]interface{}                `msgpack:"metadata,omitempty"`
}

// NewStorageData creates a new empty storage data structure
func NewStorageData() *StorageData {
	return &StorageData{
		Collections: make(map[string]map[string]domain.Document),
		Metadata:    make(map[string]interface{}),
	}
}
