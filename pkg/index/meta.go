// Package index implements the secondary index over pack documents: the
// per-pack in-memory index store, the metadata record that persists it, the
// synchronizer that keeps both aligned with document mutations, and the
// query engine that searches it.
package index

import (
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/packstore/packstore/pkg/domain"
)

const (
	// MetaDocumentID is the reserved identifier of the metadata record each
	// managed pack carries. It never collides with generated entry ids and
	// is excluded from every population and search path.
	MetaDocumentID = "_packstore_meta"

	// MetaDocumentName is the display name given to metadata records.
	MetaDocumentName = "Pack Index"

	// DeletionPrefix marks a metadata patch key as a removal: a patch entry
	// keyed "-=<id>" deletes that identifier from the index.
	DeletionPrefix = "-="
)

// DecodeMetaIndex deserializes a metadata record payload into its index
// mapping. An empty payload yields an empty mapping.
func DecodeMetaIndex(payload []byte) (map[string]*domain.IndexRecord, error) {
	records := make(map[string]*domain.IndexRecord)
	if len(payload) == 0 {
		return records, nil
	}
	if err := msgpack.Unmarshal(payload, &records); err != nil {
		return nil, err
	}
	// The record must never index itself.
	delete(records, MetaDocumentID)
	return records, nil
}

// EncodeMetaIndex serializes an index mapping into a metadata record payload.
func EncodeMetaIndex(records map[string]*domain.IndexRecord) ([]byte, error) {
	return msgpack.Marshal(records)
}

// ApplyMetaPatch merges a partial patch into an index mapping. Keys carrying
// the deletion prefix remove the named identifier; other keys add or patch
// the identifier's record with the fields present in the patch value.
func ApplyMetaPatch(records map[string]*domain.IndexRecord, patch map[string]interface{}) {
	for key, value := range patch {
		if id, ok := strings.CutPrefix(key, DeletionPrefix); ok {
			delete(records, id)
			continue
		}
		if key == MetaDocumentID {
			continue
		}
		fields := toIndexPatch(value)
		if fields == nil {
			continue
		}
		rec, exists := records[key]
		if !exists {
			rec = &domain.IndexRecord{}
			records[key] = rec
		}
		fields.Apply(rec)
	}
}

// toIndexPatch normalizes the shapes a patch value arrives in.
func toIndexPatch(value interface{}) domain.IndexPatch {
	switch v := value.(type) {
	case domain.IndexPatch:
		return v
	case map[string]interface{}:
		return domain.IndexPatch(v)
	case *domain.IndexRecord:
		if v == nil {
			return nil
		}
		return recordPatch(v)
	case domain.IndexRecord:
		return recordPatch(&v)
	default:
		return nil
	}
}

// recordPatch expands a full record into a patch touching all five fields.
func recordPatch(rec *domain.IndexRecord) domain.IndexPatch {
	return domain.IndexPatch{
		"name":  rec.Name,
		"thumb": rec.Thumb,
		"tags":  append([]string(nil), rec.Tags...),
		"type":  rec.Type,
		"desc":  rec.Desc,
	}
}
