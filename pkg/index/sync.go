package index

import (
	"log"

	"github.com/packstore/packstore/pkg/domain"
	"github.com/packstore/packstore/pkg/metrics"
)

// Synchronizer keeps each managed pack's metadata record and in-memory
// index store aligned with document mutations, regardless of which actor
// performed them. It implements domain.MutationObserver.
//
// Propagation is actor-scoped: only the synchronizer whose local actor
// performed a mutation writes the shared metadata record. Every other
// process converges by observing the metadata record's own update event.
type Synchronizer struct {
	engine  domain.Engine
	manager *Manager
	actor   domain.Actor
	thumb   string
	metrics *metrics.Metrics
}

var _ domain.MutationObserver = (*Synchronizer)(nil)

// NewSynchronizer creates a synchronizer scoped to the given local actor.
// defaultThumb is the icon injected into documents created without index
// metadata.
func NewSynchronizer(engine domain.Engine, manager *Manager, localActor domain.Actor, defaultThumb string, m *metrics.Metrics) *Synchronizer {
	return &Synchronizer{
		engine:  engine,
		manager: manager,
		actor:   localActor,
		thumb:   defaultThumb,
		metrics: m,
	}
}

// PreCreate injects default index metadata into documents entering a
// managed pack through any path, so every managed document always carries a
// valid index.
func (s *Synchronizer) PreCreate(pack string, spec *domain.DocumentSpec, opts domain.MutationOptions) {
	if spec.ID == MetaDocumentID || !s.manager.IsManaged(pack) {
		return
	}
	if spec.Envelope.Index == nil {
		spec.Envelope.Index = &domain.IndexRecord{
			Name:  spec.Name,
			Thumb: s.thumb,
			Tags:  []string{},
			Type:  domain.DefaultEntryType,
			Desc:  "",
		}
	}
	if spec.Envelope.Payload == nil {
		// Empty payload placeholder so the envelope is always well-formed.
		if placeholder, err := domain.EncodePayload(nil); err == nil {
			spec.Envelope.Payload = placeholder
		}
	}
}

// PostCreate propagates a new document's index fields into the pack's
// metadata record when the local actor performed the create.
func (s *Synchronizer) PostCreate(pack string, doc domain.Document, opts domain.MutationOptions) {
	if doc.ID == MetaDocumentID || opts.Actor.ID != s.actor.ID {
		return
	}
	if !s.manager.IsManaged(pack) || doc.Envelope.Index == nil {
		return
	}
	s.patchMeta(pack, map[string]interface{}{doc.ID: recordPatch(doc.Envelope.Index)})
	s.metrics.RecordSyncOp("create")
}

// PreUpdate forces the document's display name and its index name field to
// stay identical: the name has a single source of truth.
func (s *Synchronizer) PreUpdate(pack string, doc domain.Document, change *domain.DocumentChange, opts domain.MutationOptions) {
	if doc.ID == MetaDocumentID || !s.manager.IsManaged(pack) {
		return
	}
	if name, ok := change.Index["name"].(string); ok {
		change.Name = &name
		return
	}
	if change.Name != nil {
		if change.Index == nil {
			change.Index = domain.IndexPatch{}
		}
		change.Index["name"] = *change.Name
	}
}

// PostUpdate has two jobs: forward an entry's changed index fields to the
// metadata record (local actor only), and patch the in-memory store when
// the metadata record itself was updated (any actor).
func (s *Synchronizer) PostUpdate(pack string, doc domain.Document, change domain.DocumentChange, opts domain.MutationOptions) {
	if doc.ID == MetaDocumentID {
		s.refreshStore(pack, doc, change)
		return
	}
	if opts.Actor.ID != s.actor.ID || len(change.Index) == 0 {
		return
	}
	if !s.manager.IsManaged(pack) {
		return
	}
	// Partial patch: only the changed fields overwrite the sub-record.
	s.patchMeta(pack, map[string]interface{}{doc.ID: change.Index})
	s.metrics.RecordSyncOp("update")
}

// PostDelete removes a deleted document's identifier from the metadata
// record when the local actor performed the delete.
func (s *Synchronizer) PostDelete(pack string, doc domain.Document, opts domain.MutationOptions) {
	if doc.ID == MetaDocumentID || opts.Actor.ID != s.actor.ID {
		return
	}
	if !s.manager.IsManaged(pack) {
		return
	}
	s.patchMeta(pack, map[string]interface{}{DeletionPrefix + doc.ID: nil})
	s.metrics.RecordSyncOp("delete")
}

// refreshStore applies a metadata record update to the cached index store,
// if one exists, without re-reading storage.
func (s *Synchronizer) refreshStore(pack string, doc domain.Document, change domain.DocumentChange) {
	store, ok := s.manager.Cached(pack)
	if !ok {
		return
	}
	if change.PayloadPatch != nil {
		store.applyPatch(change.PayloadPatch)
		s.metrics.RecordSyncOp("patch")
		return
	}
	// No patch information; rebuild from the record's new payload.
	records, err := DecodeMetaIndex(doc.Envelope.Payload)
	if err != nil {
		log.Printf("WARN: Could not decode metadata record for pack '%s': %v", pack, err)
		return
	}
	store.replace(records)
	s.metrics.RecordSyncOp("rebuild")
}

// patchMeta performs a read-modify-write of the pack's metadata record. A
// missing or unreadable record is logged and skipped: index staleness is
// preferred over failing the originating document mutation.
func (s *Synchronizer) patchMeta(pack string, patch map[string]interface{}) {
	meta, err := s.engine.GetDocument(pack, MetaDocumentID)
	if err != nil {
		log.Printf("WARN: Metadata record unavailable for pack '%s', skipping index sync: %v", pack, err)
		s.metrics.RecordSyncOp("skip")
		return
	}

	records, err := DecodeMetaIndex(meta.Envelope.Payload)
	if err != nil {
		log.Printf("WARN: Could not decode metadata record for pack '%s', skipping index sync: %v", pack, err)
		s.metrics.RecordSyncOp("skip")
		return
	}

	ApplyMetaPatch(records, patch)

	payload, err := EncodeMetaIndex(records)
	if err != nil {
		log.Printf("WARN: Could not encode metadata record for pack '%s', skipping index sync: %v", pack, err)
		s.metrics.RecordSyncOp("skip")
		return
	}

	change := domain.DocumentChange{Payload: payload, PayloadPatch: patch}
	if err := s.engine.UpdateDocument(pack, MetaDocumentID, change, domain.MutationOptions{Actor: s.actor}); err != nil {
		log.Printf("WARN: Could not update metadata record for pack '%s': %v", pack, err)
		s.metrics.RecordSyncOp("skip")
	}
}
