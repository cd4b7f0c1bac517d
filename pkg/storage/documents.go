package storage

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/packstore/packstore/pkg/domain"
)

// CreateDocuments inserts a batch of documents into a collection. Pre-create
// observers run synchronously before anything commits; post-create observers
// fire after commit and are not awaited.
func (se *StorageEngine) CreateDocuments(collName string, specs []domain.DocumentSpec, opts domain.MutationOptions) ([]domain.Document, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no document specs given for collection %s", collName)
	}

	prepared := make([]domain.DocumentSpec, len(specs))
	for i := range specs {
		spec := specs[i]
		if spec.ID == "" {
			spec.ID = uuid.NewString()
		}
		se.DispatchPreCreate(collName, &spec, opts)
		prepared[i] = spec
	}

	se.mu.Lock()
	collection := se.getOrCreateCollection(collName)

	created := make([]domain.Document, 0, len(prepared))
	for _, spec := range prepared {
		if _, exists := collection.Documents[spec.ID]; exists {
			se.mu.Unlock()
			return nil, fmt.Errorf("document %s already exists in collection %s", spec.ID, collName)
		}
		doc := domain.Document{ID: spec.ID, Name: spec.Name, Envelope: spec.Envelope}
		collection.Documents[doc.ID] = doc
		created = append(created, doc)
	}
	se.markDirty(collName, int64(len(created)))
	se.mu.Unlock()

	for _, doc := range created {
		se.DispatchPostCreate(collName, doc, opts)
	}

	return created, nil
}

// GetDocument retrieves a specific document by its ID.
func (se *StorageEngine) GetDocument(collName, docID string) (*domain.Document, error) {
	se.mu.RLock()
	defer se.mu.RUnlock()

	collection, err := se.getCollectionInternal(collName)
	if err != nil {
		return nil, err
	}

	doc, exists := collection.Documents[docID]
	if !exists {
		return nil, &domain.NotFoundError{Pack: collName, ID: docID}
	}

	copied := copyDocument(doc)
	return &copied, nil
}

// GetDocuments bulk-fetches the given identifiers in one pass. Missing
// identifiers are silently absent from the result; order follows ids.
func (se *StorageEngine) GetDocuments(collName string, ids []string) ([]domain.Document, error) {
	se.mu.RLock()
	defer se.mu.RUnlock()

	collection, err := se.getCollectionInternal(collName)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		if doc, exists := collection.Documents[id]; exists {
			docs = append(docs, copyDocument(doc))
		}
	}
	return docs, nil
}

// UpdateDocument applies a partial change to a document. Pre-update
// observers see the current document and may mutate the change before it
// commits.
func (se *StorageEngine) UpdateDocument(collName, docID string, change domain.DocumentChange, opts domain.MutationOptions) error {
	current, err := se.GetDocument(collName, docID)
	if err != nil {
		return err
	}

	se.DispatchPreUpdate(collName, *current, &change, opts)

	se.mu.Lock()
	collection, err := se.getCollectionInternal(collName)
	if err != nil {
		se.mu.Unlock()
		return err
	}

	doc, exists := collection.Documents[docID]
	if !exists {
		se.mu.Unlock()
		return &domain.NotFoundError{Pack: collName, ID: docID}
	}

	if change.Name != nil {
		doc.Name = *change.Name
	}
	if len(change.Index) > 0 {
		rec := doc.Envelope.Index.Clone()
		if rec == nil {
			rec = &domain.IndexRecord{}
		}
		change.Index.Apply(rec)
		doc.Envelope.Index = rec
	}
	if change.Payload != nil {
		doc.Envelope.Payload = change.Payload
	}

	collection.Documents[docID] = doc
	se.markDirty(collName, 0)
	updated := copyDocument(doc)
	se.mu.Unlock()

	se.DispatchPostUpdate(collName, updated, change, opts)
	return nil
}

// DeleteDocuments removes the given identifiers from a collection. Missing
// identifiers are ignored; post-delete observers fire once per removed
// document.
func (se *StorageEngine) DeleteDocuments(collName string, ids []string, opts domain.MutationOptions) error {
	se.mu.Lock()
	collection, err := se.getCollectionInternal(collName)
	if err != nil {
		se.mu.Unlock()
		return err
	}

	removed := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, exists := collection.Documents[id]
		if !exists {
			continue
		}
		delete(collection.Documents, id)
		removed = append(removed, copyDocument(doc))
	}
	se.markDirty(collName, -int64(len(removed)))
	se.mu.Unlock()

	for _, doc := range removed {
		se.DispatchPostDelete(collName, doc, opts)
	}
	return nil
}

// copyDocument deep-copies a document so callers never alias stored state.
func copyDocument(doc domain.Document) domain.Document {
	out := doc
	out.Envelope.Index = doc.Envelope.Index.Clone()
	if doc.Envelope.Payload != nil {
		out.Envelope.Payload = append([]byte(nil), doc.Envelope.Payload...)
	}
	return out
}
