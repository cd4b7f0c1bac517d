package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packstore/packstore/pkg/domain"
	"github.com/packstore/packstore/pkg/storage"
)

var localActor = domain.Actor{ID: "local", Role: domain.RoleAdmin}

// newManagedPack wires an engine, manager and synchronizer, and creates a
// managed pack with an empty metadata record.
func newManagedPack(t *testing.T, pack string) (*storage.StorageEngine, *Manager) {
	t.Helper()

	engine := storage.NewStorageEngine()
	manager := NewManager(engine, nil)
	syncer := NewSynchronizer(engine, manager, localActor, "icons/default.svg", nil)
	engine.RegisterObserver(syncer)

	require.NoError(t, engine.CreateCollection(pack))
	payload, err := EncodeMetaIndex(map[string]*domain.IndexRecord{})
	require.NoError(t, err)
	_, err = engine.CreateDocuments(pack, []domain.DocumentSpec{{
		ID:       MetaDocumentID,
		Name:     MetaDocumentName,
		Envelope: domain.Envelope{Payload: payload},
	}}, domain.MutationOptions{Actor: localActor})
	require.NoError(t, err)
	engine.WaitForObservers()

	return engine, manager
}

func createEntry(t *testing.T, engine *storage.StorageEngine, pack string, rec *domain.IndexRecord) domain.Document {
	t.Helper()
	payload, err := domain.EncodePayload(map[string]interface{}{"k": "v"})
	require.NoError(t, err)
	docs, err := engine.CreateDocuments(pack, []domain.DocumentSpec{{
		Name:     rec.Name,
		Envelope: domain.Envelope{Index: rec, Payload: payload},
	}}, domain.MutationOptions{Actor: localActor})
	require.NoError(t, err)
	return docs[0]
}

func TestSynchronizerIndexesCreatedEntries(t *testing.T) {
	engine, manager := newManagedPack(t, "weapons")

	doc := createEntry(t, engine, "weapons", &domain.IndexRecord{
		Name: "Iron Sword", Type: "weapon", Tags: []string{"melee"},
	})
	engine.WaitForObservers()

	store, err := manager.LoadIndex("weapons")
	require.NoError(t, err)
	got, ok := store.Get(doc.ID)
	require.True(t, ok)
	assert.Equal(t, "Iron Sword", got.Name)
	assert.Equal(t, "weapon", got.Type)
	assert.Equal(t, []string{"melee"}, got.Tags)
}

func TestSynchronizerPatchesCachedStoreOnUpdate(t *testing.T) {
	engine, manager := newManagedPack(t, "weapons")
	doc := createEntry(t, engine, "weapons", &domain.IndexRecord{Name: "Iron Sword", Type: "weapon"})
	engine.WaitForObservers()

	// Materialize the cache first so the update path patches it in place.
	_, err := manager.LoadIndex("weapons")
	require.NoError(t, err)

	err = engine.UpdateDocument("weapons", doc.ID, domain.DocumentChange{
		Index: domain.IndexPatch{"name": "Steel Sword"},
	}, domain.MutationOptions{Actor: localActor})
	require.NoError(t, err)
	engine.WaitForObservers()

	store, _ := manager.Cached("weapons")
	got, ok := store.Get(doc.ID)
	require.True(t, ok)
	assert.Equal(t, "Steel Sword", got.Name)
	assert.Equal(t, "weapon", got.Type, "unpatched fields survive")

	// The persisted metadata record converged too.
	meta, err := engine.GetDocument("weapons", MetaDocumentID)
	require.NoError(t, err)
	records, err := DecodeMetaIndex(meta.Envelope.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Steel Sword", records[doc.ID].Name)
}

func TestSynchronizerRemovesDeletedEntries(t *testing.T) {
	engine, manager := newManagedPack(t, "weapons")
	doc := createEntry(t, engine, "weapons", &domain.IndexRecord{Name: "Iron Sword"})
	engine.WaitForObservers()

	_, err := manager.LoadIndex("weapons")
	require.NoError(t, err)

	require.NoError(t, engine.DeleteDocuments("weapons", []string{doc.ID}, domain.MutationOptions{Actor: localActor}))
	engine.WaitForObservers()

	store, _ := manager.Cached("weapons")
	_, ok := store.Get(doc.ID)
	assert.False(t, ok)

	meta, err := engine.GetDocument("weapons", MetaDocumentID)
	require.NoError(t, err)
	records, err := DecodeMetaIndex(meta.Envelope.Payload)
	require.NoError(t, err)
	assert.NotContains(t, records, doc.ID)
}

func TestSynchronizerIgnoresRemoteActors(t *testing.T) {
	engine, _ := newManagedPack(t, "weapons")

	remote := domain.Actor{ID: "remote", Role: domain.RoleAdmin}
	payload, err := domain.EncodePayload(nil)
	require.NoError(t, err)
	docs, err := engine.CreateDocuments("weapons", []domain.DocumentSpec{{
		Name:     "Foreign Sword",
		Envelope: domain.Envelope{Index: &domain.IndexRecord{Name: "Foreign Sword"}, Payload: payload},
	}}, domain.MutationOptions{Actor: remote})
	require.NoError(t, err)
	engine.WaitForObservers()

	// The remote actor's own synchronizer is responsible for the metadata
	// record; ours must not touch it.
	meta, err := engine.GetDocument("weapons", MetaDocumentID)
	require.NoError(t, err)
	records, err := DecodeMetaIndex(meta.Envelope.Payload)
	require.NoError(t, err)
	assert.NotContains(t, records, docs[0].ID)
}

func TestRemoteCreateConvergesCachedStore(t *testing.T) {
	engine, manager := newManagedPack(t, "weapons")

	// A second synchronizer for a different actor shares the engine, the
	// way two processes share a document store.
	remote := domain.Actor{ID: "remote", Role: domain.RoleAdmin}
	remoteManager := NewManager(engine, nil)
	remoteSyncer := NewSynchronizer(engine, remoteManager, remote, "icons/default.svg", nil)
	engine.RegisterObserver(remoteSyncer)

	// Materialize the local cache before the remote write.
	_, err := manager.LoadIndex("weapons")
	require.NoError(t, err)

	payload, err := domain.EncodePayload(map[string]interface{}{"k": "v"})
	require.NoError(t, err)
	docs, err := engine.CreateDocuments("weapons", []domain.DocumentSpec{{
		Name:     "Foreign Axe",
		Envelope: domain.Envelope{Index: &domain.IndexRecord{Name: "Foreign Axe", Type: "weapon"}, Payload: payload},
	}}, domain.MutationOptions{Actor: remote})
	require.NoError(t, err)
	engine.WaitForObservers()

	// The remote synchronizer wrote the metadata record; observing that
	// update converged the local cache without a reload.
	store, ok := manager.Cached("weapons")
	require.True(t, ok)
	got, ok := store.Get(docs[0].ID)
	require.True(t, ok, "the remote create became visible to the local cache")
	assert.Equal(t, "Foreign Axe", got.Name)
	assert.Equal(t, "weapon", got.Type)
}

func TestSynchronizerInjectsDefaultIndex(t *testing.T) {
	engine, manager := newManagedPack(t, "weapons")

	docs, err := engine.CreateDocuments("weapons", []domain.DocumentSpec{{
		Name: "Bare Document",
	}}, domain.MutationOptions{Actor: localActor})
	require.NoError(t, err)
	engine.WaitForObservers()

	doc, err := engine.GetDocument("weapons", docs[0].ID)
	require.NoError(t, err)
	require.NotNil(t, doc.Envelope.Index)
	assert.Equal(t, "Bare Document", doc.Envelope.Index.Name)
	assert.Equal(t, domain.DefaultEntryType, doc.Envelope.Index.Type)
	assert.Equal(t, "icons/default.svg", doc.Envelope.Index.Thumb)

	store, err := manager.LoadIndex("weapons")
	require.NoError(t, err)
	_, ok := store.Get(docs[0].ID)
	assert.True(t, ok)
}

func TestSynchronizerSkipsUnmanagedPacks(t *testing.T) {
	engine := storage.NewStorageEngine()
	manager := NewManager(engine, nil)
	syncer := NewSynchronizer(engine, manager, localActor, "icons/default.svg", nil)
	engine.RegisterObserver(syncer)

	require.NoError(t, engine.CreateCollection("scratch"))
	docs, err := engine.CreateDocuments("scratch", []domain.DocumentSpec{{Name: "Loose Doc"}},
		domain.MutationOptions{Actor: localActor})
	require.NoError(t, err)
	engine.WaitForObservers()

	doc, err := engine.GetDocument("scratch", docs[0].ID)
	require.NoError(t, err)
	assert.Nil(t, doc.Envelope.Index, "unmanaged packs get no injected index")
	assert.False(t, manager.IsManaged("scratch"))
}

func TestSynchronizerKeepsNameAndIndexAligned(t *testing.T) {
	engine, _ := newManagedPack(t, "weapons")
	doc := createEntry(t, engine, "weapons", &domain.IndexRecord{Name: "Iron Sword"})
	engine.WaitForObservers()

	err := engine.UpdateDocument("weapons", doc.ID, domain.DocumentChange{
		Index: domain.IndexPatch{"name": "Steel Sword"},
	}, domain.MutationOptions{Actor: localActor})
	require.NoError(t, err)
	engine.WaitForObservers()

	updated, err := engine.GetDocument("weapons", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Steel Sword", updated.Name)
	assert.Equal(t, "Steel Sword", updated.Envelope.Index.Name)
}

func TestMetaIndexNeverIndexesItself(t *testing.T) {
	records := map[string]*domain.IndexRecord{
		"abc":          {Name: "Entry"},
		MetaDocumentID: {Name: "Pack Index"},
	}
	payload, err := EncodeMetaIndex(records)
	require.NoError(t, err)
	decoded, err := DecodeMetaIndex(payload)
	require.NoError(t, err)
	assert.Contains(t, decoded, "abc")
	assert.NotContains(t, decoded, MetaDocumentID)
}

func TestApplyMetaPatchDeletion(t *testing.T) {
	records := map[string]*domain.IndexRecord{"abc": {Name: "Entry"}}
	ApplyMetaPatch(records, map[string]interface{}{DeletionPrefix + "abc": nil})
	assert.Empty(t, records)
}

func TestLoadIndexIsIdempotent(t *testing.T) {
	engine, manager := newManagedPack(t, "weapons")
	createEntry(t, engine, "weapons", &domain.IndexRecord{Name: "Iron Sword"})
	engine.WaitForObservers()

	first, err := manager.LoadIndex("weapons")
	require.NoError(t, err)
	second, err := manager.LoadIndex("weapons")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestLoadIndexUnmanagedPack(t *testing.T) {
	engine := storage.NewStorageEngine()
	manager := NewManager(engine, nil)

	_, err := manager.LoadIndex("nowhere")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}
