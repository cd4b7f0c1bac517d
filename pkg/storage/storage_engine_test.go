package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packstore/packstore/pkg/domain"
)

var testActor = domain.Actor{ID: "tester", Role: domain.RoleAdmin}

func TestCreateCollection(t *testing.T) {
	engine := NewStorageEngine()

	require.NoError(t, engine.CreateCollection("weapons"))
	assert.True(t, engine.HasCollection("weapons"))
	assert.False(t, engine.HasCollection("spells"))

	err := engine.CreateCollection("weapons")
	assert.Error(t, err, "duplicate collection rejected")

	err = engine.CreateCollection("")
	assert.Error(t, err)
}

func TestCreateAndGetDocuments(t *testing.T) {
	engine := NewStorageEngine()

	docs, err := engine.CreateDocuments("weapons", []domain.DocumentSpec{
		{Name: "Iron Sword"},
		{ID: "fixed-id", Name: "Steel Axe"},
	}, domain.MutationOptions{Actor: testActor})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.NotEmpty(t, docs[0].ID, "empty IDs are generated")
	assert.Equal(t, "fixed-id", docs[1].ID)

	got, err := engine.GetDocument("weapons", "fixed-id")
	require.NoError(t, err)
	assert.Equal(t, "Steel Axe", got.Name)

	_, err = engine.GetDocument("weapons", "missing")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	_, err = engine.GetDocument("nowhere", "any")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestGetDocumentsBulk(t *testing.T) {
	engine := NewStorageEngine()

	_, err := engine.CreateDocuments("weapons", []domain.DocumentSpec{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
		{ID: "c", Name: "C"},
	}, domain.MutationOptions{Actor: testActor})
	require.NoError(t, err)

	docs, err := engine.GetDocuments("weapons", []string{"c", "missing", "a"})
	require.NoError(t, err)
	require.Len(t, docs, 2, "missing identifiers are silently absent")
	assert.Equal(t, "c", docs[0].ID, "order follows the requested ids")
	assert.Equal(t, "a", docs[1].ID)
}

func TestUpdateDocument(t *testing.T) {
	engine := NewStorageEngine()

	_, err := engine.CreateDocuments("weapons", []domain.DocumentSpec{{
		ID:   "a",
		Name: "Iron Sword",
		Envelope: domain.Envelope{
			Index: &domain.IndexRecord{Name: "Iron Sword", Type: "weapon", Tags: []string{"melee"}},
		},
	}}, domain.MutationOptions{Actor: testActor})
	require.NoError(t, err)

	name := "Steel Sword"
	err = engine.UpdateDocument("weapons", "a", domain.DocumentChange{
		Name:  &name,
		Index: domain.IndexPatch{"name": "Steel Sword", "desc": "reforged"},
	}, domain.MutationOptions{Actor: testActor})
	require.NoError(t, err)

	got, err := engine.GetDocument("weapons", "a")
	require.NoError(t, err)
	assert.Equal(t, "Steel Sword", got.Name)
	assert.Equal(t, "Steel Sword", got.Envelope.Index.Name)
	assert.Equal(t, "reforged", got.Envelope.Index.Desc)
	assert.Equal(t, []string{"melee"}, got.Envelope.Index.Tags, "untouched fields survive")

	err = engine.UpdateDocument("weapons", "missing", domain.DocumentChange{Name: &name},
		domain.MutationOptions{Actor: testActor})
	assert.True(t, domain.IsNotFound(err))
}

func TestDeleteDocuments(t *testing.T) {
	engine := NewStorageEngine()

	_, err := engine.CreateDocuments("weapons", []domain.DocumentSpec{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
	}, domain.MutationOptions{Actor: testActor})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteDocuments("weapons", []string{"a", "missing"},
		domain.MutationOptions{Actor: testActor}))

	_, err = engine.GetDocument("weapons", "a")
	assert.True(t, domain.IsNotFound(err))
	_, err = engine.GetDocument("weapons", "b")
	assert.NoError(t, err)
}

func TestCollectionIDs(t *testing.T) {
	engine := NewStorageEngine()

	_, err := engine.CreateDocuments("weapons", []domain.DocumentSpec{
		{ID: "c", Name: "C"},
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
	}, domain.MutationOptions{Actor: testActor})
	require.NoError(t, err)

	ids, err := engine.CollectionIDs("weapons")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids, "sorted for determinism")
}

func TestGetDocumentReturnsCopy(t *testing.T) {
	engine := NewStorageEngine()

	_, err := engine.CreateDocuments("weapons", []domain.DocumentSpec{{
		ID:       "a",
		Name:     "Iron Sword",
		Envelope: domain.Envelope{Index: &domain.IndexRecord{Name: "Iron Sword"}},
	}}, domain.MutationOptions{Actor: testActor})
	require.NoError(t, err)

	first, err := engine.GetDocument("weapons", "a")
	require.NoError(t, err)
	first.Envelope.Index.Name = "Mutated"

	second, err := engine.GetDocument("weapons", "a")
	require.NoError(t, err)
	assert.Equal(t, "Iron Sword", second.Envelope.Index.Name)
}

// recordingObserver captures lifecycle callbacks for assertions.
type recordingObserver struct {
	mu      sync.Mutex
	created []string
	updated []string
	deleted []string
}

func (o *recordingObserver) PreCreate(pack string, spec *domain.DocumentSpec, opts domain.MutationOptions) {
	if spec.Envelope.Index == nil {
		spec.Envelope.Index = &domain.IndexRecord{Name: spec.Name}
	}
}

func (o *recordingObserver) PostCreate(pack string, doc domain.Document, opts domain.MutationOptions) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created = append(o.created, doc.ID)
}

func (o *recordingObserver) PreUpdate(pack string, doc domain.Document, change *domain.DocumentChange, opts domain.MutationOptions) {
}

func (o *recordingObserver) PostUpdate(pack string, doc domain.Document, change domain.DocumentChange, opts domain.MutationOptions) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updated = append(o.updated, doc.ID)
}

func (o *recordingObserver) PostDelete(pack string, doc domain.Document, opts domain.MutationOptions) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = append(o.deleted, doc.ID)
}

func TestObserverLifecycle(t *testing.T) {
	engine := NewStorageEngine()
	obs := &recordingObserver{}
	engine.RegisterObserver(obs)

	docs, err := engine.CreateDocuments("weapons", []domain.DocumentSpec{{ID: "a", Name: "A"}},
		domain.MutationOptions{Actor: testActor})
	require.NoError(t, err)

	// Pre-create ran synchronously and mutated the spec before commit.
	assert.NotNil(t, docs[0].Envelope.Index)

	name := "A2"
	require.NoError(t, engine.UpdateDocument("weapons", "a", domain.DocumentChange{Name: &name},
		domain.MutationOptions{Actor: testActor}))
	require.NoError(t, engine.DeleteDocuments("weapons", []string{"a"},
		domain.MutationOptions{Actor: testActor}))

	engine.WaitForObservers()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []string{"a"}, obs.created)
	assert.Equal(t, []string{"a"}, obs.updated)
	assert.Equal(t, []string{"a"}, obs.deleted)
}
