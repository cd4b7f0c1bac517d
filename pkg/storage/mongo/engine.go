// Package mongo implements the document engine over MongoDB, for
// deployments that outgrow the file engine. Each pack maps to one
// collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/packstore/packstore/pkg/domain"
)

const opTimeout = 5 * time.Second

// Engine is a MongoDB-backed document engine.
type Engine struct {
	domain.ObserverHub

	client *mongo.Client
	db     *mongo.Database
}

var _ domain.Engine = (*Engine)(nil)

// NewEngine connects to MongoDB and verifies the connection.
func NewEngine(uri, dbName string) (*Engine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return &Engine{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// Close disconnects from MongoDB.
func (e *Engine) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_ = e.client.Disconnect(ctx)
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// CreateCollection is a no-op beyond validation: MongoDB creates collections
// lazily on first insert.
func (e *Engine) CreateCollection(pack string) error {
	if pack == "" {
		return fmt.Errorf("collection name must not be empty")
	}
	return nil
}

// HasCollection reports whether the pack holds any documents.
func (e *Engine) HasCollection(pack string) bool {
	ctx, cancel := opContext()
	defer cancel()
	names, err := e.db.ListCollectionNames(ctx, bson.M{"name": pack})
	if err != nil {
		return false
	}
	return len(names) > 0
}

// CollectionIDs lists the identifiers present in a pack without loading
// document bodies.
func (e *Engine) CollectionIDs(pack string) ([]string, error) {
	ctx, cancel := opContext()
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := e.db.Collection(pack).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cursor.Err()
}

// CreateDocuments inserts documents into a pack, dispatching pre-observers
// before the insert and post-observers after it.
func (e *Engine) CreateDocuments(pack string, specs []domain.DocumentSpec, opts domain.MutationOptions) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(specs))
	rows := make([]interface{}, 0, len(specs))
	for i := range specs {
		spec := specs[i]
		e.DispatchPreCreate(pack, &spec, opts)
		if spec.ID == "" {
			spec.ID = uuid.NewString()
		}
		doc := domain.Document{ID: spec.ID, Name: spec.Name, Envelope: spec.Envelope}
		docs = append(docs, doc)
		rows = append(rows, doc)
	}

	ctx, cancel := opContext()
	defer cancel()
	if _, err := e.db.Collection(pack).InsertMany(ctx, rows); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		e.DispatchPostCreate(pack, doc, opts)
	}
	return docs, nil
}

// GetDocument fetches one document by identifier.
func (e *Engine) GetDocument(pack, id string) (*domain.Document, error) {
	ctx, cancel := opContext()
	defer cancel()

	var doc domain.Document
	err := e.db.Collection(pack).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &domain.NotFoundError{Pack: pack, ID: id}
		}
		return nil, err
	}
	return &doc, nil
}

// GetDocuments bulk-fetches the given identifiers in one query; missing
// identifiers are silently absent from the result, which follows the order
// of ids.
func (e *Engine) GetDocuments(pack string, ids []string) ([]domain.Document, error) {
	ctx, cancel := opContext()
	defer cancel()

	cursor, err := e.db.Collection(pack).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	found := make(map[string]domain.Document)
	for cursor.Next(ctx) {
		var doc domain.Document
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		found[doc.ID] = doc
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(found))
	for _, id := range ids {
		if doc, ok := found[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// UpdateDocument applies a partial change to a document with a
// read-modify-replace, dispatching pre-observers before the write and
// post-observers after it.
func (e *Engine) UpdateDocument(pack, id string, change domain.DocumentChange, opts domain.MutationOptions) error {
	doc, err := e.GetDocument(pack, id)
	if err != nil {
		return err
	}

	e.DispatchPreUpdate(pack, *doc, &change, opts)

	updated := *doc
	if change.Name != nil {
		updated.Name = *change.Name
	}
	if len(change.Index) > 0 {
		rec := updated.Envelope.Index.Clone()
		if rec == nil {
			rec = &domain.IndexRecord{}
		}
		change.Index.Apply(rec)
		updated.Envelope.Index = rec
	}
	if change.Payload != nil {
		updated.Envelope.Payload = change.Payload
	}

	ctx, cancel := opContext()
	defer cancel()
	result, err := e.db.Collection(pack).ReplaceOne(ctx, bson.M{"_id": id}, updated)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return &domain.NotFoundError{Pack: pack, ID: id}
	}

	e.DispatchPostUpdate(pack, updated, change, opts)
	return nil
}

// DeleteDocuments removes documents from a pack, dispatching post-observers
// for each document that actually existed.
func (e *Engine) DeleteDocuments(pack string, ids []string, opts domain.MutationOptions) error {
	removed, err := e.GetDocuments(pack, ids)
	if err != nil {
		return err
	}

	ctx, cancel := opContext()
	defer cancel()
	if _, err := e.db.Collection(pack).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return err
	}

	for _, doc := range removed {
		e.DispatchPostDelete(pack, doc, opts)
	}
	return nil
}
