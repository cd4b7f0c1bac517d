package domain

// MutationOptions carries per-call context for engine mutations. The actor
// identity is explicit so observers can scope propagation deterministically.
type MutationOptions struct {
	Actor Actor
}

// Engine is the persistence boundary the core consumes. Implementations must
// invoke pre-observers synchronously before a write commits and
// post-observers asynchronously after it.
type Engine interface {
	CreateCollection(pack string) error
	HasCollection(pack string) bool
	// CollectionIDs lists the identifiers present in a pack without loading
	// document bodies.
	CollectionIDs(pack string) ([]string, error)

	CreateDocuments(pack string, specs []DocumentSpec, opts MutationOptions) ([]Document, error)
	GetDocument(pack, id string) (*Document, error)
	// GetDocuments bulk-fetches the given identifiers in one pass; missing
	// identifiers are silently absent from the result.
	GetDocuments(pack string, ids []string) ([]Document, error)
	UpdateDocument(pack, id string, change DocumentChange, opts MutationOptions) error
	DeleteDocuments(pack string, ids []string, opts MutationOptions) error

	RegisterObserver(obs MutationObserver)
	// WaitForObservers blocks until all in-flight post-observer dispatches
	// have completed. Used on shutdown and by tests that need the eventual
	// consistency window closed.
	WaitForObservers()
}
