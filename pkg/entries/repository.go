// Package entries exposes the entry-level operations over packs: storing,
// retrieving, hydrating and deleting entries, with permission checks and
// proxying for unprivileged actors.
package entries

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/packstore/packstore/pkg/domain"
	"github.com/packstore/packstore/pkg/index"
	"github.com/packstore/packstore/pkg/metrics"
	"github.com/packstore/packstore/pkg/relay"
)

// Config carries the repository's deployment settings.
type Config struct {
	// DefaultPack receives entries stored without an explicit pack.
	DefaultPack string
	// DefaultThumb is the icon assigned to entries stored without one.
	DefaultThumb string
	// LockedPacks may only be written by admins.
	LockedPacks []string
	// LocalActor is the identity this process writes under when executing
	// proxied requests on behalf of remote actors.
	LocalActor domain.Actor
}

// Repository is the entry store facade. All operations take the calling
// actor explicitly.
type Repository struct {
	engine  domain.Engine
	manager *index.Manager
	relay   *relay.Channel
	cfg     Config
	locked  map[string]bool
	metrics *metrics.Metrics
}

var _ relay.Backend = (*Repository)(nil)

// NewRepository creates an entry repository over the given engine and index
// manager.
func NewRepository(engine domain.Engine, manager *index.Manager, cfg Config, m *metrics.Metrics) *Repository {
	locked := make(map[string]bool, len(cfg.LockedPacks))
	for _, pack := range cfg.LockedPacks {
		locked[pack] = true
	}
	return &Repository{
		engine:  engine,
		manager: manager,
		cfg:     cfg,
		locked:  locked,
		metrics: m,
	}
}

// AttachRelay wires a proxy channel into the repository: outgoing, the
// repository proxies writes from unprivileged actors through it; incoming,
// the repository serves as the channel's backend.
func (r *Repository) AttachRelay(ch *relay.Channel) {
	r.relay = ch
	ch.AttachBackend(r)
}

// StoreRequest describes one entry to store.
type StoreRequest struct {
	// Fields sets index fields on the new entry; unknown fields are rejected.
	Fields domain.IndexPatch
	// Data is the opaque payload. Required.
	Data interface{}
	// Pack targets a specific pack; empty means the default pack.
	Pack string
	// Actor performs the operation.
	Actor domain.Actor
}

// Store persists one entry. Unprivileged actors are proxied through the
// relay channel when one is attached.
func (r *Repository) Store(req StoreRequest) (*domain.Entry, error) {
	if req.Data == nil {
		return nil, &domain.ValidationError{Field: "data", Reason: "is required"}
	}
	if err := req.Fields.Validate(); err != nil {
		return nil, err
	}

	pack := req.Pack
	if pack == "" {
		pack = r.cfg.DefaultPack
	}

	if !req.Actor.CanWrite() {
		return r.proxyStore(pack, req)
	}
	if r.locked[pack] && req.Actor.Role != domain.RoleAdmin {
		return nil, &domain.PermissionError{Op: "store", Pack: pack}
	}

	if err := r.EnsureManaged(pack, req.Actor); err != nil {
		return nil, err
	}

	rec := &domain.IndexRecord{
		Thumb: r.cfg.DefaultThumb,
		Tags:  []string{},
		Type:  domain.DefaultEntryType,
	}
	req.Fields.Apply(rec)
	rec.Tags = index.NormalizeTags(rec.Tags)
	if rec.Name == "" {
		return nil, &domain.ValidationError{Field: "name", Reason: "is required"}
	}

	payload, err := domain.EncodePayload(req.Data)
	if err != nil {
		return nil, err
	}

	spec := domain.DocumentSpec{
		Name:     rec.Name,
		Envelope: domain.Envelope{Index: rec, Payload: payload},
	}
	docs, err := r.engine.CreateDocuments(pack, []domain.DocumentSpec{spec}, domain.MutationOptions{Actor: req.Actor})
	if err != nil {
		return nil, err
	}

	entry := entryFromDocument(pack, docs[0])
	entry.SetData(req.Data)
	r.metrics.RecordStore()
	return entry, nil
}

// proxyStore forwards a store request from an unprivileged actor over the
// relay channel and rebuilds the created entry from the resolve.
func (r *Repository) proxyStore(pack string, req StoreRequest) (*domain.Entry, error) {
	if r.relay == nil {
		return nil, &domain.PermissionError{Op: "store", Pack: pack}
	}
	result := r.relay.Request(relay.HandlerStore, map[string]interface{}{
		"pack":   pack,
		"fields": map[string]interface{}(req.Fields),
		"data":   req.Data,
	})
	if result == nil {
		// Timed out: no privileged actor answered. The caller cannot tell
		// "nobody present" from "slow network", so this resolves to nothing
		// rather than an error.
		log.Printf("WARN: Store request for pack '%s' was not answered", pack)
		return nil, nil
	}
	if msg, ok := result["error"].(string); ok {
		return nil, fmt.Errorf("proxied store failed: %s", msg)
	}

	id, _ := result["id"].(string)
	entry := &domain.Entry{ID: id, Pack: pack}
	entry.Thumb = r.cfg.DefaultThumb
	entry.Tags = []string{}
	entry.Type = domain.DefaultEntryType
	req.Fields.Apply(&entry.IndexRecord)
	entry.Tags = index.NormalizeTags(entry.Tags)
	entry.SetData(req.Data)
	return entry, nil
}

// EnsureManaged creates the pack and its metadata record on first write.
func (r *Repository) EnsureManaged(pack string, actor domain.Actor) error {
	if !r.engine.HasCollection(pack) {
		if err := r.engine.CreateCollection(pack); err != nil {
			return err
		}
	}
	if r.manager.IsManaged(pack) {
		return nil
	}
	payload, err := index.EncodeMetaIndex(map[string]*domain.IndexRecord{})
	if err != nil {
		return err
	}
	spec := domain.DocumentSpec{
		ID:       index.MetaDocumentID,
		Name:     index.MetaDocumentName,
		Envelope: domain.Envelope{Payload: payload},
	}
	_, err = r.engine.CreateDocuments(pack, []domain.DocumentSpec{spec}, domain.MutationOptions{Actor: actor})
	return err
}

// RetrieveRequest describes an entry lookup. Exactly one lookup mode
// applies, in this precedence: identifiers, query text, structured filters.
type RetrieveRequest struct {
	// IDs resolves specific entries by identifier or locator, bypassing all
	// filters.
	IDs []string
	// Pack scopes the lookup; empty means the default pack.
	Pack string
	// Query is a compact text query ("sword #weapon -@spell").
	Query string
	// Name, Types and Tags are structured filters, used when Query is empty.
	Name  string
	Types []string
	Tags  []string
	// MatchAnyTag selects OR semantics across Tags; nil keeps the default
	// (any).
	MatchAnyTag *bool
	// Candidates restricts matching to the given identifiers.
	Candidates []string
	// Full hydrates payloads on the results.
	Full bool
	// Actor performs the lookup.
	Actor domain.Actor
}

func (req *RetrieveRequest) structured() bool {
	return req.Name != "" || len(req.Types) > 0 || len(req.Tags) > 0
}

// Retrieve resolves entries by identifier or by index search. Identifier
// lookups bypass all filters; searches never touch payloads unless Full is
// set.
func (r *Repository) Retrieve(req RetrieveRequest) ([]*domain.Entry, error) {
	pack := req.Pack
	if pack == "" {
		pack = r.cfg.DefaultPack
	}

	if len(req.IDs) > 0 {
		return r.retrieveByID(pack, req.IDs)
	}

	var pos, neg *index.Predicate
	switch {
	case req.Query != "":
		if req.structured() {
			log.Printf("WARN: Retrieve got both a query and structured filters; the query wins")
		}
		pos, neg = index.ParseQuery(req.Query)
	case req.structured():
		pos = index.BuildPredicate(req.Name, req.Types, req.Tags, req.MatchAnyTag)
	default:
		return nil, &domain.ValidationError{Field: "query", Reason: "requires ids, a query, or structured filters"}
	}

	store, err := r.manager.LoadIndex(pack)
	if err != nil {
		if domain.IsNotFound(err) {
			// Unmanaged packs have no index to search.
			return []*domain.Entry{}, nil
		}
		return nil, err
	}

	var candidates map[string]bool
	if len(req.Candidates) > 0 {
		candidates = make(map[string]bool, len(req.Candidates))
		for _, id := range req.Candidates {
			candidates[id] = true
		}
	}

	entries := make([]*domain.Entry, 0)
	store.Each(func(id string, rec *domain.IndexRecord) bool {
		if id == index.MetaDocumentID {
			return true
		}
		if candidates != nil && !candidates[id] {
			return true
		}
		if index.Match(rec, pos, neg) {
			entries = append(entries, entryFromRecord(pack, id, rec))
		}
		return true
	})

	sortEntries(entries)
	r.metrics.RecordSearch(len(entries))

	if req.Full {
		if err := r.LoadFull(entries); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// retrieveByID bulk-fetches specific entries. Identifiers may be bare (read
// against the scoped pack) or full locators. Malformed references and
// missing documents are skipped with a warning so one bad reference does not
// fail the batch.
func (r *Repository) retrieveByID(pack string, ids []string) ([]*domain.Entry, error) {
	byPack := make(map[string][]string)
	order := make([]string, 0, len(ids))
	for _, ref := range ids {
		targetPack, id := pack, ref
		if p, parsed, err := domain.ParseLocator(ref); err == nil {
			targetPack, id = p, parsed
		} else if domain.IsLookup(err) && looksLikeLocator(ref) {
			log.Printf("WARN: Skipping malformed entry reference '%s': %v", ref, err)
			continue
		}
		if id == index.MetaDocumentID {
			continue
		}
		byPack[targetPack] = append(byPack[targetPack], id)
		order = append(order, targetPack+"/"+id)
	}

	found := make(map[string]*domain.Entry)
	for targetPack, packIDs := range byPack {
		docs, err := r.engine.GetDocuments(targetPack, packIDs)
		if err != nil {
			if domain.IsNotFound(err) {
				log.Printf("WARN: Skipping %d references to unknown pack '%s': %v", len(packIDs), targetPack, err)
				continue
			}
			return nil, err
		}
		for _, doc := range docs {
			entry := entryFromDocument(targetPack, doc)
			if data, err := domain.DecodePayload(doc.Envelope.Payload); err == nil {
				entry.SetData(data)
			}
			found[targetPack+"/"+doc.ID] = entry
		}
	}

	entries := make([]*domain.Entry, 0, len(found))
	for _, key := range order {
		if entry, ok := found[key]; ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Get resolves a single entry by pack and identifier, hydrated.
func (r *Repository) Get(pack, id string) (*domain.Entry, error) {
	if pack == "" {
		pack = r.cfg.DefaultPack
	}
	if id == index.MetaDocumentID {
		return nil, &domain.NotFoundError{Pack: pack, ID: id}
	}
	doc, err := r.engine.GetDocument(pack, id)
	if err != nil {
		return nil, err
	}
	entry := entryFromDocument(pack, *doc)
	data, err := domain.DecodePayload(doc.Envelope.Payload)
	if err != nil {
		return nil, err
	}
	entry.SetData(data)
	return entry, nil
}

// Delete removes entries from a pack. Unprivileged actors are proxied
// through the relay channel when one is attached.
func (r *Repository) Delete(pack string, ids []string, actor domain.Actor) error {
	if pack == "" {
		pack = r.cfg.DefaultPack
	}
	if !actor.CanWrite() {
		return r.proxyDelete(pack, ids)
	}
	if r.locked[pack] && actor.Role != domain.RoleAdmin {
		return &domain.PermissionError{Op: "delete", Pack: pack}
	}

	filtered := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == index.MetaDocumentID {
			continue
		}
		filtered = append(filtered, id)
	}
	if len(filtered) == 0 {
		return nil
	}
	if err := r.engine.DeleteDocuments(pack, filtered, domain.MutationOptions{Actor: actor}); err != nil {
		return err
	}
	for range filtered {
		r.metrics.RecordDelete()
	}
	return nil
}

func (r *Repository) proxyDelete(pack string, ids []string) error {
	if r.relay == nil {
		return &domain.PermissionError{Op: "delete", Pack: pack}
	}
	result := r.relay.Request(relay.HandlerDelete, map[string]interface{}{
		"pack": pack,
		"ids":  ids,
	})
	if result == nil {
		log.Printf("WARN: Delete request for pack '%s' was not answered", pack)
		return nil
	}
	if msg, ok := result["error"].(string); ok {
		return fmt.Errorf("proxied delete failed: %s", msg)
	}
	return nil
}

// LoadFull hydrates payloads onto index-only entries with one bulk document
// fetch per pack, regardless of entry count. Already-hydrated entries are
// left alone.
func (r *Repository) LoadFull(entries []*domain.Entry) error {
	byPack := make(map[string][]string)
	pending := make(map[string]*domain.Entry)
	for _, entry := range entries {
		if entry.Loaded() {
			continue
		}
		byPack[entry.Pack] = append(byPack[entry.Pack], entry.ID)
		pending[entry.Pack+"/"+entry.ID] = entry
	}

	for pack, ids := range byPack {
		docs, err := r.engine.GetDocuments(pack, ids)
		if err != nil {
			return err
		}
		r.metrics.RecordHydrationBatch()
		for _, doc := range docs {
			entry, ok := pending[pack+"/"+doc.ID]
			if !ok {
				continue
			}
			data, err := domain.DecodePayload(doc.Envelope.Payload)
			if err != nil {
				log.Printf("WARN: Could not decode payload of entry '%s' in pack '%s': %v", doc.ID, pack, err)
				continue
			}
			entry.SetData(data)
		}
	}
	return nil
}

// ProxyStore executes a relayed store request under the local actor's
// authority. It implements relay.Backend.
func (r *Repository) ProxyStore(args map[string]interface{}, requester domain.Actor) (map[string]interface{}, error) {
	pack, _ := args["pack"].(string)
	fields, _ := args["fields"].(map[string]interface{})
	entry, err := r.Store(StoreRequest{
		Fields: domain.IndexPatch(fields),
		Data:   args["data"],
		Pack:   pack,
		Actor:  r.cfg.LocalActor,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: Stored entry '%s' in pack '%s' on behalf of actor '%s'", entry.ID, entry.Pack, requester.ID)
	return map[string]interface{}{
		"id":      entry.ID,
		"pack":    entry.Pack,
		"locator": entry.Locator(),
	}, nil
}

// ProxyDelete executes a relayed delete request under the local actor's
// authority. It implements relay.Backend.
func (r *Repository) ProxyDelete(args map[string]interface{}, requester domain.Actor) (map[string]interface{}, error) {
	pack, _ := args["pack"].(string)
	rawIDs, _ := args["ids"].([]interface{})
	ids := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		if id, ok := raw.(string); ok {
			ids = append(ids, id)
		}
	}
	if err := r.Delete(pack, ids, r.cfg.LocalActor); err != nil {
		return nil, err
	}
	log.Printf("INFO: Deleted %d entries from pack '%s' on behalf of actor '%s'", len(ids), pack, requester.ID)
	return map[string]interface{}{"deleted": len(ids)}, nil
}

func sortEntries(entries []*domain.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID < entries[j].ID
	})
}

// looksLikeLocator distinguishes a malformed locator from a bare identifier.
func looksLikeLocator(ref string) bool {
	return strings.HasPrefix(ref, domain.LocatorScheme+"://")
}

func entryFromDocument(pack string, doc domain.Document) *domain.Entry {
	entry := &domain.Entry{ID: doc.ID, Pack: pack}
	if doc.Envelope.Index != nil {
		entry.IndexRecord = *doc.Envelope.Index.Clone()
	} else {
		entry.Name = doc.Name
	}
	return entry
}

func entryFromRecord(pack, id string, rec *domain.IndexRecord) *domain.Entry {
	return &domain.Entry{ID: id, Pack: pack, IndexRecord: *rec.Clone()}
}
