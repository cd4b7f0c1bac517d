package domain

import (
	"fmt"
	"strings"
)

const (
	// LocatorScheme prefixes every entry locator.
	LocatorScheme = "pack"
	// DocumentKind is the kind segment used in entry locators.
	DocumentKind = "entry"
	// DefaultEntryType is assigned to entries stored without an explicit type.
	DefaultEntryType = "generic"
)

// IndexRecord holds the five searchable index fields of an entry. These are
// the only externally settable index metadata; everything else an entry
// carries lives in its opaque payload.
type IndexRecord struct {
	Name  string   `json:"name" msgpack:"name" bson:"name"`
	Thumb string   `json:"thumb" msgpack:"thumb" bson:"thumb"`
	Tags  []string `json:"tags" msgpack:"tags" bson:"tags"`
	Type  string   `json:"type" msgpack:"type" bson:"type"`
	Desc  string   `json:"desc" msgpack:"desc" bson:"desc"`
}

// Clone returns a deep copy of the record.
func (r *IndexRecord) Clone() *IndexRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Tags = append([]string(nil), r.Tags...)
	return &out
}

// IndexPatch is a partial index update keyed by field name.
type IndexPatch map[string]interface{}

// Validate rejects unknown fields and wrong-typed values. Field types are
// fixed; values are never coerced.
func (p IndexPatch) Validate() error {
	for field, value := range p {
		switch field {
		case "name", "thumb", "type", "desc":
			if _, ok := value.(string); !ok {
				return &ValidationError{Field: field, Reason: fmt.Sprintf("must be a string, got %T", value)}
			}
		case "tags":
			if _, ok := tagStrings(value); !ok {
				return &ValidationError{Field: field, Reason: fmt.Sprintf("must be an array of strings, got %T", value)}
			}
		default:
			return &ValidationError{Field: field, Reason: "not an index field"}
		}
	}
	return nil
}

// Apply overwrites the fields present in the patch onto rec. The patch must
// have been validated first; unknown or mistyped values are ignored here.
func (p IndexPatch) Apply(rec *IndexRecord) {
	if v, ok := p["name"].(string); ok {
		rec.Name = v
	}
	if v, ok := p["thumb"].(string); ok {
		rec.Thumb = v
	}
	if v, ok := p["type"].(string); ok {
		rec.Type = v
	}
	if v, ok := p["desc"].(string); ok {
		rec.Desc = v
	}
	if raw, ok := p["tags"]; ok {
		if tags, ok := tagStrings(raw); ok {
			rec.Tags = tags
		}
	}
}

// tagStrings normalizes the two shapes a tag list arrives in: []string from
// typed callers and []interface{} from decoded JSON.
func tagStrings(value interface{}) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), true
	case []interface{}:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			tags = append(tags, s)
		}
		return tags, true
	default:
		return nil, false
	}
}

// Entry is one logical record: the index projection plus, once hydrated, the
// opaque payload of its underlying document.
type Entry struct {
	ID   string `json:"id"`
	Pack string `json:"pack"`
	IndexRecord
	Data   interface{} `json:"data,omitempty"`
	loaded bool
}

// Loaded reports whether the entry's payload has been hydrated.
func (e *Entry) Loaded() bool { return e.loaded }

// SetData attaches a hydrated payload to the entry.
func (e *Entry) SetData(data interface{}) {
	e.Data = data
	e.loaded = true
}

// Locator computes the entry's URI-like reference. It is derived on demand
// and never persisted.
func (e *Entry) Locator() string {
	return fmt.Sprintf("%s://%s/%s/%s", LocatorScheme, e.Pack, DocumentKind, e.ID)
}

// ParseLocator resolves a locator of the form pack://{pack}/entry/{id} into
// its collection/identifier pair.
func ParseLocator(ref string) (pack, id string, err error) {
	rest, ok := strings.CutPrefix(ref, LocatorScheme+"://")
	if !ok {
		return "", "", &LookupError{Ref: ref, Reason: "missing scheme"}
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] != DocumentKind || parts[2] == "" {
		return "", "", &LookupError{Ref: ref, Reason: "malformed reference"}
	}
	return parts[0], parts[2], nil
}
