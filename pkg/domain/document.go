package domain

import "github.com/vmihailenco/msgpack/v5"

// Document is one persisted record inside a pack. The envelope carries the
// searchable index fields and the opaque payload; everything else about the
// document belongs to the engine.
type Document struct {
	ID       string   `json:"_id" msgpack:"_id" bson:"_id"`
	Name     string   `json:"name" msgpack:"name" bson:"name"`
	Envelope Envelope `json:"envelope" msgpack:"envelope" bson:"envelope"`
}

// Envelope is the typed payload area of a document.
type Envelope struct {
	Index   *IndexRecord `json:"index,omitempty" msgpack:"index,omitempty" bson:"index,omitempty"`
	Payload []byte       `json:"payload,omitempty" msgpack:"payload,omitempty" bson:"payload,omitempty"`
}

// DocumentSpec describes a document about to be created. Pre-create
// observers may mutate the spec before it commits.
type DocumentSpec struct {
	ID       string
	Name     string
	Envelope Envelope
}

// DocumentChange describes a partial document update. Nil members are left
// untouched. Payload bytes are authoritative for the engine; PayloadPatch is
// advisory merge-patch information carried through to post-update observers
// so derived caches can be patched without re-decoding the payload.
type DocumentChange struct {
	Name         *string
	Index        IndexPatch
	Payload      []byte
	PayloadPatch map[string]interface{}
}

// Empty reports whether the change would not modify the document.
func (c DocumentChange) Empty() bool {
	return c.Name == nil && len(c.Index) == 0 && c.Payload == nil
}

// EncodePayload serializes an opaque payload value for storage inside a
// document envelope.
func EncodePayload(data interface{}) ([]byte, error) {
	encoded, err := msgpack.Marshal(data)
	if err != nil {
		return nil, &ValidationError{Field: "data", Reason: "payload is not serializable: " + err.Error()}
	}
	return encoded, nil
}

// DecodePayload deserializes an envelope payload back into its opaque value.
func DecodePayload(encoded []byte) (interface{}, error) {
	if len(encoded) == 0 {
		return nil, nil
	}
	var data interface{}
	if err := msgpack.Unmarshal(encoded, &data); err != nil {
		return nil, err
	}
	return data, nil
}
