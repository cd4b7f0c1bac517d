package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorRoundTrip(t *testing.T) {
	entry := &Entry{ID: "abc123", Pack: "weapons"}
	ref := entry.Locator()
	assert.Equal(t, "pack://weapons/entry/abc123", ref)

	pack, id, err := ParseLocator(ref)
	require.NoError(t, err)
	assert.Equal(t, "weapons", pack)
	assert.Equal(t, "abc123", id)
}

func TestParseLocatorErrors(t *testing.T) {
	tests := []struct {
		name string
		ref  string
	}{
		{"missing scheme", "weapons/entry/abc123"},
		{"wrong scheme", "http://weapons/entry/abc123"},
		{"missing kind", "pack://weapons/abc123"},
		{"wrong kind", "pack://weapons/doc/abc123"},
		{"empty pack", "pack:///entry/abc123"},
		{"empty id", "pack://weapons/entry/"},
		{"extra segments", "pack://weapons/entry/abc123/extra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseLocator(tt.ref)
			require.Error(t, err)
			assert.True(t, IsLookup(err))
		})
	}
}

func TestIndexPatchValidate(t *testing.T) {
	tests := []struct {
		name    string
		patch   IndexPatch
		wantErr bool
	}{
		{"valid full", IndexPatch{"name": "Sword", "thumb": "s.png", "tags": []string{"melee"}, "type": "weapon", "desc": "sharp"}, false},
		{"valid partial", IndexPatch{"name": "Sword"}, false},
		{"json shaped tags", IndexPatch{"tags": []interface{}{"melee", "iron"}}, false},
		{"unknown field", IndexPatch{"weight": 10}, true},
		{"wrong name type", IndexPatch{"name": 42}, true},
		{"wrong tags type", IndexPatch{"tags": "melee"}, true},
		{"mixed tag elements", IndexPatch{"tags": []interface{}{"melee", 7}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIndexPatchApply(t *testing.T) {
	rec := &IndexRecord{Name: "Old", Thumb: "old.png", Tags: []string{"a"}, Type: "generic"}
	patch := IndexPatch{"name": "New", "tags": []interface{}{"b", "c"}}
	patch.Apply(rec)

	assert.Equal(t, "New", rec.Name)
	assert.Equal(t, "old.png", rec.Thumb)
	assert.Equal(t, []string{"b", "c"}, rec.Tags)
	assert.Equal(t, "generic", rec.Type)
}

func TestElectResponder(t *testing.T) {
	tests := []struct {
		name   string
		roster []Actor
		wantID string
		wantOK bool
	}{
		{
			"highest role wins",
			[]Actor{{ID: "a", Role: RoleKeeper}, {ID: "b", Role: RoleAdmin}},
			"b", true,
		},
		{
			"ties broken by lowest id",
			[]Actor{{ID: "z", Role: RoleAdmin}, {ID: "a", Role: RoleAdmin}},
			"a", true,
		},
		{
			"unprivileged actors ignored",
			[]Actor{{ID: "a", Role: RoleObserver}, {ID: "b", Role: RoleMember}, {ID: "c", Role: RoleKeeper}},
			"c", true,
		},
		{
			"no privileged actor",
			[]Actor{{ID: "a", Role: RoleMember}},
			"", false,
		},
		{
			"empty roster",
			nil,
			"", false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elected, ok := ElectResponder(tt.roster)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, elected.ID)
			}
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	data := map[string]interface{}{"damage": "1d8", "weight": int8(4)}
	encoded, err := EncodePayload(data)
	require.NoError(t, err)

	decoded, err := DecodePayload(encoded)
	require.NoError(t, err)
	out, ok := decoded.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1d8", out["damage"])
}

func TestDecodePayloadEmpty(t *testing.T) {
	decoded, err := DecodePayload(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}
