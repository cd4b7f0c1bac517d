package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// PaginationOptions defines pagination parameters for retrieve results.
type PaginationOptions struct {
	// Cursor-based pagination
	After  string `json:"after,omitempty"`
	Before string `json:"before,omitempty"`

	// Limit/offset pagination (fallback)
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	MaxLimit int `json:"max_limit,omitempty"`
}

// PaginationResult contains one page of entries plus pagination metadata.
type PaginationResult struct {
	Entries    []*Entry `json:"entries"`
	HasNext    bool     `json:"has_next"`
	HasPrev    bool     `json:"has_prev"`
	NextCursor string   `json:"next_cursor,omitempty"`
	PrevCursor string   `json:"prev_cursor,omitempty"`
	Total      int64    `json:"total,omitempty"`
}

// Cursor represents a pagination cursor. Pages are anchored on the entry
// identifier at the page boundary.
type Cursor struct {
	ID string `json:"id"`
}

// EncodeCursor encodes a cursor to base64.
func EncodeCursor(cursor *Cursor) (string, error) {
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeCursor decodes a base64 cursor.
func DecodeCursor(encoded string) (*Cursor, error) {
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cursor: %w", err)
	}

	return &cursor, nil
}

// DefaultPaginationOptions returns default pagination settings.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{
		Limit:    50,
		MaxLimit: 1000,
	}
}

// Validate validates pagination options.
func (po *PaginationOptions) Validate() error {
	if po.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if po.Offset < 0 {
		return fmt.Errorf("offset cannot be negative")
	}
	if po.MaxLimit > 0 && po.Limit > po.MaxLimit {
		return fmt.Errorf("limit %d exceeds maximum %d", po.Limit, po.MaxLimit)
	}

	if (po.After != "" || po.Before != "") && po.Offset > 0 {
		return fmt.Errorf("cannot mix cursor-based and offset-based pagination")
	}
	if po.After != "" && po.Before != "" {
		return fmt.Errorf("cannot combine after and before cursors")
	}

	return nil
}
