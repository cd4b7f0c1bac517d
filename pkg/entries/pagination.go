package entries

import "github.com/packstore/packstore/pkg/domain"

// Paginate slices a sorted result set into one page. An After cursor carries
// the last entry identifier of the previous page, a Before cursor the first
// identifier of the next page; offset pagination is the fallback.
func Paginate(entries []*domain.Entry, opts *domain.PaginationOptions) (*domain.PaginationResult, error) {
	if opts == nil {
		opts = domain.DefaultPaginationOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = domain.DefaultPaginationOptions().Limit
	}

	total := int64(len(entries))
	start := 0
	end := len(entries)

	switch {
	case opts.After != "":
		cursor, err := domain.DecodeCursor(opts.After)
		if err != nil {
			return nil, err
		}
		for i, entry := range entries {
			if entry.ID == cursor.ID {
				start = i + 1
				break
			}
		}
		end = start + limit
	case opts.Before != "":
		cursor, err := domain.DecodeCursor(opts.Before)
		if err != nil {
			return nil, err
		}
		for i, entry := range entries {
			if entry.ID == cursor.ID {
				end = i
				break
			}
		}
		start = end - limit
		if start < 0 {
			start = 0
		}
	default:
		start = opts.Offset
		end = start + limit
	}
	if start > len(entries) {
		start = len(entries)
	}
	if end > len(entries) {
		end = len(entries)
	}
	if end < start {
		end = start
	}

	page := entries[start:end]
	result := &domain.PaginationResult{
		Entries: page,
		HasNext: end < len(entries),
		HasPrev: start > 0,
		Total:   total,
	}
	if result.HasNext && len(page) > 0 {
		cursor, err := domain.EncodeCursor(&domain.Cursor{ID: page[len(page)-1].ID})
		if err != nil {
			return nil, err
		}
		result.NextCursor = cursor
	}
	if result.HasPrev && len(page) > 0 {
		cursor, err := domain.EncodeCursor(&domain.Cursor{ID: page[0].ID})
		if err != nil {
			return nil, err
		}
		result.PrevCursor = cursor
	}
	return result, nil
}
