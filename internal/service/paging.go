package service

import (
	"context"
)

const defaultPageSize = 100

// fetchPages walks limit/offset pages starting at offset until a page comes
// back short or empty.
func fetchPages[T any](
	ctx context.Context,
	fetch func(ctx context.Context, offset, limit int) ([]T, error),
	offset, pageSize int,
	onProgress func(loaded int),
) ([]T, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var all []T
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page, err := fetch(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)

		if onProgress != nil {
			onProgress(len(all))
		}

		if len(page) < pageSize {
			break
		}
		offset += pageSize
	}

	return all, nil
}
