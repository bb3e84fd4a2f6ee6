package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mmcdole/directus/internal/domain"
)

// ItemService runs item operations against one collection.
type ItemService struct {
	client *Client
	coll   domain.Collection
}

// Items returns the item operations of coll.
func (c *Client) Items(coll domain.Collection) *ItemService {
	return &ItemService{client: c, coll: coll}
}

// Collection returns the bound collection.
func (s *ItemService) Collection() domain.Collection { return s.coll }

// List fetches the items matching q. Cache behaviour follows opts and the
// cache key is "GET <url>" unless opts names one.
func (s *ItemService) List(ctx context.Context, q domain.ListQuery, opts CacheOptions) ([]*domain.Record, error) {
	api := s.client.api
	return send(ctx, s.client.engine,
		func(context.Context) (domain.PreparedRequest, error) { return api.PrepareListItems(s.coll, q) },
		api.ParseListItems,
		RequestOptions{DependsOnToken: true, Cache: opts},
	)
}

// ListAll pages through every item matching q, pageSize at a time, starting
// at q.Offset. q.Limit is ignored. Each page is cached under its own URL key.
func (s *ItemService) ListAll(ctx context.Context, q domain.ListQuery, pageSize int, opts CacheOptions, onProgress func(loaded int)) ([]*domain.Record, error) {
	opts.RequestIdentifier = ""
	return fetchPages(ctx, func(ctx context.Context, offset, limit int) ([]*domain.Record, error) {
		page := q
		page.Offset = offset
		page.Limit = limit
		return s.List(ctx, page, opts)
	}, q.Offset, pageSize, onProgress)
}

// Get fetches one item. Its cache key and tag default to "<collection>/<id>",
// so Update and Delete invalidate it.
func (s *ItemService) Get(ctx context.Context, id, fields string, opts CacheOptions) (*domain.Record, error) {
	if opts.RequestIdentifier == "" {
		opts.RequestIdentifier = s.coll.ItemTag(id)
	}
	tags := []string{opts.RequestIdentifier}

	api := s.client.api
	return send(ctx, s.client.engine,
		func(context.Context) (domain.PreparedRequest, error) {
			return api.PrepareGetItem(s.coll, id, fields, tags)
		},
		api.ParseItem,
		RequestOptions{DependsOnToken: true, Cache: opts},
	)
}

// Create stores item on the server. The id of a new item is not sent.
func (s *ItemService) Create(ctx context.Context, item *domain.Record, fields string) (domain.ItemCreationResult, error) {
	if item == nil {
		return domain.ItemCreationResult{}, fmt.Errorf("%w: nothing to create", domain.ErrInvalidRequest)
	}
	return s.CreateMany(ctx, []*domain.Record{item}, fields)
}

// CreateMany stores items in one request. Server rejections are reported in
// the result's Err.
func (s *ItemService) CreateMany(ctx context.Context, items []*domain.Record, fields string) (domain.ItemCreationResult, error) {
	if len(items) == 0 {
		return domain.ItemCreationResult{}, fmt.Errorf("%w: items must not be empty", domain.ErrInvalidRequest)
	}
	payload := make([]*domain.Fields, 0, len(items))
	for _, item := range items {
		payload = append(payload, item.ForCreation())
	}

	api := s.client.api
	return send(ctx, s.client.engine,
		func(context.Context) (domain.PreparedRequest, error) {
			return api.PrepareCreateItems(s.coll, fields, payload)
		},
		api.ParseCreateItems,
		RequestOptions{DependsOnToken: true, Cache: NoCache()},
	)
}

// Update sends the pending changes of item, or all of its fields when force
// is set. An item without changes is returned as is. The returned record is
// item's data overlaid with the server's response, and cached reads of the
// item are invalidated.
func (s *ItemService) Update(ctx context.Context, item *domain.Record, fields string, force bool) (*domain.Record, error) {
	id := item.ID()
	if id == "" {
		return nil, domain.ErrMissingID
	}
	if !item.NeedsSaving() && !force {
		return item, nil
	}

	body := item.Pending()
	if force {
		body = item.Merged()
	}
	if allowed := s.coll.UpdateFields(); allowed != nil {
		body = body.Filter(func(key string) bool {
			return key == domain.IDField || slices.Contains(allowed, key)
		})
	}

	api := s.client.api
	updated, err := send(ctx, s.client.engine,
		func(context.Context) (domain.PreparedRequest, error) {
			return api.PrepareUpdateItem(s.coll, id, fields, body)
		},
		func(resp *domain.RawResponse) (*domain.Record, error) {
			parsed, err := api.ParseItem(resp)
			if err != nil {
				return nil, err
			}
			return domain.NewRecord(item.Raw().Merge(parsed.Raw()))
		},
		RequestOptions{DependsOnToken: true, Cache: NoCache()},
	)
	if err != nil {
		return nil, err
	}

	s.invalidate(id)
	return updated, nil
}

// Delete removes one item. A server rejection is reported as false.
func (s *ItemService) Delete(ctx context.Context, id string, authenticated bool) (bool, error) {
	api := s.client.api
	ok, err := send(ctx, s.client.engine,
		func(context.Context) (domain.PreparedRequest, error) {
			return api.PrepareDeleteItem(s.coll, id, authenticated)
		},
		api.ParseBool,
		RequestOptions{DependsOnToken: true, Cache: NoCache()},
	)
	if errors.Is(err, domain.ErrServerDenied) {
		s.client.logger.Info("Delete rejected", "collection", s.coll.Name, "id", id, "error", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.invalidate(id)
	return ok, nil
}

// DeleteMany removes several items in one request.
func (s *ItemService) DeleteMany(ctx context.Context, ids []string, authenticated bool) (bool, error) {
	if len(ids) == 0 {
		return false, fmt.Errorf("%w: ids must not be empty", domain.ErrInvalidRequest)
	}

	api := s.client.api
	ok, err := send(ctx, s.client.engine,
		func(context.Context) (domain.PreparedRequest, error) {
			return api.PrepareDeleteItems(s.coll, ids, authenticated)
		},
		api.ParseBool,
		RequestOptions{DependsOnToken: true, Cache: NoCache()},
	)
	if err != nil {
		return false, err
	}

	s.invalidate(ids...)
	return ok, nil
}

func (s *ItemService) invalidate(ids ...string) {
	for _, id := range ids {
		tag := s.coll.ItemTag(id)
		if err := s.client.InvalidateTag(tag); err != nil {
			s.client.logger.Warn("Failed to invalidate cache tag", "tag", tag, "error", err)
		}
	}
}
