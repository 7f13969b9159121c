package api

import (
	"context"
	"net/http"
	"net/url"
)

// Resources is the generic executor over the endpoint registry. Every
// screen-level operation in the portal goes through one of its six
// methods; per-resource behavior lives entirely in the registry table.
type Resources struct {
	client   *Client
	registry *Registry
	cache    *Cache
}

// NewResources creates the executor.
func NewResources(client *Client, registry *Registry, cache *Cache) *Resources {
	return &Resources{client: client, registry: registry, cache: cache}
}

// Registry exposes the underlying resource table.
func (rs *Resources) Registry() *Registry {
	return rs.registry
}

// List fetches the collection for a kind, serving a fresh cached copy
// when one exists. The result is cached under (kind, LIST) and provides
// a tag per item plus the LIST tag.
func (rs *Resources) List(ctx context.Context, kind string, params url.Values) ([]map[string]any, error) {
	res, err := rs.registry.Resource(kind)
	if err != nil {
		return nil, err
	}

	key := Tag{Kind: res.Tag, ID: TagList}
	if cached, _, ok := rs.cache.Get(key); ok {
		return cached.([]map[string]any), nil
	}

	resp, err := rs.client.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   res.ListPath(),
		Query:  params,
	})
	if err != nil {
		return nil, err
	}

	items := NormalizeList(resp.Body)
	provides := make([]Tag, 0, len(items)+1)
	provides = append(provides, key)
	for _, item := range items {
		if id := ItemID(item); id != "" {
			provides = append(provides, Tag{Kind: res.Tag, ID: id})
		}
	}
	rs.cache.Put(key, items, provides)
	return items, nil
}

// Get fetches a single item, cached under (kind, id).
func (rs *Resources) Get(ctx context.Context, kind, id string) (map[string]any, error) {
	res, err := rs.registry.Resource(kind)
	if err != nil {
		return nil, err
	}

	key := Tag{Kind: res.Tag, ID: id}
	if cached, _, ok := rs.cache.Get(key); ok {
		return cached.(map[string]any), nil
	}

	resp, err := rs.client.Do(ctx, Request{Method: http.MethodGet, Path: res.ItemPath(id)})
	if err != nil {
		return nil, err
	}

	var item map[string]any
	if err := resp.Decode(&item); err != nil {
		return nil, networkError(err)
	}
	rs.cache.Put(key, item, []Tag{key})
	return item, nil
}

// Create posts a new item and invalidates the kind's list.
func (rs *Resources) Create(ctx context.Context, kind string, body any) (map[string]any, error) {
	res, err := rs.registry.Resource(kind)
	if err != nil {
		return nil, err
	}

	resp, err := rs.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   res.ListPath(),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	rs.cache.Invalidate([]Tag{{Kind: res.Tag, ID: TagList}})

	var item map[string]any
	if err := resp.Decode(&item); err != nil {
		return nil, networkError(err)
	}
	return item, nil
}

// Update patches an item and invalidates both the item and the list.
func (rs *Resources) Update(ctx context.Context, kind, id string, body any) (map[string]any, error) {
	res, err := rs.registry.Resource(kind)
	if err != nil {
		return nil, err
	}

	resp, err := rs.client.Do(ctx, Request{
		Method: http.MethodPatch,
		Path:   res.ItemPath(id),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	rs.cache.Invalidate([]Tag{
		{Kind: res.Tag, ID: id},
		{Kind: res.Tag, ID: TagList},
	})

	var item map[string]any
	if err := resp.Decode(&item); err != nil {
		return nil, networkError(err)
	}
	return item, nil
}

// Delete removes an item and invalidates both the item and the list.
func (rs *Resources) Delete(ctx context.Context, kind, id string) error {
	res, err := rs.registry.Resource(kind)
	if err != nil {
		return err
	}

	if _, err := rs.client.Do(ctx, Request{Method: http.MethodDelete, Path: res.ItemPath(id)}); err != nil {
		return err
	}

	rs.cache.Invalidate([]Tag{
		{Kind: res.Tag, ID: id},
		{Kind: res.Tag, ID: TagList},
	})
	return nil
}

// Action executes a registered sub-action for a kind and applies its
// declared invalidations. Action responses are never cached.
func (rs *Resources) Action(ctx context.Context, kind, name string, ids []string, params url.Values, body any) (*Response, error) {
	res, err := rs.registry.Resource(kind)
	if err != nil {
		return nil, err
	}
	action, ok := res.Actions[name]
	if !ok {
		return nil, &Error{Kind: KindHTTP, Status: http.StatusNotFound,
			Message: "unknown action " + name + " for " + kind}
	}

	resp, err := rs.client.Do(ctx, Request{
		Method: action.Method,
		Path:   action.Path(ids...),
		Query:  params,
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	if action.Invalidates != nil {
		rs.cache.Invalidate(action.Invalidates(ids...))
	}
	return resp, nil
}
