// Package cache keeps resolved metadata documents in a backend shared
// between sessions and, with Redis, between processes. Documents are keyed by
// service and the version selector a store resolves: "latest" or a pinned
// API version.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrMiss is returned by backends when a key is not present
var ErrMiss = errors.New("cache miss")

// Latest is the selector of documents resolved without a pinned version
const Latest = "latest"

// Backend stores raw values by key
type Backend interface {
	// Get returns the value stored under key or ErrMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl <= 0 keeps the value until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys and reports how many existed
	Delete(ctx context.Context, keys ...string) (int, error)

	// Keys lists the stored keys starting with prefix
	Keys(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

// Documents stores service documents in a Backend
type Documents struct {
	backend Backend
	prefix  string
	ttl     time.Duration
}

// Option configures Documents
type Option func(*Documents)

// WithPrefix namespaces every key, so several deployments can share a backend
func WithPrefix(prefix string) Option {
	return func(d *Documents) { d.prefix = prefix }
}

// WithTTL sets how long stored documents live. A ttl <= 0 never expires them.
func WithTTL(ttl time.Duration) Option {
	return func(d *Documents) { d.ttl = ttl }
}

// NewDocuments creates a document cache over backend. Documents expire after
// 15 minutes under the "dynres:" prefix unless configured otherwise.
func NewDocuments(backend Backend, opts ...Option) *Documents {
	d := &Documents{
		backend: backend,
		prefix:  "dynres:",
		ttl:     15 * time.Minute,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Backend returns the underlying backend
func (d *Documents) Backend() Backend { return d.backend }

func (d *Documents) servicePrefix(service string) string {
	return d.prefix + "metadata:" + strings.ToLower(service) + ":"
}

// Key returns the backend key of service's document for selector. An empty
// selector means Latest.
func (d *Documents) Key(service, selector string) string {
	if selector == "" {
		selector = Latest
	}
	return d.servicePrefix(service) + selector
}

// Load decodes the document cached for service and selector into out. It
// reports false on a miss.
func (d *Documents) Load(ctx context.Context, service, selector string, out any) (bool, error) {
	key := d.Key(service, selector)
	raw, err := d.backend.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode cached document %s: %w", key, err)
	}
	return true, nil
}

// Store caches doc for service and selector
func (d *Documents) Store(ctx context.Context, service, selector string, doc any) error {
	key := d.Key(service, selector)
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", key, err)
	}
	return d.backend.Set(ctx, key, raw, d.ttl)
}

// Selectors lists the selectors cached for service in order
func (d *Documents) Selectors(ctx context.Context, service string) ([]string, error) {
	prefix := d.servicePrefix(service)
	keys, err := d.backend.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	selectors := make([]string, 0, len(keys))
	for _, key := range keys {
		selectors = append(selectors, strings.TrimPrefix(key, prefix))
	}
	sort.Strings(selectors)
	return selectors, nil
}

// InvalidateService drops every cached document of service, whichever
// version selector it was stored under
func (d *Documents) InvalidateService(ctx context.Context, service string) (int, error) {
	return d.deletePrefix(ctx, d.servicePrefix(service))
}

// Clear drops every cached document under the prefix
func (d *Documents) Clear(ctx context.Context) (int, error) {
	return d.deletePrefix(ctx, d.prefix+"metadata:")
}

func (d *Documents) deletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := d.backend.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	return d.backend.Delete(ctx, keys...)
}
