package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/conduit-lang/dynres/internal/cache"
	"github.com/conduit-lang/dynres/internal/naming"
)

// Store resolves service documents from an ordered list of sources and
// caches one document per service.
type Store struct {
	sources    []Source
	pinned     map[string]string
	logger     *zap.Logger
	transcoder naming.Transcoder

	shared *cache.Documents

	mu     sync.RWMutex
	loaded map[string]*ServiceDescription
	group  singleflight.Group
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithLogger sets the store logger
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPinnedVersions pins the API version Get resolves for each service
func WithPinnedVersions(pinned map[string]string) StoreOption {
	return func(s *Store) {
		for svc, v := range pinned {
			s.pinned[svc] = v
		}
	}
}

// WithSharedCache stores loaded documents in docs so other stores sharing
// its backend skip the sources
func WithSharedCache(docs *cache.Documents) StoreOption {
	return func(s *Store) {
		s.shared = docs
	}
}

// WithTranscoder sets the naming policy used to derive missing field names
func WithTranscoder(tc naming.Transcoder) StoreOption {
	return func(s *Store) {
		if tc != nil {
			s.transcoder = tc
		}
	}
}

// NewStore creates a store searching sources in order. Earlier sources take
// precedence when they offer the same version.
func NewStore(sources []Source, opts ...StoreOption) *Store {
	s := &Store{
		sources:    sources,
		pinned:     make(map[string]string),
		logger:     zap.NewNop(),
		transcoder: naming.Default{},
		loaded:     make(map[string]*ServiceDescription),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sources returns the configured sources in search order
func (s *Store) Sources() []Source {
	return append([]Source(nil), s.sources...)
}

// PinnedVersion returns the version Get resolves for service, empty for newest
func (s *Store) PinnedVersion(service string) string {
	return s.pinned[service]
}

// options maps each available version to the first source offering it
func (s *Store) options(ctx context.Context, service string) (map[string]Source, error) {
	options := make(map[string]Source)
	for _, src := range s.sources {
		versions, err := src.Versions(ctx, service)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name(), err)
		}
		for _, v := range versions {
			if _, ok := options[v]; !ok {
				options[v] = src
			}
		}
	}
	return options, nil
}

// Versions returns every available version of service in ascending order
func (s *Store) Versions(ctx context.Context, service string) ([]string, error) {
	options, err := s.options(ctx, service)
	if err != nil {
		return nil, err
	}
	return sortedVersions(options), nil
}

func sortedVersions(options map[string]Source) []string {
	versions := make([]string, 0, len(options))
	for v := range options {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// BestMatch picks a version from available: the newest when requested is
// empty, an exact match when present, otherwise the greatest version
// lexically not after requested.
func BestMatch(available []string, requested string) (string, bool) {
	if len(available) == 0 {
		return "", false
	}

	sorted := append([]string(nil), available...)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))

	if requested == "" {
		return sorted[0], true
	}
	for _, v := range sorted {
		if v == requested {
			return v, true
		}
	}
	for _, v := range sorted {
		if v <= requested {
			return v, true
		}
	}
	return "", false
}

// Load resolves and reads the document for service without consulting the
// cache. An empty apiVersion selects the newest available version.
func (s *Store) Load(ctx context.Context, service, apiVersion string) (*ServiceDescription, error) {
	options, err := s.options(ctx, service)
	if err != nil {
		return nil, err
	}

	available := sortedVersions(options)
	version, ok := BestMatch(available, apiVersion)
	if !ok {
		return nil, &MetadataNotFoundError{Service: service, APIVersion: apiVersion, Available: available}
	}

	src := options[version]
	desc, origin, err := src.Fetch(ctx, service, version)
	if err != nil {
		return nil, err
	}

	desc.normalize(service, version, origin, s.transcoder)
	if err := Validate(desc); err != nil {
		return nil, fmt.Errorf("failed to load %s-%s from %s: %w", service, version, src.Name(), err)
	}

	s.logger.Debug("loaded metadata",
		zap.String("service", service),
		zap.String("requested", apiVersion),
		zap.String("api_version", version),
		zap.String("origin", origin),
	)
	return desc, nil
}

// Get returns the cached document for service, loading it with the pinned
// version on first use. Concurrent first calls share one load.
func (s *Store) Get(ctx context.Context, service string) (*ServiceDescription, error) {
	s.mu.RLock()
	desc, ok := s.loaded[service]
	s.mu.RUnlock()
	if ok {
		return desc, nil
	}

	res, err, _ := s.group.Do(service, func() (interface{}, error) {
		s.mu.RLock()
		desc, ok := s.loaded[service]
		s.mu.RUnlock()
		if ok {
			return desc, nil
		}

		desc, err := s.fromShared(ctx, service)
		if err != nil {
			return nil, err
		}
		if desc == nil {
			desc, err = s.Load(ctx, service, s.pinned[service])
			if err != nil {
				return nil, err
			}
			s.toShared(ctx, service, desc)
		}

		s.mu.Lock()
		s.loaded[service] = desc
		s.mu.Unlock()
		return desc, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*ServiceDescription), nil
}

// Reload loads service again and replaces the cached document wholesale.
// Shared copies of every version of the service are dropped first, since
// other processes may pin a different one.
func (s *Store) Reload(ctx context.Context, service string) (*ServiceDescription, error) {
	desc, err := s.Load(ctx, service, s.pinned[service])
	if err != nil {
		return nil, err
	}
	s.invalidateShared(ctx, service)
	s.toShared(ctx, service, desc)

	s.mu.Lock()
	s.loaded[service] = desc
	s.mu.Unlock()

	s.logger.Info("reloaded metadata",
		zap.String("service", service),
		zap.String("api_version", desc.APIVersion),
	)
	return desc, nil
}

// Loaded reports whether service has a cached document
func (s *Store) Loaded(service string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.loaded[service]
	return ok
}

// Forget drops the cached document for service
func (s *Store) Forget(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loaded, service)
}

func (s *Store) fromShared(ctx context.Context, service string) (*ServiceDescription, error) {
	if s.shared == nil {
		return nil, nil
	}

	key := s.shared.Key(service, s.pinned[service])
	var desc ServiceDescription
	hit, err := s.shared.Load(ctx, service, s.pinned[service], &desc)
	switch {
	case err == nil && hit:
		s.logger.Debug("metadata cache hit", zap.String("key", key))
		return &desc, nil
	case err == nil:
		s.logger.Debug("metadata cache miss", zap.String("key", key))
		return nil, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		// A broken shared cache degrades to reading the sources
		s.logger.Warn("metadata cache read failed", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
}

func (s *Store) toShared(ctx context.Context, service string, desc *ServiceDescription) {
	if s.shared == nil {
		return
	}

	if err := s.shared.Store(ctx, service, s.pinned[service], desc); err != nil {
		s.logger.Warn("metadata cache write failed",
			zap.String("key", s.shared.Key(service, s.pinned[service])),
			zap.Error(err),
		)
	}
}

func (s *Store) invalidateShared(ctx context.Context, service string) {
	if s.shared == nil {
		return
	}
	if _, err := s.shared.InvalidateService(ctx, service); err != nil {
		s.logger.Warn("metadata cache invalidation failed", zap.String("service", service), zap.Error(err))
	}
}
