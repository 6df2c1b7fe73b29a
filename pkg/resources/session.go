package resources

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/dynres/internal/naming"
	"github.com/conduit-lang/dynres/internal/registry"
	"github.com/conduit-lang/dynres/pkg/invoker"
	"github.com/conduit-lang/dynres/pkg/metadata"
)

// InvokerProvider returns the invoker for a service. Sessions use it for
// relations that cross into another service.
type InvokerProvider func(ctx context.Context, service string) (invoker.Invoker, error)

// Session ties a metadata store to a type registry, a factory and the
// extensions registered for generated types
type Session struct {
	store      *metadata.Store
	registry   *registry.Registry[*Type]
	factory    *Factory
	resolver   *RelationResolver
	logger     *zap.Logger
	transcoder naming.Transcoder
	invokers   InvokerProvider

	mu         sync.RWMutex
	extensions map[registry.Key][]Extension
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTranscoder sets the naming policy
func WithTranscoder(tc naming.Transcoder) Option {
	return func(s *Session) {
		if tc != nil {
			s.transcoder = tc
		}
	}
}

// WithInvokerProvider sets the provider for cross-service relations
func WithInvokerProvider(p InvokerProvider) Option {
	return func(s *Session) {
		s.invokers = p
	}
}

// WithRegistry shares a type registry between sessions
func WithRegistry(reg *registry.Registry[*Type]) Option {
	return func(s *Session) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// NewSession creates a session over store
func NewSession(store *metadata.Store, opts ...Option) *Session {
	s := &Session{
		store:      store,
		registry:   registry.New[*Type](),
		logger:     zap.NewNop(),
		transcoder: naming.Default{},
		extensions: make(map[registry.Key][]Extension),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.factory = &Factory{
		store:      store,
		session:    s,
		transcoder: s.transcoder,
		logger:     s.logger,
	}
	s.resolver = &RelationResolver{session: s, logger: s.logger}
	return s
}

// Store returns the metadata store
func (s *Session) Store() *metadata.Store { return s.store }

// Registry returns the type registry
func (s *Session) Registry() *registry.Registry[*Type] { return s.registry }

// Factory returns the type factory
func (s *Session) Factory() *Factory { return s.factory }

// Resolver returns the relation resolver
func (s *Session) Resolver() *RelationResolver { return s.resolver }

// Logger returns the session logger
func (s *Session) Logger() *zap.Logger { return s.logger }

func typeKey(service, name string, kind metadata.Kind) registry.Key {
	return registry.Key{Service: service, Name: name, Kind: string(kind)}
}

// TypeFor returns the registered type, building it on first use
func (s *Session) TypeFor(ctx context.Context, service, name string, kind metadata.Kind) (*Type, error) {
	return s.registry.GetOrBuild(typeKey(service, name, kind), func() (*Type, error) {
		return s.factory.ConstructFor(ctx, service, name, kind)
	})
}

// ResourceType returns the resource type name of service
func (s *Session) ResourceType(ctx context.Context, service, name string) (*Type, error) {
	return s.TypeFor(ctx, service, name, metadata.KindResource)
}

// CollectionType returns the collection type name of service
func (s *Session) CollectionType(ctx context.Context, service, name string) (*Type, error) {
	return s.TypeFor(ctx, service, name, metadata.KindCollection)
}

// NewResource creates a resource from local-keyed data
func (s *Session) NewResource(ctx context.Context, service, name string, inv invoker.Invoker, data map[string]any) (*Resource, error) {
	t, err := s.ResourceType(ctx, service, name)
	if err != nil {
		return nil, err
	}
	return t.NewResource(inv, data)
}

// NewCollection creates a collection from local-keyed data
func (s *Session) NewCollection(ctx context.Context, service, name string, inv invoker.Invoker, data map[string]any) (*Collection, error) {
	t, err := s.CollectionType(ctx, service, name)
	if err != nil {
		return nil, err
	}
	return t.NewCollection(inv, data)
}

// Extend registers hooks, methods and converters for a type. The type is
// rebuilt on next use; instances created earlier keep their old type.
func (s *Session) Extend(service, name string, kind metadata.Kind, ext Extension) {
	key := typeKey(service, name, kind)

	s.mu.Lock()
	s.extensions[key] = append(s.extensions[key], ext)
	s.mu.Unlock()

	s.registry.Invalidate(key)
}

func (s *Session) extensionsFor(service, name string, kind metadata.Kind) []Extension {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Extension(nil), s.extensions[typeKey(service, name, kind)]...)
}

// Invoker returns the invoker for service from the configured provider
func (s *Session) Invoker(ctx context.Context, service string) (invoker.Invoker, error) {
	if s.invokers == nil {
		return nil, fmt.Errorf("no invoker provider configured for service %s", service)
	}
	return s.invokers(ctx, service)
}

// Reload reloads the service description and drops its registered types
func (s *Session) Reload(ctx context.Context, service string) error {
	if _, err := s.store.Reload(ctx, service); err != nil {
		return err
	}
	removed := s.registry.InvalidateService(service)
	s.logger.Info("reloaded service",
		zap.String("service", service),
		zap.Int("types_dropped", removed),
	)
	return nil
}

// WatchDirs reloads services whose documents change in dirs. Only services
// already loaded are reloaded. Stop the returned watcher when done.
func (s *Session) WatchDirs(ctx context.Context, dirs ...string) (*metadata.Watcher, error) {
	reload := func(ctx context.Context, service string) error {
		if !s.store.Loaded(service) {
			return nil
		}
		return s.Reload(ctx, service)
	}

	w, err := metadata.NewWatcher(dirs, reload, metadata.WithWatchLogger(s.logger))
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return w, nil
}
