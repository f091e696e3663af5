package secrets

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sigauth/internal/common/errors"
	"sigauth/internal/common/logging"
	"sigauth/internal/config"
	"sigauth/internal/crypto"
	"sigauth/internal/redis"
)

// Options carries what a Factory may need to build a Store.
type Options struct {
	Config    *config.Config
	Redis     *redis.Client
	Encryptor *crypto.ConfigEncryptor
	Logger    logging.Logger
}

// Factory builds a Store.
type Factory func(ctx context.Context, opts Options) (Store, error)

type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func (r *Registry) Register(storeType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[storeType] = factory
}

func (r *Registry) Create(ctx context.Context, storeType string, opts Options) (Store, error) {
	r.mu.RLock()
	factory, exists := r.factories[storeType]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.ConfigError(fmt.Sprintf("secret store type %s not registered", storeType))
	}

	return factory(ctx, opts)
}

func (r *Registry) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for storeType := range r.factories {
		types = append(types, storeType)
	}
	sort.Strings(types)
	return types
}

var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register("memory", newMemoryFromOptions)
	DefaultRegistry.Register("sqlite", newSQLiteFromOptions)
	DefaultRegistry.Register("postgres", newPostgresFromOptions)
	DefaultRegistry.Register("postgresql", newPostgresFromOptions)
	DefaultRegistry.Register("redis", newRedisFromOptions)
}

// NewStore creates the store selected by SECRET_STORE.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	if opts.Config == nil {
		return nil, errors.ConfigError("secret store config is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}

	store, err := DefaultRegistry.Create(ctx, opts.Config.SecretStore, opts)
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("Secret store ready",
		logging.String("type", opts.Config.SecretStore),
		logging.Bool("encrypted", opts.Encryptor != nil),
	)
	return store, nil
}
