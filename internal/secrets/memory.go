package secrets

import (
	"context"
	"sync"

	"sigauth/internal/signature"
)

// MemoryStore keeps secrets in process memory. It is meant for development
// and for single-instance deployments seeded from APP_SECRETS.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore copies seed into a new store.
func NewMemoryStore(seed map[string]string) *MemoryStore {
	secrets := make(map[string]string, len(seed))
	for appid, secret := range seed {
		secrets[appid] = secret
	}
	return &MemoryStore{secrets: secrets}
}

func newMemoryFromOptions(_ context.Context, opts Options) (Store, error) {
	seed, err := opts.Config.ParseAppSecrets()
	if err != nil {
		return nil, err
	}
	for appid := range seed {
		if err := ValidateAppID(appid); err != nil {
			return nil, err
		}
	}
	return NewMemoryStore(seed), nil
}

func (s *MemoryStore) ResolveSecret(_ context.Context, appid string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, ok := s.secrets[appid]
	if !ok {
		return "", signature.ErrSecretNotFound
	}
	return secret, nil
}

func (s *MemoryStore) PutSecret(_ context.Context, appid, secret string) error {
	if err := validatePut(appid, secret); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[appid] = secret
	return nil
}

func (s *MemoryStore) DeleteSecret(_ context.Context, appid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.secrets[appid]; !ok {
		return notFound(appid)
	}
	delete(s.secrets, appid)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, appid string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.secrets[appid]
	return ok, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
