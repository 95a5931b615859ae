package credentials

import (
	"sync"
	"time"

	"github.com/siphon-data/siphon/config"
	"github.com/siphon-data/siphon/constants"
	"github.com/siphon-data/siphon/errkind"
)

// storedCredential is the at-rest document shape. The store issues short-lived
// credentials from it by stamping ExpiresAt at fetch time from TTLSeconds.
type storedCredential struct {
	Kind       Kind              `json:"kind"`
	Values     map[string]string `json:"values"`
	TTLSeconds int               `json:"ttlSeconds"`
}

const defaultTTLSeconds = 900

// FileStore issues credentials from the local encrypted credential document.
// Documents are keyed by scope: "<erpType>/<clientId>/<dataType>", with a
// "<erpType>/<clientId>" fallback for clients sharing one secret across data
// types.
type FileStore struct {
	file *config.File
}

// NewFileStore creates a store over the default encrypted credentials document.
func NewFileStore() *FileStore {
	return &FileStore{file: config.NewEncryptedYamlFile(config.MustGetHomeDir(), constants.CredentialsFileName)}
}

// NewFileStoreWithFile creates a store over an explicit document, used by tests.
func NewFileStoreWithFile(f *config.File) *FileStore {
	return &FileStore{file: f}
}

// GetCredentials issues credentials scoped to the tuple.
func (s *FileStore) GetCredentials(erpType string, clientId string, dataType string) (Credentials, error) {
	var stored storedCredential
	scope := ScopeKey(erpType, clientId, dataType)
	err := s.file.Get(scope, &stored)
	if err != nil {
		// Fall back to the client-wide secret.
		fallback := erpType + "/" + clientId
		if err2 := s.file.Get(fallback, &stored); err2 != nil {
			return Credentials{}, errkind.Wrapf(errkind.KindCredential, err, "no secret for scope %v", scope)
		}
	}
	if len(stored.Values) == 0 {
		return Credentials{}, errkind.Newf(errkind.KindCredential, "secret for scope %v has no values", scope)
	}
	ttl := stored.TTLSeconds
	if ttl <= 0 {
		ttl = defaultTTLSeconds
	}
	// Copy values so cache entries can't be mutated through the caller.
	values := make(map[string]string, len(stored.Values))
	for k, v := range stored.Values {
		values[k] = v
	}
	return Credentials{
		Kind:      stored.Kind,
		Values:    values,
		ExpiresAt: time.Now().Add(time.Duration(ttl) * time.Second),
		Scope:     scope,
	}, nil
}

// SetCredentials writes a credential document, used by the config CLI.
// An empty dataType writes the client-wide fallback document.
func (s *FileStore) SetCredentials(erpType, clientId, dataType string, kind Kind, values map[string]string, ttlSeconds int) error {
	key := erpType + "/" + clientId
	if dataType != "" {
		key = ScopeKey(erpType, clientId, dataType)
	}
	return s.file.Set(key, storedCredential{Kind: kind, Values: values, TTLSeconds: ttlSeconds})
}

// CachingProvider wraps an inner Provider with a TTL cache keyed by scope.
// Entries are evicted at or before their ExpiresAt.
type CachingProvider struct {
	inner Provider
	now   func() time.Time
	mu    sync.Mutex
	cache map[string]Credentials
}

// NewCachingProvider wraps inner with a TTL cache.
func NewCachingProvider(inner Provider) *CachingProvider {
	return &CachingProvider{inner: inner, now: time.Now, cache: make(map[string]Credentials)}
}

// GetCredentials serves unexpired cached credentials, else refreshes.
func (p *CachingProvider) GetCredentials(erpType string, clientId string, dataType string) (Credentials, error) {
	scope := ScopeKey(erpType, clientId, dataType)
	now := p.now()
	p.mu.Lock()
	cached, ok := p.cache[scope]
	if ok && cached.Expired(now) {
		delete(p.cache, scope)
		ok = false
	}
	p.mu.Unlock()
	if ok {
		return cached, nil
	}
	creds, err := p.inner.GetCredentials(erpType, clientId, dataType)
	if err != nil {
		return Credentials{}, err
	}
	p.mu.Lock()
	p.cache[scope] = creds
	p.mu.Unlock()
	return creds, nil
}
