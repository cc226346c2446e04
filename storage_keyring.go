package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the service name used in the OS credential manager
const DefaultKeyringService = "marketsim-portal"

var _ Storage = (*KeyringStorage)(nil)

// KeyringStorage keeps all items as a single JSON secret in the OS
// keychain/credential manager, so a multi key write is one keyring call.
type KeyringStorage struct {
	mu      sync.Mutex
	service string
	account string
}

// NewKeyringStorage returns a storage for the given backend. The keyring
// account is derived from the backend URL so sessions of different backends
// never collide.
func NewKeyringStorage(service, backendURL string) (*KeyringStorage, error) {
	if service == "" {
		service = DefaultKeyringService
	}

	account, err := keyringAccount(backendURL)
	if err != nil {
		return nil, err
	}

	return &KeyringStorage{
		service: service,
		account: account,
	}, nil
}

// Account returns the keyring account name
func (k *KeyringStorage) Account() string {
	return k.account
}

func (k *KeyringStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return "", false, err
	}
	val, ok := doc[key]
	return val, ok, nil
}

func (k *KeyringStorage) GetItems(_ context.Context, keys ...string) (map[string]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		return nil, err
	}
	return pick(doc, keys), nil
}

func (k *KeyringStorage) SetItems(_ context.Context, items map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		doc = map[string]string{}
	}
	for key, val := range items {
		doc[key] = val
	}
	return k.save(doc)
}

func (k *KeyringStorage) RemoveItems(_ context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.load()
	if err != nil {
		doc = map[string]string{}
	}
	for _, key := range keys {
		delete(doc, key)
	}

	if len(doc) == 0 {
		if err := keyring.Delete(k.service, k.account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to delete session secret: %w", err)
		}
		return nil
	}

	return k.save(doc)
}

func (k *KeyringStorage) load() (map[string]string, error) {
	secret, err := keyring.Get(k.service, k.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to load session secret: %w", err)
	}

	doc := map[string]string{}
	if err := json.Unmarshal([]byte(secret), &doc); err != nil {
		return nil, fmt.Errorf("%w: keyring %s/%s: %v", ErrCorruptStorage, k.service, k.account, err)
	}
	return doc, nil
}

func (k *KeyringStorage) save(doc map[string]string) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal session secret: %w", err)
	}
	if err := keyring.Set(k.service, k.account, string(data)); err != nil {
		return fmt.Errorf("failed to save session secret: %w", err)
	}
	return nil
}

func keyringAccount(backendURL string) (string, error) {
	backendURL = strings.TrimRight(strings.TrimSpace(backendURL), "/")
	if backendURL == "" {
		return "session-default", nil
	}

	id, err := hashid.NewUUID(backendURL)
	if err != nil {
		return "", fmt.Errorf("failed to derive keyring account: %w", err)
	}
	return "session-" + id.String(), nil
}
