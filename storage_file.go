package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	configDirName       = "marketsim"
	sessionFileName     = "session.json"
	sessionFilePerm     = 0o600
	sessionFileDirPerm  = 0o700
	sessionFileTempGlob = ".session-*.json"
)

var _ Storage = (*FileStorage)(nil)

// FileStorage keeps items in a JSON document on disk. Writes go through a
// temp file and a rename so readers see the old or the new document.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// DefaultSessionFilePath returns ~/.config/marketsim/session.json
func DefaultSessionFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", configDirName, sessionFileName), nil
}

// NewFileStorage returns a storage bound to path
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the document location
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	val, ok := doc[key]
	return val, ok, nil
}

func (f *FileStorage) GetItems(_ context.Context, keys ...string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	return pick(doc, keys), nil
}

func (f *FileStorage) SetItems(_ context.Context, items map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc := f.loadOrEmpty()
	for k, v := range items {
		doc[k] = v
	}
	return f.save(doc)
}

func (f *FileStorage) RemoveItems(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc := f.loadOrEmpty()
	for _, k := range keys {
		delete(doc, k)
	}

	if len(doc) == 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove session file: %w", err)
		}
		return nil
	}

	return f.save(doc)
}

func (f *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	doc := map[string]string{}
	if len(data) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStorage, f.path, err)
	}
	return doc, nil
}

// loadOrEmpty starts over when the current document is unreadable
func (f *FileStorage) loadOrEmpty() map[string]string {
	doc, err := f.load()
	if err != nil {
		return map[string]string{}
	}
	return doc
}

func (f *FileStorage) save(doc map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, sessionFileDirPerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, sessionFileTempGlob)
	if err != nil {
		return fmt.Errorf("failed to create session temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session file: %w", err)
	}

	if err := tmp.Chmod(sessionFilePerm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod session file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close session file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	return nil
}
