// Package storage persists the account state as a single JSON document.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"agentfolio/internal/models"
)

// AccountStore loads and saves the account document. The document is read
// and written whole; there is no partial update.
type AccountStore struct {
	path string
}

// NewAccountStore creates a store over the given JSON path.
func NewAccountStore(path string) *AccountStore {
	return &AccountStore{path: path}
}

// Load reads the account state. When the file does not exist yet the
// provided defaults are returned so a first run starts from a fresh
// account.
func (s *AccountStore) Load(defaults models.AccountState) (models.AccountState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return defaults.Clone(), nil
	}
	if err != nil {
		return models.AccountState{}, fmt.Errorf("read account state: %w", err)
	}

	var state models.AccountState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.AccountState{}, fmt.Errorf("decode account state: %w", err)
	}
	if state.Positions == nil {
		state.Positions = make(map[string]models.Position)
	}
	return state, nil
}

// Save writes the account state, creating parent directories as needed.
func (s *AccountStore) Save(state models.AccountState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode account state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create account dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write account state: %w", err)
	}
	return nil
}
