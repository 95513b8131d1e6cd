// Package budgetstate persists the live-mode month tracker as a JSON file.
package budgetstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/sentidca/internal/domain"
)

const (
	defaultStateDir = "./state"
	fileName        = "budget_state.json"
)

// Store keeps the budget state across restarts so carry-over survives.
type Store struct {
	path string
	mu   sync.Mutex
}

// DefaultDir returns SENTIDCA_STATE_DIR or ./state.
func DefaultDir() string {
	if dir := os.Getenv("SENTIDCA_STATE_DIR"); dir != "" {
		return dir
	}
	return defaultStateDir
}

// NewStore creates a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create budget state dir")
	}

	return &Store{path: filepath.Join(dir, fileName)}, nil
}

// Path is the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state. A missing or empty file yields (nil, nil).
func (s *Store) Load() (*domain.BudgetState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read budget state")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var state domain.BudgetState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, errors.Wrap(err, "decode budget state")
	}

	return &state, nil
}

// Save writes the state atomically via a temp file.
func (s *Store) Save(state domain.BudgetState) error {
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode budget state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write budget state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist budget state")
	}

	return nil
}

// LoadOrInit returns the stored state or a fresh one for month.
func (s *Store) LoadOrInit(month domain.Month) (domain.BudgetState, error) {
	state, err := s.Load()
	if err != nil {
		return domain.BudgetState{}, err
	}
	if state == nil {
		return domain.NewBudgetState(month), nil
	}
	return *state, nil
}
