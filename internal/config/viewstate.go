package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tOgg1/scriptdeck/internal/models"
)

// ViewState is the console's last tab and filter/sort choices, restored on
// the next launch.
type ViewState struct {
	Tab     string               `yaml:"tab,omitempty"`
	Query   string               `yaml:"query,omitempty"`
	Kind    models.Kind          `yaml:"kind,omitempty"`
	Status  models.StatusFilter  `yaml:"status,omitempty"`
	Enabled models.EnabledFilter `yaml:"enabled,omitempty"`
	SortKey models.SortKey       `yaml:"sort_key,omitempty"`
	Order   models.SortOrder     `yaml:"order,omitempty"`

	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// IsEmpty returns true if nothing was persisted.
func (s *ViewState) IsEmpty() bool {
	return s.Tab == "" && s.Query == "" && s.Kind == "" && s.Status == "" &&
		s.Enabled == "" && s.SortKey == "" && s.Order == ""
}

// Normalize replaces unknown values with defaults so a hand-edited file
// cannot wedge the console.
func (s *ViewState) Normalize() {
	if k, err := models.ParseKind(string(s.Kind)); err == nil {
		s.Kind = k
	} else {
		s.Kind = models.KindAll
	}
	if f, err := models.ParseStatusFilter(string(s.Status)); err == nil {
		s.Status = f
	} else {
		s.Status = models.StatusFilterAll
	}
	if f, err := models.ParseEnabledFilter(string(s.Enabled)); err == nil {
		s.Enabled = f
	} else {
		s.Enabled = models.EnabledFilterAll
	}
	if k, err := models.ParseSortKey(string(s.SortKey)); err == nil {
		s.SortKey = k
	} else {
		s.SortKey = models.SortByName
	}
	if o, err := models.ParseSortOrder(string(s.Order)); err == nil {
		s.Order = o
	} else {
		s.Order = models.SortAsc
	}
}

// ViewStateStore manages loading and saving the view state file.
type ViewStateStore struct {
	path string
	mu   sync.RWMutex
}

// NewViewStateStore creates a store at path.
func NewViewStateStore(path string) *ViewStateStore {
	return &ViewStateStore{path: path}
}

// Path returns the state file path.
func (s *ViewStateStore) Path() string {
	return s.path
}

// Load reads the state from disk.
// Returns an empty state if the file doesn't exist.
func (s *ViewStateStore) Load() (*ViewState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := &ViewState{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return nil, fmt.Errorf("failed to read view state: %w", err)
	}

	if err := yaml.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse view state: %w", err)
	}

	return state, nil
}

// Save writes the state to disk.
func (s *ViewStateStore) Save(state *ViewState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	state.UpdatedAt = time.Now()
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize view state: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write view state: %w", err)
	}

	return nil
}

// Clear removes the state file.
func (s *ViewStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove view state: %w", err)
	}
	return nil
}
