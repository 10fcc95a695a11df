package scenario

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
)

// Collection groups several scenario IDs under a named, persisted file
// (collection_{name}.json) so the orchestrator can reference a whole test
// suite by one name instead of an explicit list.
type Collection struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ScenarioIDs []string  `json:"scenario_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s *Store) collectionPath(name string) string {
	return filepath.Join(s.dir, "collection_"+name+".json")
}

// SaveCollection validates that every referenced scenario exists, then
// persists the collection to collection_{name}.json.
func (s *Store) SaveCollection(c *Collection) error {
	if strings.TrimSpace(c.Name) == "" {
		return sharederrors.ValidationError("name", "must not be empty")
	}
	for _, id := range c.ScenarioIDs {
		if _, err := s.Get(id); err != nil {
			return sharederrors.ValidationError("scenario_ids", "references unknown scenario: "+id)
		}
	}

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return sharederrors.FailedToWithDetails("marshal collection", "scenario", c.Name, err)
	}
	path := s.collectionPath(c.Name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return sharederrors.FailedToWithDetails("write collection file", "scenario", path, err)
	}
	return nil
}

// LoadCollection reads collection_{name}.json and resolves it to the
// full TestScenario list, in the order ScenarioIDs declares.
func (s *Store) LoadCollection(name string) (*Collection, []*contracts.TestScenario, error) {
	path := s.collectionPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, sharederrors.FailedToWithDetails("read collection file", "scenario", path, err)
	}
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, nil, sharederrors.ParseError(path, "json", err)
	}

	scenarios := make([]*contracts.TestScenario, 0, len(c.ScenarioIDs))
	for _, id := range c.ScenarioIDs {
		sc, err := s.Get(id)
		if err != nil {
			return nil, nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return &c, scenarios, nil
}

// ListCollections returns the names of every persisted collection.
func (s *Store) ListCollections() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, sharederrors.FailedToWithDetails("list scenario directory", "scenario", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, "collection_") || !strings.HasSuffix(n, ".json") {
			continue
		}
		trimmed := strings.TrimSuffix(strings.TrimPrefix(n, "collection_"), ".json")
		names = append(names, trimmed)
	}
	return names, nil
}
