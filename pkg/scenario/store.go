// Package scenario implements the scenario manager: CRUD over
// TestScenario definitions, flat-file persistence (one JSON file per
// scenario, collection files grouping several), and template-based
// scenario generation.
package scenario

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/qualitymesh/aat-core/pkg/contracts"
	sharederrors "github.com/qualitymesh/aat-core/pkg/shared/errors"
	"github.com/qualitymesh/aat-core/pkg/shared/logging"
	"github.com/sirupsen/logrus"
)

// Store is the CRUD surface over TestScenario definitions, backed by one
// JSON file per scenario under dir/{id}.json. An in-memory index is kept
// alongside disk so reads do not round-trip through the filesystem.
type Store struct {
	mu  sync.RWMutex
	dir string
	log *logrus.Entry

	scenarios map[string]*contracts.TestScenario
}

// NewStore constructs a Store rooted at dir, creating the directory if it
// does not exist, and loads any scenario files already present.
func NewStore(dir string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, sharederrors.FailedToWithDetails("create scenario directory", "scenario", dir, err)
	}
	s := &Store{
		dir:       dir,
		log:       log.WithFields(logging.Fields{}.Component("scenario").ToLogrus()),
		scenarios: make(map[string]*contracts.TestScenario),
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return sharederrors.FailedToWithDetails("list scenario directory", "scenario", s.dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, "collection_") {
			continue
		}
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return sharederrors.FailedToWithDetails("read scenario file", "scenario", path, err)
		}
		var sc contracts.TestScenario
		if err := json.Unmarshal(data, &sc); err != nil {
			return sharederrors.ParseError(path, "json", err)
		}
		s.scenarios[sc.ID] = &sc
	}
	return nil
}

// Create validates sc, assigns timestamps, persists it to
// {id}.json and indexes it. Returns an error if a scenario with the same
// ID already exists.
func (s *Store) Create(sc *contracts.TestScenario) error {
	if sc.ID == "" {
		sc.ID = contracts.NewScenarioID()
	}
	now := time.Now()
	sc.CreatedAt = now
	sc.UpdatedAt = now

	if err := sc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.scenarios[sc.ID]; exists {
		return sharederrors.ValidationError("id", "scenario already exists: "+sc.ID)
	}
	if err := s.writeLocked(sc); err != nil {
		return err
	}
	s.scenarios[sc.ID] = sc
	s.log.WithFields(logging.ScenarioFields("create", sc.ID).ToLogrus()).Info("scenario created")
	return nil
}

// Get returns the scenario with the given ID, or an error if none exists.
func (s *Store) Get(id string) (*contracts.TestScenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenarios[id]
	if !ok {
		return nil, sharederrors.ValidationError("id", "scenario not found: "+id)
	}
	copied := *sc
	return &copied, nil
}

// Update replaces the stored scenario for sc.ID with sc, bumping
// UpdatedAt and re-validating. Returns an error if no scenario with that
// ID exists yet.
func (s *Store) Update(sc *contracts.TestScenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.scenarios[sc.ID]
	if !ok {
		return sharederrors.ValidationError("id", "scenario not found: "+sc.ID)
	}
	sc.CreatedAt = existing.CreatedAt
	sc.UpdatedAt = time.Now()

	if err := sc.Validate(); err != nil {
		return err
	}
	if err := s.writeLocked(sc); err != nil {
		return err
	}
	s.scenarios[sc.ID] = sc
	s.log.WithFields(logging.ScenarioFields("update", sc.ID).ToLogrus()).Info("scenario updated")
	return nil
}

// Delete removes the scenario with the given ID from the index and disk.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scenarios[id]; !ok {
		return sharederrors.ValidationError("id", "scenario not found: "+id)
	}
	path := s.pathFor(id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return sharederrors.FailedToWithDetails("delete scenario file", "scenario", path, err)
	}
	delete(s.scenarios, id)
	s.log.WithFields(logging.ScenarioFields("delete", id).ToLogrus()).Info("scenario deleted")
	return nil
}

// List returns every stored scenario, ordered by ID for deterministic
// output.
func (s *Store) List() []*contracts.TestScenario {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*contracts.TestScenario, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		copied := *sc
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) writeLocked(sc *contracts.TestScenario) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return sharederrors.FailedToWithDetails("marshal scenario", "scenario", sc.ID, err)
	}
	path := s.pathFor(sc.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return sharederrors.FailedToWithDetails("write scenario file", "scenario", path, err)
	}
	return nil
}
