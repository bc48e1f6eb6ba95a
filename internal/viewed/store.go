// Package viewed persists the per-dashboard sets of record identifiers a
// user has acknowledged. The sets live outside the fetch lifecycle, so
// wholesale record replacement on refresh never loses them.
package viewed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"granel_dashboard/internal/records"
)

// Kind names a dashboard's viewed-set. Each kind is stored in its own file.
type Kind string

const (
	Transfers Kind = "transfers"
	Incidents Kind = "incidents"
)

// TransferID derives the stable identifier marking a receipt as viewed.
func TransferID(t records.TransferReceipt) string {
	return fmt.Sprintf("%s|%s|%s", t.ClientNumber, t.OrderNumber, t.SubmissionDate)
}

// IncidentID derives the stable identifier for an incident. The row index is
// part of the key because the same client/order pair can raise several
// incidents on one day.
func IncidentID(i records.Incident) string {
	return fmt.Sprintf("%s|%s|%s|%d", i.ClientNumber, i.OrderNumber, i.IncidentDate, i.RowIndex)
}

// Store owns the viewed-sets and their durable copies on disk. Safe for
// concurrent use.
type Store struct {
	mu   sync.Mutex
	dir  string
	sets map[Kind]map[string]struct{}
}

// NewStore loads (or creates) the store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{
		dir:  dir,
		sets: make(map[Kind]map[string]struct{}),
	}, nil
}

func (s *Store) path(kind Kind) string {
	return filepath.Join(s.dir, "viewed-"+string(kind)+".json")
}

// ensure loads the set for a kind on first use. A missing or corrupt file
// degrades to an empty set; viewed state is a convenience, never worth
// failing a dashboard over.
func (s *Store) ensure(kind Kind) map[string]struct{} {
	if set, ok := s.sets[kind]; ok {
		return set
	}
	set := make(map[string]struct{})
	data, err := os.ReadFile(s.path(kind))
	if err == nil {
		var ids []string
		if jsonErr := json.Unmarshal(data, &ids); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("kind", string(kind)).Msg("Discarding corrupt viewed-set file")
		} else {
			for _, id := range ids {
				set[id] = struct{}{}
			}
		}
	} else if !os.IsNotExist(err) {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("Failed to read viewed-set file")
	}
	s.sets[kind] = set
	return set
}

// save writes the set atomically: temp file in the same directory, then
// rename over the previous copy.
func (s *Store) save(kind Kind) error {
	set := s.sets[kind]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode viewed-set: %w", err)
	}

	tmp := s.path(kind) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write viewed-set: %w", err)
	}
	if err := os.Rename(tmp, s.path(kind)); err != nil {
		return fmt.Errorf("failed to replace viewed-set: %w", err)
	}
	return nil
}

// Toggle flips membership of an identifier and persists the set. Returns
// whether the identifier is now a member.
func (s *Store) Toggle(kind Kind, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.ensure(kind)
	_, member := set[id]
	if member {
		delete(set, id)
	} else {
		set[id] = struct{}{}
	}

	if err := s.save(kind); err != nil {
		return !member, err
	}
	return !member, nil
}

// Contains reports whether an identifier is marked viewed.
func (s *Store) Contains(kind Kind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ensure(kind)[id]
	return ok
}

// IDs returns the sorted identifiers of a kind's set.
func (s *Store) IDs(kind Kind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.ensure(kind)
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
