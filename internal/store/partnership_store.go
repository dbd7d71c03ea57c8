package store

import (
	"path/filepath"
	"sort"
	"sync"

	"heartline/internal/domain"
)

const partnershipsFilename = "partnerships.json"

// PartnershipFileStore persists partnerships to disk, keyed by session id.
type PartnershipFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewPartnershipFileStore returns a PartnershipFileStore rooted at dir.
func NewPartnershipFileStore(dir string) *PartnershipFileStore {
	return &PartnershipFileStore{dir: dir}
}

// SavePartnership writes or replaces the record for p.SessionID.
func (s *PartnershipFileStore) SavePartnership(p domain.Partnership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, partnershipsFilename)
	all := map[domain.SessionID]domain.Partnership{}
	if err := readJSON(path, &all); err != nil {
		return err
	}
	all[p.SessionID] = p
	return writeJSON(path, all, 0o600)
}

// LoadPartnership retrieves the partnership for session.
func (s *PartnershipFileStore) LoadPartnership(session domain.SessionID) (domain.Partnership, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return domain.Partnership{}, false, err
	}
	p, ok := all[session]
	return p, ok, nil
}

// ListPartnerships returns every stored partnership, most recently linked first.
func (s *PartnershipFileStore) ListPartnerships() ([]domain.Partnership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Partnership, 0, len(all))
	for _, p := range all {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LinkedAt.Equal(out[j].LinkedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].LinkedAt.After(out[j].LinkedAt)
	})
	return out, nil
}

func (s *PartnershipFileStore) readAll() (map[domain.SessionID]domain.Partnership, error) {
	all := map[domain.SessionID]domain.Partnership{}
	if err := readJSON(filepath.Join(s.dir, partnershipsFilename), &all); err != nil {
		return nil, err
	}
	return all, nil
}

// Compile-time assertion that PartnershipFileStore implements domain.PartnershipStore.
var _ domain.PartnershipStore = (*PartnershipFileStore)(nil)
