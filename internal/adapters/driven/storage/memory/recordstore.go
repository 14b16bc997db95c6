package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
// It enforces the same two-level hierarchy as the SQLite store.
type RecordStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]domain.Record
	getMany int
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[int64]domain.Record),
	}
}

// Save inserts or updates a record.
func (s *RecordStore) Save(_ context.Context, record *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ParentID != nil {
		parent, ok := s.records[*record.ParentID]
		if !ok {
			return domain.ErrNotFound
		}
		if parent.ParentID != nil || (record.ID != 0 && s.hasChildrenLocked(record.ID)) {
			return domain.ErrHierarchyDepth
		}
	}

	now := time.Now().UTC()
	if record.ID == 0 {
		s.nextID++
		record.ID = s.nextID
	} else if _, ok := s.records[record.ID]; !ok {
		return domain.ErrNotFound
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.Tags = domain.NormaliseTags(record.Tags)

	s.records[record.ID] = cloneRecord(*record)
	return nil
}

// Get retrieves a record by ID.
func (s *RecordStore) Get(_ context.Context, id int64) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r = cloneRecord(r)
	return &r, nil
}

// GetMany retrieves several records.
func (s *RecordStore) GetMany(_ context.Context, ids []int64) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getMany++

	out := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			out = append(out, cloneRecord(r))
		}
	}
	return out, nil
}

// GetManyCalls reports how many GetMany round trips were made.
func (s *RecordStore) GetManyCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getMany
}

// ChildIDs lists the children of a parent in ID order.
func (s *RecordStore) ChildIDs(_ context.Context, parentID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, r := range s.records {
		if r.ParentID != nil && *r.ParentID == parentID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Scan lists matching records, newest effective time first.
func (s *RecordStore) Scan(_ context.Context, filter driven.ScanFilter) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Record
	for _, r := range s.records {
		if filter.ExcludeHidden && r.Hidden {
			continue
		}
		if !filter.Options.Matches(&r) {
			continue
		}
		if filter.Tag != "" && !slices.Contains(r.Tags, filter.Tag) {
			continue
		}
		matched = append(matched, cloneRecord(r))
	}

	sort.Slice(matched, func(i, j int) bool {
		ti, tj := matched[i].EffectiveTime(), matched[j].EffectiveTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return matched[i].ID > matched[j].ID
	})

	offset := max(filter.Offset, 0)
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit := filter.Options.EffectiveLimit(); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Delete removes records and their children.
func (s *RecordStore) Delete(_ context.Context, ids ...int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
		for childID, r := range s.records {
			if r.ParentID != nil && *r.ParentID == id {
				delete(s.records, childID)
			}
		}
	}
	return nil
}

func (s *RecordStore) hasChildrenLocked(id int64) bool {
	for _, r := range s.records {
		if r.ParentID != nil && *r.ParentID == id {
			return true
		}
	}
	return false
}

// cloneRecord copies the slices and pointers of a record so callers
// cannot mutate stored state.
func cloneRecord(r domain.Record) domain.Record {
	r.Tags = slices.Clone(r.Tags)
	if r.Summary != nil {
		s := *r.Summary
		r.Summary = &s
	}
	if r.EventAt != nil {
		t := *r.EventAt
		r.EventAt = &t
	}
	if r.ParentID != nil {
		p := *r.ParentID
		r.ParentID = &p
	}
	return r
}
