package decisions

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/sentidca/internal/domain"
)

const (
	DefaultDir   = "./wal/decisions"
	segmentLimit = 100
	maxSegments  = 10

	planKey = "live_plan"
)

// Record is a journaled plan with its WAL index.
type Record struct {
	Index uint64          `json:"index"`
	Plan  domain.LivePlan `json:"plan"`
}

// WALStore journals daily plans in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed plan journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "plan_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init decision WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the plan and returns its index.
func (s *WALStore) Save(plan domain.LivePlan) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("decision store is not initialized")
	}
	if plan.Date.IsZero() {
		return 0, errors.New("plan date is required")
	}

	payload, err := json.Marshal(plan)
	if err != nil {
		return 0, errors.Wrap(err, "marshal plan")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(next, planKey, payload); err != nil {
		return 0, errors.Wrap(err, "write plan")
	}
	return next, nil
}

// EventsAfter returns plans written after index. Entries evicted with old
// segments are skipped.
func (s *WALStore) EventsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("decision store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || key != planKey {
			continue
		}

		var plan domain.LivePlan
		if err := json.Unmarshal(payload, &plan); err != nil {
			return nil, errors.Wrap(err, "decode plan")
		}
		records = append(records, Record{Index: idx, Plan: plan})
	}

	return records, nil
}

// Latest returns the most recent plan, or false when the journal is empty.
func (s *WALStore) Latest() (Record, bool, error) {
	if s == nil || s.wal == nil {
		return Record{}, false, errors.New("decision store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for idx := s.wal.CurrentIndex(); idx > 0; idx-- {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			// older entries live in rotated-out segments
			break
		}
		if key != planKey {
			continue
		}

		var plan domain.LivePlan
		if err := json.Unmarshal(payload, &plan); err != nil {
			return Record{}, false, errors.Wrap(err, "decode plan")
		}
		return Record{Index: idx, Plan: plan}, true, nil
	}

	return Record{}, false, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("decision store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
