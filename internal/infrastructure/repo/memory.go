package repo

import (
	"sort"
	"sync"

	"quiz-report/internal/domain"
)

type MemoryRecordRepo struct {
	mu sync.RWMutex
	m  map[string]*domain.GenerationRecord
}

func NewMemoryRecordRepo() *MemoryRecordRepo {
	return &MemoryRecordRepo{m: make(map[string]*domain.GenerationRecord)}
}

func (r *MemoryRecordRepo) Put(rec *domain.GenerationRecord) error {
	cp := *rec
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[rec.ID] = &cp
	return nil
}

func (r *MemoryRecordRepo) Get(id string) (*domain.GenerationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.m[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

// List returns one page of records, newest first.
func (r *MemoryRecordRepo) List(page, pageSize int) ([]domain.GenerationRecord, int, error) {
	r.mu.RLock()
	all := make([]domain.GenerationRecord, 0, len(r.m))
	for _, rec := range r.m {
		all = append(all, *rec)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
