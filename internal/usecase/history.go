package usecase

import (
	"errors"

	"quiz-report/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// HistoryService reads back the generation records kept by GenerationService.
type HistoryService struct {
	Repo RecordRepo
}

// HistoryPage is one page of records along with the paging actually applied.
type HistoryPage struct {
	Items    []domain.GenerationRecord `json:"items"`
	Total    int                       `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"pageSize"`
}

func (s *HistoryService) Get(id string) (*domain.GenerationRecord, error) {
	r, err := s.Repo.Get(id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, ErrNotFound("generation")
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// List pages through records newest first. Out-of-range paging is clamped
// and the clamped values are reported back.
func (s *HistoryService) List(page, pageSize int) (HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	items, total, err := s.Repo.List(page, pageSize)
	if err != nil {
		return HistoryPage{}, err
	}
	if items == nil {
		items = []domain.GenerationRecord{}
	}
	return HistoryPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}
