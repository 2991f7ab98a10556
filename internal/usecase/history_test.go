package usecase

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-report/internal/domain"
	"quiz-report/internal/infrastructure/repo"
)

func TestHistoryService_GetAndList(t *testing.T) {
	r := repo.NewMemoryRecordRepo()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		require.NoError(t, r.Put(&domain.GenerationRecord{
			ID:        fmt.Sprintf("id-%02d", i),
			UserName:  "Alice",
			Status:    domain.StatusDone,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	h := &HistoryService{Repo: r}

	got, err := h.Get("id-03")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.UserName)

	_, err = h.Get("missing")
	assert.Equal(t, ErrNotFound("generation"), err)
	assert.EqualError(t, err, "generation not found")

	p, err := h.List(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 25, p.Total)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)
	require.Len(t, p.Items, 20)
	assert.Equal(t, "id-24", p.Items[0].ID)

	p, err = h.List(2, 20)
	require.NoError(t, err)
	assert.Len(t, p.Items, 5)

	p, err = h.List(1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, p.PageSize)
	assert.Len(t, p.Items, 25)
}

func TestHistoryService_EmptyPageIsNotNull(t *testing.T) {
	p, err := (&HistoryService{Repo: repo.NewMemoryRecordRepo()}).List(1, 10)
	require.NoError(t, err)
	assert.NotNil(t, p.Items)
	assert.Zero(t, p.Total)
}

type brokenRepo struct{ err error }

func (b brokenRepo) Put(*domain.GenerationRecord) error { return b.err }
func (b brokenRepo) Get(string) (*domain.GenerationRecord, error) {
	return nil, b.err
}
func (b brokenRepo) List(int, int) ([]domain.GenerationRecord, int, error) {
	return nil, 0, b.err
}

func TestHistoryService_StoreErrorsAreNotNotFound(t *testing.T) {
	down := errors.New("connection refused")
	h := &HistoryService{Repo: brokenRepo{err: down}}

	_, err := h.Get("id-1")
	require.ErrorIs(t, err, down)
	var nf ErrNotFound
	assert.False(t, errors.As(err, &nf))

	_, err = h.List(1, 10)
	assert.ErrorIs(t, err, down)
}
