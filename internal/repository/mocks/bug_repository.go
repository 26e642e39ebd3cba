package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/repository"
)

// BugRepository 是 repository.BugRepository 的 Mock 实现。
type BugRepository struct {
	mock.Mock
}

func (m *BugRepository) FindByID(ctx context.Context, id uint) (*domain.Bug, error) {
	args := m.Called(ctx, id)
	if b := args.Get(0); b != nil {
		return b.(*domain.Bug), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BugRepository) List(ctx context.Context, filter repository.BugFilter) ([]domain.Bug, int64, error) {
	args := m.Called(ctx, filter)
	var bugs []domain.Bug
	if b := args.Get(0); b != nil {
		bugs = b.([]domain.Bug)
	}
	return bugs, args.Get(1).(int64), args.Error(2)
}

func (m *BugRepository) Save(ctx context.Context, bug *domain.Bug) error {
	args := m.Called(ctx, bug)
	return args.Error(0)
}

func (m *BugRepository) UpdateStatusWithNote(ctx context.Context, bugID uint, status domain.BugStatus, note *domain.ProgressNote) error {
	args := m.Called(ctx, bugID, status, note)
	return args.Error(0)
}

func (m *BugRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *BugRepository) CountByProject(ctx context.Context, projectID uint) (int64, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(int64), args.Error(1)
}
