package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Avishi2511/bug-tracker/internal/domain"
)

// ProjectRepository 是 repository.ProjectRepository 的 Mock 实现。
type ProjectRepository struct {
	mock.Mock
}

func (m *ProjectRepository) FindByID(ctx context.Context, id uint) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*domain.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) FindByName(ctx context.Context, name string) (*domain.Project, error) {
	args := m.Called(ctx, name)
	if p := args.Get(0); p != nil {
		return p.(*domain.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) List(ctx context.Context, status *domain.ProjectStatus) ([]domain.Project, error) {
	args := m.Called(ctx, status)
	if p := args.Get(0); p != nil {
		return p.([]domain.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) ListActive(ctx context.Context) ([]domain.Project, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.([]domain.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) Save(ctx context.Context, project *domain.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *ProjectRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
