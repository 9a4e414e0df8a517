// Package mocks provides a testify mock of repository.RecordRepository.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
)

var _ repository.RecordRepository = (*MockRepository)(nil)

// MockRepository is a testify mock of repository.RecordRepository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Find(ctx context.Context, query string, filters *repository.Filters) ([]entities.Bird, error) {
	args := m.Called(ctx, query, filters)
	return birdsArg(args, 0), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filters *repository.Filters) ([]entities.Bird, error) {
	args := m.Called(ctx, filters)
	return birdsArg(args, 0), args.Error(1)
}

func (m *MockRepository) Count(ctx context.Context, query string, filters *repository.Filters) (int64, error) {
	args := m.Called(ctx, query, filters)
	count, _ := args.Get(0).(int64)
	return count, args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, id uint) (*entities.Bird, error) {
	args := m.Called(ctx, id)
	if bird, ok := args.Get(0).(*entities.Bird); ok {
		return bird, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, bird *entities.Bird) error {
	args := m.Called(ctx, bird)
	return args.Error(0)
}

func (m *MockRepository) Update(ctx context.Context, bird *entities.Bird) error {
	args := m.Called(ctx, bird)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) DistinctValues(ctx context.Context, field repository.FilterField) ([]string, error) {
	args := m.Called(ctx, field)
	// Safe type assertion with ok check to avoid panics on misconfigured returns
	if values, ok := args.Get(0).([]string); ok {
		return values, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) Upsert(ctx context.Context, bird *entities.Bird) (bool, error) {
	args := m.Called(ctx, bird)
	return args.Bool(0), args.Error(1)
}

func birdsArg(args mock.Arguments, i int) []entities.Bird {
	if birds, ok := args.Get(i).([]entities.Bird); ok {
		return birds
	}
	return nil
}
