package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"inkwell/features/knowledge"
)

// Mocks

type MockEngine struct{ mock.Mock }

func (m *MockEngine) Generate(ctx context.Context, requestID string) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

type MockRequestFailer struct{ mock.Mock }

func (m *MockRequestFailer) MarkFailed(ctx context.Context, id, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

type MockPipeline struct{ mock.Mock }

func (m *MockPipeline) Run(ctx context.Context, payload knowledge.DistillPayload) (int, error) {
	args := m.Called(ctx, payload)
	return args.Int(0), args.Error(1)
}

type MockChunkStore struct{ mock.Mock }

func (m *MockChunkStore) StoreChunk(ctx context.Context, chunk knowledge.Chunk) error {
	args := m.Called(ctx, chunk)
	return args.Error(0)
}

func (m *MockChunkStore) UpdateChunk(ctx context.Context, chunk knowledge.Chunk) error {
	args := m.Called(ctx, chunk)
	return args.Error(0)
}

func (m *MockChunkStore) DeleteChunk(ctx context.Context, chunk knowledge.Chunk) error {
	args := m.Called(ctx, chunk)
	return args.Error(0)
}
