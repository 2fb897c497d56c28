//go:build !production

package testutil

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/sabotage-station/internal/server/storage"
)

// MockRecorder 游戏结果记录器 mock
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordGame(ctx context.Context, results []storage.GameResult) error {
	args := m.Called(ctx, results)
	return args.Error(0)
}

// RecorderFunc 记录所有结果，不做断言
type RecorderFunc struct {
	mu      sync.Mutex
	Results [][]storage.GameResult
}

func (r *RecorderFunc) RecordGame(_ context.Context, results []storage.GameResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, results)
	return nil
}

// Games 返回已记录的对局数
func (r *RecorderFunc) Games() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Results)
}
