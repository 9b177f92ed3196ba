package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"camrent/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetDialog(ctx context.Context, id string) (*models.DialogState, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DialogState), args.Error(1)
}

func (m *mockRepo) SetDialog(ctx context.Context, state *models.DialogState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *mockRepo) ClearDialog(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestFailoverDialogRepository(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverDialogRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		state := &models.DialogState{ID: "d1", Kind: models.DialogStatus}
		primary.On("GetDialog", ctx, "d1").Return(state, nil).Once()

		got, err := repo.GetDialog(ctx, "d1")
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		state := &models.DialogState{ID: "d2"}
		primary.On("GetDialog", ctx, "d2").Return(nil, errors.New("fail")).Once()
		fallback.On("GetDialog", ctx, "d2").Return(state, nil).Once()

		got, err := repo.GetDialog(ctx, "d2")
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		state := &models.DialogState{ID: "d3"}
		primary.On("GetDialog", ctx, "d3").Return(state, nil).Once()

		got, err := repo.GetDialog(ctx, "d3")
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		primary.On("GetDialog", ctx, "d33").Return(nil, errors.New("still fail")).Once()
		fallback.On("GetDialog", ctx, "d33").Return(nil, nil).Once()

		_, err := repo.GetDialog(ctx, "d33")
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetDialogSuccess", func(t *testing.T) {
		repo.isDown.Store(false)
		state := &models.DialogState{ID: "d77"}
		primary.On("SetDialog", ctx, state).Return(nil).Once()

		err := repo.SetDialog(ctx, state)
		assert.NoError(t, err)
		primary.AssertExpectations(t)
	})

	t.Run("ClearDialogClearsBoth", func(t *testing.T) {
		repo.isDown.Store(false)
		fallback.On("ClearDialog", ctx, "d88").Return(nil).Once()
		primary.On("ClearDialog", ctx, "d88").Return(nil).Once()

		err := repo.ClearDialog(ctx, "d88")
		assert.NoError(t, err)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetDialogFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		state := &models.DialogState{ID: "d4"}
		primary.On("SetDialog", ctx, state).Return(errors.New("fail")).Once()
		fallback.On("SetDialog", ctx, state).Return(nil).Once()

		err := repo.SetDialog(ctx, state)
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("ClearDialogFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		fallback.On("ClearDialog", ctx, "d5").Return(nil).Once()
		primary.On("ClearDialog", ctx, "d5").Return(errors.New("fail")).Once()

		err := repo.ClearDialog(ctx, "d5")
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetDialogAlreadyDown", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().UnixNano())
		state := &models.DialogState{ID: "d44"}
		fallback.On("SetDialog", ctx, state).Return(nil).Once()

		err := repo.SetDialog(ctx, state)
		assert.NoError(t, err)
		fallback.AssertExpectations(t)
		primary.AssertNotCalled(t, "SetDialog", ctx, state)
	})

	t.Run("ClearDialogAlreadyDown", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().UnixNano())
		fallback.On("ClearDialog", ctx, "d55").Return(nil).Once()

		err := repo.ClearDialog(ctx, "d55")
		assert.NoError(t, err)
		fallback.AssertExpectations(t)
		primary.AssertNotCalled(t, "ClearDialog", ctx, "d55")
	})
}
