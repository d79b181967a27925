package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidequest/backend/internal/domain/entities"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

func newTestManager(source *fakeSource) *Manager {
	return NewManager(source, &fakeProfiles{}, &fakeSwipes{}, nil, testOptions(), time.Minute)
}

func TestManager_OpenAndGet(t *testing.T) {
	m := newTestManager(&fakeSource{batches: [][]*entities.Establishment{items("a")}})

	s, err := m.Open(context.Background(), "u1", entities.CategoryFood)
	require.NoError(t, err)
	assert.Equal(t, entities.CategoryFood, s.Category())

	got, err := m.Get(s.ID(), "u1")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get(s.ID(), "someone-else")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestManager_OpenRejectsUnknownCategory(t *testing.T) {
	m := newTestManager(&fakeSource{})

	_, err := m.Open(context.Background(), "u1", "nightclubs")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Zero(t, m.Len())
}

func TestManager_CloseRemovesSession(t *testing.T) {
	m := newTestManager(&fakeSource{})
	s, err := m.Open(context.Background(), "u1", "")
	require.NoError(t, err)

	require.NoError(t, m.Close(s.ID(), "u1"))
	assert.Equal(t, PhaseClosed, s.Snapshot().Phase())
	assert.Zero(t, m.Len())

	err = m.Close(s.ID(), "u1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestManager_SweepClosesIdleSessions(t *testing.T) {
	m := newTestManager(&fakeSource{})
	s, err := m.Open(context.Background(), "u1", "")
	require.NoError(t, err)
	require.NoError(t, s.Wait(context.Background()))

	assert.Zero(t, m.Sweep(time.Now()))
	assert.Equal(t, 1, m.Sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, PhaseClosed, s.Snapshot().Phase())
	assert.Zero(t, m.Len())
}

func TestManager_Shutdown(t *testing.T) {
	m := newTestManager(&fakeSource{})
	a, _ := m.Open(context.Background(), "u1", "")
	b, _ := m.Open(context.Background(), "u2", "")

	m.Shutdown()
	assert.Equal(t, PhaseClosed, a.Snapshot().Phase())
	assert.Equal(t, PhaseClosed, b.Snapshot().Phase())
	assert.Zero(t, m.Len())
}
