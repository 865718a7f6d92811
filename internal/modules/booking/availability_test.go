package booking

import (
	"context"
	"testing"
	"time"

	"equiplend/internal/domain"
	"equiplend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCountConflicts_HalfOpenWindows(t *testing.T) {
	nine := time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC)
	existing := []domain.Booking{
		{ID: 1, StartAt: nine, DurationHours: 2, Status: domain.BookingActive},
		{ID: 2, StartAt: nine.Add(4 * time.Hour), DurationHours: 1, Status: domain.BookingCancelled},
	}

	cases := []struct {
		name  string
		start time.Time
		hours int
		want  int
	}{
		{"inside", nine.Add(time.Hour), 1, 1},
		{"touching end", nine.Add(2 * time.Hour), 1, 0},
		{"touching start", nine.Add(-time.Hour), 1, 0},
		{"enclosing", nine.Add(-time.Hour), 4, 1},
		{"cancelled ignored", nine.Add(4 * time.Hour), 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			end := tc.start.Add(time.Duration(tc.hours) * time.Hour)
			assert.Equal(t, tc.want, CountConflicts(existing, tc.start, end))
		})
	}
}

func TestService_CheckAvailability(t *testing.T) {
	svc, m := newTestService()
	nine := testNow.Add(9 * time.Hour)
	existing := []domain.Booking{{ID: 1, EquipmentID: 3, StartAt: nine, DurationHours: 2, Status: domain.BookingActive}}

	m.equipment.On("GetByID", mock.Anything, int64(3)).Return(camera, nil)
	m.bookings.On("ListActiveByEquipment", mock.Anything, int64(3), mock.Anything, mock.Anything).Return(existing, nil)

	busy, err := svc.CheckAvailability(context.Background(), 3, nine.Add(time.Hour), 1)
	require.NoError(t, err)
	assert.False(t, busy.Available)
	assert.Equal(t, 1, busy.ConflictingCount)

	free, err := svc.CheckAvailability(context.Background(), 3, nine.Add(2*time.Hour), 1)
	require.NoError(t, err)
	assert.True(t, free.Available)
	assert.Equal(t, 0, free.ConflictingCount)
	assert.True(t, free.End.Equal(nine.Add(3*time.Hour)))
	assert.Equal(t, 1, free.DurationHours)
}

func TestService_CheckAvailability_PastIsNeverAvailable(t *testing.T) {
	svc, m := newTestService()
	m.equipment.On("GetByID", mock.Anything, int64(3)).Return(camera, nil)
	m.bookings.On("ListActiveByEquipment", mock.Anything, int64(3), mock.Anything, mock.Anything).Return([]domain.Booking{}, nil)

	av, err := svc.CheckAvailability(context.Background(), 3, testNow.Add(-2*time.Hour), 1)
	require.NoError(t, err)
	assert.False(t, av.Available)
	assert.Zero(t, av.ConflictingCount)
}

func TestService_CheckAvailability_Rejects(t *testing.T) {
	svc, m := newTestService()
	m.equipment.On("GetByID", mock.Anything, int64(9)).Return(nil, repository.ErrNotFound)

	_, err := svc.CheckAvailability(context.Background(), 3, testNow.Add(time.Hour), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CheckAvailability(context.Background(), 3, testNow.Add(time.Hour), 9)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CheckAvailability(context.Background(), 3, time.Time{}, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CheckAvailability(context.Background(), 9, testNow.Add(time.Hour), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
