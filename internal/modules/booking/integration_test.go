package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"equiplend/internal/database"
	"equiplend/internal/domain"
	"equiplend/internal/events"
	"equiplend/internal/lock"
	"equiplend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// testClock is a settable time source shared with the service.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// gatedPublisher blocks the first event until release is closed.
type gatedPublisher struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (p *gatedPublisher) Publish(ctx context.Context, _ events.Event) error {
	if p.calls.Add(1) != 1 {
		return nil
	}
	close(p.entered)
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type stack struct {
	db        *gorm.DB
	clock     *testClock
	svc       *Service
	bookings  *repository.BookingRepository
	equipment *repository.EquipmentRepository
	published *recordingPublisher
}

func newStack(t *testing.T, opts ...Option) *stack {
	t.Helper()
	db, err := database.OpenSQLite(fmt.Sprintf("file:booking_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db))

	s := &stack{
		db:        db,
		bookings:  repository.NewBookingRepository(db),
		equipment: repository.NewEquipmentRepository(db),
		published: &recordingPublisher{},
		clock:     &testClock{now: testNow},
	}
	opts = append([]Option{
		WithClock(s.clock.Now),
		WithPublisher(s.published),
	}, opts...)
	s.svc = NewService(
		s.bookings,
		s.equipment,
		repository.NewTxManager(db),
		lock.NewLocalLocker(),
		DefaultPolicy(),
		opts...,
	)
	return s
}

func (s *stack) seed(t *testing.T, name string) domain.Equipment {
	t.Helper()
	e := domain.Equipment{Name: name, Category: "camera"}
	require.NoError(t, s.equipment.Create(context.Background(), &e))
	return e
}

func user(id int64) domain.Principal {
	return domain.Principal{UserID: id, Role: domain.RoleUser, Name: fmt.Sprintf("user-%d", id)}
}

func TestIntegration_ConcurrentIdenticalRequests(t *testing.T) {
	s := newStack(t)
	eq := s.seed(t, "Canon R5")
	req := CreateBookingRequest{EquipmentID: eq.ID, Start: testNow.Add(9 * time.Hour), DurationHours: 2}

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.CreateBooking(context.Background(), user(int64(100+i)), req)
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, conflicts)
	assert.Equal(t, 1, s.published.count())

	active, err := s.bookings.ListActiveByEquipment(context.Background(), eq.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestIntegration_AdjacentSlotsAndAvailability(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	eq := s.seed(t, "Sony A7")
	nine := testNow.Add(9 * time.Hour)

	_, err := s.svc.CreateBooking(ctx, user(1), CreateBookingRequest{EquipmentID: eq.ID, Start: nine, DurationHours: 2})
	require.NoError(t, err)

	av, err := s.svc.CheckAvailability(ctx, eq.ID, nine.Add(time.Hour), 1)
	require.NoError(t, err)
	assert.False(t, av.Available)
	assert.Equal(t, 1, av.ConflictingCount)

	_, err = s.svc.CreateBooking(ctx, user(2), CreateBookingRequest{EquipmentID: eq.ID, Start: nine.Add(time.Hour), DurationHours: 1})
	assert.ErrorIs(t, err, ErrConflict)

	av, err = s.svc.CheckAvailability(ctx, eq.ID, nine.Add(2*time.Hour), 1)
	require.NoError(t, err)
	assert.True(t, av.Available)

	_, err = s.svc.CreateBooking(ctx, user(2), CreateBookingRequest{EquipmentID: eq.ID, Start: nine.Add(2 * time.Hour), DurationHours: 1})
	assert.NoError(t, err)
}

func TestIntegration_OneActiveBookingPerDay(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	cam := s.seed(t, "Camera")
	mic := s.seed(t, "Microphone")

	// 09:00 and 15:00 UTC are both on 2026-12-01 in UTC+8.
	first, err := s.svc.CreateBooking(ctx, user(1), CreateBookingRequest{EquipmentID: cam.ID, Start: testNow.Add(9 * time.Hour), DurationHours: 1})
	require.NoError(t, err)
	assert.Equal(t, "2026-12-01", first.BookingDay)

	_, err = s.svc.CreateBooking(ctx, user(1), CreateBookingRequest{EquipmentID: mic.ID, Start: testNow.Add(15 * time.Hour), DurationHours: 1})
	assert.ErrorIs(t, err, ErrConflict)

	// 17:00 UTC is already 2026-12-02 in UTC+8.
	next, err := s.svc.CreateBooking(ctx, user(1), CreateBookingRequest{EquipmentID: mic.ID, Start: testNow.Add(17 * time.Hour), DurationHours: 1})
	require.NoError(t, err)
	assert.Equal(t, "2026-12-02", next.BookingDay)
}

func TestIntegration_SlowPublisherDoesNotHoldLocks(t *testing.T) {
	pub := &gatedPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	s := newStack(t, WithPublisher(pub), WithPublishTimeout(5*time.Second))
	eq := s.seed(t, "Canon R5")
	nine := testNow.Add(9 * time.Hour)

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.svc.CreateBooking(context.Background(), user(1), CreateBookingRequest{EquipmentID: eq.ID, Start: nine, DurationHours: 1})
		firstDone <- err
	}()
	<-pub.entered

	// The first create is parked in its publish; the equipment lock must
	// already be free.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	started := time.Now()
	_, err := s.svc.CreateBooking(ctx, user(2), CreateBookingRequest{EquipmentID: eq.ID, Start: nine.Add(3 * time.Hour), DurationHours: 1})
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 500*time.Millisecond)

	close(pub.release)
	require.NoError(t, <-firstDone)
}

func TestIntegration_EndedBookingStillUsesTheDay(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	cam := s.seed(t, "Camera")
	mic := s.seed(t, "Microphone")

	// 01:00-02:00 UTC is 09:00-10:00 on 2026-12-01 in UTC+8.
	morning, err := s.svc.CreateBooking(ctx, user(1), CreateBookingRequest{EquipmentID: cam.ID, Start: testNow.Add(time.Hour), DurationHours: 1})
	require.NoError(t, err)

	s.clock.Set(testNow.Add(3 * time.Hour))
	got, err := s.svc.GetBooking(ctx, user(1), morning.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, got.Status)

	// Active means not cancelled, so the returned booking still holds the day.
	_, err = s.svc.CreateBooking(ctx, user(1), CreateBookingRequest{EquipmentID: mic.ID, Start: testNow.Add(6 * time.Hour), DurationHours: 1})
	assert.ErrorIs(t, err, ErrConflict)

	// Completed bookings cannot be cancelled to free the day either.
	_, err = s.svc.CancelBooking(ctx, user(1), morning.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestIntegration_CancelFreesSlotAndDayOnly(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	cam := s.seed(t, "Camera")
	lens := s.seed(t, "Lens")
	slot := testNow.Add(9 * time.Hour)

	mine, err := s.svc.CreateBooking(ctx, user(1), CreateBookingRequest{EquipmentID: cam.ID, Start: slot, DurationHours: 2})
	require.NoError(t, err)
	theirs, err := s.svc.CreateBooking(ctx, user(2), CreateBookingRequest{EquipmentID: lens.ID, Start: slot, DurationHours: 2})
	require.NoError(t, err)

	_, err = s.svc.CancelBooking(ctx, user(2), mine.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := s.svc.CancelBooking(ctx, user(1), mine.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)

	stored, err := s.bookings.GetByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, stored.Status)
	require.NotNil(t, stored.CancelledBy)
	assert.Equal(t, int64(1), *stored.CancelledBy)
	assert.NotNil(t, stored.CancelledAt)

	other, err := s.bookings.GetByID(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingActive, other.Status)

	_, err = s.svc.CancelBooking(ctx, user(1), mine.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// Slot and booking day are free again.
	_, err = s.svc.CreateBooking(ctx, user(3), CreateBookingRequest{EquipmentID: cam.ID, Start: slot, DurationHours: 2})
	require.NoError(t, err)
	_, err = s.svc.CreateBooking(ctx, user(1), CreateBookingRequest{EquipmentID: lens.ID, Start: slot.Add(3 * time.Hour), DurationHours: 1})
	require.NoError(t, err)

	assert.Equal(t, 5, s.published.count())
}

func TestIntegration_RandomRequestsKeepInvariants(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	var equipmentIDs []int64
	for i := 0; i < 3; i++ {
		equipmentIDs = append(equipmentIDs, s.seed(t, fmt.Sprintf("item-%d", i)).ID)
	}

	rnd := rand.New(rand.NewSource(42))
	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		req := CreateBookingRequest{
			EquipmentID:   equipmentIDs[rnd.Intn(len(equipmentIDs))],
			Start:         testNow.Add(time.Duration(1+rnd.Intn(72)) * time.Hour),
			DurationHours: 1 + rnd.Intn(8),
		}
		p := user(int64(1 + rnd.Intn(6)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.CreateBooking(ctx, p, req)
			if err != nil && !errors.Is(err, ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := s.bookings.List(ctx, repository.BookingFilter{Status: domain.BookingActive, Now: testNow, Limit: 1000})
	require.NoError(t, err)
	require.NotEmpty(t, all)

	perDay := map[string]int{}
	for i := range all {
		perDay[fmt.Sprintf("%d/%s", all[i].UserID, all[i].BookingDay)]++
		for j := i + 1; j < len(all); j++ {
			if all[i].EquipmentID != all[j].EquipmentID {
				continue
			}
			assert.False(t, all[i].Overlaps(all[j].StartAt, all[j].End()),
				"bookings %d and %d overlap", all[i].ID, all[j].ID)
		}
	}
	for key, n := range perDay {
		assert.Equal(t, 1, n, "user/day %s has %d active bookings", key, n)
	}
}
