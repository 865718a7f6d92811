package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"equiplend/internal/domain"
	"equiplend/internal/events"
	"equiplend/internal/lock"
	"equiplend/internal/pkg/logger"
	"equiplend/internal/pkg/metrics"
	"equiplend/internal/pkg/telemetry"
	"equiplend/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

var tracer = telemetry.Tracer("equiplend/booking")

const (
	defaultPageSize = 20
	maxPageSize     = 100

	defaultPublishTimeout = 2 * time.Second
)

type Service struct {
	bookings  BookingRepository
	equipment EquipmentRepository
	tx        Transactor
	locker    lock.Locker
	policy    Policy

	publisher      events.Publisher
	publishTimeout time.Duration
	metrics        *metrics.BookingMetrics
	log       *logger.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithPublishTimeout bounds how long a committed booking waits on its event
// sinks.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) { s.publishTimeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	bookings BookingRepository,
	equipment EquipmentRepository,
	tx Transactor,
	locker lock.Locker,
	policy Policy,
	opts ...Option,
) *Service {
	if policy.DayLocation == nil {
		policy.DayLocation = time.UTC
	}
	s := &Service{
		bookings:  bookings,
		equipment: equipment,
		tx:        tx,
		locker:    locker,
		policy:    policy,
		publisher:      events.Nop(),
		publishTimeout: defaultPublishTimeout,
		log:            logger.Nop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateBookingRequest struct {
	EquipmentID   int64
	Start         time.Time
	DurationHours int
}

// CreateBooking validates the request and persists an active booking. The
// overlap and one-per-day checks run again under the equipment and user
// locks inside one transaction, so concurrent requests for the same slot
// cannot both commit.
func (s *Service) CreateBooking(ctx context.Context, p domain.Principal, req CreateBookingRequest) (_ *domain.Booking, err error) {
	ctx, span := tracer.Start(ctx, "booking.Create")
	defer span.End()
	span.SetAttributes(attribute.Int64("equipment.id", req.EquipmentID), attribute.Int64("user.id", p.UserID))
	defer s.observe("create", time.Now(), &err)

	if p.IsAdmin() {
		return nil, fmt.Errorf("%w: administrators cannot create bookings", ErrForbidden)
	}
	if p.UserID <= 0 {
		return nil, fmt.Errorf("%w: unknown user", ErrForbidden)
	}
	if req.EquipmentID <= 0 {
		return nil, fmt.Errorf("%w: equipment_id is required", ErrInvalidInput)
	}
	if err := s.policy.validateDuration(req.DurationHours); err != nil {
		return nil, err
	}

	now := s.now()
	start := req.Start.UTC()
	if req.Start.IsZero() || start.Before(now) {
		return nil, fmt.Errorf("%w: start time must be in the future", ErrInvalidInput)
	}
	if start.After(now.Add(s.policy.MaxAdvance)) {
		return nil, fmt.Errorf("%w: bookings open at most %s in advance", ErrInvalidInput, humanDays(s.policy.MaxAdvance))
	}

	end := start.Add(time.Duration(req.DurationHours) * time.Hour)
	day := domain.BookingDayOf(start, s.policy.DayLocation)

	b := &domain.Booking{
		EquipmentID:   req.EquipmentID,
		UserID:        p.UserID,
		BorrowerName:  p.Name,
		BorrowerEmail: p.Email,
		StartAt:       start,
		DurationHours: req.DurationHours,
		EndAt:         end,
		BookingDay:    day,
		Status:        domain.BookingActive,
	}
	if err := s.insertLocked(ctx, b); err != nil {
		return nil, err
	}

	logCtx := s.log.WithFields(ctx, map[string]any{
		"booking_id":   b.ID,
		"equipment_id": b.EquipmentID,
		"user_id":      b.UserID,
		"start":        b.StartAt.Format(time.RFC3339),
	})
	s.log.Info(logCtx, "booking created")
	s.publish(logCtx, events.BookingCreated, b)

	return b, nil
}

// insertLocked holds the user and equipment locks only for the transaction
// that re-checks and inserts b.
func (s *Service) insertLocked(ctx context.Context, b *domain.Booking) error {
	unlock, err := s.locker.Lock(ctx, userLockKey(b.UserID), equipmentLockKey(b.EquipmentID))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			s.metrics.IncConflict("lock_timeout")
			return fmt.Errorf("%w: slot is being booked by another request, retry", ErrConflict)
		}
		return err
	}
	defer unlock()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.equipment.LockByID(ctx, b.EquipmentID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: equipment %d", ErrNotFound, b.EquipmentID)
			}
			return err
		}

		existing, err := s.bookings.ListActiveByEquipment(ctx, b.EquipmentID, b.StartAt, b.EndAt)
		if err != nil {
			return err
		}
		if CountConflicts(existing, b.StartAt, b.EndAt) > 0 {
			s.metrics.IncConflict("overlap")
			return fmt.Errorf("%w: equipment is already booked for the selected time", ErrConflict)
		}

		sameDay, err := s.bookings.ListActiveByUser(ctx, b.UserID, b.BookingDay)
		if err != nil {
			return err
		}
		if len(sameDay) > 0 {
			s.metrics.IncConflict("daily_limit")
			return fmt.Errorf("%w: you already have an active booking on %s", ErrConflict, b.BookingDay)
		}

		if err := s.bookings.Insert(ctx, b); err != nil {
			switch {
			case errors.Is(err, repository.ErrOverlap):
				s.metrics.IncConflict("overlap")
				return fmt.Errorf("%w: equipment is already booked for the selected time", ErrConflict)
			case errors.Is(err, repository.ErrDailyLimit):
				s.metrics.IncConflict("daily_limit")
				return fmt.Errorf("%w: you already have an active booking on %s", ErrConflict, b.BookingDay)
			}
			return err
		}
		return nil
	})
}

// CancelBooking cancels an active booking on behalf of its owner or an
// admin. Cancellation is terminal and touches no other booking.
func (s *Service) CancelBooking(ctx context.Context, p domain.Principal, bookingID int64) (_ *domain.Booking, err error) {
	ctx, span := tracer.Start(ctx, "booking.Cancel")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking.id", bookingID))
	defer s.observe("cancel", time.Now(), &err)

	var cancelled *domain.Booking
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: booking %d", ErrNotFound, bookingID)
			}
			return err
		}
		if b.UserID != p.UserID && !p.IsAdmin() {
			return fmt.Errorf("%w: only the owner or an admin can cancel this booking", ErrForbidden)
		}

		now := s.now()
		if status := b.EffectiveStatus(now); status != domain.BookingActive {
			return fmt.Errorf("%w: booking is %s", ErrConflict, status)
		}

		if err := s.bookings.UpdateStatus(ctx, b.ID, domain.BookingCancelled, p.UserID); err != nil {
			return err
		}
		at := now.UTC()
		actor := p.UserID
		b.Status = domain.BookingCancelled
		b.CancelledAt = &at
		b.CancelledBy = &actor
		cancelled = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.log.WithFields(ctx, map[string]any{
		"booking_id":   cancelled.ID,
		"equipment_id": cancelled.EquipmentID,
		"cancelled_by": p.UserID,
	})
	s.log.Info(logCtx, "booking cancelled")
	s.publish(logCtx, events.BookingCancelled, cancelled)

	return cancelled, nil
}

func (s *Service) GetBooking(ctx context.Context, p domain.Principal, bookingID int64) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: booking %d", ErrNotFound, bookingID)
		}
		return nil, err
	}
	if b.UserID != p.UserID && !p.IsAdmin() {
		return nil, fmt.Errorf("%w: booking belongs to another user", ErrForbidden)
	}
	return s.present(b), nil
}

type ListFilter struct {
	Status      domain.BookingStatus
	EquipmentID int64
	UserID      int64
	Limit       int
	Offset      int
}

func (s *Service) ListMyBookings(ctx context.Context, p domain.Principal, f ListFilter) ([]domain.Booking, error) {
	if err := validateStatus(f.Status); err != nil {
		return nil, err
	}
	limit, offset := normalizePage(f.Limit, f.Offset)
	rows, err := s.bookings.List(ctx, repository.BookingFilter{
		UserID:      p.UserID,
		EquipmentID: f.EquipmentID,
		Status:      f.Status,
		Now:         s.now(),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, err
	}
	return s.presentAll(rows), nil
}

// ListAllBookings is the admin view over every booking.
func (s *Service) ListAllBookings(ctx context.Context, p domain.Principal, f ListFilter) ([]domain.Booking, error) {
	if !p.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	if err := validateStatus(f.Status); err != nil {
		return nil, err
	}
	limit, offset := normalizePage(f.Limit, f.Offset)
	rows, err := s.bookings.List(ctx, repository.BookingFilter{
		UserID:      f.UserID,
		EquipmentID: f.EquipmentID,
		Status:      f.Status,
		Now:         s.now(),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, err
	}
	return s.presentAll(rows), nil
}

// ListEquipmentBookings returns the active bookings of one equipment that
// intersect [from, to).
func (s *Service) ListEquipmentBookings(ctx context.Context, equipmentID int64, from, to time.Time) ([]domain.Booking, error) {
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return nil, fmt.Errorf("%w: end_date must be after start_date", ErrInvalidInput)
	}
	if _, err := s.equipment.GetByID(ctx, equipmentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: equipment %d", ErrNotFound, equipmentID)
		}
		return nil, err
	}
	rows, err := s.bookings.ListActiveByEquipment(ctx, equipmentID, from, to)
	if err != nil {
		return nil, err
	}
	return s.presentAll(rows), nil
}

func (s *Service) present(b *domain.Booking) *domain.Booking {
	out := *b
	out.Status = b.EffectiveStatus(s.now())
	return &out
}

func (s *Service) presentAll(rows []domain.Booking) []domain.Booking {
	now := s.now()
	for i := range rows {
		rows[i].Status = rows[i].EffectiveStatus(now)
	}
	return rows
}

func (s *Service) publish(ctx context.Context, t events.Type, b *domain.Booking) {
	if s.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()
	}
	if err := s.publisher.Publish(ctx, events.NewBookingEvent(t, b, s.now())); err != nil {
		s.log.Error(ctx, "publish booking event", err)
	}
}

func (s *Service) observe(op string, started time.Time, err *error) {
	s.metrics.Observe(op, outcomeOf(*err), time.Since(started))
}

func validateStatus(st domain.BookingStatus) error {
	switch st {
	case "", domain.BookingActive, domain.BookingCompleted, domain.BookingCancelled:
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, st)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func userLockKey(id int64) string {
	return "user:" + strconv.FormatInt(id, 10)
}

func equipmentLockKey(id int64) string {
	return "equipment:" + strconv.FormatInt(id, 10)
}

func humanDays(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	if days*24*int(time.Hour) == int(d) && days > 0 {
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}
