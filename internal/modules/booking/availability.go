package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"equiplend/internal/domain"
	"equiplend/internal/pkg/metrics"
	"equiplend/internal/repository"
)

type Availability struct {
	EquipmentID      int64     `json:"equipment_id"`
	Start            time.Time `json:"start_datetime"`
	End              time.Time `json:"end_datetime"`
	DurationHours    int       `json:"duration_hours"`
	Available        bool      `json:"is_available"`
	ConflictingCount int       `json:"conflicting_bookings"`
}

// Policy holds the booking rules.
type Policy struct {
	MinDurationHours int
	MaxDurationHours int
	// MaxAdvance bounds how far ahead a booking may start.
	MaxAdvance time.Duration
	// DayLocation is the zone whose calendar days the one-booking-per-day
	// rule counts in.
	DayLocation *time.Location
}

func DefaultPolicy() Policy {
	return Policy{
		MinDurationHours: 1,
		MaxDurationHours: 8,
		MaxAdvance:       14 * 24 * time.Hour,
		DayLocation:      time.FixedZone("UTC+8", 8*60*60),
	}
}

func (p Policy) validateDuration(hours int) error {
	if hours < p.MinDurationHours || hours > p.MaxDurationHours {
		return fmt.Errorf("%w: duration must be between %d and %d hours", ErrInvalidInput, p.MinDurationHours, p.MaxDurationHours)
	}
	return nil
}

// CountConflicts counts bookings whose window intersects [start, end).
// Windows are half-open, so a booking ending exactly at start does not count.
func CountConflicts(existing []domain.Booking, start, end time.Time) int {
	n := 0
	for i := range existing {
		if existing[i].Status != domain.BookingActive {
			continue
		}
		if existing[i].Overlaps(start, end) {
			n++
		}
	}
	return n
}

// CheckAvailability reports whether equipmentID is free for durationHours
// starting at start. A slot in the past is never available. Read-only.
func (s *Service) CheckAvailability(ctx context.Context, equipmentID int64, start time.Time, durationHours int) (_ *Availability, err error) {
	ctx, span := tracer.Start(ctx, "booking.CheckAvailability")
	defer span.End()
	defer s.observe("availability", time.Now(), &err)

	if start.IsZero() {
		return nil, fmt.Errorf("%w: start time is required", ErrInvalidInput)
	}
	if err := s.policy.validateDuration(durationHours); err != nil {
		return nil, err
	}

	if _, err := s.equipment.GetByID(ctx, equipmentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: equipment %d", ErrNotFound, equipmentID)
		}
		return nil, err
	}

	start = start.UTC()
	end := start.Add(time.Duration(durationHours) * time.Hour)

	existing, err := s.bookings.ListActiveByEquipment(ctx, equipmentID, start, end)
	if err != nil {
		return nil, err
	}
	count := CountConflicts(existing, start, end)

	return &Availability{
		EquipmentID:      equipmentID,
		Start:            start,
		End:              end,
		DurationHours:    durationHours,
		Available:        count == 0 && !start.Before(s.now()),
		ConflictingCount: count,
	}, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict), errors.Is(err, ErrForbidden):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
