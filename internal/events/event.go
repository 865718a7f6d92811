package events

import (
	"context"
	"errors"
	"time"

	"equiplend/internal/domain"

	"github.com/google/uuid"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingCancelled Type = "booking.cancelled"
)

// Event is a booking lifecycle notification.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	BookingID   int64     `json:"booking_id"`
	EquipmentID int64     `json:"equipment_id"`
	UserID      int64     `json:"user_id"`
	Start       time.Time `json:"start_datetime"`
	End         time.Time `json:"end_datetime"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func NewBookingEvent(t Type, b *domain.Booking, at time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		BookingID:   b.ID,
		EquipmentID: b.EquipmentID,
		UserID:      b.UserID,
		Start:       b.StartAt,
		End:         b.End(),
		OccurredAt:  at.UTC(),
	}
}

// Publisher delivers events to interested parties after a commit.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nop struct{}

func (nop) Publish(context.Context, Event) error { return nil }

// Nop discards every event.
func Nop() Publisher { return nop{} }
