package domain

import "time"

type BookingStatus string

const (
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// DayLayout is the format of Booking.BookingDay.
const DayLayout = "2006-01-02"

type Booking struct {
	ID            int64         `json:"id"`
	EquipmentID   int64         `json:"equipment_id"`
	UserID        int64         `json:"user_id"`
	BorrowerName  string        `json:"borrower_name"`
	BorrowerEmail string        `json:"borrower_email"`
	StartAt       time.Time     `json:"start_datetime"`
	DurationHours int           `json:"duration_hours"`
	EndAt         time.Time     `json:"end_datetime"`
	BookingDay    string        `json:"booking_day"`
	Status        BookingStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	CancelledBy   *int64        `json:"cancelled_by,omitempty"`

	Equipment *Equipment `json:"equipment,omitempty"`
}

// End returns the exclusive end of the booking window.
func (b *Booking) End() time.Time {
	if !b.EndAt.IsZero() {
		return b.EndAt
	}
	return b.StartAt.Add(time.Duration(b.DurationHours) * time.Hour)
}

// EffectiveStatus reports the status as observed at now. A persisted active
// booking whose window has elapsed reads as completed.
func (b *Booking) EffectiveStatus(now time.Time) BookingStatus {
	if b.Status == BookingActive && !now.Before(b.End()) {
		return BookingCompleted
	}
	return b.Status
}

// Overlaps reports whether the booking window intersects [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartAt.Before(end) && b.End().After(start)
}

// Covers reports whether t falls inside the booking window.
func (b *Booking) Covers(t time.Time) bool {
	return !t.Before(b.StartAt) && t.Before(b.End())
}

// BookingDayOf returns the calendar day of t in loc, formatted with DayLayout.
func BookingDayOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}
