package domain

import "time"

type EquipmentStatus string

const (
	EquipmentAvailable EquipmentStatus = "available"
	EquipmentBorrowed  EquipmentStatus = "borrowed"
)

type Equipment struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Model       string          `json:"model,omitempty"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Status      EquipmentStatus `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DeriveEquipmentStatus computes the equipment status from its active
// bookings: borrowed while any of them covers now.
func DeriveEquipmentStatus(active []Booking, now time.Time) EquipmentStatus {
	for i := range active {
		if active[i].Status == BookingActive && active[i].Covers(now) {
			return EquipmentBorrowed
		}
	}
	return EquipmentAvailable
}
