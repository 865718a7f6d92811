package booking

import "time"

type CreateBookingBody struct {
	EquipmentID   int64     `json:"equipment_id" validate:"required,gt=0"`
	StartDatetime time.Time `json:"start_datetime" validate:"required"`
	DurationHours int       `json:"duration_hours" validate:"required,gt=0"`
}

type AvailabilityQuery struct {
	StartDatetime string `form:"start_datetime" validate:"required"`
	DurationHours int    `form:"duration_hours" validate:"required,gt=0"`
}

// EquipmentBookingsQuery accepts RFC3339 instants or bare YYYY-MM-DD dates.
type EquipmentBookingsQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

type ListBookingsQuery struct {
	Status      string `form:"status" validate:"omitempty,oneof=active completed cancelled"`
	EquipmentID int64  `form:"equipment_id" validate:"gte=0"`
	UserID      int64  `form:"user_id" validate:"gte=0"`
	Limit       int    `form:"limit" validate:"gte=0,lte=100"`
	Offset      int    `form:"offset" validate:"gte=0"`
}
