package repository

import (
	"context"
	"time"

	"equiplend/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type bookingModel struct {
	ID            int64      `gorm:"column:id;primaryKey"`
	EquipmentID   int64      `gorm:"column:equipment_id"`
	UserID        int64      `gorm:"column:user_id"`
	BorrowerName  string     `gorm:"column:borrower_name"`
	BorrowerEmail string     `gorm:"column:borrower_email"`
	StartAt       time.Time  `gorm:"column:start_at"`
	DurationHours int        `gorm:"column:duration_hours"`
	EndAt         time.Time  `gorm:"column:end_at"`
	BookingDay    string     `gorm:"column:booking_day"`
	Status        string     `gorm:"column:status"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
	CancelledAt   *time.Time `gorm:"column:cancelled_at"`
	CancelledBy   *int64     `gorm:"column:cancelled_by"`
}

func (bookingModel) TableName() string { return "bookings" }

func toDomainBooking(m bookingModel) domain.Booking {
	return domain.Booking{
		ID:            m.ID,
		EquipmentID:   m.EquipmentID,
		UserID:        m.UserID,
		BorrowerName:  m.BorrowerName,
		BorrowerEmail: m.BorrowerEmail,
		StartAt:       m.StartAt.UTC(),
		DurationHours: m.DurationHours,
		EndAt:         m.EndAt.UTC(),
		BookingDay:    m.BookingDay,
		Status:        domain.BookingStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		CancelledAt:   m.CancelledAt,
		CancelledBy:   m.CancelledBy,
	}
}

func toBookingModel(b *domain.Booking) bookingModel {
	return bookingModel{
		ID:            b.ID,
		EquipmentID:   b.EquipmentID,
		UserID:        b.UserID,
		BorrowerName:  b.BorrowerName,
		BorrowerEmail: b.BorrowerEmail,
		StartAt:       b.StartAt.UTC(),
		DurationHours: b.DurationHours,
		EndAt:         b.End().UTC(),
		BookingDay:    b.BookingDay,
		Status:        string(b.Status),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
		CancelledAt:   b.CancelledAt,
		CancelledBy:   b.CancelledBy,
	}
}

func toDomainBookings(rows []bookingModel) []domain.Booking {
	out := make([]domain.Booking, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainBooking(m))
	}
	return out
}

// Insert persists b and fills its generated fields. Storage constraint
// violations surface as ErrOverlap or ErrDailyLimit.
func (r *BookingRepository) Insert(ctx context.Context, b *domain.Booking) error {
	m := toBookingModel(b)
	if err := conn(ctx, r.db).Create(&m).Error; err != nil {
		return classify(err)
	}
	*b = toDomainBooking(m)
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var m bookingModel
	if err := conn(ctx, r.db).First(&m, id).Error; err != nil {
		return nil, classify(err)
	}
	b := toDomainBooking(m)
	return &b, nil
}

// GetByIDForUpdate reads the booking row under a row lock. Only meaningful
// inside WithinTx; SQLite ignores the locking clause.
func (r *BookingRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error) {
	var m bookingModel
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, id).Error
	if err != nil {
		return nil, classify(err)
	}
	b := toDomainBooking(m)
	return &b, nil
}

// UpdateStatus moves a booking to status. Cancelling records who and when.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus, actorID int64) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":     string(status),
		"updated_at": now,
	}
	if status == domain.BookingCancelled {
		updates["cancelled_at"] = now
		updates["cancelled_by"] = actorID
	}

	tx := conn(ctx, r.db).Model(&bookingModel{}).Where("id = ?", id).Updates(updates)
	if tx.Error != nil {
		return classify(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveByEquipment returns persisted-active bookings of the equipment
// intersecting [from, to). A zero bound leaves that side open.
func (r *BookingRepository) ListActiveByEquipment(ctx context.Context, equipmentID int64, from, to time.Time) ([]domain.Booking, error) {
	q := conn(ctx, r.db).
		Where("equipment_id = ? AND status = ?", equipmentID, string(domain.BookingActive))
	if !to.IsZero() {
		q = q.Where("start_at < ?", to.UTC())
	}
	if !from.IsZero() {
		q = q.Where("end_at > ?", from.UTC())
	}

	var rows []bookingModel
	if err := q.Order("start_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainBookings(rows), nil
}

// ListActiveByUser returns persisted-active bookings of the user, limited to
// one booking day when day is set.
func (r *BookingRepository) ListActiveByUser(ctx context.Context, userID int64, day string) ([]domain.Booking, error) {
	q := conn(ctx, r.db).
		Where("user_id = ? AND status = ?", userID, string(domain.BookingActive))
	if day != "" {
		q = q.Where("booking_day = ?", day)
	}

	var rows []bookingModel
	if err := q.Order("start_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainBookings(rows), nil
}

// ListActiveCovering returns active bookings of the given equipment whose
// window contains at.
func (r *BookingRepository) ListActiveCovering(ctx context.Context, equipmentIDs []int64, at time.Time) ([]domain.Booking, error) {
	if len(equipmentIDs) == 0 {
		return nil, nil
	}
	at = at.UTC()

	var rows []bookingModel
	err := conn(ctx, r.db).
		Where("equipment_id IN ? AND status = ?", equipmentIDs, string(domain.BookingActive)).
		Where("start_at <= ? AND end_at > ?", at, at).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainBookings(rows), nil
}

type BookingFilter struct {
	UserID      int64
	EquipmentID int64
	// Status filters on the effective status as of Now.
	Status domain.BookingStatus
	Now    time.Time
	Limit  int
	Offset int
}

func (r *BookingRepository) List(ctx context.Context, f BookingFilter) ([]domain.Booking, error) {
	q := conn(ctx, r.db).Model(&bookingModel{})
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.EquipmentID > 0 {
		q = q.Where("equipment_id = ?", f.EquipmentID)
	}

	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	switch f.Status {
	case domain.BookingActive:
		q = q.Where("status = ? AND end_at > ?", string(domain.BookingActive), now.UTC())
	case domain.BookingCompleted:
		q = q.Where("status = ? AND end_at <= ?", string(domain.BookingActive), now.UTC())
	case domain.BookingCancelled:
		q = q.Where("status = ?", string(domain.BookingCancelled))
	}

	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []bookingModel
	if err := q.Order("start_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainBookings(rows), nil
}
