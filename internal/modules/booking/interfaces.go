package booking

import (
	"context"
	"time"

	"equiplend/internal/domain"
	"equiplend/internal/repository"
)

// BookingRepository is the booking store. Calls made with a context handed
// out by Transactor.WithinTx run inside that transaction.
type BookingRepository interface {
	Insert(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus, actorID int64) error
	ListActiveByEquipment(ctx context.Context, equipmentID int64, from, to time.Time) ([]domain.Booking, error)
	ListActiveByUser(ctx context.Context, userID int64, day string) ([]domain.Booking, error)
	List(ctx context.Context, f repository.BookingFilter) ([]domain.Booking, error)
}

type EquipmentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Equipment, error)
	LockByID(ctx context.Context, id int64) (*domain.Equipment, error)
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
