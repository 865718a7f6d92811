package equipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"equiplend/internal/domain"
	"equiplend/internal/repository"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Equipment, error)
	List(ctx context.Context, f repository.EquipmentFilter) ([]domain.Equipment, error)
}

type BookingReader interface {
	ListActiveCovering(ctx context.Context, equipmentIDs []int64, at time.Time) ([]domain.Booking, error)
}

// Service serves the equipment catalogue. Status is never stored; it is
// derived from the active bookings covering the current instant.
type Service struct {
	repo     Repository
	bookings BookingReader
	now      func() time.Time
}

func NewService(repo Repository, bookings BookingReader) *Service {
	return &Service{repo: repo, bookings: bookings, now: time.Now}
}

type ListFilter struct {
	Category string
	Status   domain.EquipmentStatus
	Search   string
	Limit    int
	Offset   int
}

func (s *Service) GetEquipment(ctx context.Context, id int64) (*domain.Equipment, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: equipment %d", ErrNotFound, id)
		}
		return nil, err
	}

	now := s.now()
	active, err := s.bookings.ListActiveCovering(ctx, []int64{e.ID}, now)
	if err != nil {
		return nil, err
	}
	e.Status = domain.DeriveEquipmentStatus(active, now)
	return e, nil
}

func (s *Service) ListEquipment(ctx context.Context, f ListFilter) ([]domain.Equipment, error) {
	switch f.Status {
	case "", domain.EquipmentAvailable, domain.EquipmentBorrowed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	now := s.now()
	items, err := s.repo.List(ctx, repository.EquipmentFilter{
		Category: f.Category,
		Search:   f.Search,
		Status:   f.Status,
		Now:      now,
		Limit:    f.Limit,
		Offset:   f.Offset,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	active, err := s.bookings.ListActiveCovering(ctx, ids, now)
	if err != nil {
		return nil, err
	}
	byEquipment := make(map[int64][]domain.Booking, len(active))
	for _, b := range active {
		byEquipment[b.EquipmentID] = append(byEquipment[b.EquipmentID], b)
	}
	for i := range items {
		items[i].Status = domain.DeriveEquipmentStatus(byEquipment[items[i].ID], now)
	}
	return items, nil
}
