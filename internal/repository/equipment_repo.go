package repository

import (
	"context"
	"strings"
	"time"

	"equiplend/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EquipmentRepository struct {
	db *gorm.DB
}

func NewEquipmentRepository(db *gorm.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

type equipmentModel struct {
	ID          int64     `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name"`
	Model       string    `gorm:"column:model"`
	Description string    `gorm:"column:description"`
	Category    string    `gorm:"column:category"`
	ImageURL    string    `gorm:"column:image_url"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (equipmentModel) TableName() string { return "equipment" }

func toDomainEquipment(m equipmentModel) domain.Equipment {
	return domain.Equipment{
		ID:          m.ID,
		Name:        m.Name,
		Model:       m.Model,
		Description: m.Description,
		Category:    m.Category,
		ImageURL:    m.ImageURL,
		Status:      domain.EquipmentAvailable,
		CreatedAt:   m.CreatedAt,
	}
}

func (r *EquipmentRepository) Create(ctx context.Context, e *domain.Equipment) error {
	m := equipmentModel{
		Name:        e.Name,
		Model:       e.Model,
		Description: e.Description,
		Category:    e.Category,
		ImageURL:    e.ImageURL,
	}
	if err := conn(ctx, r.db).Create(&m).Error; err != nil {
		return err
	}
	*e = toDomainEquipment(m)
	return nil
}

func (r *EquipmentRepository) GetByID(ctx context.Context, id int64) (*domain.Equipment, error) {
	var m equipmentModel
	if err := conn(ctx, r.db).First(&m, id).Error; err != nil {
		return nil, classify(err)
	}
	e := toDomainEquipment(m)
	return &e, nil
}

// LockByID reads the equipment row with SELECT ... FOR UPDATE so concurrent
// booking transactions on the same equipment queue behind each other.
func (r *EquipmentRepository) LockByID(ctx context.Context, id int64) (*domain.Equipment, error) {
	var m equipmentModel
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, id).Error
	if err != nil {
		return nil, classify(err)
	}
	e := toDomainEquipment(m)
	return &e, nil
}

type EquipmentFilter struct {
	Category string
	Search   string
	// Status filters on the status derived from active bookings as of Now.
	Status domain.EquipmentStatus
	Now    time.Time
	Limit  int
	Offset int
}

const borrowedAt = `EXISTS (SELECT 1 FROM bookings b WHERE b.equipment_id = equipment.id
	AND b.status = 'active' AND b.start_at <= ? AND b.end_at > ?)`

func (r *EquipmentRepository) List(ctx context.Context, f EquipmentFilter) ([]domain.Equipment, error) {
	q := conn(ctx, r.db).Model(&equipmentModel{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(model) LIKE ?)", like, like)
	}

	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	switch f.Status {
	case domain.EquipmentBorrowed:
		q = q.Where(borrowedAt, now, now)
	case domain.EquipmentAvailable:
		q = q.Where("NOT "+borrowedAt, now, now)
	}

	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []equipmentModel
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Equipment, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainEquipment(m))
	}
	return out, nil
}
