package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrOverlap is a storage-level rejection of two active bookings sharing
	// equipment time.
	ErrOverlap = errors.New("overlapping active booking")
	// ErrDailyLimit is a storage-level rejection of a second active booking
	// for one user on one day.
	ErrDailyLimit = errors.New("active booking already exists for this day")
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"

	userDayIndex = "bookings_user_day_active"
)

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return ErrOverlap
		case pgUniqueViolation:
			if pgErr.ConstraintName == userDayIndex {
				return ErrDailyLimit
			}
		}
		return err
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed") &&
		strings.Contains(msg, "bookings.user_id") && strings.Contains(msg, "bookings.booking_day") {
		return ErrDailyLimit
	}
	return err
}
