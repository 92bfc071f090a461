package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"campus-gate-backend/internal/db"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPlateInside is returned when the plate already has an inside record.
	ErrPlateInside = errors.New("vehicle already inside")
	// ErrSlotOccupied is returned when the parking slot is held by another inside record.
	ErrSlotOccupied = errors.New("parking slot already occupied")
	// ErrAlreadyExited is returned when checking out a record that is not inside.
	ErrAlreadyExited = errors.New("vehicle already exited")
	// ErrExitBeforeEntry is returned when the exit time precedes the entry time.
	ErrExitBeforeEntry = errors.New("exit time precedes entry time")
)

const pgUniqueViolation = "23505"

// uniqueViolation translates a unique index violation raised by either
// backend into ErrPlateInside or ErrSlotOccupied. It returns nil for any
// other error.
func uniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return nil
		}
		if pgErr.ConstraintName == db.IndexSlotInside {
			return ErrSlotOccupied
		}
		return ErrPlateInside
	}

	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		if sqErr.ExtendedCode != sqlite3.ErrConstraintUnique {
			return nil
		}
		// "UNIQUE constraint failed: vehicle_records.parking_slot"
		if strings.Contains(sqErr.Error(), "parking_slot") {
			return ErrSlotOccupied
		}
		return ErrPlateInside
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		if strings.Contains(err.Error(), "parking_slot") || strings.Contains(err.Error(), db.IndexSlotInside) {
			return ErrSlotOccupied
		}
		return ErrPlateInside
	}
	return nil
}
