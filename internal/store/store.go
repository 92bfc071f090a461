package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campus-gate-backend/internal/model"
)

// Store defines the interface for all database operations.
//
// The write methods each run in a single transaction that also appends the
// given audit entry. They are meant to be called by the occupancy manager
// only; nothing else changes a record's status or exit time.
type Store interface {
	DB() *gorm.DB

	GetRecord(ctx context.Context, id string) (*model.VehicleRecord, error)
	ListRecords(ctx context.Context, f RecordFilter) (*RecordPage, error)
	ListLogs(ctx context.Context, f LogFilter) (*LogPage, error)
	PlateHistory(ctx context.Context, plate string) (*History, error)
	CountInside(ctx context.Context) (int64, error)

	CreateInside(ctx context.Context, rec *model.VehicleRecord, entry *model.LogEntry) error
	MarkExited(ctx context.Context, id string, exit Exit, entry *model.LogEntry) (*model.VehicleRecord, error)
	UpdateDetails(ctx context.Context, id string, apply func(*model.VehicleRecord) error, entry *model.LogEntry) (*model.VehicleRecord, error)
	DeleteRecord(ctx context.Context, id string, entry *model.LogEntry) (*model.VehicleRecord, error)

	SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetPushSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint, identityID string) error
	PushSubscriptionsFor(ctx context.Context, identityID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CreateInside inserts rec as an inside record. The plate and slot checks
// run inside the transaction; the partial unique indexes catch whatever
// slips past them under concurrency.
func (s *gormStore) CreateInside(ctx context.Context, rec *model.VehicleRecord, entry *model.LogEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.VehicleRecord{}).
			Where("plate_number = ? AND status = ?", rec.PlateNumber, model.StatusInside).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check plate %s: %w", rec.PlateNumber, err)
		}
		if count > 0 {
			return ErrPlateInside
		}

		if rec.ParkingSlot != "" {
			if err := tx.Model(&model.VehicleRecord{}).
				Where("parking_slot = ? AND status = ?", rec.ParkingSlot, model.StatusInside).
				Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check slot %s: %w", rec.ParkingSlot, err)
			}
			if count > 0 {
				return ErrSlotOccupied
			}
		}

		if err := tx.Create(rec).Error; err != nil {
			if uerr := uniqueViolation(err); uerr != nil {
				return uerr
			}
			return fmt.Errorf("failed to create record for %s: %w", rec.PlateNumber, err)
		}
		return appendLog(tx, rec, entry)
	})
}

// MarkExited moves an inside record to exited. The update is conditional on
// the record still being inside, so of two concurrent check-outs exactly one
// succeeds and the other sees ErrAlreadyExited.
func (s *gormStore) MarkExited(ctx context.Context, id string, exit Exit, entry *model.LogEntry) (*model.VehicleRecord, error) {
	var rec model.VehicleRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load record %s: %w", id, err)
		}
		if !rec.Inside() {
			return ErrAlreadyExited
		}
		if exit.At.Before(rec.EntryTime) {
			return ErrExitBeforeEntry
		}

		at := exit.At.UTC()
		duration := int(at.Sub(rec.EntryTime).Minutes())
		gate := exit.Gate
		if gate == "" {
			gate = rec.Gate
		}

		res := tx.Model(&model.VehicleRecord{}).
			Where("id = ? AND status = ?", id, model.StatusInside).
			Updates(map[string]any{
				"status":           model.StatusExited,
				"exit_time":        at,
				"exit_gate":        gate,
				"duration_minutes": duration,
				"updated_at":       at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark record %s exited: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyExited
		}

		rec.Status = model.StatusExited
		rec.ExitTime = &at
		rec.ExitGate = &gate
		rec.DurationMinutes = &duration
		rec.UpdatedAt = at

		if entry.Gate == "" {
			entry.Gate = gate
		}
		return appendLog(tx, &rec, entry)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateDetails loads the record, lets apply modify it and saves the result.
// Identity and occupancy fields are restored after apply, so only details
// can change here.
func (s *gormStore) UpdateDetails(ctx context.Context, id string, apply func(*model.VehicleRecord) error, entry *model.LogEntry) (*model.VehicleRecord, error) {
	var rec model.VehicleRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load record %s: %w", id, err)
		}

		orig := rec
		if err := apply(&rec); err != nil {
			return err
		}
		rec.ID = orig.ID
		rec.PlateNumber = orig.PlateNumber
		rec.Status = orig.Status
		rec.EntryTime = orig.EntryTime
		rec.ExitTime = orig.ExitTime
		rec.ExitGate = orig.ExitGate
		rec.DurationMinutes = orig.DurationMinutes
		rec.Gate = orig.Gate
		rec.Shift = orig.Shift
		rec.VerifiedBy = orig.VerifiedBy
		rec.CreatedAt = orig.CreatedAt

		if rec.Inside() && rec.ParkingSlot != "" && rec.ParkingSlot != orig.ParkingSlot {
			var count int64
			if err := tx.Model(&model.VehicleRecord{}).
				Where("parking_slot = ? AND status = ? AND id <> ?", rec.ParkingSlot, model.StatusInside, rec.ID).
				Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check slot %s: %w", rec.ParkingSlot, err)
			}
			if count > 0 {
				return ErrSlotOccupied
			}
		}

		if err := tx.Save(&rec).Error; err != nil {
			if uerr := uniqueViolation(err); uerr != nil {
				return uerr
			}
			return fmt.Errorf("failed to update record %s: %w", id, err)
		}
		return appendLog(tx, &rec, entry)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteRecord removes the record and logs a final snapshot of it. The
// audit trail for the record is kept.
func (s *gormStore) DeleteRecord(ctx context.Context, id string, entry *model.LogEntry) (*model.VehicleRecord, error) {
	var rec model.VehicleRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load record %s: %w", id, err)
		}
		if err := tx.Delete(&model.VehicleRecord{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete record %s: %w", id, err)
		}
		return appendLog(tx, &rec, entry)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// appendLog fills in the record-derived fields of entry and inserts it.
func appendLog(tx *gorm.DB, rec *model.VehicleRecord, entry *model.LogEntry) error {
	if entry == nil {
		return nil
	}
	entry.RecordID = rec.ID
	entry.PlateNumber = rec.PlateNumber
	if entry.Gate == "" {
		entry.Gate = rec.Gate
	}
	entry.Snapshot = datatypes.NewJSONType(model.SnapshotOf(rec))
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append %s log for record %s: %w", entry.Action, rec.ID, err)
	}
	return nil
}

// SavePushSubscription creates or replaces the subscription for its endpoint.
func (s *gormStore) SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "identity_id"}),
	}).Create(sub).Error
}

func (s *gormStore) GetPushSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// DeletePushSubscription removes the endpoint if it belongs to identityID.
func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint, identityID string) error {
	res := s.db.WithContext(ctx).
		Where("endpoint = ? AND identity_id = ?", endpoint, identityID).
		Delete(&model.PushSubscription{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) PushSubscriptionsFor(ctx context.Context, identityID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("identity_id = ?", identityID).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
