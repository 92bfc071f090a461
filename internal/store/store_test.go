package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"campus-gate-backend/config"
	"campus-gate-backend/internal/db"
	"campus-gate-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteStore opens a migrated file-backed SQLite store in a temp dir.
func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "gate.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})
	return NewGormStore(gormDB)
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newRecord(plate, slot string, entry time.Time) *model.VehicleRecord {
	return &model.VehicleRecord{
		ID:           uuid.NewString(),
		PlateNumber:  plate,
		VehicleClass: model.ClassFourWheeler,
		Owner: model.OwnerInfo{
			Name:       "Asha Rao",
			Role:       model.OwnerStaff,
			Contact:    "9800000000",
			Department: "Physics",
		},
		EntryTime:   entry,
		Gate:        "GATE-1",
		Status:      model.StatusInside,
		Purpose:     "work",
		ParkingSlot: slot,
		Shift:       model.ShiftDay,
		VerifiedBy:  "guard-1",
	}
}

func newLog(action model.LogAction, at time.Time) *model.LogEntry {
	return &model.LogEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Timestamp: at,
		ActorID:   "guard-1",
		ActorRole: "guard",
		Shift:     model.ShiftDay,
	}
}

func TestGormStore_CountInside(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "vehicle_records" WHERE status = $1`)).
		WithArgs(model.StatusInside).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountInside(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_MarkExited_Mock(t *testing.T) {
	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedErr      error
	}{
		{
			name: "Record missing",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "vehicle_records" WHERE id = $1`)).
					WithArgs("r-1", 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
				mock.ExpectRollback()
			},
			expectedErr: ErrNotFound,
		},
		{
			name: "Already exited, nothing is written",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "vehicle_records" WHERE id = $1`)).
					WithArgs("r-1", 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "status", "entry_time", "exit_time"}).
						AddRow("r-1", "exited", t0, t0.Add(time.Hour)))
				mock.ExpectRollback()
			},
			expectedErr: ErrAlreadyExited,
		},
		{
			name: "Lost the race to another check-out",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "vehicle_records" WHERE id = $1`)).
					WithArgs("r-1", 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "status", "entry_time", "gate"}).
						AddRow("r-1", "inside", t0, "GATE-1"))
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "vehicle_records" SET`)).
					WithArgs(Any{}, Any{}, Any{}, Any{}, Any{}, "r-1", model.StatusInside).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			expectedErr: ErrAlreadyExited,
		},
		{
			name: "Store failure is wrapped",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "vehicle_records" WHERE id = $1`)).
					WithArgs("r-1", 1).
					WillReturnError(fmt.Errorf("connection reset"))
				mock.ExpectRollback()
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			s := NewGormStore(gormDB)
			tc.mockExpectations(mock)

			rec, err := s.MarkExited(context.Background(), "r-1", Exit{At: t0.Add(2 * time.Hour)}, newLog(model.ActionExit, t0))
			assert.Error(t, err)
			assert.Nil(t, rec)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				for _, known := range []error{ErrNotFound, ErrAlreadyExited, ErrPlateInside} {
					assert.NotErrorIs(t, err, known)
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_DeletePushSubscription_NotOwned(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "push_subscriptions" WHERE endpoint = $1 AND identity_id = $2`)).
		WithArgs("https://push.example/abc", "u-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.DeletePushSubscription(context.Background(), "https://push.example/abc", "u-2")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUniqueViolation(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected error
	}{
		{"postgres plate", &pgconn.PgError{Code: "23505", ConstraintName: db.IndexPlateInside}, ErrPlateInside},
		{"postgres slot", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: db.IndexSlotInside}), ErrSlotOccupied},
		{"postgres other code", &pgconn.PgError{Code: "23503"}, nil},
		{"gorm translated", fmt.Errorf("%w: uniq_vehicle_records_slot_inside", gorm.ErrDuplicatedKey), ErrSlotOccupied},
		{"sqlite not unique", sqlite3.Error{Code: sqlite3.ErrBusy}, nil},
		{"plain error", errors.New("boom"), nil},
		{"nil", nil, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, uniqueViolation(tc.err))
		})
	}
}

func TestGormStore_CreateInside(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	first := newRecord("KA01AB1234", "P-1", t0)
	require.NoError(t, s.CreateInside(ctx, first, newLog(model.ActionEntry, t0)))

	t.Run("same plate is rejected", func(t *testing.T) {
		err := s.CreateInside(ctx, newRecord("KA01AB1234", "", t0), newLog(model.ActionEntry, t0))
		assert.ErrorIs(t, err, ErrPlateInside)
	})

	t.Run("same slot is rejected", func(t *testing.T) {
		err := s.CreateInside(ctx, newRecord("KA01AB9999", "P-1", t0), newLog(model.ActionEntry, t0))
		assert.ErrorIs(t, err, ErrSlotOccupied)
	})

	t.Run("audit entry is written with a snapshot", func(t *testing.T) {
		page, err := s.ListLogs(ctx, LogFilter{RecordID: first.ID})
		require.NoError(t, err)
		require.Len(t, page.Logs, 1)
		assert.Equal(t, model.ActionEntry, page.Logs[0].Action)
		assert.Equal(t, "KA01AB1234", page.Logs[0].PlateNumber)
		assert.Equal(t, "GATE-1", page.Logs[0].Gate)
		assert.Equal(t, "Asha Rao", page.Logs[0].Snapshot.Data().OwnerName)
		assert.Equal(t, model.StatusInside, page.Logs[0].Snapshot.Data().Status)
	})

	t.Run("failed check-in leaves no trace", func(t *testing.T) {
		n, err := s.CountInside(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		page, err := s.ListLogs(ctx, LogFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
	})
}

func TestGormStore_MarkExited(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	rec := newRecord("MH12XY0001", "P-3", t0)
	require.NoError(t, s.CreateInside(ctx, rec, newLog(model.ActionEntry, t0)))

	_, err := s.MarkExited(ctx, rec.ID, Exit{At: t0.Add(-time.Minute)}, newLog(model.ActionExit, t0))
	assert.ErrorIs(t, err, ErrExitBeforeEntry)

	exitAt := t0.Add(125*time.Minute + 59*time.Second)
	exited, err := s.MarkExited(ctx, rec.ID, Exit{At: exitAt, Gate: "GATE-2"}, newLog(model.ActionExit, exitAt))
	require.NoError(t, err)
	assert.Equal(t, model.StatusExited, exited.Status)
	require.NotNil(t, exited.DurationMinutes)
	assert.Equal(t, 125, *exited.DurationMinutes)
	require.NotNil(t, exited.ExitGate)
	assert.Equal(t, "GATE-2", *exited.ExitGate)

	_, err = s.MarkExited(ctx, rec.ID, Exit{At: exitAt.Add(time.Hour)}, newLog(model.ActionExit, exitAt))
	assert.ErrorIs(t, err, ErrAlreadyExited)

	stored, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExitTime)
	assert.True(t, exitAt.Equal(*stored.ExitTime), "second check-out must not move the exit time")

	_, err = s.MarkExited(ctx, "missing", Exit{At: exitAt}, newLog(model.ActionExit, exitAt))
	assert.ErrorIs(t, err, ErrNotFound)

	// the plate and slot are free again
	require.NoError(t, s.CreateInside(ctx, newRecord("MH12XY0001", "P-3", exitAt), newLog(model.ActionEntry, exitAt)))
}

func TestGormStore_UpdateDetails(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	a := newRecord("TN01AA0001", "P-1", t0)
	b := newRecord("TN01AA0002", "P-2", t0)
	require.NoError(t, s.CreateInside(ctx, a, newLog(model.ActionEntry, t0)))
	require.NoError(t, s.CreateInside(ctx, b, newLog(model.ActionEntry, t0)))

	updated, err := s.UpdateDetails(ctx, a.ID, func(r *model.VehicleRecord) error {
		r.Notes = "visitor pass 42"
		r.Status = model.StatusExited
		r.PlateNumber = "HACKED"
		return nil
	}, newLog(model.ActionUpdated, t0))
	require.NoError(t, err)
	assert.Equal(t, "visitor pass 42", updated.Notes)
	assert.Equal(t, model.StatusInside, updated.Status)
	assert.Equal(t, "TN01AA0001", updated.PlateNumber)

	_, err = s.UpdateDetails(ctx, a.ID, func(r *model.VehicleRecord) error {
		r.ParkingSlot = "P-2"
		return nil
	}, newLog(model.ActionUpdated, t0))
	assert.ErrorIs(t, err, ErrSlotOccupied)

	sentinel := errors.New("rejected")
	_, err = s.UpdateDetails(ctx, a.ID, func(r *model.VehicleRecord) error { return sentinel }, newLog(model.ActionUpdated, t0))
	assert.ErrorIs(t, err, sentinel)

	_, err = s.UpdateDetails(ctx, "missing", func(r *model.VehicleRecord) error { return nil }, newLog(model.ActionUpdated, t0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_DeleteRecord(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	rec := newRecord("DL3C1234", "", t0)
	require.NoError(t, s.CreateInside(ctx, rec, newLog(model.ActionEntry, t0)))

	deleted, err := s.DeleteRecord(ctx, rec.ID, newLog(model.ActionDeleted, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, deleted.ID)

	_, err = s.GetRecord(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := s.PlateHistory(ctx, "DL3C1234")
	require.NoError(t, err)
	assert.Nil(t, history.Current)
	assert.Len(t, history.Logs, 2)
	assert.Equal(t, model.ActionDeleted, history.Logs[0].Action)

	_, err = s.DeleteRecord(ctx, rec.ID, newLog(model.ActionDeleted, t0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_ListRecords(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		rec := newRecord(fmt.Sprintf("KA05MH%04d", i), "", t0.Add(time.Duration(i)*time.Minute))
		if i%5 == 0 {
			rec.VehicleClass = model.ClassTwoWheeler
			rec.Owner.Name = "Ravi_Kumar"
		}
		require.NoError(t, s.CreateInside(ctx, rec, newLog(model.ActionEntry, rec.EntryTime)))
	}

	t.Run("defaults and newest first", func(t *testing.T) {
		page, err := s.ListRecords(ctx, RecordFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(25), page.Total)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, DefaultPageSize, page.PageSize)
		require.Len(t, page.Records, DefaultPageSize)
		assert.Equal(t, "KA05MH0024", page.Records[0].PlateNumber)
	})

	t.Run("second page", func(t *testing.T) {
		page, err := s.ListRecords(ctx, RecordFilter{Paging: Paging{Page: 2, PageSize: 20}})
		require.NoError(t, err)
		assert.Len(t, page.Records, 5)
		assert.Equal(t, "KA05MH0004", page.Records[0].PlateNumber)
	})

	t.Run("class filter", func(t *testing.T) {
		page, err := s.ListRecords(ctx, RecordFilter{Class: model.ClassTwoWheeler})
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.Total)
	})

	t.Run("search is case-insensitive and escapes wildcards", func(t *testing.T) {
		page, err := s.ListRecords(ctx, RecordFilter{Search: "ravi_"})
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.Total)

		page, err = s.ListRecords(ctx, RecordFilter{Search: "ka05mh001"})
		require.NoError(t, err)
		assert.Equal(t, int64(10), page.Total)

		page, err = s.ListRecords(ctx, RecordFilter{Search: "%"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), page.Total)
		assert.NotNil(t, page.Records)
	})

	t.Run("entry time range", func(t *testing.T) {
		from, to := t0.Add(10*time.Minute), t0.Add(14*time.Minute)
		page, err := s.ListRecords(ctx, RecordFilter{EnteredFrom: &from, EnteredTo: &to})
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.Total)
	})
}

func TestGormStore_PlateHistory(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	_, err := s.PlateHistory(ctx, "UNKNOWN1")
	assert.ErrorIs(t, err, ErrNotFound)

	at := t0
	for i := 0; i < 2; i++ {
		rec := newRecord("GJ01ZZ0007", "", at)
		require.NoError(t, s.CreateInside(ctx, rec, newLog(model.ActionEntry, at)))
		at = at.Add(30 * time.Minute)
		_, err := s.MarkExited(ctx, rec.ID, Exit{At: at}, newLog(model.ActionExit, at))
		require.NoError(t, err)
		at = at.Add(30 * time.Minute)
	}
	require.NoError(t, s.CreateInside(ctx, newRecord("GJ01ZZ0007", "", at), newLog(model.ActionEntry, at)))

	h, err := s.PlateHistory(ctx, "GJ01ZZ0007")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInside, h.Status)
	assert.Equal(t, int64(3), h.Entries)
	assert.Equal(t, int64(2), h.Exits)
	assert.Len(t, h.Logs, 5)
	assert.Equal(t, model.ActionEntry, h.Logs[0].Action)
}

func TestGormStore_PushSubscriptions(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	sub := &model.PushSubscription{Endpoint: "https://push.example/1", P256DH: "k1", Auth: "a1", IdentityID: "u-1"}
	require.NoError(t, s.SavePushSubscription(ctx, sub))

	sub2 := &model.PushSubscription{Endpoint: "https://push.example/1", P256DH: "k2", Auth: "a2", IdentityID: "u-1"}
	require.NoError(t, s.SavePushSubscription(ctx, sub2))

	got, err := s.GetPushSubscription(ctx, "https://push.example/1")
	require.NoError(t, err)
	assert.Equal(t, "k2", got.P256DH)

	subs, err := s.PushSubscriptionsFor(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	assert.ErrorIs(t, s.DeletePushSubscription(ctx, "https://push.example/1", "u-2"), ErrNotFound)
	assert.NoError(t, s.DeletePushSubscription(ctx, "https://push.example/1", "u-1"))

	_, err = s.GetPushSubscription(ctx, "https://push.example/1")
	assert.ErrorIs(t, err, ErrNotFound)
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
