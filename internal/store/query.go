package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"campus-gate-backend/internal/model"
)

// historyLimit caps the number of log entries returned by PlateHistory.
const historyLimit = 500

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *gormStore) GetRecord(ctx context.Context, id string) (*model.VehicleRecord, error) {
	var rec model.VehicleRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load record %s: %w", id, err)
	}
	return &rec, nil
}

// ListRecords returns one page of records matching f, newest entry first,
// along with the total number of matches.
func (s *gormStore) ListRecords(ctx context.Context, f RecordFilter) (*RecordPage, error) {
	paging := f.Paging.Normalize()

	q := s.db.WithContext(ctx).Model(&model.VehicleRecord{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Class != "" {
		q = q.Where("vehicle_class = ?", f.Class)
	}
	if f.Gate != "" {
		q = q.Where("gate = ?", f.Gate)
	}
	if f.OwnerRole != "" {
		q = q.Where("owner_role = ?", f.OwnerRole)
	}
	if f.EnteredFrom != nil {
		q = q.Where("entry_time >= ?", f.EnteredFrom.UTC())
	}
	if f.EnteredTo != nil {
		q = q.Where("entry_time <= ?", f.EnteredTo.UTC())
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		q = q.Where(
			`LOWER(plate_number) LIKE ? ESCAPE '\' OR LOWER(owner_name) LIKE ? ESCAPE '\' OR LOWER(owner_contact) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern,
		)
	}

	q = q.Session(&gorm.Session{})

	page := &RecordPage{Page: paging.Page, PageSize: paging.PageSize}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	page.Records = make([]model.VehicleRecord, 0, paging.PageSize)
	if page.Total == 0 {
		return page, nil
	}
	if err := q.Order("entry_time DESC").Order("id").
		Offset(paging.offset()).Limit(paging.PageSize).
		Find(&page.Records).Error; err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return page, nil
}

// ListLogs returns one page of log entries matching f, newest first.
func (s *gormStore) ListLogs(ctx context.Context, f LogFilter) (*LogPage, error) {
	paging := f.Paging.Normalize()

	q := s.db.WithContext(ctx).Model(&model.LogEntry{})
	if f.Plate != "" {
		q = q.Where("plate_number = ?", f.Plate)
	}
	if f.RecordID != "" {
		q = q.Where("record_id = ?", f.RecordID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Gate != "" {
		q = q.Where("gate = ?", f.Gate)
	}
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.From != nil {
		q = q.Where("logged_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("logged_at <= ?", f.To.UTC())
	}

	q = q.Session(&gorm.Session{})

	page := &LogPage{Page: paging.Page, PageSize: paging.PageSize}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count logs: %w", err)
	}
	page.Logs = make([]model.LogEntry, 0, paging.PageSize)
	if page.Total == 0 {
		return page, nil
	}
	if err := q.Order("logged_at DESC").Order("id").
		Offset(paging.offset()).Limit(paging.PageSize).
		Find(&page.Logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	return page, nil
}

// PlateHistory returns the latest record for plate together with its entry
// and exit counts and its most recent log entries.
func (s *gormStore) PlateHistory(ctx context.Context, plate string) (*History, error) {
	h := &History{Plate: plate}
	db := s.db.WithContext(ctx)

	var latest model.VehicleRecord
	err := db.Where("plate_number = ?", plate).Order("entry_time DESC").First(&latest).Error
	switch {
	case err == nil:
		h.Status = latest.Status
		h.Current = &latest
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("failed to load latest record for %s: %w", plate, err)
	}

	type actionCount struct {
		Action model.LogAction
		Total  int64
	}
	var counts []actionCount
	if err := db.Model(&model.LogEntry{}).
		Select("action, COUNT(*) AS total").
		Where("plate_number = ? AND action IN ?", plate, []model.LogAction{model.ActionEntry, model.ActionExit}).
		Group("action").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count logs for %s: %w", plate, err)
	}
	for _, c := range counts {
		switch c.Action {
		case model.ActionEntry:
			h.Entries = c.Total
		case model.ActionExit:
			h.Exits = c.Total
		}
	}

	if err := db.Where("plate_number = ?", plate).
		Order("logged_at DESC").Order("id").
		Limit(historyLimit).
		Find(&h.Logs).Error; err != nil {
		return nil, fmt.Errorf("failed to load logs for %s: %w", plate, err)
	}

	if h.Current == nil && len(h.Logs) == 0 {
		return nil, ErrNotFound
	}
	if h.Current == nil {
		// Only deleted records remain; report the last logged state.
		h.Status = h.Logs[0].Snapshot.Data().Status
	}
	return h, nil
}

func (s *gormStore) CountInside(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.VehicleRecord{}).
		Where("status = ?", model.StatusInside).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count inside vehicles: %w", err)
	}
	return n, nil
}
