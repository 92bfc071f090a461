package analytics

import (
	"context"
	"fmt"
	"time"

	"campus-gate-backend/internal/model"
)

// GateActivity counts entry and exit events at one gate.
type GateActivity struct {
	Gate    string `json:"gateName"`
	Entries int64  `json:"entries"`
	Exits   int64  `json:"exits"`
}

// Snapshot is the live state of the campus.
type Snapshot struct {
	Inside       int64          `json:"vehiclesInside"`
	EntriesToday int64          `json:"entriesToday"`
	ExitsToday   int64          `json:"exitsToday"`
	Gates        []GateActivity `json:"gateStats"`
	At           time.Time      `json:"at"`
}

// sameCounts reports whether s and o differ in anything but the time taken.
func (s *Snapshot) sameCounts(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Inside != o.Inside || s.EntriesToday != o.EntriesToday || s.ExitsToday != o.ExitsToday || len(s.Gates) != len(o.Gates) {
		return false
	}
	for i := range s.Gates {
		if s.Gates[i] != o.Gates[i] {
			return false
		}
	}
	return true
}

// Snapshot counts the vehicles inside now and the entries and exits since
// local midnight.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	now := e.opts.Clock.Now()
	today := e.startOfDay(now)
	db := e.db.WithContext(ctx)

	s := &Snapshot{At: now}
	if err := db.Model(&model.VehicleRecord{}).Where("status = ?", model.StatusInside).Count(&s.Inside).Error; err != nil {
		return nil, fmt.Errorf("failed to count vehicles inside: %w", err)
	}
	if err := db.Model(&model.VehicleRecord{}).Where("entry_time >= ?", today).Count(&s.EntriesToday).Error; err != nil {
		return nil, fmt.Errorf("failed to count entries today: %w", err)
	}
	if err := db.Model(&model.VehicleRecord{}).Where("exit_time IS NOT NULL AND exit_time >= ?", today).Count(&s.ExitsToday).Error; err != nil {
		return nil, fmt.Errorf("failed to count exits today: %w", err)
	}

	gates, err := e.ActivityByGate(ctx, today)
	if err != nil {
		return nil, err
	}
	s.Gates = gates
	return s, nil
}

// ActivityByGate counts the entry and exit log events per gate since the
// given time, ordered by gate.
func (e *Engine) ActivityByGate(ctx context.Context, since time.Time) ([]GateActivity, error) {
	var rows []struct {
		Gate   string
		Action model.LogAction
		Total  int64
	}
	err := e.db.WithContext(ctx).Model(&model.LogEntry{}).
		Select("gate, action, COUNT(*) AS total").
		Where("action IN ? AND logged_at >= ?", []model.LogAction{model.ActionEntry, model.ActionExit}, since.UTC()).
		Group("gate, action").
		Order("gate").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count gate activity: %w", err)
	}

	out := make([]GateActivity, 0, len(rows))
	for _, row := range rows {
		if len(out) == 0 || out[len(out)-1].Gate != row.Gate {
			out = append(out, GateActivity{Gate: row.Gate})
		}
		g := &out[len(out)-1]
		if row.Action == model.ActionEntry {
			g.Entries += row.Total
		} else {
			g.Exits += row.Total
		}
	}
	return out, nil
}
