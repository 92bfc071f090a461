package occupancy

import (
	"fmt"
	"time"

	"campus-gate-backend/config"
	"campus-gate-backend/internal/model"
)

// ShiftWindow classifies a moment as day or night shift. The day shift runs
// from Start (inclusive) to End (exclusive) in local minutes after midnight;
// a window with End before Start wraps past midnight.
type ShiftWindow struct {
	Start int
	End   int
	Loc   *time.Location
}

// NewShiftWindow builds a ShiftWindow from configuration.
func NewShiftWindow(cfg config.ShiftConfig) (ShiftWindow, error) {
	start, err := config.ParseClock(cfg.DayStart)
	if err != nil {
		return ShiftWindow{}, fmt.Errorf("day start: %w", err)
	}
	end, err := config.ParseClock(cfg.DayEnd)
	if err != nil {
		return ShiftWindow{}, fmt.Errorf("day end: %w", err)
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return ShiftWindow{}, fmt.Errorf("shift timezone: %w", err)
	}
	return ShiftWindow{Start: start, End: end, Loc: loc}, nil
}

// At returns the shift t falls into.
func (w ShiftWindow) At(t time.Time) model.Shift {
	loc := w.Loc
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	m := local.Hour()*60 + local.Minute()

	var day bool
	if w.Start <= w.End {
		day = m >= w.Start && m < w.End
	} else {
		day = m >= w.Start || m < w.End
	}
	if day {
		return model.ShiftDay
	}
	return model.ShiftNight
}
