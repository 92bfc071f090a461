// Package analytics aggregates vehicle records and audit logs into parking
// statistics. It only reads from the database.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"campus-gate-backend/config"
	"campus-gate-backend/internal/apperr"
	"campus-gate-backend/internal/clock"
	"campus-gate-backend/internal/model"
)

// Granularity is the bucket width of a report timeline.
type Granularity string

const (
	ByHour  Granularity = "hour"
	ByDay   Granularity = "day"
	ByWeek  Granularity = "week"
	ByMonth Granularity = "month"
)

// maxTimelinePoints bounds the timeline so that an hourly report over a
// long range cannot produce an unbounded response.
const maxTimelinePoints = 2000

func (g Granularity) Valid() bool {
	switch g {
	case ByHour, ByDay, ByWeek, ByMonth:
		return true
	}
	return false
}

// Options configures an Engine.
type Options struct {
	Location               *time.Location
	DefaultWindow          time.Duration
	LongStay               time.Duration
	LongStayLimit          int
	HighFrequencyThreshold int
	HighFrequencyLimit     int
	Clock                  clock.Clock
}

// OptionsFromConfig converts the analytics section of the configuration.
func OptionsFromConfig(cfg config.AnalyticsConfig) (Options, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Options{}, fmt.Errorf("analytics timezone: %w", err)
	}
	return Options{
		Location:               loc,
		DefaultWindow:          time.Duration(cfg.DefaultWindowDays) * 24 * time.Hour,
		LongStay:               time.Duration(cfg.LongStayHours) * time.Hour,
		LongStayLimit:          cfg.LongStayLimit,
		HighFrequencyThreshold: cfg.HighFrequencyThreshold,
		HighFrequencyLimit:     cfg.HighFrequencyLimit,
	}, nil
}

// Engine computes reports.
type Engine struct {
	db   *gorm.DB
	opts Options
}

// NewEngine creates an Engine. Zero options fall back to a 30 day window,
// a 12 hour long-stay threshold (top 10) and more than 6 gate events per
// day for high frequency (top 5), all bucketed in UTC.
func NewEngine(db *gorm.DB, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.DefaultWindow <= 0 {
		opts.DefaultWindow = 30 * 24 * time.Hour
	}
	if opts.LongStay <= 0 {
		opts.LongStay = 12 * time.Hour
	}
	if opts.LongStayLimit <= 0 {
		opts.LongStayLimit = 10
	}
	if opts.HighFrequencyThreshold <= 0 {
		opts.HighFrequencyThreshold = 6
	}
	if opts.HighFrequencyLimit <= 0 {
		opts.HighFrequencyLimit = 5
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Engine{db: db, opts: opts}
}

// Query selects the records a report covers, by entry time. Zero times
// select the default window ending now.
type Query struct {
	Start   time.Time
	End     time.Time
	GroupBy Granularity
}

// Bucket is one group of a categorical breakdown.
type Bucket struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// HourBucket counts entries in one hour of the day. AvgDurationMinutes only
// covers records that have exited and is nil when there are none.
type HourBucket struct {
	Hour               int      `json:"hour"`
	Count              int64    `json:"count"`
	AvgDurationMinutes *float64 `json:"avgDurationMinutes"`
}

// DayBucket counts entries on one day of the week. Day 0 is Sunday.
type DayBucket struct {
	Day     int    `json:"day"`
	DayName string `json:"dayName"`
	Count   int64  `json:"count"`
}

// TimelinePoint counts entries and exits in one timeline bucket.
type TimelinePoint struct {
	Start   time.Time `json:"start"`
	Entries int64     `json:"entries"`
	Exits   int64     `json:"exits"`
}

// DurationStats summarizes completed stays.
type DurationStats struct {
	Count          int64    `json:"count"`
	AverageMinutes *float64 `json:"averageMinutes"`
	MinMinutes     *int64   `json:"minMinutes"`
	MaxMinutes     *int64   `json:"maxMinutes"`
}

// ClassDuration is the average stay of one vehicle class.
type ClassDuration struct {
	VehicleClass   model.VehicleClass `json:"vehicleClass"`
	AverageMinutes float64            `json:"averageMinutes"`
	Count          int64              `json:"count"`
}

// LongStay is a vehicle that has been inside for longer than the threshold.
type LongStay struct {
	RecordID      string             `json:"recordId"`
	PlateNumber   string             `json:"plateNumber"`
	VehicleClass  model.VehicleClass `json:"vehicleType"`
	OwnerName     string             `json:"ownerName"`
	Gate          string             `json:"gateName"`
	EntryTime     time.Time          `json:"entryTimestamp"`
	InsideMinutes int64              `json:"insideMinutes"`
}

// HighFrequency is a plate that passed the gates unusually often on one
// local day.
type HighFrequency struct {
	PlateNumber string `json:"plateNumber"`
	Day         string `json:"day"`
	Events      int64  `json:"events"`
}

// TimeRange is the resolved range of a report.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Report is the full set of parking statistics for a range.
type Report struct {
	Range           TimeRange       `json:"timeRange"`
	GroupBy         Granularity     `json:"groupBy"`
	TotalEntries    int64           `json:"totalEntries"`
	ByVehicleClass  []Bucket        `json:"byVehicleType"`
	ByOwnerRole     []Bucket        `json:"byOwnerRole"`
	ByGate          []Bucket        `json:"byGate"`
	ByShift         []Bucket        `json:"byShift"`
	Hourly          []HourBucket    `json:"hourlyDistribution"`
	DayOfWeek       []DayBucket     `json:"byDayOfWeek"`
	Timeline        []TimelinePoint `json:"timeline"`
	Duration        DurationStats   `json:"duration"`
	DurationByClass []ClassDuration `json:"avgDurationByType"`
	LongStays       []LongStay      `json:"longStays"`
	HighFrequency   []HighFrequency `json:"highFrequency"`
	GeneratedAt     time.Time       `json:"generatedAt"`
}

// Report computes statistics for the records that entered within q's range.
func (e *Engine) Report(ctx context.Context, q Query) (*Report, error) {
	q, err := e.resolve(q)
	if err != nil {
		return nil, err
	}
	now := e.opts.Clock.Now()
	db := e.db.WithContext(ctx)

	r := &Report{
		Range:       TimeRange{Start: q.Start, End: q.End},
		GroupBy:     q.GroupBy,
		GeneratedAt: now,
	}

	if err := e.inRange(db, q).Count(&r.TotalEntries).Error; err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	for _, b := range []struct {
		column string
		dst    *[]Bucket
	}{
		{"vehicle_class", &r.ByVehicleClass},
		{"owner_role", &r.ByOwnerRole},
		{"gate", &r.ByGate},
		{"shift", &r.ByShift},
	} {
		buckets, err := e.countBy(db, q, b.column)
		if err != nil {
			return nil, err
		}
		*b.dst = buckets
	}

	visits, err := e.visits(db, q)
	if err != nil {
		return nil, err
	}
	r.Hourly = e.hourly(visits)
	r.DayOfWeek = e.dayOfWeek(visits)

	exits, err := e.exitTimes(db, q)
	if err != nil {
		return nil, err
	}
	r.Timeline = e.timeline(q, visits, exits)

	if r.Duration, err = e.durationStats(db, q); err != nil {
		return nil, err
	}
	if r.DurationByClass, err = e.durationByClass(db, q); err != nil {
		return nil, err
	}
	if r.LongStays, err = e.LongStays(ctx); err != nil {
		return nil, err
	}
	if r.HighFrequency, err = e.HighFrequency(ctx, q.Start, q.End); err != nil {
		return nil, err
	}
	return r, nil
}

func (e *Engine) resolve(q Query) (Query, error) {
	if q.GroupBy == "" {
		q.GroupBy = ByDay
	}
	if !q.GroupBy.Valid() {
		return q, apperr.InvalidInput("invalid report query", map[string]string{"groupBy": "must be one of: hour, day, week, month"})
	}
	if q.End.IsZero() {
		q.End = e.opts.Clock.Now()
	}
	if q.Start.IsZero() {
		q.Start = e.startOfDay(q.End.Add(-e.opts.DefaultWindow))
	}
	q.Start, q.End = q.Start.UTC(), q.End.UTC()
	if q.End.Before(q.Start) {
		return q, apperr.InvalidInput("invalid report query", map[string]string{"endDate": "must not be before startDate"})
	}
	if n := bucketCount(q.Start.In(e.opts.Location), q.End.In(e.opts.Location), q.GroupBy); n > maxTimelinePoints {
		return q, apperr.InvalidInput("invalid report query", map[string]string{"groupBy": "range too long for this granularity"})
	}
	return q, nil
}

func (e *Engine) inRange(db *gorm.DB, q Query) *gorm.DB {
	return db.Model(&model.VehicleRecord{}).Where("entry_time >= ? AND entry_time <= ?", q.Start, q.End)
}

// countBy groups the records in range by a column and orders the groups by
// size. column is always one of a fixed set of names.
func (e *Engine) countBy(db *gorm.DB, q Query, column string) ([]Bucket, error) {
	var rows []struct {
		Name  string
		Total int64
	}
	err := e.inRange(db, q).
		Select(column + " AS name, COUNT(*) AS total").
		Group(column).
		Order("total DESC").Order("name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group entries by %s: %w", column, err)
	}
	buckets := make([]Bucket, 0, len(rows))
	for _, row := range rows {
		buckets = append(buckets, Bucket{Name: row.Name, Count: row.Total})
	}
	return buckets, nil
}

type visit struct {
	EntryTime       time.Time
	DurationMinutes *int
}

func (e *Engine) visits(db *gorm.DB, q Query) ([]visit, error) {
	var out []visit
	if err := e.inRange(db, q).Select("entry_time, duration_minutes").Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	return out, nil
}

func (e *Engine) exitTimes(db *gorm.DB, q Query) ([]time.Time, error) {
	var out []time.Time
	err := db.Model(&model.VehicleRecord{}).
		Where("exit_time IS NOT NULL AND exit_time >= ? AND exit_time <= ?", q.Start, q.End).
		Pluck("exit_time", &out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load exits: %w", err)
	}
	return out, nil
}

// hourly buckets entries by local hour of day. Records without a duration
// are counted but left out of the average.
func (e *Engine) hourly(visits []visit) []HourBucket {
	var (
		counts [24]int64
		sums   [24]int64
		timed  [24]int64
	)
	for _, v := range visits {
		h := v.EntryTime.In(e.opts.Location).Hour()
		counts[h]++
		if v.DurationMinutes != nil {
			sums[h] += int64(*v.DurationMinutes)
			timed[h]++
		}
	}

	out := make([]HourBucket, 24)
	for h := range out {
		out[h] = HourBucket{Hour: h, Count: counts[h]}
		if timed[h] > 0 {
			avg := float64(sums[h]) / float64(timed[h])
			out[h].AvgDurationMinutes = &avg
		}
	}
	return out
}

func (e *Engine) dayOfWeek(visits []visit) []DayBucket {
	var counts [7]int64
	for _, v := range visits {
		counts[v.EntryTime.In(e.opts.Location).Weekday()]++
	}
	out := make([]DayBucket, 7)
	for d := range out {
		out[d] = DayBucket{Day: d, DayName: time.Weekday(d).String(), Count: counts[d]}
	}
	return out
}

func (e *Engine) timeline(q Query, visits []visit, exits []time.Time) []TimelinePoint {
	loc := e.opts.Location
	first := truncate(q.Start.In(loc), q.GroupBy)
	last := truncate(q.End.In(loc), q.GroupBy)

	var points []TimelinePoint
	index := make(map[int64]int)
	for t := first; !t.After(last); t = next(t, q.GroupBy) {
		index[t.Unix()] = len(points)
		points = append(points, TimelinePoint{Start: t})
	}
	for _, v := range visits {
		if i, ok := index[truncate(v.EntryTime.In(loc), q.GroupBy).Unix()]; ok {
			points[i].Entries++
		}
	}
	for _, x := range exits {
		if i, ok := index[truncate(x.In(loc), q.GroupBy).Unix()]; ok {
			points[i].Exits++
		}
	}
	return points
}

// durationStats only looks at records with a stored duration, so vehicles
// that are still inside never count as a zero-minute stay.
func (e *Engine) durationStats(db *gorm.DB, q Query) (DurationStats, error) {
	var stats DurationStats
	var row struct {
		Total      int64
		AvgMinutes *float64
		MinMinutes *int64
		MaxMinutes *int64
	}
	err := e.inRange(db, q).
		Where("status = ? AND duration_minutes IS NOT NULL", model.StatusExited).
		Select("COUNT(duration_minutes) AS total, AVG(duration_minutes) AS avg_minutes, MIN(duration_minutes) AS min_minutes, MAX(duration_minutes) AS max_minutes").
		Scan(&row).Error
	if err != nil {
		return stats, fmt.Errorf("failed to compute durations: %w", err)
	}
	stats.Count = row.Total
	if row.Total > 0 {
		stats.AverageMinutes, stats.MinMinutes, stats.MaxMinutes = row.AvgMinutes, row.MinMinutes, row.MaxMinutes
	}
	return stats, nil
}

func (e *Engine) durationByClass(db *gorm.DB, q Query) ([]ClassDuration, error) {
	var rows []struct {
		VehicleClass model.VehicleClass
		AvgMinutes   float64
		Total        int64
	}
	err := e.inRange(db, q).
		Where("status = ? AND duration_minutes IS NOT NULL", model.StatusExited).
		Select("vehicle_class, AVG(duration_minutes) AS avg_minutes, COUNT(*) AS total").
		Group("vehicle_class").
		Order("avg_minutes DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute durations by class: %w", err)
	}
	out := make([]ClassDuration, 0, len(rows))
	for _, row := range rows {
		out = append(out, ClassDuration{VehicleClass: row.VehicleClass, AverageMinutes: row.AvgMinutes, Count: row.Total})
	}
	return out, nil
}

// LongStays returns the vehicles inside for longer than the long-stay
// threshold, longest first.
func (e *Engine) LongStays(ctx context.Context) ([]LongStay, error) {
	now := e.opts.Clock.Now()
	var recs []model.VehicleRecord
	err := e.db.WithContext(ctx).
		Where("status = ? AND entry_time <= ?", model.StatusInside, now.Add(-e.opts.LongStay)).
		Order("entry_time ASC").
		Limit(e.opts.LongStayLimit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load long stays: %w", err)
	}

	out := make([]LongStay, 0, len(recs))
	for _, r := range recs {
		out = append(out, LongStay{
			RecordID:      r.ID,
			PlateNumber:   r.PlateNumber,
			VehicleClass:  r.VehicleClass,
			OwnerName:     r.Owner.Name,
			Gate:          r.Gate,
			EntryTime:     r.EntryTime,
			InsideMinutes: int64(now.Sub(r.EntryTime) / time.Minute),
		})
	}
	return out, nil
}

// HighFrequency returns plates with more entry and exit events on a single
// local day than the threshold, busiest first.
func (e *Engine) HighFrequency(ctx context.Context, start, end time.Time) ([]HighFrequency, error) {
	var rows []struct {
		PlateNumber string
		LoggedAt    time.Time
	}
	err := e.db.WithContext(ctx).Model(&model.LogEntry{}).
		Select("plate_number, logged_at").
		Where("action IN ? AND logged_at >= ? AND logged_at <= ?",
			[]model.LogAction{model.ActionEntry, model.ActionExit}, start.UTC(), end.UTC()).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load gate events: %w", err)
	}

	type key struct{ plate, day string }
	counts := make(map[key]int64)
	for _, row := range rows {
		counts[key{row.PlateNumber, row.LoggedAt.In(e.opts.Location).Format(time.DateOnly)}]++
	}

	var out []HighFrequency
	for k, n := range counts {
		if n > int64(e.opts.HighFrequencyThreshold) {
			out = append(out, HighFrequency{PlateNumber: k.plate, Day: k.day, Events: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Events != out[j].Events {
			return out[i].Events > out[j].Events
		}
		if out[i].Day != out[j].Day {
			return out[i].Day > out[j].Day
		}
		return out[i].PlateNumber < out[j].PlateNumber
	})
	if len(out) > e.opts.HighFrequencyLimit {
		out = out[:e.opts.HighFrequencyLimit]
	}
	return out, nil
}

// Alerts is the current set of anomalies.
type Alerts struct {
	LongStays     []LongStay      `json:"longStays"`
	HighFrequency []HighFrequency `json:"highFrequency"`
	GeneratedAt   time.Time       `json:"generatedAt"`
}

// Alerts returns the vehicles staying too long and the plates seen too
// often today.
func (e *Engine) Alerts(ctx context.Context) (*Alerts, error) {
	now := e.opts.Clock.Now()
	long, err := e.LongStays(ctx)
	if err != nil {
		return nil, err
	}
	frequent, err := e.HighFrequency(ctx, e.startOfDay(now), now)
	if err != nil {
		return nil, err
	}
	return &Alerts{LongStays: long, HighFrequency: frequent, GeneratedAt: now}, nil
}

func (e *Engine) startOfDay(t time.Time) time.Time {
	return truncate(t.In(e.opts.Location), ByDay).UTC()
}

func truncate(t time.Time, g Granularity) time.Time {
	y, m, d := t.Date()
	switch g {
	case ByHour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
	case ByWeek:
		return time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, t.Location())
	case ByMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
}

// next returns the start of the bucket after the one starting at t. Days and
// longer use calendar arithmetic so buckets stay aligned across DST changes.
func next(t time.Time, g Granularity) time.Time {
	switch g {
	case ByHour:
		return t.Add(time.Hour)
	case ByWeek:
		return t.AddDate(0, 0, 7)
	case ByMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func bucketCount(start, end time.Time, g Granularity) int {
	switch g {
	case ByHour:
		return int(end.Sub(start)/time.Hour) + 2
	case ByWeek:
		return int(end.Sub(start)/(7*24*time.Hour)) + 2
	case ByMonth:
		return (end.Year()-start.Year())*12 + int(end.Month()-start.Month()) + 1
	default:
		return int(end.Sub(start)/(24*time.Hour)) + 2
	}
}
