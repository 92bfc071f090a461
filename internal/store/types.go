package store

import (
	"time"

	"campus-gate-backend/internal/model"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Paging selects one page of an offset-paginated listing. Page is 1-based.
type Paging struct {
	Page     int
	PageSize int
}

// Normalize applies defaults and clamps the page size.
func (p Paging) Normalize() Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Paging) offset() int {
	return (p.Page - 1) * p.PageSize
}

// RecordFilter narrows ListRecords. Zero values match everything.
type RecordFilter struct {
	Status    model.Status
	Class     model.VehicleClass
	Gate      string
	OwnerRole model.OwnerRole
	// EnteredFrom and EnteredTo bound the entry time, both inclusive.
	EnteredFrom *time.Time
	EnteredTo   *time.Time
	// Search matches plate, owner name or contact number, case-insensitively.
	Search string
	Paging
}

// LogFilter narrows ListLogs. Zero values match everything.
type LogFilter struct {
	Plate    string
	RecordID string
	Action   model.LogAction
	Gate     string
	ActorID  string
	From     *time.Time
	To       *time.Time
	Paging
}

// RecordPage is one page of vehicle records, newest entry first.
type RecordPage struct {
	Records  []model.VehicleRecord `json:"records"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
}

// LogPage is one page of log entries, newest first.
type LogPage struct {
	Logs     []model.LogEntry `json:"logs"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// History summarizes everything known about a plate.
type History struct {
	Plate string `json:"plateNumber"`
	// Status is "inside" or "exited" for the most recent record.
	Status  model.Status         `json:"status"`
	Current *model.VehicleRecord `json:"current,omitempty"`
	Entries int64                `json:"totalEntries"`
	Exits   int64                `json:"totalExits"`
	Logs    []model.LogEntry     `json:"logs"`
}

// Exit describes a check-out to be applied to an inside record.
type Exit struct {
	At   time.Time
	Gate string
}
