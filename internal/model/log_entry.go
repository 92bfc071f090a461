package model

import (
	"time"

	"gorm.io/datatypes"
)

// LogAction is the kind of transition recorded in the audit log.
type LogAction string

const (
	ActionEntry   LogAction = "entry"
	ActionExit    LogAction = "exit"
	ActionUpdated LogAction = "updated"
	ActionDeleted LogAction = "deleted"
)

func (a LogAction) Valid() bool {
	switch a {
	case ActionEntry, ActionExit, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// Snapshot captures the record's details at the moment of a transition.
type Snapshot struct {
	OwnerName    string       `json:"ownerName"`
	OwnerRole    OwnerRole    `json:"ownerRole"`
	UniversityID string       `json:"universityId,omitempty"`
	VehicleClass VehicleClass `json:"vehicleClass"`
	Department   string       `json:"department,omitempty"`
	Purpose      string       `json:"purpose,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	ParkingSlot  string       `json:"parkingSlot,omitempty"`
	Status       Status       `json:"status"`
}

// SnapshotOf copies the loggable details of r.
func SnapshotOf(r *VehicleRecord) Snapshot {
	return Snapshot{
		OwnerName:    r.Owner.Name,
		OwnerRole:    r.Owner.Role,
		UniversityID: r.Owner.UniversityID,
		VehicleClass: r.VehicleClass,
		Department:   r.Owner.Department,
		Purpose:      r.Purpose,
		Notes:        r.Notes,
		ParkingSlot:  r.ParkingSlot,
		Status:       r.Status,
	}
}

// LogEntry is an append-only audit row. Rows are never updated, and they
// outlive the record they reference.
type LogEntry struct {
	ID          string                       `gorm:"primaryKey;size:36" json:"id"`
	RecordID    string                       `gorm:"size:36;not null;index" json:"recordId"`
	PlateNumber string                       `gorm:"size:32;not null;index:idx_log_entries_plate_time,priority:1" json:"plateNumber"`
	Action      LogAction                    `gorm:"size:16;not null;index:idx_log_entries_action_time,priority:1" json:"action"`
	Timestamp   time.Time                    `gorm:"column:logged_at;not null;index:idx_log_entries_plate_time,priority:2,sort:desc;index:idx_log_entries_action_time,priority:2,sort:desc" json:"timestamp"`
	ActorID     string                       `gorm:"size:64;not null" json:"actorId"`
	ActorRole   string                       `gorm:"size:16;not null" json:"actorRole"`
	Gate        string                       `gorm:"size:32" json:"gate,omitempty"`
	Shift       Shift                        `gorm:"size:8" json:"shift,omitempty"`
	Snapshot    datatypes.JSONType[Snapshot] `json:"snapshot"`
	IPAddress   string                       `gorm:"size:64" json:"ipAddress,omitempty"`
	UserAgent   string                       `gorm:"size:512" json:"userAgent,omitempty"`
	Platform    string                       `gorm:"size:32" json:"platform,omitempty"`
}
