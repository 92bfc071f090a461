package model

import "time"

// VehicleClass is the kind of vehicle passing through a gate.
type VehicleClass string

const (
	ClassTwoWheeler   VehicleClass = "two-wheeler"
	ClassFourWheeler  VehicleClass = "four-wheeler"
	ClassThreeWheeler VehicleClass = "three-wheeler"
	ClassBicycle      VehicleClass = "bicycle"
	ClassOther        VehicleClass = "other"
)

// VehicleClasses lists every accepted vehicle class.
var VehicleClasses = []VehicleClass{ClassTwoWheeler, ClassFourWheeler, ClassThreeWheeler, ClassBicycle, ClassOther}

// Valid reports whether c is a known class.
func (c VehicleClass) Valid() bool {
	for _, v := range VehicleClasses {
		if c == v {
			return true
		}
	}
	return false
}

// OwnerRole is the owner's affiliation with the campus.
type OwnerRole string

const (
	OwnerStudent OwnerRole = "student"
	OwnerFaculty OwnerRole = "faculty"
	OwnerStaff   OwnerRole = "staff"
	OwnerVisitor OwnerRole = "visitor"
)

// OwnerRoles lists every accepted owner role.
var OwnerRoles = []OwnerRole{OwnerStudent, OwnerFaculty, OwnerStaff, OwnerVisitor}

func (r OwnerRole) Valid() bool {
	for _, v := range OwnerRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Status is the occupancy state of a record.
type Status string

const (
	StatusInside Status = "inside"
	StatusExited Status = "exited"
)

// Shift is the operating window an entry fell into.
type Shift string

const (
	ShiftDay   Shift = "day"
	ShiftNight Shift = "night"
)

// OwnerInfo describes who a vehicle belongs to.
type OwnerInfo struct {
	Name         string    `gorm:"size:128;not null" json:"ownerName"`
	Role         OwnerRole `gorm:"size:16;not null" json:"ownerRole"`
	Contact      string    `gorm:"size:32;not null" json:"contactNumber"`
	UniversityID string    `gorm:"size:64;index" json:"universityId,omitempty"`
	Department   string    `gorm:"size:128" json:"department,omitempty"`
}

// VehicleRecord is one visit of a vehicle to campus, from entry to exit.
//
// ExitTime is nil exactly while Status is inside. DurationMinutes is set
// together with ExitTime and never changes afterwards.
type VehicleRecord struct {
	ID              string       `gorm:"primaryKey;size:36" json:"id"`
	PlateNumber     string       `gorm:"size:32;not null;index:idx_vehicle_records_plate" json:"plateNumber"`
	VehicleClass    VehicleClass `gorm:"size:16;not null" json:"vehicleClass"`
	Owner           OwnerInfo    `gorm:"embedded;embeddedPrefix:owner_" json:"ownerInfo"`
	EntryTime       time.Time    `gorm:"not null;index:idx_vehicle_records_entry_time,sort:desc" json:"entryTimestamp"`
	ExitTime        *time.Time   `json:"exitTimestamp"`
	Gate            string       `gorm:"size:32;not null;index:idx_vehicle_records_gate_status,priority:1" json:"gate"`
	ExitGate        *string      `gorm:"size:32" json:"exitGate"`
	Status          Status       `gorm:"size:16;not null;index:idx_vehicle_records_gate_status,priority:2" json:"status"`
	DurationMinutes *int         `json:"durationMinutes"`
	Purpose         string       `gorm:"size:256" json:"purpose,omitempty"`
	Notes           string       `gorm:"size:1024" json:"notes,omitempty"`
	ParkingSlot     string       `gorm:"size:32" json:"parkingSlot,omitempty"`
	Shift           Shift        `gorm:"size:8;not null" json:"shift"`
	VerifiedBy      string       `gorm:"size:64;not null" json:"verifiedBy"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Inside reports whether the vehicle has not exited yet.
func (r *VehicleRecord) Inside() bool {
	return r.Status == StatusInside
}
