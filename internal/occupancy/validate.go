package occupancy

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"campus-gate-backend/internal/apperr"
	"campus-gate-backend/internal/model"
	"campus-gate-backend/internal/parse"
)

// CheckInInput is the accepted shape of a check-in request.
type CheckInInput struct {
	VehicleNumber string             `json:"vehicleNumber" validate:"required,max=32"`
	VehicleType   model.VehicleClass `json:"vehicleType" validate:"required,oneof=two-wheeler four-wheeler three-wheeler bicycle other"`
	OwnerName     string             `json:"ownerName" validate:"required,max=128"`
	OwnerRole     model.OwnerRole    `json:"ownerRole" validate:"required,oneof=student faculty staff visitor"`
	ContactNumber string             `json:"contactNumber" validate:"required,max=32"`
	GateName      string             `json:"gateName" validate:"required,max=32"`
	Purpose       string             `json:"purpose" validate:"max=256"`
	Department    string             `json:"department" validate:"max=128"`
	UniversityID  string             `json:"universityId" validate:"max=64"`
	Notes         string             `json:"notes" validate:"max=1024"`
	ParkingSlot   string             `json:"parkingSlot" validate:"max=32"`
}

// CheckOutInput optionally names the gate the vehicle leaves through. The
// entry gate is used when it is empty.
type CheckOutInput struct {
	Gate string `json:"gate" validate:"max=32"`
}

// UpdateInput patches the details of a record. Nil fields are left alone.
type UpdateInput struct {
	VehicleType   *model.VehicleClass `json:"vehicleType" validate:"omitempty,oneof=two-wheeler four-wheeler three-wheeler bicycle other"`
	OwnerName     *string             `json:"ownerName" validate:"omitempty,min=1,max=128"`
	OwnerRole     *model.OwnerRole    `json:"ownerRole" validate:"omitempty,oneof=student faculty staff visitor"`
	ContactNumber *string             `json:"contactNumber" validate:"omitempty,min=1,max=32"`
	Purpose       *string             `json:"purpose" validate:"omitempty,max=256"`
	Department    *string             `json:"department" validate:"omitempty,max=128"`
	UniversityID  *string             `json:"universityId" validate:"omitempty,max=64"`
	Notes         *string             `json:"notes" validate:"omitempty,max=1024"`
	ParkingSlot   *string             `json:"parkingSlot" validate:"omitempty,max=32"`
}

func (in UpdateInput) empty() bool {
	return in.VehicleType == nil && in.OwnerName == nil && in.OwnerRole == nil &&
		in.ContactNumber == nil && in.Purpose == nil && in.Department == nil &&
		in.UniversityID == nil && in.Notes == nil && in.ParkingSlot == nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// fieldErrors converts validator errors into per-field messages keyed by
// the JSON field name.
func fieldErrors(err error) map[string]string {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["_"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "required"
		case "oneof":
			fields[fe.Field()] = "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
		case "max":
			fields[fe.Field()] = fmt.Sprintf("must be at most %s characters", fe.Param())
		case "min":
			fields[fe.Field()] = "must not be empty"
		default:
			fields[fe.Field()] = "is invalid"
		}
	}
	return fields
}

// normalizeCheckIn trims and canonicalizes in, then checks the schema and
// the cross-field rules. The normalized plate is returned.
func (m *Manager) normalizeCheckIn(in *CheckInInput) (string, error) {
	in.VehicleNumber = strings.TrimSpace(in.VehicleNumber)
	in.VehicleType = model.VehicleClass(strings.ToLower(strings.TrimSpace(string(in.VehicleType))))
	in.OwnerName = strings.TrimSpace(in.OwnerName)
	in.OwnerRole = model.OwnerRole(strings.ToLower(strings.TrimSpace(string(in.OwnerRole))))
	in.ContactNumber = strings.TrimSpace(in.ContactNumber)
	in.GateName = normalizeGate(in.GateName)
	in.Purpose = strings.TrimSpace(in.Purpose)
	in.Department = strings.TrimSpace(in.Department)
	in.UniversityID = strings.TrimSpace(in.UniversityID)
	in.Notes = strings.TrimSpace(in.Notes)
	in.ParkingSlot = normalizeSlot(in.ParkingSlot)

	fields := make(map[string]string)
	if err := m.validate.Struct(in); err != nil {
		fields = fieldErrors(err)
	}

	var plate string
	if _, bad := fields["vehicleNumber"]; !bad {
		parsed, err := parse.ParsePlate(in.VehicleNumber)
		if err != nil {
			fields["vehicleNumber"] = "must be 4 to 15 letters or digits"
		} else {
			plate = parsed.Plate
		}
	}
	if _, bad := fields["gateName"]; !bad && !m.knownGate(in.GateName) {
		fields["gateName"] = "unknown gate"
	}
	if _, bad := fields["ownerRole"]; !bad {
		affiliationRules(in.OwnerRole, in.Purpose, in.Department, in.UniversityID, fields)
	}

	if len(fields) > 0 {
		return "", apperr.InvalidInput("invalid check-in", fields)
	}
	return plate, nil
}

// affiliationRules checks the fields whose requirement depends on the
// owner's role.
func affiliationRules(role model.OwnerRole, purpose, department, universityID string, fields map[string]string) {
	if role != model.OwnerFaculty && purpose == "" {
		fields["purpose"] = "required unless the owner is faculty"
	}
	if role != model.OwnerVisitor {
		if department == "" {
			fields["department"] = "required unless the owner is a visitor"
		}
		if universityID == "" {
			fields["universityId"] = "required unless the owner is a visitor"
		}
	}
}

// applyUpdate validates in and writes it onto rec.
func (m *Manager) applyUpdate(rec *model.VehicleRecord, in UpdateInput) error {
	if err := m.validate.Struct(in); err != nil {
		return apperr.InvalidInput("invalid update", fieldErrors(err))
	}

	if in.VehicleType != nil {
		rec.VehicleClass = *in.VehicleType
	}
	if in.OwnerName != nil {
		rec.Owner.Name = strings.TrimSpace(*in.OwnerName)
	}
	if in.OwnerRole != nil {
		rec.Owner.Role = *in.OwnerRole
	}
	if in.ContactNumber != nil {
		rec.Owner.Contact = strings.TrimSpace(*in.ContactNumber)
	}
	if in.Purpose != nil {
		rec.Purpose = strings.TrimSpace(*in.Purpose)
	}
	if in.Department != nil {
		rec.Owner.Department = strings.TrimSpace(*in.Department)
	}
	if in.UniversityID != nil {
		rec.Owner.UniversityID = strings.TrimSpace(*in.UniversityID)
	}
	if in.Notes != nil {
		rec.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.ParkingSlot != nil {
		rec.ParkingSlot = normalizeSlot(*in.ParkingSlot)
	}

	fields := make(map[string]string)
	if rec.Owner.Name == "" {
		fields["ownerName"] = "required"
	}
	if rec.Owner.Contact == "" {
		fields["contactNumber"] = "required"
	}
	affiliationRules(rec.Owner.Role, rec.Purpose, rec.Owner.Department, rec.Owner.UniversityID, fields)
	if len(fields) > 0 {
		return apperr.InvalidInput("invalid update", fields)
	}
	return nil
}

func normalizeGate(g string) string {
	return strings.ToUpper(strings.TrimSpace(g))
}

func normalizeSlot(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func (m *Manager) knownGate(g string) bool {
	_, ok := m.gates[g]
	return ok
}
