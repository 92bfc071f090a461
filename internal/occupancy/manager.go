// Package occupancy owns the inside/exited state of vehicle records.
//
// Every transition is validated and authorized before anything is written,
// committed in one store transaction together with its audit entry, and only
// then announced on the broadcast hub. Transitions for the same plate are
// serialized in-process so their events come out in commit order.
package occupancy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"campus-gate-backend/internal/apperr"
	"campus-gate-backend/internal/auth"
	"campus-gate-backend/internal/broadcast"
	"campus-gate-backend/internal/clock"
	"campus-gate-backend/internal/model"
	"campus-gate-backend/internal/notification"
	"campus-gate-backend/internal/store"
)

const defaultStoreTimeout = 5 * time.Second

// Notifier queues push notifications without blocking.
type Notifier interface {
	Dispatch(job notification.Job) bool
}

// Actor is the authenticated caller of a transition plus request details
// recorded in the audit log.
type Actor struct {
	Identity  auth.Identity
	IP        string
	UserAgent string
	Platform  string
}

// Options configures a Manager.
type Options struct {
	Gates        []string
	Shifts       ShiftWindow
	StoreTimeout time.Duration
	Clock        clock.Clock
	// Notifier is optional; owners get no push notifications without it.
	Notifier Notifier
}

// Manager performs check-in, check-out, update and delete.
type Manager struct {
	store    store.Store
	hub      broadcast.Publisher
	notifier Notifier
	clock    clock.Clock
	gates    map[string]struct{}
	shifts   ShiftWindow
	timeout  time.Duration
	locks    *plateLocks
	validate *validator.Validate
}

// NewManager creates a Manager.
func NewManager(s store.Store, hub broadcast.Publisher, opts Options) *Manager {
	m := &Manager{
		store:    s,
		hub:      hub,
		notifier: opts.Notifier,
		clock:    opts.Clock,
		gates:    make(map[string]struct{}, len(opts.Gates)),
		shifts:   opts.Shifts,
		timeout:  opts.StoreTimeout,
		locks:    newPlateLocks(),
		validate: newValidator(),
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.timeout <= 0 {
		m.timeout = defaultStoreTimeout
	}
	for _, g := range opts.Gates {
		m.gates[normalizeGate(g)] = struct{}{}
	}
	return m
}

// CheckIn records a vehicle entering campus.
func (m *Manager) CheckIn(ctx context.Context, actor Actor, in CheckInInput) (*model.VehicleRecord, error) {
	if !actor.Identity.CanOperateGate() {
		return nil, apperr.Forbidden("only guards and admins can check vehicles in")
	}
	plate, err := m.normalizeCheckIn(&in)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.lock(plate)
	defer unlock()

	now := m.clock.Now()
	shift := m.shiftFor(actor, now)
	rec := &model.VehicleRecord{
		ID:           uuid.NewString(),
		PlateNumber:  plate,
		VehicleClass: in.VehicleType,
		Owner: model.OwnerInfo{
			Name:         in.OwnerName,
			Role:         in.OwnerRole,
			Contact:      in.ContactNumber,
			UniversityID: in.UniversityID,
			Department:   in.Department,
		},
		EntryTime:   now,
		Gate:        in.GateName,
		Status:      model.StatusInside,
		Purpose:     in.Purpose,
		Notes:       in.Notes,
		ParkingSlot: in.ParkingSlot,
		Shift:       shift,
		VerifiedBy:  actor.Identity.ID,
	}

	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	if err := m.store.CreateInside(sctx, rec, m.newLog(actor, model.ActionEntry, now, shift, in.GateName)); err != nil {
		return nil, m.storeError("check in", err)
	}

	m.announce(broadcast.EventEntry, rec, now)
	return rec, nil
}

// CheckOut records an inside vehicle leaving campus.
func (m *Manager) CheckOut(ctx context.Context, actor Actor, recordID string, in CheckOutInput) (*model.VehicleRecord, error) {
	if !actor.Identity.CanOperateGate() {
		return nil, apperr.Forbidden("only guards and admins can check vehicles out")
	}
	in.Gate = normalizeGate(in.Gate)
	if err := m.validate.Struct(in); err != nil {
		return nil, apperr.InvalidInput("invalid check-out", fieldErrors(err))
	}
	if in.Gate != "" && !m.knownGate(in.Gate) {
		return nil, apperr.InvalidInput("invalid check-out", map[string]string{"gate": "unknown gate"})
	}

	plate, err := m.plateOf(ctx, recordID)
	if err != nil {
		return nil, err
	}
	unlock := m.locks.lock(plate)
	defer unlock()

	now := m.clock.Now()
	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	rec, err := m.store.MarkExited(sctx, recordID, store.Exit{At: now, Gate: in.Gate},
		m.newLog(actor, model.ActionExit, now, m.shiftFor(actor, now), in.Gate))
	if err != nil {
		return nil, m.storeError("check out", err)
	}

	m.announce(broadcast.EventExit, rec, now)
	return rec, nil
}

// Update changes the descriptive fields of a record. Status, timestamps and
// the plate cannot be changed this way.
func (m *Manager) Update(ctx context.Context, actor Actor, recordID string, in UpdateInput) (*model.VehicleRecord, error) {
	if !actor.Identity.CanOperateGate() {
		return nil, apperr.Forbidden("only guards and admins can edit records")
	}
	if in.empty() {
		return nil, apperr.InvalidInput("nothing to update", nil)
	}

	plate, err := m.plateOf(ctx, recordID)
	if err != nil {
		return nil, err
	}
	unlock := m.locks.lock(plate)
	defer unlock()

	now := m.clock.Now()
	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	rec, err := m.store.UpdateDetails(sctx, recordID, func(r *model.VehicleRecord) error {
		return m.applyUpdate(r, in)
	}, m.newLog(actor, model.ActionUpdated, now, m.shiftFor(actor, now), ""))
	if err != nil {
		return nil, m.storeError("update", err)
	}

	m.announce(broadcast.EventUpdated, rec, now)
	return rec, nil
}

// Delete removes a record. Only admins may delete.
func (m *Manager) Delete(ctx context.Context, actor Actor, recordID string) (*model.VehicleRecord, error) {
	if !actor.Identity.IsAdmin() {
		return nil, apperr.Forbidden("only admins can delete records")
	}

	plate, err := m.plateOf(ctx, recordID)
	if err != nil {
		return nil, err
	}
	unlock := m.locks.lock(plate)
	defer unlock()

	now := m.clock.Now()
	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	rec, err := m.store.DeleteRecord(sctx, recordID, m.newLog(actor, model.ActionDeleted, now, m.shiftFor(actor, now), ""))
	if err != nil {
		return nil, m.storeError("delete", err)
	}

	m.announce(broadcast.EventDeleted, rec, now)
	return rec, nil
}

// plateOf looks up the plate of a record so the plate lock can be taken
// before the transition. Plates never change after check-in.
func (m *Manager) plateOf(ctx context.Context, recordID string) (string, error) {
	sctx, cancel := m.storeContext(ctx)
	defer cancel()
	rec, err := m.store.GetRecord(sctx, recordID)
	if err != nil {
		return "", m.storeError("load record", err)
	}
	return rec.PlateNumber, nil
}

// storeContext detaches the transition from request cancellation and bounds
// it by the store timeout instead.
func (m *Manager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
}

func (m *Manager) shiftFor(actor Actor, at time.Time) model.Shift {
	if actor.Identity.Shift != "" {
		return actor.Identity.Shift
	}
	return m.shifts.At(at)
}

func (m *Manager) newLog(actor Actor, action model.LogAction, at time.Time, shift model.Shift, gate string) *model.LogEntry {
	platform := actor.Platform
	if platform == "" {
		platform = "web"
	}
	return &model.LogEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Timestamp: at,
		ActorID:   actor.Identity.ID,
		ActorRole: string(actor.Identity.Role),
		Gate:      gate,
		Shift:     shift,
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
		Platform:  platform,
	}
}

// announce publishes a committed transition. Entries and exits also reach
// the owner's private topic and browsers.
func (m *Manager) announce(typ broadcast.EventType, rec *model.VehicleRecord, at time.Time) {
	m.hub.Publish(broadcast.Global, broadcast.Event{Type: typ, Record: rec, At: at})

	owner := rec.Owner.UniversityID
	if owner == "" || (typ != broadcast.EventEntry && typ != broadcast.EventExit) {
		return
	}

	title, body := ownerMessage(typ, rec)
	m.hub.Publish(broadcast.UserTopic(owner), broadcast.Event{Type: typ, Record: rec, Message: body, At: at})
	if m.notifier != nil {
		m.notifier.Dispatch(notification.Job{
			IdentityID: owner,
			Title:      title,
			Body:       body,
			RecordID:   rec.ID,
			EventType:  string(typ),
		})
	}
}

func ownerMessage(typ broadcast.EventType, rec *model.VehicleRecord) (string, string) {
	if typ == broadcast.EventExit {
		gate := rec.Gate
		if rec.ExitGate != nil {
			gate = *rec.ExitGate
		}
		return "Vehicle exited", fmt.Sprintf("%s exited campus at %s", rec.PlateNumber, gate)
	}
	return "Vehicle entered", fmt.Sprintf("%s entered campus at %s", rec.PlateNumber, rec.Gate)
}

// storeError maps store failures onto error kinds. Errors that already
// carry a kind pass through unchanged.
func (m *Manager) storeError(op string, err error) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("vehicle record not found")
	case errors.Is(err, store.ErrPlateInside):
		return apperr.Conflict("vehicle already inside")
	case errors.Is(err, store.ErrSlotOccupied):
		return apperr.Conflict("parking slot already occupied")
	case errors.Is(err, store.ErrAlreadyExited):
		return apperr.Conflict("vehicle already exited")
	case errors.Is(err, store.ErrExitBeforeEntry):
		return apperr.InvalidInput("exit time precedes entry time", map[string]string{"exitTimestamp": "before entryTimestamp"})
	default:
		log.Printf("%s failed: %v", op, err)
		return apperr.Unavailable(op, err)
	}
}
