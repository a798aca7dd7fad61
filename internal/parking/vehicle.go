package parking

import (
	"fmt"
	"strings"
	"time"
)

type VehicleClass string

const (
	TwoWheeler   VehicleClass = "TWO_WHEELER"
	FourWheeler  VehicleClass = "FOUR_WHEELER"
	HeavyVehicle VehicleClass = "HEAVY_VEHICLE"
)

var VehicleClasses = []VehicleClass{TwoWheeler, FourWheeler, HeavyVehicle}

// ParseVehicleClass accepts the canonical names case-insensitively, with
// either dashes or underscores.
func ParseVehicleClass(s string) (VehicleClass, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	class := VehicleClass(normalized)
	if !class.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVehicleClass, s)
	}
	return class, nil
}

func (c VehicleClass) Valid() bool {
	switch c {
	case TwoWheeler, FourWheeler, HeavyVehicle:
		return true
	}
	return false
}

type SessionStatus string

const (
	SessionActive SessionStatus = "ACTIVE"
	SessionClosed SessionStatus = "CLOSED"
)

// VehicleSession records one stay of a vehicle. SlotID is set while the
// session is ACTIVE and cleared when it closes.
type VehicleSession struct {
	ID           string        `json:"vehicle_id"`
	Class        VehicleClass  `json:"vehicle_type"`
	Registration string        `json:"vehicle_registration"`
	EntryTime    time.Time     `json:"time_in"`
	ExitTime     *time.Time    `json:"time_out,omitempty"`
	Status       SessionStatus `json:"status"`
	Fee          *float64      `json:"bill_amount,omitempty"`
	SlotID       string        `json:"assigned_slot_id,omitempty"`

	releasedSlotID string
}

func NewVehicleSession(id string, class VehicleClass, registration string, entry time.Time) *VehicleSession {
	return &VehicleSession{
		ID:           id,
		Class:        class,
		Registration: registration,
		EntryTime:    entry,
		Status:       SessionActive,
	}
}

func (s *VehicleSession) Active() bool {
	return s.Status == SessionActive
}

// Close stamps the exit and the fee. It never reopens a closed session.
func (s *VehicleSession) Close(exit time.Time, fee float64) error {
	if !s.Active() {
		return fmt.Errorf("%w: session %s is %s", ErrSessionNotFound, s.ID, s.Status)
	}
	s.ExitTime = &exit
	s.Fee = &fee
	s.Status = SessionClosed
	s.releasedSlotID = s.SlotID
	s.SlotID = ""
	return nil
}

// ReleasedSlotID is the slot this session gave up when it was closed in
// this process. It is empty for sessions that closed without a slot.
func (s *VehicleSession) ReleasedSlotID() string {
	return s.releasedSlotID
}

func (s *VehicleSession) Clone() *VehicleSession {
	c := *s
	if s.ExitTime != nil {
		t := *s.ExitTime
		c.ExitTime = &t
	}
	if s.Fee != nil {
		f := *s.Fee
		c.Fee = &f
	}
	return &c
}

// NormalizeRegistration trims and upper-cases a plate so lookups are
// insensitive to how it was typed.
func NormalizeRegistration(registration string) (string, error) {
	r := strings.ToUpper(strings.TrimSpace(registration))
	if r == "" {
		return "", ErrInvalidRegistration
	}
	return r, nil
}
