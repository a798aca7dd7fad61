package parking

import "fmt"

type SlotType string

const (
	SlotTwoWheeler   SlotType = "TWO_WHEELER"
	SlotFourWheeler  SlotType = "FOUR_WHEELER"
	SlotHeavyVehicle SlotType = "HEAVY_VEHICLE"
)

var SlotTypes = []SlotType{SlotTwoWheeler, SlotFourWheeler, SlotHeavyVehicle}

func (t SlotType) Valid() bool {
	switch t {
	case SlotTwoWheeler, SlotFourWheeler, SlotHeavyVehicle:
		return true
	}
	return false
}

func ParseSlotType(s string) (SlotType, error) {
	class, err := ParseVehicleClass(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSlotType, s)
	}
	return SlotTypeFor(class)
}

// SlotTypeFor maps a vehicle class to the only slot type it may occupy.
func SlotTypeFor(class VehicleClass) (SlotType, error) {
	switch class {
	case TwoWheeler:
		return SlotTwoWheeler, nil
	case FourWheeler:
		return SlotFourWheeler, nil
	case HeavyVehicle:
		return SlotHeavyVehicle, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVehicleClass, class)
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotOccupied  SlotStatus = "OCCUPIED"
)

type Slot struct {
	ID        string     `json:"slot_id"`
	Type      SlotType   `json:"slot_type"`
	Status    SlotStatus `json:"slot_status"`
	FloorID   string     `json:"floor_id"`
	SessionID string     `json:"current_vehicle_id,omitempty"`
}

func NewSlot(id string, slotType SlotType, floorID string) *Slot {
	return &Slot{
		ID:      id,
		Type:    slotType,
		Status:  SlotAvailable,
		FloorID: floorID,
	}
}

func (s *Slot) IsOccupied() bool {
	return s.Status == SlotOccupied
}

func (s *Slot) Occupy(sessionID string) error {
	if s.IsOccupied() {
		return fmt.Errorf("slot %s is already occupied", s.ID)
	}
	s.Status = SlotOccupied
	s.SessionID = sessionID
	return nil
}

// Vacate frees the slot and returns the session that held it.
func (s *Slot) Vacate() (string, error) {
	if !s.IsOccupied() {
		return "", fmt.Errorf("%w: %s", ErrSlotNotOccupied, s.ID)
	}
	sessionID := s.SessionID
	s.Status = SlotAvailable
	s.SessionID = ""
	return sessionID, nil
}
