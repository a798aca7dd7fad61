package parking

import (
	"errors"
	"testing"
)

func TestNewSlot(t *testing.T) {
	slot := NewSlot("slot-1", SlotFourWheeler, "floor-1")

	if slot.ID != "slot-1" {
		t.Errorf("Expected slot id slot-1, got %s", slot.ID)
	}
	if slot.IsOccupied() {
		t.Error("Expected new slot to be unoccupied")
	}
	if slot.SessionID != "" {
		t.Error("Expected new slot to have no vehicle")
	}
}

func TestSlotOccupy(t *testing.T) {
	slot := NewSlot("slot-1", SlotFourWheeler, "floor-1")

	if err := slot.Occupy("session-1"); err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	if !slot.IsOccupied() {
		t.Error("Expected slot to be occupied after parking")
	}
	if slot.SessionID != "session-1" {
		t.Error("Expected slot to reference the parked session")
	}
	if err := slot.Occupy("session-2"); err == nil {
		t.Error("Expected error when occupying an occupied slot")
	}
}

func TestSlotVacate(t *testing.T) {
	slot := NewSlot("slot-1", SlotFourWheeler, "floor-1")
	_ = slot.Occupy("session-1")

	sessionID, err := slot.Vacate()
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	if slot.IsOccupied() {
		t.Error("Expected slot to be unoccupied after leaving")
	}
	if sessionID != "session-1" {
		t.Errorf("Expected leaving session session-1, got %s", sessionID)
	}

	if _, err := slot.Vacate(); !errors.Is(err, ErrSlotNotOccupied) {
		t.Errorf("Expected ErrSlotNotOccupied, got %v", err)
	}
}

func TestSlotTypeForIsOneToOne(t *testing.T) {
	seen := make(map[SlotType]VehicleClass)
	for _, class := range VehicleClasses {
		slotType, err := SlotTypeFor(class)
		if err != nil {
			t.Fatalf("SlotTypeFor(%s): %v", class, err)
		}
		if prev, dup := seen[slotType]; dup {
			t.Errorf("slot type %s mapped from both %s and %s", slotType, prev, class)
		}
		seen[slotType] = class
	}
	if len(seen) != len(SlotTypes) {
		t.Errorf("Expected %d slot types, got %d", len(SlotTypes), len(seen))
	}
}
