package parking

import (
	"errors"
	"testing"
	"time"
)

func TestNewVehicleSession(t *testing.T) {
	entry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	session := NewVehicleSession("id-1", FourWheeler, "KA01HH1234", entry)

	if session.Registration != "KA01HH1234" {
		t.Errorf("Expected registration KA01HH1234, got %s", session.Registration)
	}
	if session.Status != SessionActive {
		t.Errorf("Expected status %s, got %s", SessionActive, session.Status)
	}
	if session.ExitTime != nil || session.Fee != nil {
		t.Error("Expected new session to have no exit time and no fee")
	}
}

func TestVehicleSessionClose(t *testing.T) {
	entry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	session := NewVehicleSession("id-1", TwoWheeler, "KA01", entry)
	session.SlotID = "slot-1"

	if err := session.Close(entry.Add(time.Hour), 10); err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	if session.Status != SessionClosed {
		t.Errorf("Expected status %s, got %s", SessionClosed, session.Status)
	}
	if session.SlotID != "" {
		t.Errorf("Expected slot reference to be cleared, got %s", session.SlotID)
	}
	if session.Fee == nil || *session.Fee != 10 {
		t.Errorf("Expected fee 10, got %v", session.Fee)
	}

	if err := session.Close(entry.Add(2*time.Hour), 20); err == nil {
		t.Error("Expected error when closing a closed session")
	}
}

func TestVehicleSessionCloneIsIndependent(t *testing.T) {
	session := NewVehicleSession("id-1", TwoWheeler, "KA01", time.Now())
	_ = session.Close(time.Now(), 5)

	clone := session.Clone()
	*clone.Fee = 99

	if *session.Fee != 5 {
		t.Errorf("Expected first fee 5, got %v", *session.Fee)
	}
}

func TestParseVehicleClass(t *testing.T) {
	for input, want := range map[string]VehicleClass{
		"TWO_WHEELER":    TwoWheeler,
		"four-wheeler":   FourWheeler,
		" heavy_vehicle": HeavyVehicle,
	} {
		got, err := ParseVehicleClass(input)
		if err != nil {
			t.Errorf("ParseVehicleClass(%q): unexpected error %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseVehicleClass(%q) = %s, want %s", input, got, want)
		}
	}

	if _, err := ParseVehicleClass("bicycle"); !errors.Is(err, ErrInvalidVehicleClass) {
		t.Errorf("Expected ErrInvalidVehicleClass, got %v", err)
	}
}

func TestNormalizeRegistration(t *testing.T) {
	got, err := NormalizeRegistration("  ab-123 ")
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	if got != "AB-123" {
		t.Errorf("Expected AB-123, got %s", got)
	}

	if _, err := NormalizeRegistration(" "); !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("Expected ErrInvalidRegistration, got %v", err)
	}
}
