package memory

import (
	"errors"
	"fmt"
)

// CheckInvariants verifies slot, session and floor-counter consistency over
// the whole store.
func (s *Store) CheckInvariants() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	referenced := make(map[string]string)
	for _, session := range s.sessions {
		if !session.Active() {
			if session.SlotID != "" {
				errs = append(errs, fmt.Errorf("closed session %s still references slot %s", session.ID, session.SlotID))
			}
			continue
		}
		if s.active[session.Registration] != session.ID {
			errs = append(errs, fmt.Errorf("active session %s is not indexed under %s", session.ID, session.Registration))
		}
		if session.SlotID == "" {
			continue
		}
		if other, dup := referenced[session.SlotID]; dup {
			errs = append(errs, fmt.Errorf("slot %s referenced by sessions %s and %s", session.SlotID, other, session.ID))
		}
		referenced[session.SlotID] = session.ID
	}

	occupied := make(map[string]int)
	for _, slot := range s.slots {
		sessionID, isReferenced := referenced[slot.ID]
		switch {
		case slot.IsOccupied() && !isReferenced:
			errs = append(errs, fmt.Errorf("slot %s is occupied without an active session", slot.ID))
		case !slot.IsOccupied() && isReferenced:
			errs = append(errs, fmt.Errorf("slot %s is available but referenced by %s", slot.ID, sessionID))
		case slot.IsOccupied() && slot.SessionID != sessionID:
			errs = append(errs, fmt.Errorf("slot %s points at %s, session %s points at it", slot.ID, slot.SessionID, sessionID))
		}
		if slot.IsOccupied() {
			occupied[slot.FloorID]++
		}
	}

	for _, floor := range s.floors {
		if floor.AllottedSlots < 0 || floor.AllottedSlots > floor.TotalSlots {
			errs = append(errs, fmt.Errorf("floor %s allotted %d outside [0,%d]", floor.ID, floor.AllottedSlots, floor.TotalSlots))
		}
		if floor.AllottedSlots != occupied[floor.ID] {
			errs = append(errs, fmt.Errorf("floor %s allotted %d but %d slots occupied", floor.ID, floor.AllottedSlots, occupied[floor.ID]))
		}
	}

	return errors.Join(errs...)
}
