// Package memory is an in-process parking.Store. A transaction holds the
// store lock for its whole duration and undoes its writes if it fails.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"smart-parking/internal/parking"
)

type Store struct {
	mu sync.Mutex

	lots     map[string]*parking.Lot
	floors   map[string]*parking.Floor
	slots    map[string]*parking.Slot
	sessions map[string]*parking.VehicleSession

	// slotOrder keeps claims deterministic: the first available slot in
	// creation order wins.
	slotOrder []string
	// active maps a registration to its ACTIVE session id.
	active map[string]string
	// history maps a registration to its session ids, oldest first.
	history map[string][]string
	// sessionOrder is creation order for listing.
	sessionOrder []string
}

var _ parking.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		lots:     make(map[string]*parking.Lot),
		floors:   make(map[string]*parking.Floor),
		slots:    make(map[string]*parking.Slot),
		sessions: make(map[string]*parking.VehicleSession),
		active:   make(map[string]string),
		history:  make(map[string][]string),
	}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx parking.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &tx{store: s}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

type tx struct {
	store *Store
	undo  []func()
}

var _ parking.Tx = (*tx)(nil)

func (t *tx) onRollback(f func()) {
	t.undo = append(t.undo, f)
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) ClaimSlot(_ context.Context, slotType parking.SlotType, sessionID string) (*parking.Slot, error) {
	for _, id := range t.store.slotOrder {
		slot := t.store.slots[id]
		if slot.Type != slotType || slot.IsOccupied() {
			continue
		}
		prev := *slot
		if err := slot.Occupy(sessionID); err != nil {
			return nil, err
		}
		t.onRollback(func() { *slot = prev })
		c := *slot
		return &c, nil
	}
	return nil, fmt.Errorf("%w for %s", parking.ErrNoAvailableSlot, slotType)
}

func (t *tx) ReleaseSlot(_ context.Context, slotID string) (*parking.Slot, error) {
	slot, ok := t.store.slots[slotID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", parking.ErrSlotNotFound, slotID)
	}
	prev := *slot
	if _, err := slot.Vacate(); err != nil {
		return nil, err
	}
	t.onRollback(func() { *slot = prev })
	c := *slot
	return &c, nil
}

func (t *tx) GetSlot(_ context.Context, slotID string) (*parking.Slot, error) {
	slot, ok := t.store.slots[slotID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", parking.ErrSlotNotFound, slotID)
	}
	c := *slot
	return &c, nil
}

func (t *tx) IncrementAllotted(_ context.Context, floorID string) (*parking.Floor, error) {
	floor, ok := t.store.floors[floorID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", parking.ErrFloorNotFound, floorID)
	}
	if floor.AllottedSlots >= floor.TotalSlots {
		return nil, fmt.Errorf("floor %s allotted %d would exceed total %d",
			floorID, floor.AllottedSlots, floor.TotalSlots)
	}
	floor.AllottedSlots++
	t.onRollback(func() { floor.AllottedSlots-- })
	c := *floor
	return &c, nil
}

func (t *tx) DecrementAllotted(_ context.Context, floorID string) (*parking.Floor, bool, error) {
	floor, ok := t.store.floors[floorID]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", parking.ErrFloorNotFound, floorID)
	}
	if floor.AllottedSlots <= 0 {
		floor.AllottedSlots = 0
		c := *floor
		return &c, true, nil
	}
	floor.AllottedSlots--
	t.onRollback(func() { floor.AllottedSlots++ })
	c := *floor
	return &c, false, nil
}

func (t *tx) CreateSession(_ context.Context, session *parking.VehicleSession) error {
	if _, exists := t.store.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}
	if session.Active() {
		if _, parked := t.store.active[session.Registration]; parked {
			return fmt.Errorf("%w: %s", parking.ErrAlreadyParked, session.Registration)
		}
		t.store.active[session.Registration] = session.ID
	}

	t.store.sessions[session.ID] = session.Clone()
	t.store.sessionOrder = append(t.store.sessionOrder, session.ID)
	t.store.history[session.Registration] = append(t.store.history[session.Registration], session.ID)

	t.onRollback(func() {
		delete(t.store.sessions, session.ID)
		if t.store.active[session.Registration] == session.ID {
			delete(t.store.active, session.Registration)
		}
		t.store.sessionOrder = t.store.sessionOrder[:len(t.store.sessionOrder)-1]
		h := t.store.history[session.Registration]
		if len(h) == 1 {
			delete(t.store.history, session.Registration)
		} else {
			t.store.history[session.Registration] = h[:len(h)-1]
		}
	})
	return nil
}

func (t *tx) UpdateSession(_ context.Context, session *parking.VehicleSession) error {
	stored, ok := t.store.sessions[session.ID]
	if !ok {
		return fmt.Errorf("%w: %s", parking.ErrSessionNotFound, session.ID)
	}
	if !stored.Active() && session.Active() {
		return fmt.Errorf("session %s cannot be reopened", session.ID)
	}

	prev := stored.Clone()
	t.store.sessions[session.ID] = session.Clone()
	if stored.Active() && !session.Active() {
		delete(t.store.active, session.Registration)
	}

	t.onRollback(func() {
		t.store.sessions[session.ID] = prev
		if prev.Active() {
			t.store.active[prev.Registration] = prev.ID
		}
	})
	return nil
}

func (t *tx) GetSession(_ context.Context, id string) (*parking.VehicleSession, error) {
	session, ok := t.store.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", parking.ErrSessionNotFound, id)
	}
	return session.Clone(), nil
}

func (t *tx) FindActiveSession(_ context.Context, registration string) (*parking.VehicleSession, error) {
	id, ok := t.store.active[registration]
	if !ok {
		return nil, fmt.Errorf("%w: %s", parking.ErrSessionNotFound, registration)
	}
	return t.store.sessions[id].Clone(), nil
}

func (t *tx) FindLatestSession(_ context.Context, registration string) (*parking.VehicleSession, error) {
	ids := t.store.history[registration]
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s", parking.ErrSessionNotFound, registration)
	}
	return t.store.sessions[ids[len(ids)-1]].Clone(), nil
}

func (t *tx) ListActiveSessions(_ context.Context) ([]*parking.VehicleSession, error) {
	var sessions []*parking.VehicleSession
	for _, id := range t.store.sessionOrder {
		if session := t.store.sessions[id]; session.Active() {
			sessions = append(sessions, session.Clone())
		}
	}
	return sessions, nil
}

func (t *tx) CreateLot(_ context.Context, lot *parking.Lot) error {
	for _, existing := range t.store.lots {
		if strings.EqualFold(existing.Name, lot.Name) {
			return fmt.Errorf("%w: %s", parking.ErrDuplicateLot, lot.Name)
		}
	}
	c := *lot
	t.store.lots[lot.ID] = &c
	t.onRollback(func() { delete(t.store.lots, lot.ID) })
	return nil
}

func (t *tx) GetLot(_ context.Context, id string) (*parking.Lot, error) {
	lot, ok := t.store.lots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", parking.ErrLotNotFound, id)
	}
	c := *lot
	return &c, nil
}

func (t *tx) ListLots(_ context.Context) ([]*parking.Lot, error) {
	lots := make([]*parking.Lot, 0, len(t.store.lots))
	for _, lot := range t.store.lots {
		c := *lot
		lots = append(lots, &c)
	}
	sort.Slice(lots, func(i, j int) bool {
		if lots[i].CreatedAt.Equal(lots[j].CreatedAt) {
			return lots[i].Name < lots[j].Name
		}
		return lots[i].CreatedAt.Before(lots[j].CreatedAt)
	})
	return lots, nil
}

func (t *tx) CreateFloor(_ context.Context, floor *parking.Floor, slots []*parking.Slot) error {
	if _, ok := t.store.lots[floor.LotID]; !ok {
		return fmt.Errorf("%w: %s", parking.ErrLotNotFound, floor.LotID)
	}
	for _, existing := range t.store.floors {
		if existing.LotID == floor.LotID && existing.Number == floor.Number {
			return fmt.Errorf("%w: floor %d", parking.ErrDuplicateFloor, floor.Number)
		}
	}

	f := *floor
	t.store.floors[floor.ID] = &f
	orderLen := len(t.store.slotOrder)
	for _, slot := range slots {
		c := *slot
		t.store.slots[slot.ID] = &c
		t.store.slotOrder = append(t.store.slotOrder, slot.ID)
	}

	t.onRollback(func() {
		delete(t.store.floors, floor.ID)
		for _, slot := range slots {
			delete(t.store.slots, slot.ID)
		}
		t.store.slotOrder = t.store.slotOrder[:orderLen]
	})
	return nil
}

func (t *tx) GetFloor(_ context.Context, id string) (*parking.Floor, error) {
	floor, ok := t.store.floors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", parking.ErrFloorNotFound, id)
	}
	c := *floor
	return &c, nil
}

func (t *tx) ListFloors(_ context.Context, lotID string) ([]*parking.Floor, error) {
	var floors []*parking.Floor
	for _, floor := range t.store.floors {
		if floor.LotID == lotID {
			c := *floor
			floors = append(floors, &c)
		}
	}
	sort.Slice(floors, func(i, j int) bool { return floors[i].Number < floors[j].Number })
	return floors, nil
}

func (t *tx) ListSlots(_ context.Context, floorID string) ([]*parking.Slot, error) {
	var slots []*parking.Slot
	for _, id := range t.store.slotOrder {
		if slot := t.store.slots[id]; slot.FloorID == floorID {
			c := *slot
			slots = append(slots, &c)
		}
	}
	return slots, nil
}
