package parking

import "context"

// InventoryStore holds slot and floor records. ClaimSlot must pick and mark
// a slot in one atomic step so that two claims never win the same slot.
type InventoryStore interface {
	// ClaimSlot returns ErrNoAvailableSlot when no AVAILABLE slot of the
	// type exists.
	ClaimSlot(ctx context.Context, slotType SlotType, sessionID string) (*Slot, error)
	// ReleaseSlot returns ErrSlotNotFound or ErrSlotNotOccupied.
	ReleaseSlot(ctx context.Context, slotID string) (*Slot, error)
	GetSlot(ctx context.Context, slotID string) (*Slot, error)

	IncrementAllotted(ctx context.Context, floorID string) (*Floor, error)
	// DecrementAllotted clamps at zero and reports whether it had to.
	DecrementAllotted(ctx context.Context, floorID string) (*Floor, bool, error)
}

// SessionStore holds vehicle sessions. CreateSession enforces that a
// registration has at most one ACTIVE session and returns ErrAlreadyParked
// otherwise.
type SessionStore interface {
	CreateSession(ctx context.Context, session *VehicleSession) error
	UpdateSession(ctx context.Context, session *VehicleSession) error
	GetSession(ctx context.Context, id string) (*VehicleSession, error)
	FindActiveSession(ctx context.Context, registration string) (*VehicleSession, error)
	FindLatestSession(ctx context.Context, registration string) (*VehicleSession, error)
	ListActiveSessions(ctx context.Context) ([]*VehicleSession, error)
}

// FacilityStore holds lots and the floors and slots they own.
type FacilityStore interface {
	CreateLot(ctx context.Context, lot *Lot) error
	GetLot(ctx context.Context, id string) (*Lot, error)
	ListLots(ctx context.Context) ([]*Lot, error)
	CreateFloor(ctx context.Context, floor *Floor, slots []*Slot) error
	GetFloor(ctx context.Context, id string) (*Floor, error)
	ListFloors(ctx context.Context, lotID string) ([]*Floor, error)
	ListSlots(ctx context.Context, floorID string) ([]*Slot, error)
}

type Tx interface {
	InventoryStore
	SessionStore
	FacilityStore
}

// Store runs fn as a single unit of work: either everything fn did through
// tx is committed, or nothing is.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
