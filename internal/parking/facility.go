package parking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxSlotsPerFloor bounds the total slot count a single floor may hold.
const MaxSlotsPerFloor = 10000

type FloorDetail struct {
	*Floor
	Available int     `json:"available_slots"`
	Slots     []*Slot `json:"slots"`
}

type LotDetail struct {
	*Lot
	Floors []*FloorDetail `json:"floors"`
}

// Facility sets up the physical inventory: lots, their floors, and the slots
// each floor owns.
type Facility struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewFacility(store Store, logger *slog.Logger) *Facility {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facility{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (f *Facility) CreateLot(ctx context.Context, name, address string, totalFloors int) (*Lot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidFacility)
	}
	if totalFloors < 0 {
		return nil, fmt.Errorf("%w: total floors must be non-negative", ErrInvalidFacility)
	}

	now := f.now()
	lot := &Lot{
		ID:          f.newID(),
		Name:        name,
		Address:     strings.TrimSpace(address),
		TotalFloors: totalFloors,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := f.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateLot(ctx, lot)
	})
	if err != nil {
		return nil, err
	}

	f.logger.InfoContext(ctx, "parking lot created",
		slog.String("parking_lot_id", lot.ID),
		slog.String("name", lot.Name),
	)
	return lot, nil
}

func (f *Facility) GetLot(ctx context.Context, lotID string) (*LotDetail, error) {
	var detail *LotDetail
	err := f.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		lot, err := tx.GetLot(ctx, lotID)
		if err != nil {
			return err
		}
		floors, err := floorDetails(ctx, tx, lotID)
		if err != nil {
			return err
		}
		detail = &LotDetail{Lot: lot, Floors: floors}
		return nil
	})
	return detail, err
}

func (f *Facility) ListLots(ctx context.Context) ([]*Lot, error) {
	var lots []*Lot
	err := f.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		lots, err = tx.ListLots(ctx)
		return err
	})
	return lots, err
}

// AddFloor creates a floor with config[t] AVAILABLE slots of each type t.
func (f *Facility) AddFloor(ctx context.Context, lotID string, number int, config map[SlotType]int) (*FloorDetail, error) {
	if number < 0 {
		return nil, fmt.Errorf("%w: floor number must be non-negative", ErrInvalidFacility)
	}
	if len(config) == 0 {
		return nil, fmt.Errorf("%w: slot configuration is required", ErrInvalidFacility)
	}

	total := 0
	for slotType, count := range config {
		if !slotType.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSlotType, slotType)
		}
		if count < 0 {
			return nil, fmt.Errorf("%w: negative slot count for %s", ErrInvalidFacility, slotType)
		}
		if count > MaxSlotsPerFloor-total {
			return nil, fmt.Errorf("%w: a floor holds at most %d slots", ErrInvalidFacility, MaxSlotsPerFloor)
		}
		total += count
	}

	floor := &Floor{
		ID:     f.newID(),
		Number: number,
		LotID:  lotID,
	}

	slots := make([]*Slot, 0, total)
	for _, slotType := range SlotTypes {
		count, ok := config[slotType]
		if !ok {
			continue
		}
		for i := 0; i < count; i++ {
			slots = append(slots, NewSlot(f.newID(), slotType, floor.ID))
		}
	}
	floor.TotalSlots = len(slots)

	err := f.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetLot(ctx, lotID); err != nil {
			return err
		}
		return tx.CreateFloor(ctx, floor, slots)
	})
	if err != nil {
		return nil, err
	}

	f.logger.InfoContext(ctx, "floor added",
		slog.String("parking_lot_id", lotID),
		slog.String("floor_id", floor.ID),
		slog.Int("floor_no", number),
		slog.Int("total_slots", floor.TotalSlots),
	)
	return &FloorDetail{Floor: floor, Available: floor.AvailableSlots(), Slots: slots}, nil
}

func (f *Facility) GetFloor(ctx context.Context, floorID string) (*FloorDetail, error) {
	var detail *FloorDetail
	err := f.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		floor, err := tx.GetFloor(ctx, floorID)
		if err != nil {
			return err
		}
		slots, err := tx.ListSlots(ctx, floorID)
		if err != nil {
			return err
		}
		detail = &FloorDetail{Floor: floor, Available: floor.AvailableSlots(), Slots: slots}
		return nil
	})
	return detail, err
}

func (f *Facility) ListFloors(ctx context.Context, lotID string) ([]*FloorDetail, error) {
	var floors []*FloorDetail
	err := f.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetLot(ctx, lotID); err != nil {
			return err
		}
		var err error
		floors, err = floorDetails(ctx, tx, lotID)
		return err
	})
	return floors, err
}

// ListSlots returns a floor's slots in creation order.
func (f *Facility) ListSlots(ctx context.Context, floorID string) ([]*Slot, error) {
	var slots []*Slot
	err := f.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetFloor(ctx, floorID); err != nil {
			return err
		}
		var err error
		slots, err = tx.ListSlots(ctx, floorID)
		return err
	})
	return slots, err
}

func floorDetails(ctx context.Context, tx Tx, lotID string) ([]*FloorDetail, error) {
	floors, err := tx.ListFloors(ctx, lotID)
	if err != nil {
		return nil, err
	}
	details := make([]*FloorDetail, 0, len(floors))
	for _, floor := range floors {
		slots, err := tx.ListSlots(ctx, floor.ID)
		if err != nil {
			return nil, err
		}
		details = append(details, &FloorDetail{Floor: floor, Available: floor.AvailableSlots(), Slots: slots})
	}
	return details, nil
}
