package parking

import (
	"context"
	"fmt"
	"log/slog"
)

// Inventory claims and releases slots and keeps each floor's allotted
// counter in step with its slots. It must be called inside a Store
// transaction so that the slot change and the counter change commit
// together.
type Inventory struct {
	logger *slog.Logger
}

func NewInventory(logger *slog.Logger) *Inventory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inventory{logger: logger}
}

func (inv *Inventory) Claim(ctx context.Context, tx InventoryStore, slotType SlotType, sessionID string) (*Slot, error) {
	if !slotType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlotType, slotType)
	}

	slot, err := tx.ClaimSlot(ctx, slotType, sessionID)
	if err != nil {
		return nil, fmt.Errorf("claim %s slot: %w", slotType, err)
	}

	floor, err := tx.IncrementAllotted(ctx, slot.FloorID)
	if err != nil {
		return nil, fmt.Errorf("increment allotted on floor %s: %w", slot.FloorID, err)
	}

	inv.logger.DebugContext(ctx, "slot claimed",
		slog.String("slot_id", slot.ID),
		slog.String("slot_type", string(slot.Type)),
		slog.String("floor_id", floor.ID),
		slog.Int("allotted", floor.AllottedSlots),
	)
	return slot, nil
}

func (inv *Inventory) Release(ctx context.Context, tx InventoryStore, slotID string) (*Slot, error) {
	slot, err := tx.ReleaseSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("release slot %s: %w", slotID, err)
	}

	floor, clamped, err := tx.DecrementAllotted(ctx, slot.FloorID)
	if err != nil {
		return nil, fmt.Errorf("decrement allotted on floor %s: %w", slot.FloorID, err)
	}
	if clamped {
		inv.logger.ErrorContext(ctx, "floor counter clamped at zero",
			slog.String("floor_id", floor.ID),
			slog.String("slot_id", slot.ID),
			slog.Any("error", ErrCounterUnderflow),
		)
	}

	inv.logger.DebugContext(ctx, "slot released",
		slog.String("slot_id", slot.ID),
		slog.String("floor_id", floor.ID),
		slog.Int("allotted", floor.AllottedSlots),
	)
	return slot, nil
}
