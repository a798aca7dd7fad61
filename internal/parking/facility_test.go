package parking_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-parking/internal/parking"
	"smart-parking/internal/store/memory"
)

func TestAddFloorCreatesConfiguredSlots(t *testing.T) {
	ctx := context.Background()
	facility := parking.NewFacility(memory.New(), discardLogger())

	lot, err := facility.CreateLot(ctx, "North", "2 Side Rd", 2)
	require.NoError(t, err)

	floor, err := facility.AddFloor(ctx, lot.ID, 1, map[parking.SlotType]int{
		parking.SlotTwoWheeler:   2,
		parking.SlotFourWheeler:  3,
		parking.SlotHeavyVehicle: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, floor.TotalSlots)
	assert.Equal(t, 0, floor.AllottedSlots)
	assert.Equal(t, 6, floor.Available)

	counts := make(map[parking.SlotType]int)
	for _, slot := range floor.Slots {
		assert.Equal(t, parking.SlotAvailable, slot.Status)
		assert.Equal(t, floor.ID, slot.FloorID)
		counts[slot.Type]++
	}
	assert.Equal(t, map[parking.SlotType]int{
		parking.SlotTwoWheeler:   2,
		parking.SlotFourWheeler:  3,
		parking.SlotHeavyVehicle: 1,
	}, counts)

	detail, err := facility.GetLot(ctx, lot.ID)
	require.NoError(t, err)
	require.Len(t, detail.Floors, 1)
	assert.Len(t, detail.Floors[0].Slots, 6)
}

func TestAddFloorValidation(t *testing.T) {
	ctx := context.Background()
	facility := parking.NewFacility(memory.New(), discardLogger())
	lot, err := facility.CreateLot(ctx, "North", "", 1)
	require.NoError(t, err)

	_, err = facility.AddFloor(ctx, lot.ID, -1, map[parking.SlotType]int{parking.SlotTwoWheeler: 1})
	assert.ErrorIs(t, err, parking.ErrInvalidFacility)

	_, err = facility.AddFloor(ctx, lot.ID, 0, nil)
	assert.ErrorIs(t, err, parking.ErrInvalidFacility)

	_, err = facility.AddFloor(ctx, lot.ID, 0, map[parking.SlotType]int{parking.SlotTwoWheeler: -2})
	assert.ErrorIs(t, err, parking.ErrInvalidFacility)

	_, err = facility.AddFloor(ctx, lot.ID, 0, map[parking.SlotType]int{"BICYCLE": 2})
	assert.ErrorIs(t, err, parking.ErrInvalidSlotType)

	_, err = facility.AddFloor(ctx, lot.ID, 0, map[parking.SlotType]int{parking.SlotTwoWheeler: 1_000_000_000})
	assert.ErrorIs(t, err, parking.ErrInvalidFacility)

	_, err = facility.AddFloor(ctx, lot.ID, 0, map[parking.SlotType]int{
		parking.SlotTwoWheeler:  parking.MaxSlotsPerFloor / 2,
		parking.SlotFourWheeler: parking.MaxSlotsPerFloor/2 + 1,
	})
	assert.ErrorIs(t, err, parking.ErrInvalidFacility)

	floors, err := facility.ListFloors(ctx, lot.ID)
	require.NoError(t, err)
	assert.Empty(t, floors)

	_, err = facility.AddFloor(ctx, "missing", 0, map[parking.SlotType]int{parking.SlotTwoWheeler: 1})
	assert.ErrorIs(t, err, parking.ErrLotNotFound)

	_, err = facility.AddFloor(ctx, lot.ID, 0, map[parking.SlotType]int{parking.SlotTwoWheeler: 1})
	require.NoError(t, err)
	_, err = facility.AddFloor(ctx, lot.ID, 0, map[parking.SlotType]int{parking.SlotTwoWheeler: 1})
	assert.ErrorIs(t, err, parking.ErrDuplicateFloor)
}

func TestCreateLotRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	facility := parking.NewFacility(memory.New(), discardLogger())

	_, err := facility.CreateLot(ctx, "Central", "", 1)
	require.NoError(t, err)
	_, err = facility.CreateLot(ctx, "Central", "elsewhere", 3)
	assert.ErrorIs(t, err, parking.ErrDuplicateLot)

	_, err = facility.CreateLot(ctx, " ", "", 1)
	assert.ErrorIs(t, err, parking.ErrInvalidFacility)

	lots, err := facility.ListLots(ctx)
	require.NoError(t, err)
	assert.Len(t, lots, 1)
}

func TestListFloorsUnknownLot(t *testing.T) {
	facility := parking.NewFacility(memory.New(), discardLogger())

	_, err := facility.ListFloors(context.Background(), "missing")
	assert.ErrorIs(t, err, parking.ErrLotNotFound)

	_, err = facility.GetFloor(context.Background(), "missing")
	assert.ErrorIs(t, err, parking.ErrFloorNotFound)
}

func TestListSlots(t *testing.T) {
	ctx := context.Background()
	facility := parking.NewFacility(memory.New(), discardLogger())

	lot, err := facility.CreateLot(ctx, "south", "", 1)
	require.NoError(t, err)
	floor, err := facility.AddFloor(ctx, lot.ID, 2, map[parking.SlotType]int{
		parking.SlotHeavyVehicle: 1,
		parking.SlotTwoWheeler:   2,
	})
	require.NoError(t, err)

	slots, err := facility.ListSlots(ctx, floor.ID)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	for _, slot := range slots {
		assert.Equal(t, floor.ID, slot.FloorID)
		assert.Equal(t, parking.SlotAvailable, slot.Status)
	}

	_, err = facility.ListSlots(ctx, "missing")
	assert.ErrorIs(t, err, parking.ErrFloorNotFound)
}
