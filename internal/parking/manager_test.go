package parking_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-parking/internal/parking"
	"smart-parking/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *memory.Store
	manager  *parking.Manager
	facility *parking.Facility
	clock    *fakeClock
	floor    *parking.FloorDetail
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, config map[parking.SlotType]int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	clock := newFakeClock()
	logger := discardLogger()

	facility := parking.NewFacility(store, logger)
	lot, err := facility.CreateLot(ctx, "Central", "1 Main St", 1)
	require.NoError(t, err)
	floor, err := facility.AddFloor(ctx, lot.ID, 0, config)
	require.NoError(t, err)

	manager := parking.NewManager(store, parking.NewDefaultPricing(),
		parking.WithClock(clock.Now),
		parking.WithLogger(logger),
	)
	return &fixture{store: store, manager: manager, facility: facility, clock: clock, floor: floor}
}

func (f *fixture) allotted(t *testing.T) int {
	t.Helper()
	floor, err := f.facility.GetFloor(context.Background(), f.floor.ID)
	require.NoError(t, err)
	return floor.AllottedSlots
}

func (f *fixture) slot(t *testing.T, id string) *parking.Slot {
	t.Helper()
	floor, err := f.facility.GetFloor(context.Background(), f.floor.ID)
	require.NoError(t, err)
	for _, slot := range floor.Slots {
		if slot.ID == id {
			return slot
		}
	}
	t.Fatalf("slot %s not found", id)
	return nil
}

func TestParkAndExitScenario(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotFourWheeler: 2})
	ctx := context.Background()

	first, err := f.manager.ParkVehicle(ctx, parking.FourWheeler, "AB-123")
	require.NoError(t, err)
	assert.Equal(t, parking.SessionActive, first.Status)
	assert.Equal(t, 1, f.allotted(t))

	_, err = f.manager.ParkVehicle(ctx, parking.FourWheeler, "CD-456")
	require.NoError(t, err)
	assert.Equal(t, 2, f.allotted(t))

	_, err = f.manager.ParkVehicle(ctx, parking.FourWheeler, "EF-789")
	assert.ErrorIs(t, err, parking.ErrNoAvailableSlot)
	assert.Equal(t, 2, f.allotted(t))
	_, err = f.manager.GetVehicle(ctx, "EF-789")
	assert.ErrorIs(t, err, parking.ErrSessionNotFound)

	f.clock.Advance(90 * time.Minute)
	exited, err := f.manager.ExitVehicle(ctx, "AB-123")
	require.NoError(t, err)
	require.NotNil(t, exited.Fee)
	assert.InDelta(t, 40.00, *exited.Fee, 0.001)
	assert.Equal(t, parking.SessionClosed, exited.Status)
	assert.Empty(t, exited.SlotID)
	assert.Equal(t, first.SlotID, exited.ReleasedSlotID())
	assert.Equal(t, 1, f.allotted(t))
	assert.Equal(t, parking.SlotAvailable, f.slot(t, first.SlotID).Status)

	require.NoError(t, f.store.CheckInvariants())
}

func TestParkThenImmediateExitRoundTrip(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotTwoWheeler: 1})
	ctx := context.Background()
	before := f.allotted(t)

	parked, err := f.manager.ParkVehicle(ctx, parking.TwoWheeler, "ka01hh1234")
	require.NoError(t, err)
	assert.Equal(t, "KA01HH1234", parked.Registration)
	assert.Equal(t, parked.ID, f.slot(t, parked.SlotID).SessionID)

	exited, err := f.manager.ExitVehicle(ctx, "KA01HH1234")
	require.NoError(t, err)
	assert.InDelta(t, parking.DefaultMinimumCharge, *exited.Fee, 0.001)
	assert.Equal(t, parking.SessionClosed, exited.Status)
	assert.Equal(t, before, f.allotted(t))

	slot := f.slot(t, parked.SlotID)
	assert.Equal(t, parking.SlotAvailable, slot.Status)
	assert.Empty(t, slot.SessionID)
	require.NoError(t, f.store.CheckInvariants())
}

func TestParkRejectsAlreadyParked(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotFourWheeler: 3})
	ctx := context.Background()

	_, err := f.manager.ParkVehicle(ctx, parking.FourWheeler, "AB-123")
	require.NoError(t, err)

	_, err = f.manager.ParkVehicle(ctx, parking.FourWheeler, "AB-123")
	assert.ErrorIs(t, err, parking.ErrAlreadyParked)
	assert.Equal(t, 1, f.allotted(t))
}

func TestParkRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotFourWheeler: 1})
	ctx := context.Background()

	_, err := f.manager.ParkVehicle(ctx, parking.FourWheeler, "   ")
	assert.ErrorIs(t, err, parking.ErrInvalidRegistration)

	_, err = f.manager.ParkVehicle(ctx, parking.VehicleClass("BICYCLE"), "AB-123")
	assert.ErrorIs(t, err, parking.ErrInvalidVehicleClass)
	assert.Equal(t, 0, f.allotted(t))
}

func TestCapacityExhaustionMutatesNothing(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{
		parking.SlotTwoWheeler:  1,
		parking.SlotFourWheeler: 0,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.manager.ParkVehicle(ctx, parking.FourWheeler, fmt.Sprintf("CAR-%d", i))
		assert.ErrorIs(t, err, parking.ErrNoAvailableSlot)
	}

	active, err := f.manager.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, 0, f.allotted(t))
	require.NoError(t, f.store.CheckInvariants())
}

func TestConcurrentParkSameRegistration(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotFourWheeler: 10})
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.ParkVehicle(ctx, parking.FourWheeler, "AB-123")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, parking.ErrAlreadyParked)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.allotted(t))
	require.NoError(t, f.store.CheckInvariants())
}

func TestConcurrentParkNeverSharesSlot(t *testing.T) {
	const slots = 5
	f := newFixture(t, map[parking.SlotType]int{parking.SlotHeavyVehicle: slots})
	ctx := context.Background()

	const attempts = 25
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed = make(map[string]string)
		full    int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg := fmt.Sprintf("TRUCK-%02d", i)
			session, err := f.manager.ParkVehicle(ctx, parking.HeavyVehicle, reg)

			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, parking.ErrNoAvailableSlot) {
				full++
				return
			}
			if !assert.NoError(t, err) {
				return
			}
			if other, dup := claimed[session.SlotID]; dup {
				t.Errorf("slot %s handed to %s and %s", session.SlotID, other, reg)
			}
			claimed[session.SlotID] = reg
		}(i)
	}
	wg.Wait()

	assert.Len(t, claimed, slots)
	assert.Equal(t, attempts-slots, full)
	assert.Equal(t, slots, f.allotted(t))
	require.NoError(t, f.store.CheckInvariants())
}

func TestConcurrentExitClosesOnce(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotTwoWheeler: 1})
	ctx := context.Background()

	_, err := f.manager.ParkVehicle(ctx, parking.TwoWheeler, "KA01")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.ExitVehicle(ctx, "KA01")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, parking.ErrSessionNotFound)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.allotted(t))
	require.NoError(t, f.store.CheckInvariants())
}

func TestExitUnknownRegistration(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotTwoWheeler: 1})

	_, err := f.manager.ExitVehicle(context.Background(), "NOPE")
	assert.ErrorIs(t, err, parking.ErrSessionNotFound)
	assert.True(t, parking.IsNotFound(err))
}

func TestExitWithClockSkewCommitsNothing(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotFourWheeler: 1})
	ctx := context.Background()

	parked, err := f.manager.ParkVehicle(ctx, parking.FourWheeler, "AB-123")
	require.NoError(t, err)

	f.clock.Advance(-time.Minute)
	_, err = f.manager.ExitVehicle(ctx, "AB-123")
	assert.ErrorIs(t, err, parking.ErrClockSkew)
	assert.True(t, parking.IsInvariantViolation(err))

	current, err := f.manager.GetVehicle(ctx, "AB-123")
	require.NoError(t, err)
	assert.Equal(t, parking.SessionActive, current.Status)
	assert.Nil(t, current.Fee)
	assert.Equal(t, parking.SlotOccupied, f.slot(t, parked.SlotID).Status)
	assert.Equal(t, 1, f.allotted(t))
}

func TestExitWithoutSlotStillBills(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotFourWheeler: 1})
	ctx := context.Background()

	orphan := parking.NewVehicleSession("orphan-1", parking.FourWheeler, "OLD-1", f.clock.Now())
	err := f.store.InTx(ctx, func(ctx context.Context, tx parking.Tx) error {
		return tx.CreateSession(ctx, orphan)
	})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	exited, err := f.manager.ExitVehicle(ctx, "OLD-1")
	require.NoError(t, err)
	assert.Equal(t, parking.SessionClosed, exited.Status)
	assert.InDelta(t, 40.0, *exited.Fee, 0.001)
	assert.Empty(t, exited.ReleasedSlotID())
	assert.Equal(t, 0, f.allotted(t))
}

func TestGetVehicleReturnsLatestClosedSession(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotTwoWheeler: 1})
	ctx := context.Background()

	_, err := f.manager.ParkVehicle(ctx, parking.TwoWheeler, "KA01")
	require.NoError(t, err)
	f.clock.Advance(3 * time.Hour)
	exited, err := f.manager.ExitVehicle(ctx, "KA01")
	require.NoError(t, err)

	got, err := f.manager.GetVehicle(ctx, "ka01")
	require.NoError(t, err)
	if diff := cmp.Diff(exited, got, cmpopts.IgnoreUnexported(parking.VehicleSession{})); diff != "" {
		t.Errorf("GetVehicle mismatch (-want +got):\n%s", diff)
	}

	f.clock.Advance(time.Hour)
	again, err := f.manager.ParkVehicle(ctx, parking.TwoWheeler, "KA01")
	require.NoError(t, err)
	got, err = f.manager.GetVehicle(ctx, "KA01")
	require.NoError(t, err)
	assert.Equal(t, again.ID, got.ID)
	assert.Equal(t, parking.SessionActive, got.Status)
}

func TestUpdateFee(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotTwoWheeler: 1})
	ctx := context.Background()

	parked, err := f.manager.ParkVehicle(ctx, parking.TwoWheeler, "KA01")
	require.NoError(t, err)

	updated, err := f.manager.UpdateFee(ctx, parked.ID, 12.5)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, *updated.Fee, 0.001)
	assert.Equal(t, parking.SessionActive, updated.Status, "fee override must not change status")
	assert.Equal(t, parked.SlotID, updated.SlotID)

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := f.manager.UpdateFee(ctx, parked.ID, bad)
		assert.ErrorIs(t, err, parking.ErrInvalidAmount, "amount %v", bad)
	}

	_, err = f.manager.UpdateFee(ctx, "missing", 10)
	assert.ErrorIs(t, err, parking.ErrSessionNotFound)
}

func TestUpdateFeeAfterExitOverwritesBill(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotTwoWheeler: 1})
	ctx := context.Background()

	parked, err := f.manager.ParkVehicle(ctx, parking.TwoWheeler, "KA01")
	require.NoError(t, err)
	f.clock.Advance(61 * time.Minute)
	exited, err := f.manager.ExitVehicle(ctx, "KA01")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, *exited.Fee, 0.001)

	updated, err := f.manager.UpdateFee(ctx, parked.ID, 15)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, *updated.Fee, 0.001)
	assert.Equal(t, parking.SessionClosed, updated.Status)
	assert.Equal(t, exited.ExitTime, updated.ExitTime)
}

type failingPricing struct{}

func (failingPricing) Price(parking.VehicleClass, time.Duration) (float64, error) {
	return 0, errors.New("pricing unavailable")
}

func TestExitPricingFailureLeavesSessionActive(t *testing.T) {
	f := newFixture(t, map[parking.SlotType]int{parking.SlotTwoWheeler: 1})
	ctx := context.Background()

	_, err := f.manager.ParkVehicle(ctx, parking.TwoWheeler, "KA01")
	require.NoError(t, err)

	broken := parking.NewManager(f.store, failingPricing{}, parking.WithClock(f.clock.Now), parking.WithLogger(discardLogger()))
	_, err = broken.ExitVehicle(ctx, "KA01")
	require.Error(t, err)

	assert.Equal(t, 1, f.allotted(t))
	require.NoError(t, f.store.CheckInvariants())
}
