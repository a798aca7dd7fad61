package parking

import "errors"

var (
	ErrAlreadyParked   = errors.New("vehicle is already parked")
	ErrNoAvailableSlot = errors.New("no available slot")
	ErrSessionNotFound = errors.New("no parked vehicle found")
	ErrSlotNotFound    = errors.New("parking slot not found")
	ErrSlotNotOccupied = errors.New("parking slot is not occupied")
	ErrInvalidAmount   = errors.New("bill amount must be positive")

	ErrInvalidVehicleClass = errors.New("invalid vehicle type")
	ErrInvalidSlotType     = errors.New("invalid slot type")
	ErrInvalidRegistration = errors.New("vehicle registration is required")
	ErrInvalidDuration     = errors.New("parking duration must not be negative")

	ErrLotNotFound     = errors.New("parking lot not found")
	ErrFloorNotFound   = errors.New("floor not found")
	ErrDuplicateLot    = errors.New("parking lot already exists")
	ErrDuplicateFloor  = errors.New("floor already exists in this parking lot")
	ErrInvalidFacility = errors.New("invalid facility request")

	// Invariant violations. These indicate corrupted state or a broken
	// clock rather than a bad request.
	ErrClockSkew        = errors.New("exit time is before entry time")
	ErrCounterUnderflow = errors.New("floor allotted counter underflow")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSlotNotFound) ||
		errors.Is(err, ErrLotNotFound) ||
		errors.Is(err, ErrFloorNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyParked) ||
		errors.Is(err, ErrNoAvailableSlot) ||
		errors.Is(err, ErrDuplicateLot) ||
		errors.Is(err, ErrDuplicateFloor)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidVehicleClass) ||
		errors.Is(err, ErrInvalidSlotType) ||
		errors.Is(err, ErrInvalidRegistration) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidFacility)
}

func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrClockSkew) ||
		errors.Is(err, ErrCounterUnderflow) ||
		errors.Is(err, ErrSlotNotOccupied)
}
