package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"smart-parking/internal/parking"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

const (
	constraintActiveRegistration = "vehicle_sessions_active_registration_key"
	constraintLotName            = "parking_lots_name_key"
	constraintFloorNumber        = "floors_lot_floor_no_key"
	constraintAllottedRange      = "floors_allotted_range"
)

// translate maps a driver error onto the parking error taxonomy. Errors it
// does not recognise are wrapped with op unchanged.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintActiveRegistration:
			return fmt.Errorf("%s: %w", op, parking.ErrAlreadyParked)
		case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintLotName:
			return fmt.Errorf("%s: %w", op, parking.ErrDuplicateLot)
		case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintFloorNumber:
			return fmt.Errorf("%s: %w", op, parking.ErrDuplicateFloor)
		case pgErr.Code == codeForeignKeyViolation && pgErr.TableName == "floors":
			return fmt.Errorf("%s: %w", op, parking.ErrLotNotFound)
		case pgErr.Code == codeCheckViolation && pgErr.ConstraintName == constraintAllottedRange:
			return fmt.Errorf("%s: allotted slots would exceed floor capacity: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notFound turns pgx.ErrNoRows into sentinel, leaving other errors to translate.
func notFound(op string, err error, sentinel error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return translate(op, err)
}
