// Package postgres is a parking.Store backed by PostgreSQL through pgx.
//
// Every Tx runs inside one read committed transaction. Slot claims use
// FOR UPDATE SKIP LOCKED so concurrent claims never pick the same row, and
// the one-active-session-per-registration rule is a partial unique index.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"smart-parking/internal/parking"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type Store struct {
	pool *pgxpool.Pool
}

var _ parking.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx parking.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(pgxTx pgx.Tx) error {
		return fn(ctx, &tx{q: pgxTx})
	})
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type tx struct {
	q querier
}

var _ parking.Tx = (*tx)(nil)

const slotColumns = `slot_id, slot_type, status, floor_id, COALESCE(current_session_id, '')`

func scanSlot(row pgx.Row) (*parking.Slot, error) {
	var (
		slot             parking.Slot
		slotType, status string
	)
	if err := row.Scan(&slot.ID, &slotType, &status, &slot.FloorID, &slot.SessionID); err != nil {
		return nil, err
	}
	slot.Type = parking.SlotType(slotType)
	slot.Status = parking.SlotStatus(status)
	return &slot, nil
}

func (t *tx) ClaimSlot(ctx context.Context, slotType parking.SlotType, sessionID string) (*parking.Slot, error) {
	slot, err := scanSlot(t.q.QueryRow(ctx, `
		UPDATE parking_slots
		SET status = 'OCCUPIED', current_session_id = $2
		WHERE slot_id = (
			SELECT slot_id FROM parking_slots
			WHERE slot_type = $1 AND status = 'AVAILABLE'
			ORDER BY seq
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+slotColumns,
		string(slotType), sessionID,
	))
	if err != nil {
		return nil, notFound("claim slot", err, parking.ErrNoAvailableSlot, string(slotType))
	}
	return slot, nil
}

func (t *tx) ReleaseSlot(ctx context.Context, slotID string) (*parking.Slot, error) {
	slot, err := scanSlot(t.q.QueryRow(ctx, `
		UPDATE parking_slots
		SET status = 'AVAILABLE', current_session_id = NULL
		WHERE slot_id = $1 AND status = 'OCCUPIED'
		RETURNING `+slotColumns,
		slotID,
	))
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, translate("release slot", err)
	}

	if _, err := t.GetSlot(ctx, slotID); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", parking.ErrSlotNotOccupied, slotID)
}

func (t *tx) GetSlot(ctx context.Context, slotID string) (*parking.Slot, error) {
	slot, err := scanSlot(t.q.QueryRow(ctx,
		`SELECT `+slotColumns+` FROM parking_slots WHERE slot_id = $1`, slotID))
	if err != nil {
		return nil, notFound("get slot", err, parking.ErrSlotNotFound, slotID)
	}
	return slot, nil
}

const floorColumns = `floor_id, floor_no, total_slots, allotted_slots, parking_lot_id`

func scanFloor(row pgx.Row) (*parking.Floor, error) {
	var floor parking.Floor
	if err := row.Scan(&floor.ID, &floor.Number, &floor.TotalSlots, &floor.AllottedSlots, &floor.LotID); err != nil {
		return nil, err
	}
	return &floor, nil
}

func (t *tx) IncrementAllotted(ctx context.Context, floorID string) (*parking.Floor, error) {
	floor, err := scanFloor(t.q.QueryRow(ctx, `
		UPDATE floors SET allotted_slots = allotted_slots + 1
		WHERE floor_id = $1
		RETURNING `+floorColumns,
		floorID,
	))
	if err != nil {
		return nil, notFound("increment allotted", err, parking.ErrFloorNotFound, floorID)
	}
	return floor, nil
}

func (t *tx) DecrementAllotted(ctx context.Context, floorID string) (*parking.Floor, bool, error) {
	floor, err := scanFloor(t.q.QueryRow(ctx,
		`SELECT `+floorColumns+` FROM floors WHERE floor_id = $1 FOR UPDATE`, floorID))
	if err != nil {
		return nil, false, notFound("decrement allotted", err, parking.ErrFloorNotFound, floorID)
	}
	if floor.AllottedSlots <= 0 {
		return floor, true, nil
	}

	floor, err = scanFloor(t.q.QueryRow(ctx, `
		UPDATE floors SET allotted_slots = allotted_slots - 1
		WHERE floor_id = $1
		RETURNING `+floorColumns,
		floorID,
	))
	if err != nil {
		return nil, false, translate("decrement allotted", err)
	}
	return floor, false, nil
}

const sessionColumns = `vehicle_id, vehicle_type, registration, time_in, time_out, status, bill_amount, COALESCE(assigned_slot_id, '')`

func scanSession(row pgx.Row) (*parking.VehicleSession, error) {
	var (
		session       parking.VehicleSession
		class, status string
		exit          *time.Time
		fee           *float64
	)
	err := row.Scan(&session.ID, &class, &session.Registration, &session.EntryTime,
		&exit, &status, &fee, &session.SlotID)
	if err != nil {
		return nil, err
	}
	session.Class = parking.VehicleClass(class)
	session.Status = parking.SessionStatus(status)
	session.ExitTime = exit
	session.Fee = fee
	return &session, nil
}

func collectSessions(rows pgx.Rows) ([]*parking.VehicleSession, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*parking.VehicleSession, error) {
		return scanSession(row)
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (t *tx) CreateSession(ctx context.Context, session *parking.VehicleSession) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO vehicle_sessions
			(vehicle_id, vehicle_type, registration, time_in, time_out, status, bill_amount, assigned_slot_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, string(session.Class), session.Registration, session.EntryTime,
		session.ExitTime, string(session.Status), session.Fee, nullable(session.SlotID),
	)
	return translate("create session", err)
}

func (t *tx) UpdateSession(ctx context.Context, session *parking.VehicleSession) error {
	var status string
	err := t.q.QueryRow(ctx,
		`SELECT status FROM vehicle_sessions WHERE vehicle_id = $1 FOR UPDATE`, session.ID).Scan(&status)
	if err != nil {
		return notFound("update session", err, parking.ErrSessionNotFound, session.ID)
	}
	if parking.SessionStatus(status) == parking.SessionClosed && session.Active() {
		return fmt.Errorf("session %s cannot be reopened", session.ID)
	}

	_, err = t.q.Exec(ctx, `
		UPDATE vehicle_sessions
		SET time_out = $2, status = $3, bill_amount = $4, assigned_slot_id = $5
		WHERE vehicle_id = $1`,
		session.ID, session.ExitTime, string(session.Status), session.Fee, nullable(session.SlotID),
	)
	return translate("update session", err)
}

func (t *tx) GetSession(ctx context.Context, id string) (*parking.VehicleSession, error) {
	session, err := scanSession(t.q.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM vehicle_sessions WHERE vehicle_id = $1`, id))
	if err != nil {
		return nil, notFound("get session", err, parking.ErrSessionNotFound, id)
	}
	return session, nil
}

// FindActiveSession locks the row so that concurrent exits of the same
// registration serialize; the loser re-reads a CLOSED row and finds nothing.
func (t *tx) FindActiveSession(ctx context.Context, registration string) (*parking.VehicleSession, error) {
	session, err := scanSession(t.q.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM vehicle_sessions
		WHERE registration = $1 AND status = 'ACTIVE'
		FOR UPDATE`,
		registration,
	))
	if err != nil {
		return nil, notFound("find active session", err, parking.ErrSessionNotFound, registration)
	}
	return session, nil
}

func (t *tx) FindLatestSession(ctx context.Context, registration string) (*parking.VehicleSession, error) {
	session, err := scanSession(t.q.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM vehicle_sessions
		WHERE registration = $1
		ORDER BY seq DESC
		LIMIT 1`,
		registration,
	))
	if err != nil {
		return nil, notFound("find latest session", err, parking.ErrSessionNotFound, registration)
	}
	return session, nil
}

func (t *tx) ListActiveSessions(ctx context.Context) ([]*parking.VehicleSession, error) {
	rows, err := t.q.Query(ctx,
		`SELECT `+sessionColumns+` FROM vehicle_sessions WHERE status = 'ACTIVE' ORDER BY seq`)
	if err != nil {
		return nil, translate("list active sessions", err)
	}
	sessions, err := collectSessions(rows)
	if err != nil {
		return nil, translate("list active sessions", err)
	}
	return sessions, nil
}

const lotColumns = `parking_lot_id, name, address, total_floors, created_at, updated_at`

func scanLot(row pgx.Row) (*parking.Lot, error) {
	var lot parking.Lot
	if err := row.Scan(&lot.ID, &lot.Name, &lot.Address, &lot.TotalFloors, &lot.CreatedAt, &lot.UpdatedAt); err != nil {
		return nil, err
	}
	return &lot, nil
}

func (t *tx) CreateLot(ctx context.Context, lot *parking.Lot) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO parking_lots (`+lotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		lot.ID, lot.Name, lot.Address, lot.TotalFloors, lot.CreatedAt, lot.UpdatedAt,
	)
	return translate("create lot", err)
}

func (t *tx) GetLot(ctx context.Context, id string) (*parking.Lot, error) {
	lot, err := scanLot(t.q.QueryRow(ctx,
		`SELECT `+lotColumns+` FROM parking_lots WHERE parking_lot_id = $1`, id))
	if err != nil {
		return nil, notFound("get lot", err, parking.ErrLotNotFound, id)
	}
	return lot, nil
}

func (t *tx) ListLots(ctx context.Context) ([]*parking.Lot, error) {
	rows, err := t.q.Query(ctx,
		`SELECT `+lotColumns+` FROM parking_lots ORDER BY created_at, name`)
	if err != nil {
		return nil, translate("list lots", err)
	}
	lots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*parking.Lot, error) {
		return scanLot(row)
	})
	if err != nil {
		return nil, translate("list lots", err)
	}
	return lots, nil
}

func (t *tx) CreateFloor(ctx context.Context, floor *parking.Floor, slots []*parking.Slot) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO floors (`+floorColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		floor.ID, floor.Number, floor.TotalSlots, floor.AllottedSlots, floor.LotID,
	)
	if err != nil {
		return translate("create floor", err)
	}

	rows := make([][]any, 0, len(slots))
	for _, slot := range slots {
		rows = append(rows, []any{slot.ID, slot.FloorID, string(slot.Type), string(slot.Status)})
	}
	_, err = t.q.CopyFrom(ctx,
		pgx.Identifier{"parking_slots"},
		[]string{"slot_id", "floor_id", "slot_type", "status"},
		pgx.CopyFromRows(rows),
	)
	return translate("create slots", err)
}

func (t *tx) GetFloor(ctx context.Context, id string) (*parking.Floor, error) {
	floor, err := scanFloor(t.q.QueryRow(ctx,
		`SELECT `+floorColumns+` FROM floors WHERE floor_id = $1`, id))
	if err != nil {
		return nil, notFound("get floor", err, parking.ErrFloorNotFound, id)
	}
	return floor, nil
}

func (t *tx) ListFloors(ctx context.Context, lotID string) ([]*parking.Floor, error) {
	rows, err := t.q.Query(ctx,
		`SELECT `+floorColumns+` FROM floors WHERE parking_lot_id = $1 ORDER BY floor_no`, lotID)
	if err != nil {
		return nil, translate("list floors", err)
	}
	floors, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*parking.Floor, error) {
		return scanFloor(row)
	})
	if err != nil {
		return nil, translate("list floors", err)
	}
	return floors, nil
}

func (t *tx) ListSlots(ctx context.Context, floorID string) ([]*parking.Slot, error) {
	rows, err := t.q.Query(ctx,
		`SELECT `+slotColumns+` FROM parking_slots WHERE floor_id = $1 ORDER BY seq`, floorID)
	if err != nil {
		return nil, translate("list slots", err)
	}
	slots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*parking.Slot, error) {
		return scanSlot(row)
	})
	if err != nil {
		return nil, translate("list slots", err)
	}
	return slots, nil
}
