package parking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
)

// Service is the vehicle lifecycle as seen by transports.
type Service interface {
	ParkVehicle(ctx context.Context, class VehicleClass, registration string) (*VehicleSession, error)
	ExitVehicle(ctx context.Context, registration string) (*VehicleSession, error)
	GetVehicle(ctx context.Context, registration string) (*VehicleSession, error)
	UpdateFee(ctx context.Context, sessionID string, amount float64) (*VehicleSession, error)
	ActiveSessions(ctx context.Context) ([]*VehicleSession, error)
}

type ManagerOption func(*Manager)

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func WithIDGenerator(newID func() string) ManagerOption {
	return func(m *Manager) { m.newID = newID }
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// Manager runs entry and exit as single store transactions: the ACTIVE
// check, the slot transition, the floor counter and the session write
// commit together or not at all.
type Manager struct {
	store     Store
	inventory *Inventory
	pricing   PricingStrategy
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

var _ Service = (*Manager)(nil)

func NewManager(store Store, pricing PricingStrategy, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		pricing: pricing,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.inventory = NewInventory(m.logger)
	return m
}

func (m *Manager) ParkVehicle(ctx context.Context, class VehicleClass, registration string) (*VehicleSession, error) {
	reg, err := NormalizeRegistration(registration)
	if err != nil {
		return nil, err
	}
	slotType, err := SlotTypeFor(class)
	if err != nil {
		return nil, err
	}

	var parked *VehicleSession
	err = m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.FindActiveSession(ctx, reg)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrAlreadyParked, reg)
		case !errors.Is(err, ErrSessionNotFound):
			return fmt.Errorf("check active session: %w", err)
		}

		session := NewVehicleSession(m.newID(), class, reg, m.now())
		slot, err := m.inventory.Claim(ctx, tx, slotType, session.ID)
		if err != nil {
			return err
		}
		session.SlotID = slot.ID

		if err := tx.CreateSession(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		parked = session
		return nil
	})
	if err != nil {
		m.logger.InfoContext(ctx, "park rejected",
			slog.String("registration", reg),
			slog.String("vehicle_type", string(class)),
			slog.Any("error", err),
		)
		return nil, err
	}

	m.logger.InfoContext(ctx, "vehicle parked",
		slog.String("registration", reg),
		slog.String("vehicle_id", parked.ID),
		slog.String("slot_id", parked.SlotID),
	)
	return parked, nil
}

func (m *Manager) ExitVehicle(ctx context.Context, registration string) (*VehicleSession, error) {
	reg, err := NormalizeRegistration(registration)
	if err != nil {
		return nil, err
	}

	var exited *VehicleSession
	err = m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		session, err := tx.FindActiveSession(ctx, reg)
		if err != nil {
			return err
		}

		exitTime := m.now()
		elapsed := exitTime.Sub(session.EntryTime)
		if elapsed < 0 {
			m.logger.ErrorContext(ctx, "exit before entry",
				slog.String("vehicle_id", session.ID),
				slog.Time("time_in", session.EntryTime),
				slog.Time("time_out", exitTime),
			)
			return fmt.Errorf("%w: session %s", ErrClockSkew, session.ID)
		}

		fee, err := m.pricing.Price(session.Class, elapsed)
		if err != nil {
			return fmt.Errorf("price session %s: %w", session.ID, err)
		}

		if session.SlotID == "" {
			m.logger.WarnContext(ctx, "session has no assigned slot, skipping release",
				slog.String("vehicle_id", session.ID),
			)
		} else if _, err := m.inventory.Release(ctx, tx, session.SlotID); err != nil {
			if IsInvariantViolation(err) {
				m.logger.ErrorContext(ctx, "slot state inconsistent with session",
					slog.String("vehicle_id", session.ID),
					slog.String("slot_id", session.SlotID),
					slog.Any("error", err),
				)
			}
			return err
		}

		if err := session.Close(exitTime, fee); err != nil {
			return err
		}
		if err := tx.UpdateSession(ctx, session); err != nil {
			return fmt.Errorf("close session: %w", err)
		}
		exited = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "vehicle exited",
		slog.String("registration", reg),
		slog.String("vehicle_id", exited.ID),
		slog.Float64("bill_amount", *exited.Fee),
	)
	return exited, nil
}

// GetVehicle prefers the ACTIVE session and otherwise returns the most
// recent closed one.
func (m *Manager) GetVehicle(ctx context.Context, registration string) (*VehicleSession, error) {
	reg, err := NormalizeRegistration(registration)
	if err != nil {
		return nil, err
	}

	var found *VehicleSession
	err = m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		session, err := tx.FindActiveSession(ctx, reg)
		if errors.Is(err, ErrSessionNotFound) {
			session, err = tx.FindLatestSession(ctx, reg)
		}
		if err != nil {
			return err
		}
		found = session
		return nil
	})
	return found, err
}

// UpdateFee overwrites the stored fee. It does not touch the session's
// status nor recompute anything.
func (m *Manager) UpdateFee(ctx context.Context, sessionID string, amount float64) (*VehicleSession, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}

	var updated *VehicleSession
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		session, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		session.Fee = &amount
		if err := tx.UpdateSession(ctx, session); err != nil {
			return fmt.Errorf("update fee: %w", err)
		}
		updated = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "bill amount overridden",
		slog.String("vehicle_id", updated.ID),
		slog.Float64("bill_amount", *updated.Fee),
	)
	return updated, nil
}

func (m *Manager) ActiveSessions(ctx context.Context) ([]*VehicleSession, error) {
	var sessions []*VehicleSession
	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		sessions, err = tx.ListActiveSessions(ctx)
		return err
	})
	return sessions, err
}
