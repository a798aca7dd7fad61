package parking

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedManager wraps a Service with spans and lifecycle metrics.
type InstrumentedManager struct {
	next      Service
	telemetry *TelemetryProvider

	parkingOperations metric.Int64Counter
	exitOperations    metric.Int64Counter
	occupancyGauge    metric.Int64UpDownCounter
	operationDuration metric.Float64Histogram
	revenue           metric.Float64Counter
}

var _ Service = (*InstrumentedManager)(nil)

func NewInstrumentedManager(next Service, telemetry *TelemetryProvider) (*InstrumentedManager, error) {
	meter := telemetry.Meter()

	parkingOperations, err := meter.Int64Counter("parking_operations_total",
		metric.WithDescription("Total number of parking operations"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	exitOperations, err := meter.Int64Counter("exit_operations_total",
		metric.WithDescription("Total number of exit operations"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	occupancyGauge, err := meter.Int64UpDownCounter("parking_occupancy",
		metric.WithDescription("Current number of occupied parking slots"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of parking lifecycle operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	revenue, err := meter.Float64Counter("parking_revenue_total",
		metric.WithDescription("Sum of bills computed at exit"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	return &InstrumentedManager{
		next:              next,
		telemetry:         telemetry,
		parkingOperations: parkingOperations,
		exitOperations:    exitOperations,
		occupancyGauge:    occupancyGauge,
		operationDuration: operationDuration,
		revenue:           revenue,
	}, nil
}

func (im *InstrumentedManager) ParkVehicle(ctx context.Context, class VehicleClass, registration string) (*VehicleSession, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.park",
		trace.WithAttributes(
			attribute.String("vehicle.registration", registration),
			attribute.String("vehicle.type", string(class)),
		))
	defer span.End()

	start := time.Now()
	span.AddEvent("claiming_slot")

	session, err := im.next.ParkVehicle(ctx, class, registration)

	labels := []attribute.KeyValue{
		attribute.String("operation", "park"),
		attribute.String("vehicle_type", string(class)),
		attribute.String("status", outcome(err)),
	}

	if err != nil {
		recordSpanError(span, err)
	} else {
		span.SetAttributes(
			attribute.String("vehicle.id", session.ID),
			attribute.String("slot.id", session.SlotID),
		)
		span.AddEvent("slot_allocated")
		im.occupancyGauge.Add(ctx, 1, metric.WithAttributes(attribute.String("vehicle_type", string(class))))
	}

	im.parkingOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	im.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))
	return session, err
}

func (im *InstrumentedManager) ExitVehicle(ctx context.Context, registration string) (*VehicleSession, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.exit",
		trace.WithAttributes(attribute.String("vehicle.registration", registration)))
	defer span.End()

	start := time.Now()
	span.AddEvent("releasing_slot")

	session, err := im.next.ExitVehicle(ctx, registration)

	labels := []attribute.KeyValue{
		attribute.String("operation", "exit"),
		attribute.String("status", outcome(err)),
	}

	if err != nil {
		recordSpanError(span, err)
	} else {
		class := attribute.String("vehicle_type", string(session.Class))
		labels = append(labels, class)
		span.SetAttributes(
			attribute.String("vehicle.id", session.ID),
			attribute.Float64("bill.amount", *session.Fee),
		)
		if session.ReleasedSlotID() != "" {
			span.AddEvent("slot_released")
			im.occupancyGauge.Add(ctx, -1, metric.WithAttributes(class))
		}
		im.revenue.Add(ctx, *session.Fee, metric.WithAttributes(class))
	}

	im.exitOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	im.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))
	return session, err
}

func (im *InstrumentedManager) GetVehicle(ctx context.Context, registration string) (*VehicleSession, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.get_vehicle",
		trace.WithAttributes(attribute.String("vehicle.registration", registration)))
	defer span.End()

	start := time.Now()
	session, err := im.next.GetVehicle(ctx, registration)
	if err != nil {
		if IsNotFound(err) {
			span.AddEvent("vehicle_not_found")
		} else {
			recordSpanError(span, err)
		}
	} else {
		span.SetAttributes(attribute.String("vehicle.id", session.ID))
	}

	im.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", "get_vehicle"),
		attribute.String("status", outcome(err)),
	))
	return session, err
}

func (im *InstrumentedManager) UpdateFee(ctx context.Context, sessionID string, amount float64) (*VehicleSession, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.update_fee",
		trace.WithAttributes(
			attribute.String("vehicle.id", sessionID),
			attribute.Float64("bill.amount", amount),
		))
	defer span.End()

	start := time.Now()
	session, err := im.next.UpdateFee(ctx, sessionID, amount)
	if err != nil {
		recordSpanError(span, err)
	}

	im.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", "update_fee"),
		attribute.String("status", outcome(err)),
	))
	return session, err
}

func (im *InstrumentedManager) ActiveSessions(ctx context.Context) ([]*VehicleSession, error) {
	ctx, span := im.telemetry.Tracer().Start(ctx, "parking.active_sessions")
	defer span.End()

	sessions, err := im.next.ActiveSessions(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("active_sessions_count", len(sessions)))
	return sessions, nil
}

// SeedOccupancy adds the ACTIVE sessions that hold a slot to the occupancy
// gauge. Call it once at startup, before serving traffic. Slotless sessions
// are left out because their exit releases nothing.
func (im *InstrumentedManager) SeedOccupancy(ctx context.Context) error {
	sessions, err := im.next.ActiveSessions(ctx)
	if err != nil {
		return err
	}

	counts := make(map[VehicleClass]int64)
	for _, session := range sessions {
		if session.SlotID != "" {
			counts[session.Class]++
		}
	}
	for class, n := range counts {
		im.occupancyGauge.Add(ctx, n, metric.WithAttributes(attribute.String("vehicle_type", string(class))))
	}
	return nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAlreadyParked):
		return "already_parked"
	case errors.Is(err, ErrNoAvailableSlot):
		return "no_available_slot"
	case IsNotFound(err):
		return "not_found"
	case IsInvalidInput(err):
		return "invalid"
	default:
		return "failed"
	}
}
