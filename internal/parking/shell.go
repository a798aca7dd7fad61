package parking

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Shell reads line-oriented commands and drives a Service and Facility.
// Each command runs inside its own span.
type Shell struct {
	service   Service
	facility  *Facility
	telemetry *TelemetryProvider
	scanner   *bufio.Scanner
	out       io.Writer

	lotID string
}

func NewShell(service Service, facility *Facility, telemetry *TelemetryProvider, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		service:   service,
		facility:  facility,
		telemetry: telemetry,
		scanner:   bufio.NewScanner(in),
		out:       out,
	}
}

func (s *Shell) Run(ctx context.Context) error {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))
		s.processCommand(cmdCtx, input)
		cmdSpan.End()
	}

	span.AddEvent("shell_ended")
	return s.scanner.Err()
}

func (s *Shell) processCommand(ctx context.Context, input string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return
	}

	command := parts[0]
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("command.name", command))

	switch command {
	case "create_parking_lot":
		s.handleCreateParkingLot(ctx, parts)
	case "add_floor":
		s.handleAddFloor(ctx, parts)
	case "park":
		s.handlePark(ctx, parts)
	case "exit":
		s.handleExit(ctx, parts)
	case "vehicle":
		s.handleVehicle(ctx, parts)
	case "update_fee":
		s.handleUpdateFee(ctx, parts)
	case "status":
		s.handleStatus(ctx)
	default:
		trace.SpanFromContext(ctx).AddEvent("unknown_command", trace.WithAttributes(
			attribute.String("unknown_command", command),
		))
		s.printf("Unknown command: %s\n", command)
	}
}

func (s *Shell) handleCreateParkingLot(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.create_parking_lot")
	defer span.End()

	if len(parts) < 2 || len(parts) > 3 {
		span.AddEvent("invalid_arguments")
		s.printf("Usage: create_parking_lot <name> [floors]\n")
		return
	}

	floors := 0
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			span.RecordError(fmt.Errorf("invalid floor count: %s", parts[2]))
			s.printf("Invalid floor count\n")
			return
		}
		floors = n
	}

	lot, err := s.facility.CreateLot(ctx, parts[1], "", floors)
	if err != nil {
		recordSpanError(span, err)
		s.printf("Error: %s\n", err)
		return
	}

	s.lotID = lot.ID
	span.SetAttributes(attribute.String("parking_lot.id", lot.ID))
	span.AddEvent("parking_lot_created")
	s.printf("Created parking lot %s (%s)\n", lot.Name, lot.ID)
}

func (s *Shell) handleAddFloor(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.add_floor")
	defer span.End()

	if s.lotID == "" {
		span.AddEvent("parking_lot_not_created")
		s.printf("Parking lot not created\n")
		return
	}

	if len(parts) != 5 {
		span.AddEvent("invalid_arguments")
		s.printf("Usage: add_floor <floor_no> <two_wheeler> <four_wheeler> <heavy_vehicle>\n")
		return
	}

	numbers := make([]int, 0, 4)
	for _, arg := range parts[1:] {
		n, err := strconv.Atoi(arg)
		if err != nil {
			span.RecordError(fmt.Errorf("invalid number: %s", arg))
			s.printf("Invalid number: %s\n", arg)
			return
		}
		numbers = append(numbers, n)
	}

	floor, err := s.facility.AddFloor(ctx, s.lotID, numbers[0], map[SlotType]int{
		SlotTwoWheeler:   numbers[1],
		SlotFourWheeler:  numbers[2],
		SlotHeavyVehicle: numbers[3],
	})
	if err != nil {
		recordSpanError(span, err)
		s.printf("Error: %s\n", err)
		return
	}

	span.SetAttributes(
		attribute.String("floor.id", floor.ID),
		attribute.Int("floor.total_slots", floor.TotalSlots),
	)
	s.printf("Added floor %d with %d slots\n", floor.Number, floor.TotalSlots)
}

func (s *Shell) handlePark(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.park_command")
	defer span.End()

	if len(parts) != 3 {
		span.AddEvent("invalid_arguments")
		s.printf("Usage: park <vehicle_type> <registration>\n")
		return
	}

	class, err := ParseVehicleClass(parts[1])
	if err != nil {
		span.AddEvent("invalid_vehicle_type")
		s.printf("Error: %s\n", err)
		return
	}

	session, err := s.service.ParkVehicle(ctx, class, parts[2])
	if err != nil {
		span.AddEvent("parking_failed")
		s.printf("Error: %s\n", err)
		return
	}

	span.AddEvent("parking_successful", trace.WithAttributes(
		attribute.String("allocated_slot", session.SlotID),
	))
	s.printf("Parked %s in slot %s (session %s)\n", session.Registration, session.SlotID, session.ID)
}

func (s *Shell) handleExit(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.exit_command")
	defer span.End()

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		s.printf("Usage: exit <registration>\n")
		return
	}

	session, err := s.service.ExitVehicle(ctx, parts[1])
	if err != nil {
		span.AddEvent("exit_failed")
		s.printf("Error: %s\n", err)
		return
	}

	span.AddEvent("exit_successful")
	s.printf("%s exited, bill %.2f\n", session.Registration, *session.Fee)
}

func (s *Shell) handleVehicle(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.vehicle_command")
	defer span.End()

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		s.printf("Usage: vehicle <registration>\n")
		return
	}

	session, err := s.service.GetVehicle(ctx, parts[1])
	if err != nil {
		span.AddEvent("vehicle_not_found")
		s.printf("Not found\n")
		return
	}

	s.printf("%s\t%s\t%s\t%s\t%s\n", session.ID, session.Registration, session.Class, session.Status, formatFee(session.Fee))
}

func (s *Shell) handleUpdateFee(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.update_fee_command")
	defer span.End()

	if len(parts) != 3 {
		span.AddEvent("invalid_arguments")
		s.printf("Usage: update_fee <session_id> <amount>\n")
		return
	}

	amount, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		span.RecordError(fmt.Errorf("invalid amount: %s", parts[2]))
		s.printf("Invalid amount\n")
		return
	}

	session, err := s.service.UpdateFee(ctx, parts[1], amount)
	if err != nil {
		span.AddEvent("update_failed")
		s.printf("Error: %s\n", err)
		return
	}

	s.printf("Bill for %s set to %s\n", session.ID, formatFee(session.Fee))
}

func (s *Shell) handleStatus(ctx context.Context) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.status_command")
	defer span.End()

	if s.lotID != "" {
		floors, err := s.facility.ListFloors(ctx, s.lotID)
		if err != nil {
			recordSpanError(span, err)
			s.printf("Error: %s\n", err)
			return
		}
		s.printf("Floor\tTotal\tAllotted\tAvailable\n")
		for _, floor := range floors {
			s.printf("%d\t%d\t%d\t\t%d\n", floor.Number, floor.TotalSlots, floor.AllottedSlots, floor.Available)
		}
	}

	sessions, err := s.service.ActiveSessions(ctx)
	if err != nil {
		recordSpanError(span, err)
		s.printf("Error: %s\n", err)
		return
	}

	span.SetAttributes(attribute.Int("occupied_slots_count", len(sessions)))
	if len(sessions) == 0 {
		s.printf("Parking lot is empty\n")
		return
	}

	s.printf("Slot\tRegistration\tType\n")
	for _, session := range sessions {
		s.printf("%s\t%s\t%s\n", session.SlotID, session.Registration, session.Class)
	}
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func formatFee(fee *float64) string {
	if fee == nil {
		return "-"
	}
	return strconv.FormatFloat(*fee, 'f', 2, 64)
}
