package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smart-parking/internal/parking"
)

type Handler struct {
	service     parking.Service
	facility    *parking.Facility
	serviceName string
	logger      *slog.Logger
}

func NewHandler(service parking.Service, facility *parking.Facility, serviceName string, logger *slog.Logger) *Handler {
	return &Handler{
		service:     service,
		facility:    facility,
		serviceName: serviceName,
		logger:      logger,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	})
}

func (h *Handler) ParkVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ParkVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	class, err := parking.ParseVehicleClass(req.VehicleType)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	session, err := h.service.ParkVehicle(ctx, class, req.Registration)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccessStatus(ctx, w, http.StatusCreated, "Vehicle parked successfully", session)
}

func (h *Handler) ExitVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := h.service.ExitVehicle(ctx, chi.URLParam(r, "registration"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Vehicle exited successfully", session)
}

func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := h.service.GetVehicle(ctx, chi.URLParam(r, "registration"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Vehicle found", session)
}

func (h *Handler) UpdateBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req UpdateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.BillAmount == nil {
		WriteError(ctx, w, http.StatusBadRequest, "bill_amount is required")
		return
	}

	session, err := h.service.UpdateFee(ctx, chi.URLParam(r, "sessionID"), *req.BillAmount)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Bill updated successfully", session)
}

func (h *Handler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := h.service.ActiveSessions(ctx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Active sessions retrieved", sessions)
}

func (h *Handler) CreateLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	lot, err := h.facility.CreateLot(ctx, req.Name, req.Address, req.TotalFloors)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccessStatus(ctx, w, http.StatusCreated, "Parking lot created successfully", lot)
}

func (h *Handler) ListLots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lots, err := h.facility.ListLots(ctx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Parking lots retrieved", lots)
}

func (h *Handler) GetLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lot, err := h.facility.GetLot(ctx, chi.URLParam(r, "lotID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Parking lot found", lot)
}

func (h *Handler) ListFloors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	floors, err := h.facility.ListFloors(ctx, chi.URLParam(r, "lotID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Floors retrieved", floors)
}

func (h *Handler) AddFloor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req AddFloorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LotID == "" || req.FloorNumber == nil {
		WriteError(ctx, w, http.StatusBadRequest, "parking_lot_id and floor_no are required")
		return
	}

	config := make(map[parking.SlotType]int, len(req.SlotConfiguration))
	for name, count := range req.SlotConfiguration {
		slotType, err := parking.ParseSlotType(name)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		config[slotType] += count
	}

	floor, err := h.facility.AddFloor(ctx, req.LotID, *req.FloorNumber, config)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccessStatus(ctx, w, http.StatusCreated, fmt.Sprintf("Floor %d added", floor.Number), floor)
}

func (h *Handler) GetFloor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	floor, err := h.facility.GetFloor(ctx, chi.URLParam(r, "floorID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Floor found", floor)
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slots, err := h.facility.ListSlots(ctx, chi.URLParam(r, "floorID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Slots retrieved", slots)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		message = "Internal server error"
	}
	WriteError(ctx, w, status, message)
}
