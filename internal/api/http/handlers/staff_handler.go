package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-engine/internal/api/dto"
	"github.com/spec-kit/complaint-engine/internal/domain"
	"github.com/spec-kit/complaint-engine/internal/service"
)

// StaffHandler exposes staff workload endpoints.
type StaffHandler struct {
	assignment *service.AssignmentService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(assignment *service.AssignmentService) *StaffHandler {
	return &StaffHandler{assignment: assignment}
}

// AvailableStaff GET /offices/:id/available-staff.
func (h *StaffHandler) AvailableStaff(c *fiber.Ctx) error {
	staffList, err := h.assignment.AvailableStaff(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.StaffWithWorkloadResponse, 0, len(staffList))
	for _, entry := range staffList {
		items = append(items, staffWithWorkloadResponse(entry))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Workload GET /staff/:id/workload.
func (h *StaffHandler) Workload(c *fiber.Ctx) error {
	entry, err := h.assignment.StaffWorkload(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffWithWorkloadResponse(*entry)})
}

func staffWithWorkloadResponse(entry domain.StaffWithWorkload) dto.StaffWithWorkloadResponse {
	return dto.StaffWithWorkloadResponse{
		ID:       entry.Staff.ID,
		Name:     entry.Staff.Name,
		Role:     entry.Staff.Role,
		OfficeID: entry.Staff.OfficeRef,
		Capacity: entry.Staff.Capacity,
		Workload: dto.WorkloadResponse{
			StaffID:        entry.Workload.StaffRef,
			ActiveCount:    entry.Workload.ActiveCount,
			TodayCount:     entry.Workload.TodayCount,
			CompletedCount: entry.Workload.CompletedCount,
		},
	}
}
