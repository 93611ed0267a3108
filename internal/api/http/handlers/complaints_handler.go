package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-engine/internal/api/dto"
	"github.com/spec-kit/complaint-engine/internal/auth"
	"github.com/spec-kit/complaint-engine/internal/domain"
	"github.com/spec-kit/complaint-engine/internal/repository"
	"github.com/spec-kit/complaint-engine/internal/service"
	apperrors "github.com/spec-kit/complaint-engine/pkg/util"
)

// ComplaintsHandler exposes complaint lifecycle and assignment endpoints.
type ComplaintsHandler struct {
	lifecycle  *service.LifecycleService
	assignment *service.AssignmentService
	sweeper    *service.SweepService
}

// NewComplaintsHandler constructs handler.
func NewComplaintsHandler(lifecycle *service.LifecycleService, assignment *service.AssignmentService, sweeper *service.SweepService) *ComplaintsHandler {
	return &ComplaintsHandler{lifecycle: lifecycle, assignment: assignment, sweeper: sweeper}
}

// Create POST /complaints.
func (h *ComplaintsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.CustomerRef) == "" {
		return apperrors.NewValidationError("customer_ref and title required", nil)
	}

	complaint, err := h.lifecycle.Create(c.Context(), service.ComplaintDraft{
		CustomerRef: req.CustomerRef,
		CompanyRef:  req.CompanyRef,
		AreaRef:     req.AreaRef,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": complaintResponse(complaint)})
}

// List GET /complaints.
func (h *ComplaintsHandler) List(c *fiber.Ctx) error {
	filter := repository.ComplaintFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if v := c.Query("customer_id"); v != "" {
		filter.CustomerRef = &v
	}
	if v := c.Query("office_id"); v != "" {
		filter.OfficeRef = &v
	}
	if v := c.Query("assigned_to"); v != "" {
		filter.AssignedTo = &v
	}
	if v := c.Query("status"); v != "" {
		status := domain.ComplaintStatus(strings.ToUpper(v))
		if !domain.ValidStatus(status) {
			return apperrors.NewValidationError("unknown status", map[string]any{"status": v})
		}
		filter.Statuses = []domain.ComplaintStatus{status}
	}
	if v := c.Query("priority"); v != "" {
		priority := domain.ComplaintPriority(strings.ToUpper(v))
		if !domain.ValidPriority(priority) {
			return apperrors.NewValidationError("unknown priority", map[string]any{"priority": v})
		}
		filter.Priorities = []domain.ComplaintPriority{priority}
	}

	complaints, err := h.lifecycle.List(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.ComplaintResponse, 0, len(complaints))
	for i := range complaints {
		items = append(items, complaintResponse(&complaints[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /complaints/:id.
func (h *ComplaintsHandler) Get(c *fiber.Ctx) error {
	complaint, err := h.lifecycle.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintResponse(complaint)})
}

// Assign POST /complaints/:id/assign.
func (h *ComplaintsHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.StaffID == "" {
		return apperrors.NewValidationError("staff_id required", nil)
	}
	result, err := h.assignment.ManualAssign(c.Context(), c.Params("id"), req.StaffID, req.OfficeID, req.Reason, auth.ActorRef(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintResponse(result.Complaint)})
}

// Reassign POST /complaints/:id/reassign.
func (h *ComplaintsHandler) Reassign(c *fiber.Ctx) error {
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.StaffID == "" {
		return apperrors.NewValidationError("staff_id required", nil)
	}
	complaint, err := h.lifecycle.Reassign(c.Context(), c.Params("id"), req.StaffID, req.OfficeID, req.Reason, auth.ActorRef(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintResponse(complaint)})
}

// AutoAssign POST /complaints/:id/auto-assign.
func (h *ComplaintsHandler) AutoAssign(c *fiber.Ctx) error {
	result, err := h.assignment.AutoAssign(c.Context(), c.Params("id"), auth.ActorRef(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintResponse(result.Complaint)})
}

// AutoAssignBatch POST /complaints/auto-assign-batch.
func (h *ComplaintsHandler) AutoAssignBatch(c *fiber.Ctx) error {
	var req dto.AutoAssignBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.ComplaintIDs) == 0 {
		return apperrors.NewValidationError("complaint_ids required", nil)
	}
	batch := h.assignment.AutoAssignBatch(c.Context(), req.ComplaintIDs, auth.ActorRef(c))

	items := make([]dto.BatchItemResponse, 0, len(batch.Results))
	for _, item := range batch.Results {
		items = append(items, dto.BatchItemResponse{
			ComplaintID: item.ComplaintID,
			Success:     item.Success,
			StaffID:     item.StaffRef,
			ErrorCode:   item.ErrorCode,
			ErrorDetail: item.ErrorDetail,
		})
	}
	return c.JSON(fiber.Map{"data": dto.BatchResponse{
		Successful: batch.Successful,
		Failed:     batch.Failed,
		Results:    items,
	}})
}

// TransitionStatus POST /complaints/:id/status.
func (h *ComplaintsHandler) TransitionStatus(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	complaint, err := h.lifecycle.TransitionStatus(c.Context(), c.Params("id"), req.Status, auth.ActorRef(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintResponse(complaint)})
}

// Close POST /complaints/:id/close.
func (h *ComplaintsHandler) Close(c *fiber.Ctx) error {
	complaint, err := h.lifecycle.Close(c.Context(), c.Params("id"), auth.ActorRef(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintResponse(complaint)})
}

// History GET /complaints/:id/history.
func (h *ComplaintsHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	offset := c.QueryInt("offset", 0)
	entries, err := h.lifecycle.ListHistory(c.Context(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.HistoryEntryResponse{
			ID:         entry.ID,
			ActorRef:   entry.ActorRef,
			ChangeType: entry.ChangeType,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			Reason:     entry.Reason,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// SLAStats GET /sla/stats.
func (h *ComplaintsHandler) SLAStats(c *fiber.Ctx) error {
	var officeRef *string
	if office := c.Query("office_id"); office != "" {
		officeRef = &office
	}
	stats, err := h.sweeper.Stats(c.Context(), officeRef)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.SLAStatsResponse{
		TotalAssigned:  stats.TotalAssigned,
		SLAMet:         stats.SLAMet,
		SLABreached:    stats.SLABreached,
		ComplianceRate: stats.ComplianceRate,
		TotalPenalties: stats.TotalPenalties.String(),
	}})
}

func complaintResponse(complaint *domain.Complaint) dto.ComplaintResponse {
	return dto.ComplaintResponse{
		ID:             complaint.ID,
		CustomerRef:    complaint.CustomerRef,
		CompanyRef:     complaint.CompanyRef,
		AreaRef:        complaint.AreaRef,
		Title:          complaint.Title,
		Description:    complaint.Description,
		Priority:       complaint.Priority,
		Status:         complaint.Status,
		AssignedTo:     complaint.AssignedTo,
		OfficeRef:      complaint.OfficeRef,
		AssignedAt:     complaint.AssignedAt,
		SLADeadline:    complaint.SLADeadline,
		SLAStatus:      complaint.SLAStatus,
		PenaltyApplied: complaint.PenaltyApplied,
		PenaltyAmount:  complaint.PenaltyAmount.String(),
		CreatedAt:      complaint.CreatedAt,
		ClosedAt:       complaint.ClosedAt,
	}
}
