package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"diagnostic-lab-server/internal/access"
	"diagnostic-lab-server/internal/middleware"
	"diagnostic-lab-server/internal/models"
	"diagnostic-lab-server/internal/results"
	"diagnostic-lab-server/internal/utils"
)

// ResultHandler handles the staff-facing result lifecycle.
type ResultHandler struct {
	DB       *gorm.DB
	Store    *results.Store
	Resolver *access.Resolver
	Gate     *access.Gate
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(db *gorm.DB, store *results.Store, resolver *access.Resolver, gate *access.Gate) *ResultHandler {
	return &ResultHandler{DB: db, Store: store, Resolver: resolver, Gate: gate}
}

// CreateResultRequest represents the request body for registering a sample.
type CreateResultRequest struct {
	PatientID     string `json:"patientId" binding:"required,uuid"`
	StudyID       string `json:"studyId" binding:"required,uuid"`
	AppointmentID string `json:"appointmentId" binding:"omitempty,uuid"`
	InvoiceID     string `json:"invoiceId" binding:"omitempty,uuid"`
	SampleCode    string `json:"sampleCode" binding:"required"`
}

// CreateResult registers a new draft result when sample processing begins.
func (h *ResultHandler) CreateResult(c *gin.Context) {
	var req CreateResultRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var patient models.Patient
	if err := h.DB.First(&patient, "id = ?", req.PatientID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Patient not found with id: "+req.PatientID)
		} else {
			utils.InternalServerError(c, "Database error verifying patient: "+err.Error())
		}
		return
	}
	var study models.Study
	if err := h.DB.First(&study, "id = ?", req.StudyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Study not found with id: "+req.StudyID)
		} else {
			utils.InternalServerError(c, "Database error verifying study: "+err.Error())
		}
		return
	}

	performedBy, _ := middleware.GetUserIDFromContext(c)
	result := models.Result{
		PatientID:     req.PatientID,
		StudyID:       req.StudyID,
		SampleCode:    req.SampleCode,
		Status:        models.ResultDraft,
		PerformedByID: performedBy,
	}
	if req.AppointmentID != "" {
		result.AppointmentID = &req.AppointmentID
	}
	if req.InvoiceID != "" {
		result.InvoiceID = &req.InvoiceID
	}

	if err := h.Store.Create(c.Request.Context(), &result); err != nil {
		utils.InternalServerError(c, "Failed to create result: "+err.Error())
		return
	}

	utils.Created(c, "Result created successfully", result)
}

// GetResults lists results with filters. Annulled results only appear when a
// staff caller asks for them explicitly.
func (h *ResultHandler) GetResults(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	filter := results.Filter{
		PatientID:       c.Query("patientId"),
		AppointmentID:   c.Query("appointmentId"),
		InvoiceID:       c.Query("invoiceId"),
		Status:          models.ResultStatus(c.Query("status")),
		SampleCode:      c.Query("sampleCode"),
		IncludeAnnulled: c.Query("includeAnnulled") == "true",
		Page:            page,
		Limit:           limit,
	}

	list, total, err := h.Store.List(c.Request.Context(), filter)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch results: "+err.Error())
		return
	}

	utils.Success(c, "Results fetched successfully", gin.H{
		"count":   len(list),
		"total":   total,
		"page":    page,
		"results": list,
	})
}

// GetResultByID resolves a result by internal id with its full context
// (staff use): patient, invoice and appointment detail.
func (h *ResultHandler) GetResultByID(c *gin.Context) {
	resultID := c.Param("id")

	resolved, err := h.Resolver.ByResultID(c.Request.Context(), resultID)
	if err != nil {
		if access.IsNotFound(err) {
			utils.NotFound(c, err.Error())
		} else {
			utils.InternalServerError(c, "Failed to resolve result: "+err.Error())
		}
		return
	}

	response := gin.H{
		"result":  resolved.Result,
		"patient": resolved.Patient.Summary(),
	}
	if resolved.Invoice != nil {
		response["invoice"] = resolved.Invoice.Summary()
	}
	if resolved.Appointment != nil {
		response["appointment"] = resolved.Appointment
	}

	utils.Success(c, "Result fetched successfully", response)
}

// UpdateResultRequest represents the request body for a partial result update.
type UpdateResultRequest struct {
	Status         *models.ResultStatus `json:"status" binding:"omitempty,oneof=draft completed delivered annulled"`
	Interpretation *string              `json:"interpretation"`
	Conclusion     *string              `json:"conclusion"`
	SampleCode     *string              `json:"sampleCode"`
}

// UpdateResult applies a partial update to a result.
func (h *ResultHandler) UpdateResult(c *gin.Context) {
	resultID := c.Param("id")

	var req UpdateResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	updated, err := h.Store.Update(c.Request.Context(), resultID, results.UpdateParams{
		Status:         req.Status,
		Interpretation: req.Interpretation,
		Conclusion:     req.Conclusion,
		SampleCode:     req.SampleCode,
	})
	if err != nil {
		if access.IsNotFound(err) {
			utils.NotFound(c, "Result not found with id: "+resultID)
		} else {
			utils.InternalServerError(c, "Failed to update result: "+err.Error())
		}
		return
	}

	utils.Success(c, "Result updated successfully", updated)
}

// ValidateResultRequest represents the request body for result validation.
type ValidateResultRequest struct {
	Interpretation string `json:"interpretation" binding:"required"`
	Conclusion     string `json:"conclusion"`
}

// ValidateResult marks a result completed with the validator's
// interpretation and conclusion. Re-validation overwrites: last writer wins.
func (h *ResultHandler) ValidateResult(c *gin.Context) {
	resultID := c.Param("id")

	var req ValidateResultRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	validatorID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "Validator ID not found in token")
		return
	}

	validated, err := h.Store.Validate(c.Request.Context(), resultID, req.Interpretation, req.Conclusion, validatorID)
	if err != nil {
		if access.IsNotFound(err) {
			utils.NotFound(c, "Result not found with id: "+resultID)
		} else {
			utils.InternalServerError(c, "Failed to validate result: "+err.Error())
		}
		return
	}

	utils.Success(c, "Result validated successfully", validated)
}

// MarkPrinted records a print of the result. The disclosure gate is consulted
// first: with an outstanding balance the print is refused and the counter is
// not touched.
func (h *ResultHandler) MarkPrinted(c *gin.Context) {
	resultID := c.Param("id")

	result, err := h.Store.ByID(c.Request.Context(), resultID)
	if err != nil {
		if access.IsNotFound(err) {
			utils.NotFound(c, "Result not found with id: "+resultID)
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	decision, err := h.Gate.CanDisclose(c.Request.Context(), result.PatientID)
	if err != nil {
		utils.InternalServerError(c, "Failed to check payment status: "+err.Error())
		return
	}
	if !decision.Allowed {
		utils.PaymentBlocked(c, "Printing is blocked until the pending balance is settled", decision)
		return
	}

	printed, err := h.Store.MarkPrinted(c.Request.Context(), resultID)
	if err != nil {
		utils.InternalServerError(c, "Failed to mark result as printed: "+err.Error())
		return
	}

	utils.Success(c, "Result marked as printed", printed)
}

// MarkDelivered records that the result was handed to the patient.
func (h *ResultHandler) MarkDelivered(c *gin.Context) {
	resultID := c.Param("id")

	delivered, err := h.Store.MarkDelivered(c.Request.Context(), resultID)
	if err != nil {
		if access.IsNotFound(err) {
			utils.NotFound(c, "Result not found with id: "+resultID)
		} else {
			utils.InternalServerError(c, "Failed to mark result as delivered: "+err.Error())
		}
		return
	}

	utils.Success(c, "Result marked as delivered", delivered)
}

// DeleteResult hard-removes a result. Staff correction workflows only.
func (h *ResultHandler) DeleteResult(c *gin.Context) {
	resultID := c.Param("id")

	if err := h.Store.Delete(c.Request.Context(), resultID); err != nil {
		if access.IsNotFound(err) {
			utils.NotFound(c, "Result not found with id: "+resultID)
		} else {
			utils.InternalServerError(c, "Failed to delete result: "+err.Error())
		}
		return
	}

	utils.Success(c, "Result deleted successfully", nil)
}

// VerifyPayment is the standalone disclosure-gate query for a result. A
// negative decision is a normal 200 response with the itemized reason, not
// an error; UIs call it before offering the print button.
func (h *ResultHandler) VerifyPayment(c *gin.Context) {
	resultID := c.Param("id")

	result, err := h.Store.ByID(c.Request.Context(), resultID)
	if err != nil {
		if access.IsNotFound(err) {
			utils.NotFound(c, "Result not found with id: "+resultID)
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	decision, err := h.Gate.CanDisclose(c.Request.Context(), result.PatientID)
	if err != nil {
		utils.InternalServerError(c, "Failed to compute pending balance: "+err.Error())
		return
	}

	utils.Success(c, "Payment status verified", gin.H{
		"puede_imprimir":      decision.Allowed,
		"monto_pendiente":     decision.PendingAmount,
		"facturas_pendientes": decision.PendingInvoices,
		"paciente": gin.H{
			"nombre":   result.Patient.FirstName,
			"apellido": result.Patient.LastName,
		},
	})
}
