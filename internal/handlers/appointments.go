package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"diagnostic-lab-server/internal/catalog"
	"diagnostic-lab-server/internal/middleware"
	"diagnostic-lab-server/internal/models"
	"diagnostic-lab-server/internal/utils"
)

// AppointmentHandler handles lab appointment requests.
type AppointmentHandler struct {
	DB          *gorm.DB
	Snapshotter *catalog.Snapshotter
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB, snapshotter *catalog.Snapshotter) *AppointmentHandler {
	return &AppointmentHandler{DB: db, Snapshotter: snapshotter}
}

// CreateAppointmentRequest represents the request body for booking a visit.
type CreateAppointmentRequest struct {
	PatientID string                    `json:"patientId" binding:"required,uuid"`
	Date      time.Time                 `json:"date" binding:"required"`
	Studies   []catalog.LineItemRequest `json:"studies" binding:"required,min=1"`
	Notes     string                    `json:"notes"`
}

// CreateAppointment books a lab visit. Each requested study is resolved
// against the catalog and its price/discount frozen onto the appointment, so
// later catalog edits cannot change what this visit bills.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	// Verify patient exists
	var patient models.Patient
	if err := h.DB.First(&patient, "id = ?", req.PatientID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Patient not found with id: "+req.PatientID)
		} else {
			utils.InternalServerError(c, "Database error verifying patient: "+err.Error())
		}
		return
	}

	lineItems, err := h.Snapshotter.Snapshot(c.Request.Context(), req.Studies)
	if err != nil {
		utils.InternalServerError(c, "Failed to resolve studies: "+err.Error())
		return
	}

	createdBy, _ := middleware.GetUserIDFromContext(c)
	appointment := models.Appointment{
		PatientID:   req.PatientID,
		Date:        req.Date,
		Status:      models.AppointmentScheduled,
		Notes:       req.Notes,
		CreatedByID: createdBy,
		LineItems:   lineItems,
	}

	if err := h.DB.Create(&appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to create appointment: "+err.Error())
		return
	}

	if err := h.DB.Preload("LineItems.Study").First(&appointment, "id = ?", appointment.ID).Error; err != nil {
		utils.InternalServerError(c, "Failed to reload appointment: "+err.Error())
		return
	}

	utils.Created(c, "Appointment created successfully", gin.H{
		"appointment": appointment,
		"patient":     patient.Summary(),
		"total":       catalog.Total(appointment.LineItems),
	})
}

// GetAppointments lists appointments with optional filters.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	q := h.DB.Model(&models.Appointment{})

	if patientID := c.Query("patientId"); patientID != "" {
		q = q.Where("patient_id = ?", patientID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if date := c.Query("date"); date != "" {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			utils.BadRequest(c, "Invalid date format. Use YYYY-MM-DD")
			return
		}
		q = q.Where("date >= ? AND date < ?", day, day.AddDate(0, 0, 1))
	}

	var appointments []models.Appointment
	if err := q.Preload("Patient").Preload("LineItems.Study").Order("date desc").Find(&appointments).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointmentByID fetches a single appointment with its line items.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointmentID := c.Param("id")

	var appointment models.Appointment
	if err := h.DB.Preload("Patient").Preload("LineItems.Study").First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Appointment not found with id: "+appointmentID)
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	utils.Success(c, "Appointment fetched successfully", gin.H{
		"appointment": appointment,
		"patient":     appointment.Patient.Summary(),
		"total":       catalog.Total(appointment.LineItems),
	})
}

// UpdateAppointmentStatusRequest represents the request body for a status change.
type UpdateAppointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required,oneof=scheduled completed cancelled"`
	Reason string                   `json:"reason"`
}

// UpdateAppointmentStatus changes the appointment status. Appointments are
// never deleted; cancellation records who and why.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	appointmentID := c.Param("id")

	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var appointment models.Appointment
	if err := h.DB.First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Appointment not found with id: "+appointmentID)
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	modifiedBy, _ := middleware.GetUserIDFromContext(c)
	appointment.Status = req.Status
	appointment.ModifiedByID = modifiedBy
	if req.Status == models.AppointmentCancelled {
		reason := req.Reason
		if reason == "" {
			reason = "No reason given"
		}
		appointment.CancellationReason = reason
	}

	if err := h.DB.Save(&appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to update appointment: "+err.Error())
		return
	}

	utils.Success(c, "Appointment status updated successfully", appointment)
}
