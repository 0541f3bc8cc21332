package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"diagnostic-lab-server/internal/access"
	"diagnostic-lab-server/internal/config"
	"diagnostic-lab-server/internal/models"
	"diagnostic-lab-server/internal/utils"
)

// InvoiceHandler handles billing requests.
type InvoiceHandler struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Resolver *access.Resolver
	Ledger   *access.Ledger
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(db *gorm.DB, cfg *config.Config, resolver *access.Resolver, ledger *access.Ledger) *InvoiceHandler {
	return &InvoiceHandler{DB: db, Cfg: cfg, Resolver: resolver, Ledger: ledger}
}

const invoiceNumberRetries = 3

// nextInvoiceNumber returns the sequence after the highest number already
// issued under the configured prefix. Numbers are zero-padded to a fixed
// width, so the lexicographic max is the numeric max.
func (h *InvoiceHandler) nextInvoiceNumber() (string, error) {
	prefix := h.Cfg.InvoicePrefix + "-"

	var last string
	err := h.DB.Model(&models.Invoice{}).
		Select("number").
		Where("number LIKE ?", prefix+"%").
		Order("number desc").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return "", err
	}

	seq := 1
	if last != "" {
		if n, err := strconv.Atoi(strings.TrimPrefix(last, prefix)); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%06d", prefix, seq), nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint")
}

// CreateInvoiceRequest represents the request body for issuing an invoice.
type CreateInvoiceRequest struct {
	PatientID     string  `json:"patientId" binding:"required,uuid"`
	AppointmentID string  `json:"appointmentId" binding:"omitempty,uuid"`
	Total         float64 `json:"total" binding:"required,gt=0"`
	Issue         bool    `json:"issue"`
}

// CreateInvoice creates a draft (or directly issued) invoice for a patient,
// optionally tied to an appointment.
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
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

	invoice := models.Invoice{
		PatientID: req.PatientID,
		Total:     req.Total,
		Status:    models.InvoiceDraft,
	}
	if req.Issue {
		invoice.Status = models.InvoiceIssued
	}
	if req.AppointmentID != "" {
		var appointment models.Appointment
		if err := h.DB.First(&appointment, "id = ?", req.AppointmentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.NotFound(c, "Appointment not found with id: "+req.AppointmentID)
			} else {
				utils.InternalServerError(c, "Database error verifying appointment: "+err.Error())
			}
			return
		}
		invoice.AppointmentID = &appointment.ID
	}

	// Numbering derives from the highest existing sequence. A concurrent
	// create landing on the same number loses the unique-index race and is
	// retried with a fresh sequence.
	var createErr error
	for attempt := 0; attempt < invoiceNumberRetries; attempt++ {
		number, err := h.nextInvoiceNumber()
		if err != nil {
			utils.InternalServerError(c, "Failed to number invoice: "+err.Error())
			return
		}
		invoice.Number = number
		if createErr = h.DB.Create(&invoice).Error; createErr == nil || !isDuplicateKey(createErr) {
			break
		}
	}
	if createErr != nil {
		utils.InternalServerError(c, "Failed to create invoice: "+createErr.Error())
		return
	}

	utils.Created(c, "Invoice created successfully", gin.H{
		"invoice": invoice,
		"patient": patient.Summary(),
	})
}

// GetInvoices lists invoices with optional filters.
func (h *InvoiceHandler) GetInvoices(c *gin.Context) {
	q := h.DB.Model(&models.Invoice{})
	if patientID := c.Query("patientId"); patientID != "" {
		q = q.Where("patient_id = ?", patientID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var invoices []models.Invoice
	if err := q.Preload("Patient").Order("created_at desc").Find(&invoices).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch invoices: "+err.Error())
		return
	}

	utils.Success(c, "Invoices fetched successfully", invoices)
}

// GetInvoiceByID fetches one invoice with its pending balance context.
func (h *InvoiceHandler) GetInvoiceByID(c *gin.Context) {
	invoiceID := c.Param("id")

	var invoice models.Invoice
	if err := h.DB.Preload("Patient").First(&invoice, "id = ?", invoiceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Invoice not found with id: "+invoiceID)
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	utils.Success(c, "Invoice fetched successfully", gin.H{
		"invoice":     invoice,
		"patient":     invoice.Patient.Summary(),
		"outstanding": invoice.Outstanding(),
	})
}

// RegisterPaymentRequest represents the request body for recording a payment.
type RegisterPaymentRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Method string  `json:"method"`
}

// RegisterPayment records a (possibly partial) payment against an invoice as
// an atomic SQL increment. Two concurrent partial payments never lose one,
// and the guard keeps amount-paid from exceeding the total.
func (h *InvoiceHandler) RegisterPayment(c *gin.Context) {
	invoiceID := c.Param("id")

	var req RegisterPaymentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var invoice models.Invoice
	if err := h.DB.First(&invoice, "id = ?", invoiceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Invoice not found with id: "+invoiceID)
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}
	if invoice.Status == models.InvoiceAnnulled {
		utils.BadRequest(c, "Cannot register a payment against an annulled invoice")
		return
	}

	// Guard and increment at cent precision. Raw float sums can land a hair
	// above the total (0.1+0.2), which would refuse the exact amount the
	// ledger itemizes as outstanding.
	tx := h.DB.Model(&models.Invoice{}).
		Where("id = ? AND ROUND(amount_paid + ?, 2) <= ROUND(total, 2)", invoiceID, req.Amount).
		Update("amount_paid", gorm.Expr("ROUND(amount_paid + ?, 2)", req.Amount))
	if tx.Error != nil {
		utils.InternalServerError(c, "Failed to register payment: "+tx.Error.Error())
		return
	}
	if tx.RowsAffected == 0 {
		utils.BadRequest(c, "Payment exceeds the invoice's outstanding amount")
		return
	}

	// Flip the paid flag once the increment covers the total. Conditional on
	// stored state, so a racing payment cannot mark a short invoice paid.
	if err := h.DB.Model(&models.Invoice{}).
		Where("id = ? AND ROUND(amount_paid, 2) >= ROUND(total, 2)", invoiceID).
		Updates(map[string]interface{}{"paid": true, "status": models.InvoicePaid}).Error; err != nil {
		utils.InternalServerError(c, "Failed to settle invoice: "+err.Error())
		return
	}

	if err := h.DB.First(&invoice, "id = ?", invoiceID).Error; err != nil {
		utils.InternalServerError(c, "Failed to reload invoice: "+err.Error())
		return
	}

	utils.Success(c, "Payment registered successfully", gin.H{
		"invoice":     invoice,
		"outstanding": invoice.Outstanding(),
	})
}

// AnnulInvoice voids an invoice. Annulled invoices never count toward a
// patient's pending balance.
func (h *InvoiceHandler) AnnulInvoice(c *gin.Context) {
	invoiceID := c.Param("id")

	tx := h.DB.Model(&models.Invoice{}).
		Where("id = ?", invoiceID).
		Update("status", models.InvoiceAnnulled)
	if tx.Error != nil {
		utils.InternalServerError(c, "Failed to annul invoice: "+tx.Error.Error())
		return
	}
	if tx.RowsAffected == 0 {
		utils.NotFound(c, "Invoice not found with id: "+invoiceID)
		return
	}

	utils.Success(c, "Invoice annulled successfully", nil)
}

// IssuePortalAccess generates the patient self-service credentials for an
// invoice: an opaque QR token plus a username/password pair. Re-issuing
// replaces the credentials; the previous ones stop working.
func (h *InvoiceHandler) IssuePortalAccess(c *gin.Context) {
	invoiceID := c.Param("id")

	var invoice models.Invoice
	if err := h.DB.First(&invoice, "id = ?", invoiceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Invoice not found with id: "+invoiceID)
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	token := uuid.New().String()
	username := strings.ToLower(invoice.Number)
	password := strings.ReplaceAll(uuid.New().String(), "-", "")[:10]

	invoice.QRToken = &token
	invoice.PortalUsername = &username
	invoice.PortalPassword = &password
	if err := h.DB.Save(&invoice).Error; err != nil {
		utils.InternalServerError(c, "Failed to issue portal access: "+err.Error())
		return
	}

	utils.Success(c, "Portal access issued successfully", gin.H{
		"qrToken":  token,
		"username": username,
		"password": password,
	})
}

// GetInvoiceByNumber resolves an invoice number or legacy 24-hex id and
// returns the invoice with its portal credentials (staff re-issuance needs
// them) plus the result list scoped to the invoice's appointment.
func (h *InvoiceHandler) GetInvoiceByNumber(c *gin.Context) {
	value := c.Param("value")

	resolved, err := h.Resolver.ByInvoiceNumber(c.Request.Context(), value)
	if err != nil {
		if access.IsNotFound(err) {
			utils.NotFound(c, err.Error())
		} else {
			utils.InternalServerError(c, "Failed to resolve invoice: "+err.Error())
		}
		return
	}

	scoped, err := h.Resolver.ScopedResults(c.Request.Context(), resolved.Scope)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch results: "+err.Error())
		return
	}

	invoice := resolved.Invoice
	response := gin.H{
		"invoice": invoice.Summary(),
		"patient": resolved.Patient.Summary(),
		"count":   len(scoped),
		"results": scoped,
	}
	if invoice.QRToken != nil {
		response["qrToken"] = *invoice.QRToken
	}
	if invoice.PortalUsername != nil {
		response["portalUsername"] = *invoice.PortalUsername
	}
	if invoice.PortalPassword != nil {
		response["portalPassword"] = *invoice.PortalPassword
	}

	utils.Success(c, "Invoice fetched successfully", response)
}
