package models

import (
	"time"
)

// InvoiceStatus represents the payment status of an invoice
type InvoiceStatus string

const (
	InvoiceDraft    InvoiceStatus = "draft"
	InvoiceIssued   InvoiceStatus = "issued"
	InvoicePaid     InvoiceStatus = "paid"
	InvoiceAnnulled InvoiceStatus = "annulled"
)

// Invoice is a billing document for one or more studies. Besides payment
// tracking it optionally grants patient self-service access to results via a
// QR token or a per-invoice username/password pair.
type Invoice struct {
	BaseModel
	PatientID     string        `gorm:"size:36;index;not null" json:"patientId"`
	AppointmentID *string       `gorm:"size:36;index" json:"appointmentId,omitempty"`
	Number        string        `gorm:"uniqueIndex;size:30;not null" json:"number"`
	Total         float64       `gorm:"not null;default:0" json:"total"`
	AmountPaid    float64       `gorm:"not null;default:0" json:"amountPaid"`
	Paid          bool          `gorm:"default:false" json:"paid"`
	Status        InvoiceStatus `gorm:"size:20;default:'draft'" json:"status"`

	// Portal access. The QR token is opaque and issued once; the credential
	// pair is a legacy mechanism kept behind access.CredentialVerifier.
	QRToken        *string `gorm:"uniqueIndex;size:64" json:"-"`
	PortalUsername *string `gorm:"size:64;index" json:"-"`
	PortalPassword *string `gorm:"size:64" json:"-"`

	// Relations
	Patient     Patient      `gorm:"foreignKey:PatientID" json:"-"`
	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
}

// Outstanding returns the unpaid remainder of the invoice, floored at zero.
func (i *Invoice) Outstanding() float64 {
	outstanding := i.Total - i.AmountPaid
	if outstanding < 0 {
		return 0
	}
	return outstanding
}

// InvoiceSummary is the denormalized invoice view that lookup responses embed.
type InvoiceSummary struct {
	ID     string        `json:"id"`
	Number string        `json:"number"`
	Date   time.Time     `json:"date"`
	Total  float64       `json:"total"`
	Status InvoiceStatus `json:"status"`
}

// Summary returns the embeddable summary for API responses.
func (i *Invoice) Summary() InvoiceSummary {
	return InvoiceSummary{
		ID:     i.ID,
		Number: i.Number,
		Date:   i.CreatedAt,
		Total:  i.Total,
		Status: i.Status,
	}
}
