package access

import (
	"context"
	"math"

	"gorm.io/gorm"

	"diagnostic-lab-server/internal/models"
)

// PendingInvoice is one itemized row of a patient's unpaid balance. The JSON
// keys match what portal and desktop consumers already render.
type PendingInvoice struct {
	ID          string               `json:"id"`
	Number      string               `json:"numero"`
	Total       float64              `json:"total"`
	Paid        float64              `json:"pagado"`
	Outstanding float64              `json:"pendiente"`
	Status      models.InvoiceStatus `json:"estado"`
}

// PendingBalance aggregates a patient's open invoices.
type PendingBalance struct {
	PendingAmount   float64          `json:"monto_pendiente"`
	PendingInvoices []PendingInvoice `json:"facturas_pendientes"`
}

// Ledger aggregates invoices into a pending-balance figure. It performs no
// writes, holds no cache, and is safe for concurrent use: every call re-reads
// current invoice state.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a Ledger backed by db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// ComputePendingBalance selects the patient's invoices that are unpaid or
// still draft/issued, excluding annulled ones, and sums each positive
// outstanding amount. Fully covered invoices contribute nothing even if
// their paid flag is stale. Amounts are rounded to the currency's minor
// unit and nothing else.
func (l *Ledger) ComputePendingBalance(ctx context.Context, patientID string) (*PendingBalance, error) {
	var invoices []models.Invoice
	err := l.db.WithContext(ctx).
		Where("patient_id = ? AND status <> ?", patientID, models.InvoiceAnnulled).
		Where("paid = ? OR status IN ?", false, []models.InvoiceStatus{models.InvoiceDraft, models.InvoiceIssued}).
		Order("created_at").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}

	balance := &PendingBalance{PendingInvoices: []PendingInvoice{}}
	for _, invoice := range invoices {
		outstanding := roundToCents(invoice.Outstanding())
		if outstanding > 0 {
			balance.PendingAmount = roundToCents(balance.PendingAmount + outstanding)
		}
		balance.PendingInvoices = append(balance.PendingInvoices, PendingInvoice{
			ID:          invoice.ID,
			Number:      invoice.Number,
			Total:       invoice.Total,
			Paid:        invoice.AmountPaid,
			Outstanding: outstanding,
			Status:      invoice.Status,
		})
	}
	return balance, nil
}

func roundToCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
