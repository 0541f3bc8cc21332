package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"diagnostic-lab-server/internal/models"
)

func createInvoice(t *testing.T, db *gorm.DB, invoice models.Invoice) models.Invoice {
	t.Helper()
	require.NoError(t, db.Create(&invoice).Error)
	return invoice
}

func TestLedgerComputePendingBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("sums only positive outstanding amounts", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)

		createInvoice(t, db, models.Invoice{
			PatientID: patient.ID, Number: "FAC-000001",
			Total: 1000, AmountPaid: 1000, Paid: true, Status: models.InvoicePaid,
		})
		partial := createInvoice(t, db, models.Invoice{
			PatientID: patient.ID, Number: "FAC-000002",
			Total: 500, AmountPaid: 200, Status: models.InvoiceIssued,
		})

		balance, err := NewLedger(db).ComputePendingBalance(ctx, patient.ID)
		require.NoError(t, err)
		assert.Equal(t, 300.0, balance.PendingAmount)
		require.Len(t, balance.PendingInvoices, 1)
		assert.Equal(t, partial.ID, balance.PendingInvoices[0].ID)
		assert.Equal(t, "FAC-000002", balance.PendingInvoices[0].Number)
		assert.Equal(t, 300.0, balance.PendingInvoices[0].Outstanding)
	})

	t.Run("annulled invoices never count", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)

		createInvoice(t, db, models.Invoice{
			PatientID: patient.ID, Number: "FAC-000003",
			Total: 800, AmountPaid: 0, Status: models.InvoiceAnnulled,
		})

		balance, err := NewLedger(db).ComputePendingBalance(ctx, patient.ID)
		require.NoError(t, err)
		assert.Zero(t, balance.PendingAmount)
		assert.Empty(t, balance.PendingInvoices)
	})

	t.Run("stale paid flag on a covered invoice contributes nothing", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)

		createInvoice(t, db, models.Invoice{
			PatientID: patient.ID, Number: "FAC-000004",
			Total: 250, AmountPaid: 250, Paid: false, Status: models.InvoiceIssued,
		})

		balance, err := NewLedger(db).ComputePendingBalance(ctx, patient.ID)
		require.NoError(t, err)
		assert.Zero(t, balance.PendingAmount)
		// The row is still itemized so staff can spot the stale flag.
		require.Len(t, balance.PendingInvoices, 1)
		assert.Zero(t, balance.PendingInvoices[0].Outstanding)
	})

	t.Run("overpaid invoices floor at zero", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)

		createInvoice(t, db, models.Invoice{
			PatientID: patient.ID, Number: "FAC-000005",
			Total: 100, AmountPaid: 150, Paid: false, Status: models.InvoiceIssued,
		})
		createInvoice(t, db, models.Invoice{
			PatientID: patient.ID, Number: "FAC-000006",
			Total: 100, AmountPaid: 40, Status: models.InvoiceIssued,
		})

		balance, err := NewLedger(db).ComputePendingBalance(ctx, patient.ID)
		require.NoError(t, err)
		assert.Equal(t, 60.0, balance.PendingAmount)
	})

	t.Run("other patients' invoices are ignored", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)

		other := models.Patient{FirstName: "Luis", LastName: "Perez", NationalID: "002-7654321-8"}
		require.NoError(t, db.Create(&other).Error)
		createInvoice(t, db, models.Invoice{
			PatientID: other.ID, Number: "FAC-000007",
			Total: 999, Status: models.InvoiceIssued,
		})

		balance, err := NewLedger(db).ComputePendingBalance(ctx, patient.ID)
		require.NoError(t, err)
		assert.Zero(t, balance.PendingAmount)
	})
}

func TestGateCanDisclose(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	patient := createPatient(t, db)

	invoice := createInvoice(t, db, models.Invoice{
		PatientID: patient.ID, Number: "FAC-000008",
		Total: 500, AmountPaid: 200, Status: models.InvoiceIssued,
	})

	gate := NewGate(NewLedger(db))

	decision, err := gate.CanDisclose(ctx, patient.ID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 300.0, decision.PendingAmount)
	require.Len(t, decision.PendingInvoices, 1)

	// Cover the balance and the very next check flips, no cache in between.
	err = db.Model(&invoice).Updates(map[string]interface{}{
		"amount_paid": 500.0, "paid": true, "status": models.InvoicePaid,
	}).Error
	require.NoError(t, err)

	decision, err = gate.CanDisclose(ctx, patient.ID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Zero(t, decision.PendingAmount)
}
