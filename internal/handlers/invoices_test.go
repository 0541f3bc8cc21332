package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagnostic-lab-server/internal/access"
	"diagnostic-lab-server/internal/models"
)

func seedPatient(t *testing.T, f *fixture) models.Patient {
	t.Helper()
	patient := models.Patient{FirstName: "Maria", LastName: "Gomez", NationalID: "001-1234567-8"}
	require.NoError(t, f.db.Create(&patient).Error)
	return patient
}

func TestRegisterPaymentFractionalSettlement(t *testing.T) {
	ctx := context.Background()
	f := setupFixture(t)
	patient := seedPatient(t, f)

	// 0.1+0.2 does not sum to 0.3 in raw doubles; settlement must still be
	// possible by paying exactly what the ledger itemizes.
	invoice := models.Invoice{
		PatientID: patient.ID, Number: "FAC-000900",
		Total: 0.30, Status: models.InvoiceIssued,
	}
	require.NoError(t, f.db.Create(&invoice).Error)

	recorder, _ := f.do(t, http.MethodPost, "/facturas/"+invoice.ID+"/pagos", gin.H{"amount": 0.10})
	assert.Equal(t, http.StatusOK, recorder.Code)

	ledger := access.NewLedger(f.db)
	balance, err := ledger.ComputePendingBalance(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.20, balance.PendingAmount)

	recorder, _ = f.do(t, http.MethodPost, "/facturas/"+invoice.ID+"/pagos", gin.H{"amount": 0.20})
	assert.Equal(t, http.StatusOK, recorder.Code)

	var settled models.Invoice
	require.NoError(t, f.db.First(&settled, "id = ?", invoice.ID).Error)
	assert.True(t, settled.Paid)
	assert.Equal(t, models.InvoicePaid, settled.Status)
	assert.InDelta(t, 0.30, settled.AmountPaid, 0.005)

	decision, err := access.NewGate(ledger).CanDisclose(ctx, patient.ID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// The overpayment guard still holds once settled.
	recorder, _ = f.do(t, http.MethodPost, "/facturas/"+invoice.ID+"/pagos", gin.H{"amount": 0.01})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCreateInvoiceNumberingSkipsExisting(t *testing.T) {
	f := setupFixture(t)
	patient := seedPatient(t, f)

	// A number ahead of the row count must not collide with the next create.
	existing := models.Invoice{PatientID: patient.ID, Number: "FAC-000002", Total: 100}
	require.NoError(t, f.db.Create(&existing).Error)

	recorder, envelope := f.do(t, http.MethodPost, "/facturas", gin.H{
		"patientId": patient.ID, "total": 250.0,
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	created := envelope["data"].(map[string]interface{})["invoice"].(map[string]interface{})
	assert.Equal(t, "FAC-000003", created["number"])

	recorder, envelope = f.do(t, http.MethodPost, "/facturas", gin.H{
		"patientId": patient.ID, "total": 120.0,
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	created = envelope["data"].(map[string]interface{})["invoice"].(map[string]interface{})
	assert.Equal(t, "FAC-000004", created["number"])
}
