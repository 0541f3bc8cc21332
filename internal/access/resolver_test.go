package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"diagnostic-lab-server/internal/models"
)

func newResolver(db *gorm.DB) *Resolver {
	return NewResolver(db, NewPlaintextVerifier(db))
}

func createResult(t *testing.T, db *gorm.DB, result models.Result) models.Result {
	t.Helper()
	require.NoError(t, db.Create(&result).Error)
	return result
}

func TestResolverBySampleCode(t *testing.T) {
	ctx := context.Background()

	t.Run("digit-only code prefers the L-prefixed record", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)
		study := createStudy(t, db)

		prefixed := createResult(t, db, models.Result{
			PatientID: patient.ID, StudyID: study.ID, SampleCode: "L12345",
		})
		createResult(t, db, models.Result{
			PatientID: patient.ID, StudyID: study.ID, SampleCode: "12345",
		})

		resolved, err := newResolver(db).BySampleCode(ctx, "12345")
		require.NoError(t, err)
		assert.Equal(t, prefixed.ID, resolved.Result.ID)
		assert.Equal(t, "L12345", resolved.Result.SampleCode)
		assert.Equal(t, patient.ID, resolved.Patient.ID)
	})

	t.Run("digit-only code falls back to the literal record", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)
		study := createStudy(t, db)

		literal := createResult(t, db, models.Result{
			PatientID: patient.ID, StudyID: study.ID, SampleCode: "99887",
		})

		resolved, err := newResolver(db).BySampleCode(ctx, "99887")
		require.NoError(t, err)
		assert.Equal(t, literal.ID, resolved.Result.ID)
	})

	t.Run("non-digit code is looked up literally only", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)
		study := createStudy(t, db)

		// If a second prefix were prepended this lookup would miss.
		record := createResult(t, db, models.Result{
			PatientID: patient.ID, StudyID: study.ID, SampleCode: "L12345",
		})

		resolved, err := newResolver(db).BySampleCode(ctx, "L12345")
		require.NoError(t, err)
		assert.Equal(t, record.ID, resolved.Result.ID)
	})

	t.Run("miss names the code the caller used", func(t *testing.T) {
		db := setupTestDB(t)

		_, err := newResolver(db).BySampleCode(ctx, "42")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "42")
	})
}

func TestResolverByQRCode(t *testing.T) {
	ctx := context.Background()

	t.Run("invoice with appointment yields the union scope", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)
		study := createStudy(t, db)

		appointment := models.Appointment{PatientID: patient.ID, Date: time.Now()}
		require.NoError(t, db.Create(&appointment).Error)

		token := "Q-ABC"
		invoice := models.Invoice{
			PatientID: patient.ID, AppointmentID: &appointment.ID,
			Number: "FAC-000001", Total: 500, Status: models.InvoiceIssued, QRToken: &token,
		}
		require.NoError(t, db.Create(&invoice).Error)

		tagged := createResult(t, db, models.Result{
			PatientID: patient.ID, StudyID: study.ID, SampleCode: "L1", InvoiceID: &invoice.ID,
		})
		viaAppointment := createResult(t, db, models.Result{
			PatientID: patient.ID, StudyID: study.ID, SampleCode: "L2", AppointmentID: &appointment.ID,
		})
		createResult(t, db, models.Result{
			PatientID: patient.ID, StudyID: study.ID, SampleCode: "L3",
			AppointmentID: &appointment.ID, Status: models.ResultAnnulled,
		})
		createResult(t, db, models.Result{
			PatientID: patient.ID, StudyID: study.ID, SampleCode: "L4",
		})

		resolver := newResolver(db)
		resolved, err := resolver.ByQRCode(ctx, "Q-ABC")
		require.NoError(t, err)
		assert.Equal(t, invoice.ID, resolved.Invoice.ID)
		assert.Equal(t, ScopeAppointmentOrInvoice, resolved.Scope.Kind)

		scoped, err := resolver.ScopedResults(ctx, resolved.Scope)
		require.NoError(t, err)
		ids := resultIDs(scoped)
		assert.ElementsMatch(t, []string{tagged.ID, viaAppointment.ID}, ids)
	})

	t.Run("invoice without appointment scopes to invoice-tagged results", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)
		study := createStudy(t, db)

		token := "Q-XYZ"
		invoice := models.Invoice{
			PatientID: patient.ID, Number: "FAC-000002", Total: 300,
			Status: models.InvoiceIssued, QRToken: &token,
		}
		require.NoError(t, db.Create(&invoice).Error)

		tagged := createResult(t, db, models.Result{
			PatientID: patient.ID, StudyID: study.ID, SampleCode: "L5", InvoiceID: &invoice.ID,
		})
		createResult(t, db, models.Result{
			PatientID: patient.ID, StudyID: study.ID, SampleCode: "L6",
		})

		resolver := newResolver(db)
		resolved, err := resolver.ByQRCode(ctx, "Q-XYZ")
		require.NoError(t, err)
		assert.Equal(t, ScopeInvoice, resolved.Scope.Kind)

		scoped, err := resolver.ScopedResults(ctx, resolved.Scope)
		require.NoError(t, err)
		assert.Equal(t, []string{tagged.ID}, resultIDs(scoped))
	})

	t.Run("unknown token is not found", func(t *testing.T) {
		db := setupTestDB(t)

		_, err := newResolver(db).ByQRCode(ctx, "nope")
		assert.True(t, IsNotFound(err))
	})
}

func TestResolverByCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong password is unauthorized, not not-found", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)

		username, password := "user1", "right"
		invoice := models.Invoice{
			PatientID: patient.ID, Number: "FAC-000003", Total: 100,
			PortalUsername: &username, PortalPassword: &password,
		}
		require.NoError(t, db.Create(&invoice).Error)

		resolver := newResolver(db)
		_, err := resolver.ByCredentials(ctx, "user1", "wrong")
		assert.ErrorIs(t, err, ErrUnauthorized)

		_, err = resolver.ByCredentials(ctx, "ghost", "right")
		assert.ErrorIs(t, err, ErrUnauthorized)

		resolved, err := resolver.ByCredentials(ctx, "user1", "right")
		require.NoError(t, err)
		assert.Equal(t, invoice.ID, resolved.Invoice.ID)
		assert.Equal(t, patient.ID, resolved.Patient.ID)
	})

	t.Run("most recently created invoice wins on duplicates", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)

		username, password := "dup", "dup"
		older := models.Invoice{
			PatientID: patient.ID, Number: "FAC-000004", Total: 100,
			PortalUsername: &username, PortalPassword: &password,
		}
		older.CreatedAt = time.Now().Add(-time.Hour)
		require.NoError(t, db.Create(&older).Error)

		newer := models.Invoice{
			PatientID: patient.ID, Number: "FAC-000005", Total: 100,
			PortalUsername: &username, PortalPassword: &password,
		}
		require.NoError(t, db.Create(&newer).Error)

		resolved, err := newResolver(db).ByCredentials(ctx, "dup", "dup")
		require.NoError(t, err)
		assert.Equal(t, newer.ID, resolved.Invoice.ID)
	})

	t.Run("invoice without appointment grants no results", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)
		study := createStudy(t, db)

		username, password := "solo", "solo"
		invoice := models.Invoice{
			PatientID: patient.ID, Number: "FAC-000006", Total: 100,
			PortalUsername: &username, PortalPassword: &password,
		}
		require.NoError(t, db.Create(&invoice).Error)
		createResult(t, db, models.Result{
			PatientID: patient.ID, StudyID: study.ID, SampleCode: "L7",
		})

		resolver := newResolver(db)
		resolved, err := resolver.ByCredentials(ctx, "solo", "solo")
		require.NoError(t, err)
		assert.Equal(t, ScopeNone, resolved.Scope.Kind)

		scoped, err := resolver.ScopedResults(ctx, resolved.Scope)
		require.NoError(t, err)
		assert.Empty(t, scoped)
	})
}

func TestResolverByInvoiceNumber(t *testing.T) {
	ctx := context.Background()

	t.Run("matches the human-readable number first", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)

		invoice := models.Invoice{PatientID: patient.ID, Number: "FAC-000007", Total: 100}
		require.NoError(t, db.Create(&invoice).Error)

		resolved, err := newResolver(db).ByInvoiceNumber(ctx, "FAC-000007")
		require.NoError(t, err)
		assert.Equal(t, invoice.ID, resolved.Invoice.ID)
	})

	t.Run("falls back to id lookup for 24-hex values", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)

		legacy := models.Invoice{PatientID: patient.ID, Number: "FAC-000008", Total: 100}
		legacy.ID = "abcdef0123456789abcdef01"
		require.NoError(t, db.Create(&legacy).Error)

		resolved, err := newResolver(db).ByInvoiceNumber(ctx, "abcdef0123456789abcdef01")
		require.NoError(t, err)
		assert.Equal(t, legacy.ID, resolved.Invoice.ID)
	})

	t.Run("non-hex miss never tries the id lookup", func(t *testing.T) {
		db := setupTestDB(t)
		patient := createPatient(t, db)

		invoice := models.Invoice{PatientID: patient.ID, Number: "FAC-000009", Total: 100}
		invoice.ID = "not-a-number"
		require.NoError(t, db.Create(&invoice).Error)

		_, err := newResolver(db).ByInvoiceNumber(ctx, "not-a-number")
		assert.True(t, IsNotFound(err))
	})
}

func resultIDs(list []models.Result) []string {
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.ID
	}
	return ids
}
