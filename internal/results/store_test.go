package results

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"diagnostic-lab-server/internal/access"
	"diagnostic-lab-server/internal/models"
)

func setupStore(t *testing.T) (*Store, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A single connection keeps every goroutine on the same in-memory DB.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	return NewStore(db), db
}

func seedResult(t *testing.T, store *Store, db *gorm.DB, sampleCode string) *models.Result {
	t.Helper()
	patient := models.Patient{FirstName: "Maria", LastName: "Gomez", NationalID: "001-" + sampleCode}
	require.NoError(t, db.Create(&patient).Error)
	study := models.Study{Code: "ST-" + sampleCode, Name: "Hemograma", BasePrice: 500, IsActive: true}
	require.NoError(t, db.Create(&study).Error)

	result := &models.Result{PatientID: patient.ID, StudyID: study.ID, SampleCode: sampleCode}
	require.NoError(t, store.Create(context.Background(), result))
	return result
}

func TestStoreCreateAndFetch(t *testing.T) {
	ctx := context.Background()
	store, db := setupStore(t)

	created := seedResult(t, store, db, "L1001")
	assert.Equal(t, models.ResultDraft, created.Status)

	fetched, err := store.ByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "L1001", fetched.SampleCode)
	assert.Equal(t, "Maria", fetched.Patient.FirstName)
	assert.Equal(t, "Hemograma", fetched.Study.Name)

	_, err = store.ByID(ctx, "missing")
	assert.True(t, access.IsNotFound(err))
	assert.Contains(t, err.Error(), "missing")
}

func TestStoreValidate(t *testing.T) {
	ctx := context.Background()
	store, db := setupStore(t)
	result := seedResult(t, store, db, "L1002")

	validated, err := store.Validate(ctx, result.ID, "Valores normales", "Sin hallazgos", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ResultCompleted, validated.Status)
	assert.Equal(t, "Valores normales", validated.Interpretation)
	require.NotNil(t, validated.ValidatedByID)
	assert.Equal(t, "user-1", *validated.ValidatedByID)
	require.NotNil(t, validated.ValidatedAt)

	// Last writer wins, re-validation overwrites without complaint.
	again, err := store.Validate(ctx, result.ID, "Corregido", "Revisado", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "Corregido", again.Interpretation)
	assert.Equal(t, "user-2", *again.ValidatedByID)
	assert.Equal(t, models.ResultCompleted, again.Status)

	_, err = store.Validate(ctx, "missing", "x", "y", "user-1")
	assert.True(t, access.IsNotFound(err))
}

func TestStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store, db := setupStore(t)
	result := seedResult(t, store, db, "L1003")

	conclusion := "Pendiente de cultivo"
	updated, err := store.Update(ctx, result.ID, UpdateParams{Conclusion: &conclusion})
	require.NoError(t, err)
	assert.Equal(t, conclusion, updated.Conclusion)
	assert.Equal(t, models.ResultDraft, updated.Status, "untouched fields stay put")

	_, err = store.Update(ctx, "missing", UpdateParams{Conclusion: &conclusion})
	assert.True(t, access.IsNotFound(err))
}

func TestStoreMarkPrintedConcurrent(t *testing.T) {
	ctx := context.Background()
	store, db := setupStore(t)
	result := seedResult(t, store, db, "L1004")

	const printers = 25
	var wg sync.WaitGroup
	errs := make(chan error, printers)
	for i := 0; i < printers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.MarkPrinted(ctx, result.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent print failed: %v", err)
	}

	fetched, err := store.ByID(ctx, result.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Printed)
	assert.Equal(t, printers, fetched.TimesPrinted)

	_, err = store.MarkPrinted(ctx, "missing")
	assert.True(t, access.IsNotFound(err))
}

func TestStoreMarkDelivered(t *testing.T) {
	ctx := context.Background()
	store, db := setupStore(t)
	result := seedResult(t, store, db, "L1005")

	delivered, err := store.MarkDelivered(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultDelivered, delivered.Status)

	_, err = store.MarkDelivered(ctx, "missing")
	assert.True(t, access.IsNotFound(err))
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, db := setupStore(t)
	result := seedResult(t, store, db, "L1006")

	require.NoError(t, store.Delete(ctx, result.ID))
	_, err := store.ByID(ctx, result.ID)
	assert.True(t, access.IsNotFound(err))

	err = store.Delete(ctx, result.ID)
	assert.True(t, access.IsNotFound(err))
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	store, db := setupStore(t)

	first := seedResult(t, store, db, "L2001")
	second := seedResult(t, store, db, "L2002")

	annulled := models.ResultAnnulled
	_, err := store.Update(ctx, second.ID, UpdateParams{Status: &annulled})
	require.NoError(t, err)

	list, total, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	list, total, err = store.List(ctx, Filter{IncludeAnnulled: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)

	list, _, err = store.List(ctx, Filter{Status: models.ResultAnnulled})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	list, total, err = store.List(ctx, Filter{PatientID: first.PatientID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	// Paged listing still reports the unpaged total.
	_, total, err = store.List(ctx, Filter{IncludeAnnulled: true, Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
