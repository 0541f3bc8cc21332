package access

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"diagnostic-lab-server/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A single connection keeps every goroutine on the same in-memory DB.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	return db
}

func createPatient(t *testing.T, db *gorm.DB) models.Patient {
	patient := models.Patient{
		FirstName:  "Maria",
		LastName:   "Gomez",
		NationalID: "001-1234567-8",
	}
	require.NoError(t, db.Create(&patient).Error)
	return patient
}

func createStudy(t *testing.T, db *gorm.DB) models.Study {
	study := models.Study{Code: "HEM01", Name: "Hemograma", BasePrice: 500, IsActive: true}
	require.NoError(t, db.Create(&study).Error)
	return study
}
