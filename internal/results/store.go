// Package results owns the lifecycle of a lab result: draft when the sample
// is processed, completed by validation, delivered when handed over, annulled
// as a terminal correction. Status transitions are applied as atomic updates
// keyed by the result id.
package results

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"diagnostic-lab-server/internal/models"
)

// Store persists results. All mutations are single keyed statements so
// concurrent callers never lose updates at the storage boundary.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new draft result.
func (s *Store) Create(ctx context.Context, result *models.Result) error {
	if result.Status == "" {
		result.Status = models.ResultDraft
	}
	return s.db.WithContext(ctx).Create(result).Error
}

// ByID fetches one result with its patient and study loaded.
func (s *Store) ByID(ctx context.Context, id string) (*models.Result, error) {
	var result models.Result
	err := s.db.WithContext(ctx).
		Preload("Patient").
		Preload("Study").
		First(&result, "id = ?", id).Error
	if err != nil {
		return nil, wrapNotFound(err, id)
	}
	return &result, nil
}

// Filter narrows List. Annulled results are excluded unless IncludeAnnulled
// is set; that flag is for internal staff views only.
type Filter struct {
	PatientID       string
	AppointmentID   string
	InvoiceID       string
	Status          models.ResultStatus
	SampleCode      string
	IncludeAnnulled bool
	Page            int
	Limit           int
}

// List returns matching results newest first, plus the total match count for
// pagination.
func (s *Store) List(ctx context.Context, filter Filter) ([]models.Result, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Result{})

	if filter.PatientID != "" {
		q = q.Where("patient_id = ?", filter.PatientID)
	}
	if filter.AppointmentID != "" {
		q = q.Where("appointment_id = ?", filter.AppointmentID)
	}
	if filter.InvoiceID != "" {
		q = q.Where("invoice_id = ?", filter.InvoiceID)
	}
	if filter.SampleCode != "" {
		q = q.Where("sample_code = ?", filter.SampleCode)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	} else if !filter.IncludeAnnulled {
		q = q.Where("status <> ?", models.ResultAnnulled)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
		if filter.Page > 1 {
			q = q.Offset((filter.Page - 1) * filter.Limit)
		}
	}

	var list []models.Result
	err := q.Preload("Patient").Preload("Study").Order("created_at desc").Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// UpdateParams are the mutable result fields; nil means leave unchanged.
type UpdateParams struct {
	Status         *models.ResultStatus
	Interpretation *string
	Conclusion     *string
	AppointmentID  *string
	InvoiceID      *string
	SampleCode     *string
}

// Update applies a partial update and returns the fresh row. Fails with a
// not-found error naming the id when the result is absent.
func (s *Store) Update(ctx context.Context, id string, params UpdateParams) (*models.Result, error) {
	updates := map[string]interface{}{}
	if params.Status != nil {
		updates["status"] = *params.Status
	}
	if params.Interpretation != nil {
		updates["interpretation"] = *params.Interpretation
	}
	if params.Conclusion != nil {
		updates["conclusion"] = *params.Conclusion
	}
	if params.AppointmentID != nil {
		updates["appointment_id"] = *params.AppointmentID
	}
	if params.InvoiceID != nil {
		updates["invoice_id"] = *params.InvoiceID
	}
	if params.SampleCode != nil {
		updates["sample_code"] = *params.SampleCode
	}

	if _, err := s.ByID(ctx, id); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		err := s.db.WithContext(ctx).Model(&models.Result{}).Where("id = ?", id).Updates(updates).Error
		if err != nil {
			return nil, err
		}
	}
	return s.ByID(ctx, id)
}

// Validate marks a result completed and records interpretation, conclusion,
// validator and timestamp in one keyed update. Re-validating an already
// completed result overwrites all of them without complaint: last writer
// wins, no version check.
func (s *Store) Validate(ctx context.Context, id, interpretation, conclusion, validatorID string) (*models.Result, error) {
	if _, err := s.ByID(ctx, id); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Model(&models.Result{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          models.ResultCompleted,
		"interpretation":  interpretation,
		"conclusion":      conclusion,
		"validated_by_id": validatorID,
		"validated_at":    time.Now(),
	}).Error
	if err != nil {
		return nil, err
	}
	return s.ByID(ctx, id)
}

// MarkPrinted sets the printed flag and bumps the print counter as an atomic
// SQL increment, never read-modify-write, so N concurrent prints count N.
func (s *Store) MarkPrinted(ctx context.Context, id string) (*models.Result, error) {
	tx := s.db.WithContext(ctx).Model(&models.Result{}).Where("id = ?", id).Updates(map[string]interface{}{
		"printed":       true,
		"times_printed": gorm.Expr("times_printed + ?", 1),
	})
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, wrapNotFound(gorm.ErrRecordNotFound, id)
	}
	return s.ByID(ctx, id)
}

// MarkDelivered records that the result was handed to the patient. Manual
// transition; nothing triggers it automatically.
func (s *Store) MarkDelivered(ctx context.Context, id string) (*models.Result, error) {
	tx := s.db.WithContext(ctx).Model(&models.Result{}).
		Where("id = ?", id).
		Update("status", models.ResultDelivered)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, wrapNotFound(gorm.ErrRecordNotFound, id)
	}
	return s.ByID(ctx, id)
}

// Delete hard-removes a result. Staff correction workflows only; patient
// facing flows annul instead.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx := s.db.WithContext(ctx).Delete(&models.Result{}, "id = ?", id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return wrapNotFound(gorm.ErrRecordNotFound, id)
	}
	return nil
}

func wrapNotFound(err error, id string) error {
	return fmt.Errorf("result %s: %w", id, err)
}
