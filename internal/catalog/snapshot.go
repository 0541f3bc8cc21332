// Package catalog freezes study prices onto appointment line items at
// creation time, so later catalog edits never retroactively change a billed
// amount.
package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"diagnostic-lab-server/internal/models"
)

// PriceSource is the read-only catalog lookup the snapshotter depends on,
// injected so the freeze behavior is testable without a live catalog.
type PriceSource interface {
	StudyByID(ctx context.Context, id string) (*models.Study, error)
}

type gormPriceSource struct {
	db *gorm.DB
}

// NewGormPriceSource reads the catalog from the database.
func NewGormPriceSource(db *gorm.DB) PriceSource {
	return &gormPriceSource{db: db}
}

func (s *gormPriceSource) StudyByID(ctx context.Context, id string) (*models.Study, error) {
	var study models.Study
	if err := s.db.WithContext(ctx).First(&study, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &study, nil
}

// LineItemRequest is one requested study, optionally carrying explicit
// price/discount overrides from the caller.
type LineItemRequest struct {
	StudyID  string   `json:"studyId" binding:"required"`
	Price    *float64 `json:"price,omitempty"`
	Discount *float64 `json:"discount,omitempty"`
}

// Snapshotter resolves line-item requests against the catalog.
type Snapshotter struct {
	source PriceSource
}

// NewSnapshotter creates a Snapshotter over the given catalog source.
func NewSnapshotter(source PriceSource) *Snapshotter {
	return &Snapshotter{source: source}
}

// Snapshot builds the frozen line items for an appointment. Caller overrides
// win over the catalog's current price; otherwise the current price is
// frozen with a zero discount. A study reference that fails to resolve is
// silently dropped, not an error.
func (s *Snapshotter) Snapshot(ctx context.Context, requests []LineItemRequest) ([]models.StudyLineItem, error) {
	items := []models.StudyLineItem{}
	for _, req := range requests {
		study, err := s.source.StudyByID(ctx, req.StudyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}

		price := study.BasePrice
		if req.Price != nil {
			price = *req.Price
		}
		discount := 0.0
		if req.Discount != nil {
			discount = *req.Discount
		}

		items = append(items, models.StudyLineItem{
			StudyID:  study.ID,
			Price:    price,
			Discount: discount,
			Position: len(items),
		})
	}
	return items, nil
}

// Total sums the snapshotted amounts, net of discounts.
func Total(items []models.StudyLineItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price - item.Discount
	}
	return total
}
