package access

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"diagnostic-lab-server/internal/models"
)

// CredentialVerifier checks a portal username/password pair and returns the
// invoice it grants access to. The legacy mechanism is a stored plaintext
// equality check; keeping it behind this interface lets a signed, time-boxed
// token scheme replace it without touching the resolver's callers.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (*models.Invoice, error)
}

type plaintextVerifier struct {
	db *gorm.DB
}

// NewPlaintextVerifier returns the legacy verifier that matches the stored
// per-invoice credential pair verbatim.
func NewPlaintextVerifier(db *gorm.DB) CredentialVerifier {
	return &plaintextVerifier{db: db}
}

// Verify matches both fields in a single query and picks the most recently
// created invoice when several share a credential pair. Any miss is
// ErrUnauthorized; which field mismatched is never revealed.
func (v *plaintextVerifier) Verify(ctx context.Context, username, password string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := v.db.WithContext(ctx).
		Preload("Patient").
		Preload("Appointment").
		Where("portal_username = ? AND portal_password = ?", username, password).
		Order("created_at desc").
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return &invoice, nil
}
