package access

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"diagnostic-lab-server/internal/models"
)

// ErrUnauthorized is returned by credential resolution on any mismatch. It is
// deliberately a single error so callers cannot tell an unknown username from
// a wrong password.
var ErrUnauthorized = errors.New("invalid portal credentials")

// NotFoundError reports a failed lookup and names the key that was used,
// which callers surface for diagnostics.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with key: %s", e.Entity, e.Key)
}

// IsNotFound reports whether err is a lookup miss, from either this package
// or the storage layer.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) || errors.Is(err, gorm.ErrRecordNotFound)
}

// ScopeKind selects how a result scope is translated into a query.
type ScopeKind int

const (
	// ScopeNone yields no results. Used when an invoice grants access but
	// references no appointment to pin the results to.
	ScopeNone ScopeKind = iota
	// ScopeInvoice yields results tagged directly with the invoice.
	ScopeInvoice
	// ScopeAppointment yields the patient's results for one appointment.
	ScopeAppointment
	// ScopeAppointmentOrInvoice yields the union of the two. QR access uses
	// this so results filed against either the visit or the bill show up.
	ScopeAppointmentOrInvoice
)

// ResultScope describes which results a resolved context may see.
type ResultScope struct {
	Kind          ScopeKind
	PatientID     string
	InvoiceID     string
	AppointmentID string
}

// Context is the canonical resolution of a caller-supplied identifier:
// one patient, optionally the invoice and appointment the identifier was
// attached to, and the result scope the identifier grants. It is assembled
// once by the resolver and shared by the ledger, gate and store so the join
// logic is not repeated per endpoint.
type Context struct {
	Patient     models.Patient
	Invoice     *models.Invoice
	Appointment *models.Appointment

	// Result is set when the identifier named a single result directly
	// (internal id or sample code lookups).
	Result *models.Result

	Scope ResultScope
}

// ScopedResults fetches the results visible through the context's scope.
// Annulled results are always excluded. An empty list is a valid outcome.
func (r *Resolver) ScopedResults(ctx context.Context, scope ResultScope) ([]models.Result, error) {
	if scope.Kind == ScopeNone {
		return []models.Result{}, nil
	}

	q := r.db.WithContext(ctx).
		Preload("Study").
		Where("status <> ?", models.ResultAnnulled).
		Order("created_at desc")

	switch scope.Kind {
	case ScopeInvoice:
		q = q.Where("invoice_id = ?", scope.InvoiceID)
	case ScopeAppointment:
		q = q.Where("patient_id = ? AND appointment_id = ?", scope.PatientID, scope.AppointmentID)
	case ScopeAppointmentOrInvoice:
		q = q.Where("invoice_id = ? OR (patient_id = ? AND appointment_id = ?)",
			scope.InvoiceID, scope.PatientID, scope.AppointmentID)
	}

	results := []models.Result{}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
