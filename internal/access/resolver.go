package access

import (
	"context"
	"errors"
	"regexp"

	"gorm.io/gorm"

	"diagnostic-lab-server/internal/models"
)

var (
	digitsOnly = regexp.MustCompile(`^\d+$`)
	hexID      = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

// LegacySamplePrefix is prepended to digit-only sample codes before the
// literal lookup. Historically issued codes are digit-only but stored with
// this laboratory prefix.
const LegacySamplePrefix = "L"

// Resolver maps the five supported identifier schemes to a canonical
// Context. Every operation is read-only, idempotent and safe to call
// concurrently; each is a single bounded read with no cross-step transaction.
type Resolver struct {
	db          *gorm.DB
	credentials CredentialVerifier
}

// NewResolver creates a Resolver backed by db, using verifier for the portal
// credential scheme.
func NewResolver(db *gorm.DB, verifier CredentialVerifier) *Resolver {
	return &Resolver{db: db, credentials: verifier}
}

// ByResultID resolves an internal result id (staff use).
func (r *Resolver) ByResultID(ctx context.Context, id string) (*Context, error) {
	result, err := r.findResult(ctx, "id = ?", id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "result", Key: id}
		}
		return nil, err
	}
	return r.contextForResult(ctx, result)
}

// BySampleCode resolves an externally visible sample code. Digit-only codes
// are first tried with the legacy laboratory prefix; only if that misses is
// the literal code tried. Non-digit codes are looked up literally only.
func (r *Resolver) BySampleCode(ctx context.Context, code string) (*Context, error) {
	if digitsOnly.MatchString(code) {
		result, err := r.findResult(ctx, "sample_code = ?", LegacySamplePrefix+code)
		if err == nil {
			return r.contextForResult(ctx, result)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	result, err := r.findResult(ctx, "sample_code = ?", code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "result", Key: code}
		}
		return nil, err
	}
	return r.contextForResult(ctx, result)
}

// ByQRCode resolves an invoice QR token. The granted scope is the union of
// results tagged with the invoice and results for its appointment, or just
// the invoice-tagged ones when no appointment is referenced.
func (r *Resolver) ByQRCode(ctx context.Context, token string) (*Context, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Appointment").
		Where("qr_token = ?", token).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "invoice", Key: token}
		}
		return nil, err
	}

	resolved := &Context{
		Patient:     invoice.Patient,
		Invoice:     &invoice,
		Appointment: invoice.Appointment,
	}
	if invoice.AppointmentID != nil {
		resolved.Scope = ResultScope{
			Kind:          ScopeAppointmentOrInvoice,
			PatientID:     invoice.PatientID,
			InvoiceID:     invoice.ID,
			AppointmentID: *invoice.AppointmentID,
		}
	} else {
		resolved.Scope = ResultScope{Kind: ScopeInvoice, InvoiceID: invoice.ID}
	}
	return resolved, nil
}

// ByCredentials resolves a per-invoice portal username/password pair. A miss
// is ErrUnauthorized, never NotFound.
func (r *Resolver) ByCredentials(ctx context.Context, username, password string) (*Context, error) {
	invoice, err := r.credentials.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return r.contextForInvoice(invoice), nil
}

// ByInvoiceNumber resolves a human-readable invoice number, falling back to
// an internal id lookup when the value has the legacy 24-hex identifier
// shape. The same field in calling code may carry either form.
func (r *Resolver) ByInvoiceNumber(ctx context.Context, value string) (*Context, error) {
	invoice, err := r.findInvoice(ctx, "number = ?", value)
	if errors.Is(err, gorm.ErrRecordNotFound) && hexID.MatchString(value) {
		invoice, err = r.findInvoice(ctx, "id = ?", value)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "invoice", Key: value}
		}
		return nil, err
	}
	return r.contextForInvoice(invoice), nil
}

func (r *Resolver) findResult(ctx context.Context, query string, arg interface{}) (*models.Result, error) {
	var result models.Result
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Study").
		First(&result, query, arg).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *Resolver) findInvoice(ctx context.Context, query string, arg interface{}) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Appointment").
		First(&invoice, query, arg).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// contextForResult joins the result's optional invoice and appointment into
// the canonical context.
func (r *Resolver) contextForResult(ctx context.Context, result *models.Result) (*Context, error) {
	resolved := &Context{Patient: result.Patient, Result: result}

	if result.InvoiceID != nil {
		var invoice models.Invoice
		if err := r.db.WithContext(ctx).First(&invoice, "id = ?", *result.InvoiceID).Error; err == nil {
			resolved.Invoice = &invoice
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if result.AppointmentID != nil {
		var appointment models.Appointment
		if err := r.db.WithContext(ctx).First(&appointment, "id = ?", *result.AppointmentID).Error; err == nil {
			resolved.Appointment = &appointment
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return resolved, nil
}

// contextForInvoice derives the scope shared by the credential and invoice
// number schemes: the invoice's appointment when it has one, otherwise no
// results at all.
func (r *Resolver) contextForInvoice(invoice *models.Invoice) *Context {
	resolved := &Context{
		Patient:     invoice.Patient,
		Invoice:     invoice,
		Appointment: invoice.Appointment,
	}
	if invoice.AppointmentID != nil {
		resolved.Scope = ResultScope{
			Kind:          ScopeAppointment,
			PatientID:     invoice.PatientID,
			AppointmentID: *invoice.AppointmentID,
		}
	} else {
		resolved.Scope = ResultScope{Kind: ScopeNone}
	}
	return resolved
}
