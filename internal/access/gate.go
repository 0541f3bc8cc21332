package access

import (
	"context"
)

// Decision is the disclosure verdict for one patient. A negative decision is
// a successful response carrying its itemized reason, not an error. The JSON
// keys are the ones the print dialogs consume.
type Decision struct {
	Allowed         bool             `json:"puede_imprimir"`
	PendingAmount   float64          `json:"monto_pendiente"`
	PendingInvoices []PendingInvoice `json:"facturas_pendientes"`
}

// Gate decides whether lab results may be disclosed or printed: allowed
// exactly when the patient's pending balance is zero.
type Gate struct {
	ledger *Ledger
}

// NewGate creates a Gate over the given ledger.
func NewGate(ledger *Ledger) *Gate {
	return &Gate{ledger: ledger}
}

// CanDisclose recomputes the pending balance and projects it into a
// decision. It is a pure query: no side effects, no caching across calls,
// since financial state can change between any two disclosure attempts.
func (g *Gate) CanDisclose(ctx context.Context, patientID string) (*Decision, error) {
	balance, err := g.ledger.ComputePendingBalance(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &Decision{
		Allowed:         balance.PendingAmount == 0,
		PendingAmount:   balance.PendingAmount,
		PendingInvoices: balance.PendingInvoices,
	}, nil
}
