package models

import (
	"fmt"
	"time"
	"topup-system/internal/status"

	"github.com/shopspring/decimal"
)

// Vertical is a product category with its own validate/execute semantics at
// the vending provider.
type Vertical string

const (
	VerticalAirtime     Vertical = "airtime"
	VerticalElectricity Vertical = "electricity"
	VerticalPayTV       Vertical = "paytv"
	VerticalTax         Vertical = "tax"
)

func ParseVertical(s string) (Vertical, error) {
	switch Vertical(s) {
	case VerticalAirtime, VerticalElectricity, VerticalPayTV, VerticalTax:
		return Vertical(s), nil
	}
	return "", fmt.Errorf("unknown vertical %q", s)
}

// State is the lifecycle state of a pending transaction. Transitions only
// move forward; see Advance.
type State string

const (
	StateValidated        State = "validated"
	StatePaymentPending   State = "payment_pending"
	StatePaymentConfirmed State = "payment_confirmed"
	StateVended           State = "vended"
	StateFailed           State = "failed"
)

// PendingTransaction holds one in-flight top-up between the validate step and
// the execute step. Amounts are fixed at validate time and never recomputed
// from client input afterwards.
type PendingTransaction struct {
	ID       string   `json:"transaction_id"`
	Vertical Vertical `json:"vertical"`

	CustomerAccountNumber string `json:"customer_account_number"`
	CustomerName          string `json:"customer_name,omitempty"`
	ProductName           string `json:"product_name,omitempty"`

	USDAmount   decimal.Decimal `json:"usd_amount"`
	Fee         decimal.Decimal `json:"fee"`
	TotalAmount decimal.Decimal `json:"total_amount"`

	// Fields copied verbatim from the validation response and threaded to the
	// execute call. The coordinator does not interpret them.
	VendTrxID      string `json:"vend_trx_id"`
	DeliveryMethod string `json:"delivery_method"`
	DeliverTo      string `json:"deliver_to"`
	Callback       string `json:"callback"`

	// Tax-only display fields.
	TaxInfo map[string]any `json:"tax_info,omitempty"`

	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// next holds the one legal forward transition per non-terminal state.
var next = map[State]State{
	StateValidated:        StatePaymentPending,
	StatePaymentPending:   StatePaymentConfirmed,
	StatePaymentConfirmed: StateVended,
}

// Advance moves the transaction to the given state. Any state may fail, but
// forward movement is strictly ordered and terminal states never change.
func (t *PendingTransaction) Advance(to State) error {
	if to == StateFailed {
		if t.State == StateVended || t.State == StateFailed {
			return fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, t.State, to)
		}
		t.State = StateFailed
		return nil
	}
	if next[t.State] != to {
		return fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, t.State, to)
	}
	t.State = to
	return nil
}

// Terminal reports whether the transaction reached an end state.
func (t *PendingTransaction) Terminal() bool {
	return t.State == StateVended || t.State == StateFailed
}

// ValidationResult carries what the vending provider returned for a validate
// call. VendMax and Extra are only populated for the tax vertical.
type ValidationResult struct {
	TrxID          string
	DeliveryMethod string
	DeliverTo      string
	Callback       string
	CustomerName   string
	ProductName    string
	VendMax        decimal.Decimal
	Extra          map[string]any
}

// VendExecuteRequest is the input to the provider execute call.
type VendExecuteRequest struct {
	TrxID                 string
	CustomerAccountNumber string
	Amount                decimal.Decimal
	Vertical              Vertical
	DeliveryMethod        string
	DeliverTo             string
	Callback              string
}

// ExecutionResult is the raw provider response to an execute call. The saga
// treats any well-formed response as delivered; Data is passed through for
// display (voucher codes, electricity tokens).
type ExecutionResult struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}
