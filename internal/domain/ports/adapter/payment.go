package adapter

import (
	"context"
	"time"
)

// SessionRequest carries everything SSLCommerz needs to open a hosted
// checkout session.
type SessionRequest struct {
	TransactionID string
	Amount        int64 // BDT, whole taka
	Currency      string
	ProductName   string
	CustomerName  string
	CustomerEmail string
	SuccessURL    string
	FailURL       string
	CancelURL     string
	IPNURL        string
	// Pass-through values echoed back in the callback (user id, plan id,
	// auto-renew flag, request timestamp).
	ValueA, ValueB, ValueC, ValueD string
}

// Session is the gateway's answer to a session request.
type Session struct {
	GatewayURL string // hosted checkout page to redirect the browser to
	SessionKey string
}

// ValidationResult is the provider's authoritative view of a transaction,
// fetched server-to-server. Activation decisions are made from this, never
// from the browser-supplied callback alone.
type ValidationResult struct {
	Status        string // VALID | VALIDATED | anything else = not payable
	TransactionID string
	ValID         string
	Amount        int64
	StoreAmount   int64 // settlement amount after gateway fees
	CardType      string
	CardBrand     string
	CardIssuer    string
	BankTranID    string
	PaidAt        time.Time
}

// Valid reports whether the provider considers the transaction paid.
func (r *ValidationResult) Valid() bool {
	return r != nil && (r.Status == "VALID" || r.Status == "VALIDATED")
}

// PaymentGateway is the hex port for the payment provider.
type PaymentGateway interface {
	Name() string

	// InitiateSession opens a hosted checkout session and returns the
	// redirect URL.
	InitiateSession(ctx context.Context, req SessionRequest) (*Session, error)
	// ValidatePayment fetches the authoritative transaction state by the
	// provider's validation id.
	ValidatePayment(ctx context.Context, valID string) (*ValidationResult, error)
	// VerifyTransaction fetches the state by our transaction id; used by the
	// reconciler when no callback ever arrived.
	VerifyTransaction(ctx context.Context, transactionID string) (*ValidationResult, error)
	// InitiateRefund requests a refund for a settled transaction.
	InitiateRefund(ctx context.Context, bankTranID string, amount int64, remarks string) error
	// VerifySignature checks the HMAC the provider attaches to callbacks.
	VerifySignature(transactionID, valID, amount, signature string) bool
}
