package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"briefly60-subscription/internal/domain/ports/adapter"
)

// NoOpGateway is a stand-in provider for local development. Every session it
// opens is considered paid; validation answers from memory.
type NoOpGateway struct {
	mu       sync.Mutex
	sessions map[string]*adapter.ValidationResult // keyed by transaction id
	byValID  map[string]string
}

func NewNoOpGateway() *NoOpGateway {
	return &NoOpGateway{
		sessions: make(map[string]*adapter.ValidationResult),
		byValID:  make(map[string]string),
	}
}

func (g *NoOpGateway) Name() string { return "noop" }

func (g *NoOpGateway) InitiateSession(_ context.Context, req adapter.SessionRequest) (*adapter.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	valID := uuid.NewString()
	g.sessions[req.TransactionID] = &adapter.ValidationResult{
		Status:        "VALID",
		TransactionID: req.TransactionID,
		ValID:         valID,
		Amount:        req.Amount,
		StoreAmount:   req.Amount,
		CardType:      "NOOP",
		BankTranID:    "NOOP-" + req.TransactionID,
		PaidAt:        time.Now(),
	}
	g.byValID[valID] = req.TransactionID
	return &adapter.Session{
		GatewayURL: "http://localhost/noop-checkout/" + req.TransactionID,
		SessionKey: valID,
	}, nil
}

func (g *NoOpGateway) ValidatePayment(_ context.Context, valID string) (*adapter.ValidationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if tranID, ok := g.byValID[valID]; ok {
		return g.sessions[tranID], nil
	}
	return &adapter.ValidationResult{Status: "INVALID_TRANSACTION", ValID: valID}, nil
}

func (g *NoOpGateway) VerifyTransaction(_ context.Context, transactionID string) (*adapter.ValidationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if res, ok := g.sessions[transactionID]; ok {
		return res, nil
	}
	return &adapter.ValidationResult{Status: "INVALID_TRANSACTION", TransactionID: transactionID}, nil
}

func (g *NoOpGateway) InitiateRefund(context.Context, string, int64, string) error { return nil }

func (g *NoOpGateway) VerifySignature(string, string, string, string) bool { return true }
