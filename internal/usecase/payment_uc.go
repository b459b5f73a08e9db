package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"briefly60-subscription/internal/domain"
	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/domain/ports/adapter"
	"briefly60-subscription/internal/domain/ports/repository"
	"briefly60-subscription/internal/infra/metrics"
)

// CallbackURLs are the endpoints the gateway redirects to or notifies.
type CallbackURLs struct {
	Success string
	Fail    string
	Cancel  string
	IPN     string
}

// Checkout is what the init API returns to the browser.
type Checkout struct {
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
	SessionKey    string `json:"session_key,omitempty"`
}

// CallbackPayload is the form payload the gateway posts back after the user
// leaves the hosted checkout page.
type CallbackPayload struct {
	Status        string
	TransactionID string
	ValID         string
	Amount        string
	CardType      string
	CardBrand     string
	CardIssuer    string
	StoreAmount   string
	BankTranID    string
	TranDate      string
}

// PaymentUseCase orchestrates checkout: opening gateway sessions and
// translating verified callbacks into lifecycle transitions. The callback's
// self-reported status is never trusted for activation; the provider is
// always asked server-to-server first.
type PaymentUseCase struct {
	subUC     *SubscriptionUseCase
	subs      repository.SubscriptionRepository
	plans     repository.PlanRepository
	users     repository.UserRepository
	gateway   adapter.PaymentGateway
	callbacks CallbackURLs
	log       *zerolog.Logger
}

func NewPaymentUseCase(
	subUC *SubscriptionUseCase,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	users repository.UserRepository,
	gateway adapter.PaymentGateway,
	callbacks CallbackURLs,
	logger *zerolog.Logger,
) *PaymentUseCase {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &PaymentUseCase{
		subUC:     subUC,
		subs:      subs,
		plans:     plans,
		users:     users,
		gateway:   gateway,
		callbacks: callbacks,
		log:       &l,
	}
}

// NewTransactionID mints a checkout transaction id. ULIDs are sortable and
// collision-free, which the old timestamp+random scheme only approximated.
func NewTransactionID() string {
	return "SUB-" + ulid.Make().String()
}

// Initiate creates the pending subscription and opens a hosted checkout
// session. A user who already holds an active subscription is rejected
// before anything is persisted.
func (uc *PaymentUseCase) Initiate(ctx context.Context, userID, planID string, autoRenew bool) (*Checkout, error) {
	user, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	if _, err := uc.subUC.GetActive(ctx, userID); err == nil {
		return nil, domain.ErrAlreadySubscribed
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	plan, err := uc.plans.FindActiveByID(ctx, repository.NoTX, planID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrPlanInactive
		}
		return nil, err
	}

	transactionID := NewTransactionID()
	if _, err := uc.subUC.CreatePending(ctx, userID, planID, transactionID, plan.Price, autoRenew); err != nil {
		return nil, err
	}

	session, err := uc.gateway.InitiateSession(ctx, adapter.SessionRequest{
		TransactionID: transactionID,
		Amount:        plan.Price,
		Currency:      plan.Currency,
		ProductName:   fmt.Sprintf("Briefly60 - %s", plan.Name),
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		SuccessURL:    uc.callbacks.Success,
		FailURL:       uc.callbacks.Fail,
		CancelURL:     uc.callbacks.Cancel,
		IPNURL:        uc.callbacks.IPN,
		ValueA:        userID,
		ValueB:        planID,
		ValueC:        fmt.Sprintf("%t", autoRenew),
		ValueD:        fmt.Sprintf("%d", time.Now().UnixMilli()),
	})
	if err != nil {
		// the pending record is unusable without a session; mark it failed
		// so the reconciler does not chase it
		if ferr := uc.subUC.Fail(ctx, transactionID, err.Error()); ferr != nil {
			uc.log.Error().Err(ferr).Str("transaction_id", transactionID).
				Msg("failed to mark declined checkout")
		}
		return nil, err
	}

	uc.log.Info().Str("transaction_id", transactionID).Str("user_id", userID).
		Str("plan_id", planID).Msg("checkout session opened")
	return &Checkout{
		TransactionID: transactionID,
		RedirectURL:   session.GatewayURL,
		SessionKey:    session.SessionKey,
	}, nil
}

// HandleSuccess processes the gateway's success callback. The reported
// status is only a hint: activation happens after the provider's validation
// API confirms the transaction and the id and amount line up with the
// pending record.
func (uc *PaymentUseCase) HandleSuccess(ctx context.Context, p CallbackPayload) (*model.Subscription, error) {
	if !isPayableStatus(p.Status) {
		uc.failQuietly(ctx, p.TransactionID, "Payment status is not valid")
		return nil, domain.ErrPaymentNotVerified
	}
	start := time.Now()
	result, err := uc.gateway.ValidatePayment(ctx, p.ValID)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.ObservePaymentValidation("error", elapsed)
		uc.failQuietly(ctx, p.TransactionID, "Payment validation failed")
		return nil, domain.ErrPaymentNotVerified
	}
	if !result.Valid() {
		metrics.ObservePaymentValidation("invalid", elapsed)
		uc.failQuietly(ctx, p.TransactionID, "Payment validation failed")
		return nil, domain.ErrPaymentNotVerified
	}
	metrics.ObservePaymentValidation("valid", elapsed)
	if result.TransactionID != p.TransactionID {
		uc.failQuietly(ctx, p.TransactionID, "Transaction ID mismatch")
		return nil, domain.ErrPaymentNotVerified
	}

	pending, err := uc.subs.FindByTransactionID(ctx, repository.NoTX, p.TransactionID)
	if err != nil {
		return nil, err
	}
	if result.Amount != pending.Payment.AmountPaid {
		uc.failQuietly(ctx, p.TransactionID, "Amount mismatch")
		return nil, domain.ErrPaymentNotVerified
	}

	return uc.subUC.Complete(ctx, p.TransactionID, result)
}

// HandleFailure processes a fail callback.
func (uc *PaymentUseCase) HandleFailure(ctx context.Context, transactionID, reason string) error {
	if reason == "" {
		reason = "Payment failed at gateway"
	}
	return uc.subUC.Fail(ctx, transactionID, reason)
}

// HandleCancel processes a cancel callback (user abandoned checkout).
func (uc *PaymentUseCase) HandleCancel(ctx context.Context, transactionID string) error {
	return uc.subUC.Fail(ctx, transactionID, "Payment cancelled by user")
}

// ReconcilePending finalizes pending subscriptions whose callback never
// arrived: each is verified against the gateway by transaction id and then
// completed or failed. Covers lost redirects and crashes mid-confirm.
func (uc *PaymentUseCase) ReconcilePending(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-staleAfter)
	pending, err := uc.subs.ListPendingOlderThan(ctx, repository.NoTX, cutoff, limit)
	if err != nil {
		if err == domain.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	settled := 0
	for _, sub := range pending {
		tranID := sub.Payment.TransactionID
		result, err := uc.gateway.VerifyTransaction(ctx, tranID)
		if err != nil {
			uc.log.Warn().Err(err).Str("transaction_id", tranID).Msg("reconcile verify failed")
			continue
		}
		if result.Valid() && result.Amount == sub.Payment.AmountPaid {
			if _, err := uc.subUC.Complete(ctx, tranID, result); err != nil {
				uc.log.Error().Err(err).Str("transaction_id", tranID).Msg("reconcile complete failed")
				continue
			}
		} else {
			if err := uc.subUC.Fail(ctx, tranID, "Transaction not settled at gateway"); err != nil {
				uc.log.Error().Err(err).Str("transaction_id", tranID).Msg("reconcile fail failed")
				continue
			}
		}
		settled++
	}
	return settled, nil
}

func (uc *PaymentUseCase) failQuietly(ctx context.Context, transactionID, reason string) {
	if transactionID == "" {
		return
	}
	if err := uc.subUC.Fail(ctx, transactionID, reason); err != nil && err != domain.ErrNotFound {
		uc.log.Error().Err(err).Str("transaction_id", transactionID).Msg("mark failed errored")
	}
}

func isPayableStatus(s string) bool {
	switch strings.ToUpper(s) {
	case "VALID", "VALIDATED":
		return true
	}
	return false
}
