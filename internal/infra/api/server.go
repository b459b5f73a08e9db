package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"briefly60-subscription/internal/domain/ports/adapter"
	"briefly60-subscription/internal/infra/i18n"
	"briefly60-subscription/internal/infra/metrics"
	red "briefly60-subscription/internal/infra/redis"
	"briefly60-subscription/internal/usecase"
)

// Server wires the subscription, plan and payment use cases to HTTP.
type Server struct {
	planUC  *usecase.PlanUseCase
	subUC   *usecase.SubscriptionUseCase
	payUC   *usecase.PaymentUseCase
	gateway adapter.PaymentGateway
	auth    *AuthManager
	limiter *red.RateLimiter
	tr      *i18n.Bundle

	frontendBase  string
	initRateLimit int
	initRateWin   time.Duration

	log *zerolog.Logger
}

func NewServer(
	planUC *usecase.PlanUseCase,
	subUC *usecase.SubscriptionUseCase,
	payUC *usecase.PaymentUseCase,
	gateway adapter.PaymentGateway,
	auth *AuthManager,
	limiter *red.RateLimiter,
	tr *i18n.Bundle,
	frontendBase string,
	initRateLimit int,
	initRateWin time.Duration,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "api").Logger()
	return &Server{
		planUC:        planUC,
		subUC:         subUC,
		payUC:         payUC,
		gateway:       gateway,
		auth:          auth,
		limiter:       limiter,
		tr:            tr,
		frontendBase:  frontendBase,
		initRateLimit: initRateLimit,
		initRateWin:   initRateWin,
		log:           &l,
	}
}

// loc picks the message catalog for the request's Accept-Language.
func (s *Server) loc(r *http.Request) *i18n.Translator {
	return s.tr.For(r.Header.Get("Accept-Language"))
}

// Router builds the chi mux with all routes attached.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	wrap := func(h http.HandlerFunc, mws ...Middleware) http.HandlerFunc {
		return Chain(h, mws...).ServeHTTP
	}
	base := []Middleware{TraceID(), Recover(s.log), RequestLog(s.log), Timeout(30 * time.Second)}
	authed := append(append([]Middleware{}, base...), s.auth.RequireUser())
	admin := append(append([]Middleware{}, base...), s.auth.RequireAdmin())
	initMws := append(append([]Middleware{}, authed...),
		RateLimit(s.limiter, "subscription_init", s.initRateLimit, s.initRateWin, s.tr, s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", wrap(s.plansListHandler, base...))
		r.Get("/plans/popular", wrap(s.plansPopularHandler, base...))

		r.Get("/subscription/status", wrap(s.statusHandler, authed...))
		r.Get("/subscription/history", wrap(s.historyHandler, authed...))
		r.Post("/subscription/init", wrap(s.initHandler, initMws...))
		r.Post("/subscription/cancel", wrap(s.cancelHandler, authed...))

		// Browser-facing gateway callbacks; the gateway POSTs a form and the
		// user's browser follows the redirect we answer with.
		r.Post("/payment/success", wrap(s.paymentSuccessHandler, base...))
		r.Post("/payment/fail", wrap(s.paymentFailHandler, base...))
		r.Post("/payment/cancel", wrap(s.paymentCancelHandler, base...))
		r.Post("/payment/ipn", wrap(s.paymentIPNHandler, base...))

		r.Route("/admin", func(r chi.Router) {
			r.Get("/plans", wrap(s.adminPlansListHandler, admin...))
			r.Post("/plans", wrap(s.adminPlanCreateHandler, admin...))
			r.Put("/plans/{id}", wrap(s.adminPlanUpdateHandler, admin...))
			r.Delete("/plans/{id}", wrap(s.adminPlanArchiveHandler, admin...))
			r.Post("/plans/{id}/reactivate", wrap(s.adminPlanReactivateHandler, admin...))
			r.Post("/plans/{id}/toggle-popular", wrap(s.adminPlanTogglePopularHandler, admin...))
			r.Get("/subscriptions/stats", wrap(s.adminStatsHandler, admin...))
		})
	})

	return r
}

// ---- gateway callbacks ----

func callbackPayload(r *http.Request) usecase.CallbackPayload {
	_ = r.ParseForm()
	return usecase.CallbackPayload{
		Status:        r.PostFormValue("status"),
		TransactionID: r.PostFormValue("tran_id"),
		ValID:         r.PostFormValue("val_id"),
		Amount:        r.PostFormValue("amount"),
		CardType:      r.PostFormValue("card_type"),
		CardBrand:     r.PostFormValue("card_brand"),
		CardIssuer:    r.PostFormValue("card_issuer"),
		StoreAmount:   r.PostFormValue("store_amount"),
		BankTranID:    r.PostFormValue("bank_tran_id"),
		TranDate:      r.PostFormValue("tran_date"),
	}
}

// redirectToFrontend sends the browser back to the subscription page with the
// outcome in the query string.
func (s *Server) redirectToFrontend(w http.ResponseWriter, r *http.Request, status, messageKey string) {
	q := url.Values{}
	q.Set("status", status)
	q.Set("message", s.loc(r).T(messageKey))
	http.Redirect(w, r, s.frontendBase+"/subscription?"+q.Encode(), http.StatusSeeOther)
}

func (s *Server) paymentSuccessHandler(w http.ResponseWriter, r *http.Request) {
	p := callbackPayload(r)
	if sign := r.PostFormValue("verify_sign"); sign != "" &&
		!s.gateway.VerifySignature(p.TransactionID, p.ValID, p.Amount, sign) {
		s.log.Warn().Str("transaction_id", p.TransactionID).Msg("callback signature mismatch")
		metrics.IncPayment("failed")
		s.redirectToFrontend(w, r, "failed", "payment_not_verified")
		return
	}

	sub, err := s.payUC.HandleSuccess(r.Context(), p)
	if err != nil {
		metrics.IncPayment("failed")
		s.redirectToFrontend(w, r, "failed", "payment_not_verified")
		return
	}
	metrics.IncPayment("completed")
	metrics.AddPaymentRevenue(sub.Payment.Currency, sub.Payment.AmountPaid)
	s.redirectToFrontend(w, r, "success", "payment_success")
}

func (s *Server) paymentFailHandler(w http.ResponseWriter, r *http.Request) {
	p := callbackPayload(r)
	if err := s.payUC.HandleFailure(r.Context(), p.TransactionID, r.PostFormValue("error")); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", p.TransactionID).Msg("fail callback not applied")
	}
	metrics.IncPayment("failed")
	s.redirectToFrontend(w, r, "failed", "payment_failed")
}

func (s *Server) paymentCancelHandler(w http.ResponseWriter, r *http.Request) {
	p := callbackPayload(r)
	if err := s.payUC.HandleCancel(r.Context(), p.TransactionID); err != nil {
		s.log.Warn().Err(err).Str("transaction_id", p.TransactionID).Msg("cancel callback not applied")
	}
	metrics.IncPayment("cancelled")
	s.redirectToFrontend(w, r, "cancelled", "payment_cancelled")
}

// paymentIPNHandler is the server-to-server notification; no browser to
// redirect, so it answers JSON. Processing is the same verified path as the
// success callback and is idempotent.
func (s *Server) paymentIPNHandler(w http.ResponseWriter, r *http.Request) {
	p := callbackPayload(r)
	if _, err := s.payUC.HandleSuccess(r.Context(), p); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
