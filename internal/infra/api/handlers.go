package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"briefly60-subscription/internal/domain"
	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/infra/metrics"
	"briefly60-subscription/internal/usecase"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

// errorKey maps a domain error to an HTTP status and a translation key.
func errorKey(err error) (int, string) {
	switch err {
	case domain.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case domain.ErrInvalidArgument:
		return http.StatusBadRequest, "invalid_request"
	case domain.ErrAlreadyExists:
		return http.StatusConflict, "already_exists"
	case domain.ErrAlreadySubscribed:
		return http.StatusConflict, "already_subscribed"
	case domain.ErrPlanInactive:
		return http.StatusBadRequest, "plan_not_available"
	case domain.ErrPaymentNotVerified:
		return http.StatusBadRequest, "payment_not_verified"
	case domain.ErrTransactionFinalized:
		return http.StatusConflict, "payment_failed"
	case domain.ErrRateLimited:
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code, key := errorKey(err)
	s.log.Debug().Err(err).Int("status", code).Msg("request rejected")
	writeError(w, code, s.loc(r).T(key))
}

// ---- public plan catalog ----

type planView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Price          int64    `json:"price"`
	OriginalPrice  int64    `json:"original_price"`
	Currency       string   `json:"currency"`
	DurationMonths int      `json:"duration_months"`
	Features       []string `json:"features"`
	Popular        bool     `json:"popular"`
	IsActive       bool     `json:"is_active"`
}

func toPlanView(p *model.Plan) planView {
	return planView{
		ID:             p.ID,
		Name:           p.Name,
		Price:          p.Price,
		OriginalPrice:  p.OriginalPrice,
		Currency:       p.Currency,
		DurationMonths: p.DurationMonths,
		Features:       p.Features,
		Popular:        p.Popular,
		IsActive:       p.IsActive,
	}
}

func toPlanViews(plans []*model.Plan) []planView {
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanView(p))
	}
	return out
}

func (s *Server) plansListHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.ListActive(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanViews(plans))
}

func (s *Server) plansPopularHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.ListPopular(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanViews(plans))
}

// ---- subscription (authenticated) ----

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	view, err := s.subUC.Status(r.Context(), UserID(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type historyEntry struct {
	ID            string                   `json:"id"`
	Plan          string                   `json:"plan"`
	PlanName      string                   `json:"plan_name"`
	Status        model.SubscriptionStatus `json:"status"`
	StartDate     time.Time                `json:"start_date"`
	EndDate       time.Time                `json:"end_date"`
	Amount        int64                    `json:"amount"`
	Currency      string                   `json:"currency"`
	TransactionID string                   `json:"transaction_id"`
	CreatedAt     time.Time                `json:"created_at"`
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subUC.ListByUser(r.Context(), UserID(r.Context()))
	if err != nil && err != domain.ErrNotFound {
		s.writeDomainError(w, r, err)
		return
	}
	now := time.Now()
	out := make([]historyEntry, 0, len(subs))
	for _, sub := range subs {
		out = append(out, historyEntry{
			ID:            sub.ID,
			Plan:          sub.Plan.PlanID,
			PlanName:      sub.Plan.Name,
			Status:        sub.Status(now),
			StartDate:     sub.StartDate,
			EndDate:       sub.EndDate,
			Amount:        sub.Payment.AmountPaid,
			Currency:      sub.Payment.Currency,
			TransactionID: sub.Payment.TransactionID,
			CreatedAt:     sub.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type initRequest struct {
	PlanID    string `json:"plan_id"`
	AutoRenew bool   `json:"auto_renew"`
}

func (s *Server) initHandler(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, s.loc(r).T("invalid_request"))
		return
	}
	checkout, err := s.payUC.Initiate(r.Context(), UserID(r.Context()), req.PlanID, req.AutoRenew)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	metrics.IncPayment("initiated")
	writeJSON(w, http.StatusOK, checkout)
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	cancelled, err := s.subUC.CancelActive(r.Context(), UserID(r.Context()))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !cancelled {
		writeError(w, http.StatusNotFound, s.loc(r).T("no_active_subscription"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": s.loc(r).T("subscription_cancelled")})
}

// ---- admin ----

type planUpsertRequest struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Price          *int64   `json:"price"`
	OriginalPrice  *int64   `json:"original_price"`
	Currency       string   `json:"currency"`
	DurationMonths *int     `json:"duration_months"`
	Features       []string `json:"features"`
	Popular        *bool    `json:"popular"`
}

func (s *Server) adminPlansListHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.ListAll(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanViews(plans))
}

func (s *Server) adminPlanCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req planUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, s.loc(r).T("invalid_request"))
		return
	}
	var price, originalPrice int64
	var months int
	if req.Price != nil {
		price = *req.Price
	}
	if req.OriginalPrice != nil {
		originalPrice = *req.OriginalPrice
	}
	if req.DurationMonths != nil {
		months = *req.DurationMonths
	}
	popular := req.Popular != nil && *req.Popular
	plan, err := s.planUC.Create(r.Context(), req.ID, req.Name, price, originalPrice, req.Currency, months, req.Features, popular)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanView(plan))
}

func (s *Server) adminPlanUpdateHandler(w http.ResponseWriter, r *http.Request) {
	var req planUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, s.loc(r).T("invalid_request"))
		return
	}
	in := usecase.UpdateInput{
		Price:          req.Price,
		OriginalPrice:  req.OriginalPrice,
		DurationMonths: req.DurationMonths,
		Features:       req.Features,
	}
	if req.Name != "" {
		in.Name = &req.Name
	}
	plan, err := s.planUC.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanView(plan))
}

func (s *Server) adminPlanArchiveHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.planUC.Archive(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) adminPlanReactivateHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.planUC.Reactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) adminPlanTogglePopularHandler(w http.ResponseWriter, r *http.Request) {
	popular, err := s.planUC.TogglePopular(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"popular": popular})
}

func (s *Server) adminStatsHandler(w http.ResponseWriter, r *http.Request) {
	byStatus, err := s.subUC.CountByStatus(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	byPlan, err := s.subUC.CountActiveByPlan(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	metrics.SetSubscriptionsTotal(byStatus)
	writeJSON(w, http.StatusOK, struct {
		ByStatus     map[model.SubscriptionStatus]int `json:"by_status"`
		ActiveByPlan map[string]int                   `json:"active_by_plan"`
	}{
		ByStatus:     byStatus,
		ActiveByPlan: byPlan,
	})
}
