package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"briefly60-subscription/internal/domain/ports/adapter"
)

const (
	sandboxBaseURL = "https://sandbox.sslcommerz.com"
	liveBaseURL    = "https://securepay.sslcommerz.com"
)

// SSLCommerzGateway implements adapter.PaymentGateway using direct HTTP calls
// against the SSLCommerz hosted-checkout API.
type SSLCommerzGateway struct {
	storeID       string
	storePassword string
	baseURL       string
	client        *http.Client
}

// NewSSLCommerzGateway creates a gateway for the sandbox or live environment.
func NewSSLCommerzGateway(storeID, storePassword string, live bool) *SSLCommerzGateway {
	baseURL := sandboxBaseURL
	if live {
		baseURL = liveBaseURL
	}
	return &SSLCommerzGateway{
		storeID:       storeID,
		storePassword: storePassword,
		baseURL:       baseURL,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *SSLCommerzGateway) Name() string { return "sslcommerz" }

type sessionResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// validationResponse covers both validationserverAPI and the merchant
// transaction lookup; amounts come back as strings.
type validationResponse struct {
	Status      string `json:"status"`
	TranID      string `json:"tran_id"`
	ValID       string `json:"val_id"`
	Amount      string `json:"amount"`
	StoreAmount string `json:"store_amount"`
	CardType    string `json:"card_type"`
	CardBrand   string `json:"card_brand"`
	CardIssuer  string `json:"card_issuer"`
	BankTranID  string `json:"bank_tran_id"`
	TranDate    string `json:"tran_date"`
	Error       string `json:"error"`
}

// InitiateSession opens a hosted checkout session via the v4 process API.
func (g *SSLCommerzGateway) InitiateSession(ctx context.Context, req adapter.SessionRequest) (*adapter.Session, error) {
	form := url.Values{}
	form.Set("store_id", g.storeID)
	form.Set("store_passwd", g.storePassword)
	form.Set("total_amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", req.Currency)
	form.Set("tran_id", req.TransactionID)
	form.Set("success_url", req.SuccessURL)
	form.Set("fail_url", req.FailURL)
	form.Set("cancel_url", req.CancelURL)
	if req.IPNURL != "" {
		form.Set("ipn_url", req.IPNURL)
	}
	form.Set("product_name", req.ProductName)
	form.Set("product_category", "subscription")
	form.Set("product_profile", "non-physical-goods")
	form.Set("cus_name", req.CustomerName)
	form.Set("cus_email", req.CustomerEmail)
	form.Set("cus_add1", "Dhaka")
	form.Set("cus_city", "Dhaka")
	form.Set("cus_country", "Bangladesh")
	form.Set("cus_phone", "N/A")
	form.Set("shipping_method", "NO")
	form.Set("num_of_item", "1")
	form.Set("value_a", req.ValueA)
	form.Set("value_b", req.ValueB)
	form.Set("value_c", req.ValueC)
	valueD := req.ValueD
	if valueD == "" {
		valueD = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	form.Set("value_d", valueD)

	var out sessionResponse
	if err := g.postForm(ctx, "/gwprocess/v4/api.php", form, &out); err != nil {
		return nil, err
	}
	if out.Status != "SUCCESS" {
		reason := out.FailedReason
		if reason == "" {
			reason = "payment initialization failed"
		}
		return nil, fmt.Errorf("sslcommerz session: %s", reason)
	}
	return &adapter.Session{
		GatewayURL: out.GatewayPageURL,
		SessionKey: out.SessionKey,
	}, nil
}

// ValidatePayment fetches the authoritative transaction state by val_id.
// The caller decides what a non-VALID status means; any status the provider
// returns is passed through.
func (g *SSLCommerzGateway) ValidatePayment(ctx context.Context, valID string) (*adapter.ValidationResult, error) {
	q := url.Values{}
	q.Set("val_id", valID)
	q.Set("store_id", g.storeID)
	q.Set("store_passwd", g.storePassword)
	q.Set("format", "json")

	var out validationResponse
	if err := g.getJSON(ctx, "/validator/api/validationserverAPI.php", q, &out); err != nil {
		return nil, err
	}
	return out.toResult(), nil
}

// VerifyTransaction fetches the state by our transaction id; used when no
// callback ever arrived.
func (g *SSLCommerzGateway) VerifyTransaction(ctx context.Context, transactionID string) (*adapter.ValidationResult, error) {
	q := url.Values{}
	q.Set("tran_id", transactionID)
	q.Set("store_id", g.storeID)
	q.Set("store_passwd", g.storePassword)
	q.Set("format", "json")

	var out validationResponse
	if err := g.getJSON(ctx, "/validator/api/merchantTransIDvalidationAPI.php", q, &out); err != nil {
		return nil, err
	}
	return out.toResult(), nil
}

// InitiateRefund requests a refund against the settled bank transaction.
func (g *SSLCommerzGateway) InitiateRefund(ctx context.Context, bankTranID string, amount int64, remarks string) error {
	form := url.Values{}
	form.Set("bank_tran_id", bankTranID)
	form.Set("refund_amount", strconv.FormatInt(amount, 10))
	form.Set("refund_remarks", remarks)
	form.Set("store_id", g.storeID)
	form.Set("store_passwd", g.storePassword)
	form.Set("format", "json")

	var out struct {
		Status      string `json:"status"`
		ErrorReason string `json:"errorReason"`
	}
	if err := g.postForm(ctx, "/validator/api/merchantTransIDvalidationAPI.php", form, &out); err != nil {
		return err
	}
	if out.Status != "SUCCESS" {
		reason := out.ErrorReason
		if reason == "" {
			reason = "refund initiation failed"
		}
		return fmt.Errorf("sslcommerz refund: %s", reason)
	}
	return nil
}

// VerifySignature checks the HMAC-SHA256 the provider attaches to callbacks:
// hex(HMAC(store_passwd, tran_id + val_id + amount + store_passwd)).
func (g *SSLCommerzGateway) VerifySignature(transactionID, valID, amount, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.storePassword))
	mac.Write([]byte(transactionID + valID + amount + g.storePassword))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *SSLCommerzGateway) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return g.do(req, out)
}

func (g *SSLCommerzGateway) getJSON(ctx context.Context, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return g.do(req, out)
}

func (g *SSLCommerzGateway) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	return nil
}

func (r *validationResponse) toResult() *adapter.ValidationResult {
	res := &adapter.ValidationResult{
		Status:        r.Status,
		TransactionID: r.TranID,
		ValID:         r.ValID,
		Amount:        parseTaka(r.Amount),
		StoreAmount:   parseTaka(r.StoreAmount),
		CardType:      r.CardType,
		CardBrand:     r.CardBrand,
		CardIssuer:    r.CardIssuer,
		BankTranID:    r.BankTranID,
	}
	if t, err := time.Parse("2006-01-02 15:04:05", r.TranDate); err == nil {
		res.PaidAt = t
	}
	return res
}

// parseTaka reads the gateway's decimal amount strings ("499.00") into whole
// taka, truncating fractional paisa.
func parseTaka(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}
