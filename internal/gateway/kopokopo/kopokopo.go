// Package kopokopo integrates the Kopo Kopo (K2) rail: STK incoming
// payments and the signed webhook adapter.
package kopokopo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"rentledger/internal/domain/gatewayconfig"
	"rentledger/internal/gateway"

	"github.com/cenkalti/backoff/v4"
)

type Client struct {
	http *http.Client
}

func New(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

func baseURL(env gatewayconfig.Environment) string {
	if env == gatewayconfig.EnvProduction {
		return "https://api.kopokopo.com"
	}
	return "https://sandbox.kopokopo.com"
}

func (c *Client) token(ctx context.Context, cred gateway.Credentials) (string, error) {
	url := baseURL(cred.Environment) + "/oauth/token"
	form := fmt.Sprintf("grant_type=client_credentials&client_id=%s&client_secret=%s",
		cred.APIKey, cred.APISecret)

	var token string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(form))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		res, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode == http.StatusUnauthorized {
			b, _ := io.ReadAll(res.Body)
			return backoff.Permanent(fmt.Errorf("kopokopo auth failed: %s; body=%s", res.Status, string(b)))
		}
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("kopokopo auth failed: %s", res.Status)
		}
		var t struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.NewDecoder(res.Body).Decode(&t); err != nil {
			return err
		}
		token = t.AccessToken
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}
	return token, nil
}

// Push creates an incoming payment (M-PESA STK prompt via K2). K2 returns
// the resource id in the Location header of a 201.
func (c *Client) Push(ctx context.Context, cred gateway.Credentials, r gateway.PushRequest) (*gateway.PushResponse, error) {
	token, err := c.token(ctx, cred)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"payment_channel": "M-PESA STK Push",
		"till_number":     cred.Shortcode,
		"subscriber": map[string]any{
			"phone_number": "+" + r.Phone,
		},
		"amount": map[string]any{
			"currency": "KES",
			"value":    strconv.Itoa(r.Amount),
		},
		"metadata": map[string]any{
			"reference":     r.Reference,
			"customer_note": r.Description,
		},
		"_links": map[string]any{
			"callback_url": r.CallbackURL,
		},
	}

	b, _ := json.Marshal(payload)
	url := baseURL(cred.Environment) + "/api/v1/incoming_payments"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(res.Body)
		var out struct {
			ErrorMessage string `json:"error_message"`
			ErrorCode    string `json:"error_code"`
		}
		_ = json.Unmarshal(body, &out)
		if out.ErrorMessage == "" {
			out.ErrorMessage = strings.TrimSpace(string(body))
		}
		return nil, &gateway.Error{Code: out.ErrorCode, Description: out.ErrorMessage}
	}

	// Location: .../incoming_payments/<id>
	id := path.Base(res.Header.Get("Location"))
	return &gateway.PushResponse{
		CheckoutRequestID:   id,
		MerchantRequestID:   r.Reference,
		ResponseDescription: "Accepted",
		CustomerMessage:     "Payment prompt sent",
	}, nil
}

// webhookPayload is the K2 event envelope.
type webhookPayload struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
	Event struct {
		Type     string `json:"type"`
		Resource struct {
			ID                string `json:"id"`
			Reference         string `json:"reference"` // M-Pesa receipt
			Status            string `json:"status"`    // "Received" / "Failed"
			Amount            string `json:"amount"`
			Currency          string `json:"currency"`
			TillNumber        string `json:"till_number"`
			SenderPhoneNumber string `json:"sender_phone_number"`
			SenderFirstName   string `json:"sender_first_name"`
			SenderLastName    string `json:"sender_last_name"`
			Errors            string `json:"errors"`
			Metadata          struct {
				Reference string `json:"reference"`
			} `json:"metadata"`
		} `json:"resource"`
	} `json:"event"`
}

// ParseWebhook normalizes a K2 webhook. The till number is returned so the
// handler can identify the landlord.
func ParseWebhook(body []byte) (gateway.CallbackEvent, string, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return gateway.CallbackEvent{}, "", fmt.Errorf("bad kopokopo json: %w", err)
	}
	res := p.Event.Resource
	if res.ID == "" {
		return gateway.CallbackEvent{}, "", fmt.Errorf("unrecognized kopokopo webhook shape")
	}

	amount := 0
	if f, err := strconv.ParseFloat(strings.TrimSpace(res.Amount), 64); err == nil {
		amount = int(f + 0.5)
	}

	success := strings.EqualFold(res.Status, "Received") || strings.EqualFold(res.Status, "Success")

	evt := gateway.CallbackEvent{
		Gateway:       gatewayconfig.KindKopoKopo,
		GatewayRef:    res.Reference,
		CorrelationID: res.ID,
		Success:       success,
		Amount:        amount,
		Phone:         strings.TrimPrefix(strings.TrimSpace(res.SenderPhoneNumber), "+"),
		SenderName:    strings.TrimSpace(res.SenderFirstName + " " + res.SenderLastName),
		ReferenceHint: strings.TrimSpace(res.Metadata.Reference),
		Raw:           body,
	}
	if !success {
		evt.FailureReason = res.Errors
	}
	return evt, strings.TrimSpace(res.TillNumber), nil
}

// VerifySignature checks the X-KopoKopo-Signature header: hex HMAC-SHA256 of
// the raw body keyed by the API secret.
func VerifySignature(body []byte, signature, apiSecret string) bool {
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(want))
}
