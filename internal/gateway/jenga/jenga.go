// Package jenga integrates the Equity Jenga PAY rail: merchant
// authentication, EazzyPay push, and the IPN adapter with per-landlord
// Basic-Auth verification.
package jenga

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
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
		return "https://api.jengahq.io"
	}
	return "https://uat.jengahq.io"
}

func (c *Client) token(ctx context.Context, cred gateway.Credentials) (string, error) {
	url := baseURL(cred.Environment) + "/authentication/api/v3/authenticate/merchant"
	payload, _ := json.Marshal(map[string]string{
		"merchantCode":   cred.Shortcode,
		"consumerSecret": cred.APISecret,
	})

	var token string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Api-Key", cred.APIKey)
		res, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode == http.StatusUnauthorized {
			b, _ := io.ReadAll(res.Body)
			return backoff.Permanent(fmt.Errorf("jenga auth failed: %s; body=%s", res.Status, string(b)))
		}
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("jenga auth failed: %s", res.Status)
		}
		var t struct {
			AccessToken string `json:"accessToken"`
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

// Push initiates an EazzyPay online payment prompt.
func (c *Client) Push(ctx context.Context, cred gateway.Credentials, r gateway.PushRequest) (*gateway.PushResponse, error) {
	token, err := c.token(ctx, cred)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"customer": map[string]any{
			"countryCode":  "KE",
			"mobileNumber": r.Phone,
		},
		"transaction": map[string]any{
			"amount":      strconv.Itoa(r.Amount),
			"description": r.Description,
			"type":        "EazzyPayOnline",
			"billNumber":  r.AccountReference,
			"reference":   r.Reference,
			"currency":    "KES",
			"date":        time.Now().Format("2006-01-02"),
		},
	}

	b, _ := json.Marshal(payload)
	url := baseURL(cred.Environment) + "/transaction/v2/payments"
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

	body, _ := io.ReadAll(res.Body)
	var out struct {
		Status               bool   `json:"status"`
		Code                 int    `json:"code"`
		Message              string `json:"message"`
		TransactionReference string `json:"transactionReference"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("jenga response parse: %w; body=%s", err, string(body))
	}
	if res.StatusCode != http.StatusOK || !out.Status {
		return nil, &gateway.Error{Code: strconv.Itoa(out.Code), Description: out.Message}
	}

	return &gateway.PushResponse{
		CheckoutRequestID:   out.TransactionReference,
		MerchantRequestID:   r.Reference,
		ResponseDescription: out.Message,
		CustomerMessage:     out.Message,
	}, nil
}

// ipnPayload is the Jenga PAY instant payment notification shape.
type ipnPayload struct {
	CallbackType string `json:"callbackType"`
	Status       string `json:"status"` // "SUCCESS" / "FAILED"; older IPNs omit it
	Customer     struct {
		Name         string `json:"name"`
		MobileNumber string `json:"mobileNumber"`
		Reference    string `json:"reference"`
	} `json:"customer"`
	Transaction struct {
		Date           string `json:"date"`
		Reference      string `json:"reference"` // gateway receipt
		PaymentMode    string `json:"paymentMode"`
		Amount         string `json:"amount"`
		BillNumber     string `json:"billNumber"`
		ServedBy       string `json:"servedBy"`
		AdditionalInfo string `json:"additionalInfo"`
	} `json:"transaction"`
	Bank struct {
		Reference       string `json:"reference"`
		TransactionType string `json:"transactionType"`
		Account         string `json:"account"` // merchant account; identifies the landlord
	} `json:"bank"`
}

// ParseIPN normalizes a Jenga IPN. The merchant account in bank.account is
// returned so the handler can identify the landlord before authenticating
// the request.
func ParseIPN(body []byte) (gateway.CallbackEvent, string, error) {
	var p ipnPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return gateway.CallbackEvent{}, "", fmt.Errorf("bad ipn json: %w", err)
	}
	if p.Transaction.Reference == "" {
		return gateway.CallbackEvent{}, "", fmt.Errorf("unrecognized ipn shape")
	}

	amount := 0
	if t := strings.TrimSpace(p.Transaction.Amount); t != "" {
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			amount = int(f + 0.5)
		}
	}

	// A delivered IPN reports a settled payment unless it says otherwise.
	success := !strings.EqualFold(p.Status, "FAILED")

	evt := gateway.CallbackEvent{
		Gateway:       gatewayconfig.KindJenga,
		GatewayRef:    p.Transaction.Reference,
		CorrelationID: p.Bank.Reference,
		Success:       success,
		Amount:        amount,
		Phone:         strings.TrimSpace(p.Customer.MobileNumber),
		SenderName:    strings.TrimSpace(p.Customer.Name),
		ReferenceHint: strings.TrimSpace(p.Transaction.BillNumber),
		Raw:           body,
	}
	if !success {
		evt.FailureReason = p.Transaction.AdditionalInfo
	}
	return evt, strings.TrimSpace(p.Bank.Account), nil
}

// VerifyBasicAuth compares the supplied IPN Basic-Auth pair against the
// landlord's stored credentials in constant time.
func VerifyBasicAuth(gotUser, gotPass, wantUser, wantPass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(gotUser), []byte(wantUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(gotPass), []byte(wantPass)) == 1
	return userOK && passOK
}
