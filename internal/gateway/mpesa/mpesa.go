// Package mpesa talks to the Safaricom Daraja API: OAuth, STK push, and the
// STK callback adapter.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
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
		return "https://api.safaricom.co.ke"
	}
	return "https://sandbox.safaricom.co.ke"
}

// token fetches an OAuth token. Daraja's auth endpoint flakes under load, so
// the fetch retries briefly with exponential backoff before giving up.
func (c *Client) token(ctx context.Context, cred gateway.Credentials) (string, error) {
	url := baseURL(cred.Environment) + "/oauth/v1/generate?grant_type=client_credentials"

	var token string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(cred.ConsumerKey, cred.ConsumerSecret)
		res, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			b, _ := io.ReadAll(res.Body)
			return backoff.Permanent(fmt.Errorf("auth failed: %s; body=%s", res.Status, string(b)))
		}
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("auth failed: %s", res.Status)
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

// Push issues an STK push. Password = base64(shortcode + passkey + timestamp)
// per the Daraja contract.
func (c *Client) Push(ctx context.Context, cred gateway.Credentials, r gateway.PushRequest) (*gateway.PushResponse, error) {
	token, err := c.token(ctx, cred)
	if err != nil {
		return nil, err
	}

	// Daraja expects the timestamp in EAT.
	ts := time.Now().In(time.FixedZone("EAT", 3*3600)).Format("20060102150405")
	pwd := base64.StdEncoding.EncodeToString([]byte(cred.Shortcode + cred.Passkey + ts))

	payload := map[string]any{
		"BusinessShortCode": cred.Shortcode,
		"Password":          pwd,
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            r.Amount,
		"PartyA":            r.Phone,
		"PartyB":            cred.Shortcode,
		"PhoneNumber":       r.Phone,
		"CallBackURL":       r.CallbackURL,
		"AccountReference":  r.AccountReference,
		"TransactionDesc":   r.Description,
	}

	b, _ := json.Marshal(payload)
	url := baseURL(cred.Environment) + "/mpesa/stkpush/v1/processrequest"
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
		MerchantRequestID   string `json:"MerchantRequestID"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		CustomerMessage     string `json:"CustomerMessage"`
		ErrorCode           string `json:"errorCode"`
		ErrorMessage        string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("stk response parse: %w; body=%s", err, string(body))
	}

	if out.ErrorCode != "" {
		return nil, &gateway.Error{Code: out.ErrorCode, Description: out.ErrorMessage}
	}
	if res.StatusCode != http.StatusOK || out.ResponseCode != "0" {
		return nil, &gateway.Error{Code: out.ResponseCode, Description: out.ResponseDescription}
	}

	return &gateway.PushResponse{
		CheckoutRequestID:   out.CheckoutRequestID,
		MerchantRequestID:   out.MerchantRequestID,
		ResponseDescription: out.ResponseDescription,
		CustomerMessage:     out.CustomerMessage,
	}, nil
}
