package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"

	"rentledger/internal/domain/gatewayconfig"
	"rentledger/internal/gateway"
)

// stkCallback is the exact JSON shape Safaricom posts after an STK push.
type stkCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback normalizes a Daraja STK callback. ResultCode 0 is success;
// the metadata items carry amount, receipt and phone. AccountReference is
// only present on some sandbox shapes, so the reference hint may be empty.
func ParseCallback(body []byte) (gateway.CallbackEvent, error) {
	var cb stkCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return gateway.CallbackEvent{}, fmt.Errorf("bad stk json: %w", err)
	}
	stk := cb.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		return gateway.CallbackEvent{}, fmt.Errorf("unrecognized stk callback shape")
	}

	evt := gateway.CallbackEvent{
		Gateway:       gatewayconfig.KindMpesaCustom,
		CorrelationID: stk.CheckoutRequestID,
		Success:       stk.ResultCode == 0,
		Raw:           body,
	}
	if !evt.Success {
		evt.FailureReason = stk.ResultDesc
	}

	for _, it := range stk.CallbackMetadata.Item {
		switch it.Name {
		case "Amount":
			evt.Amount = asInt(it.Value)
		case "MpesaReceiptNumber":
			if s, ok := it.Value.(string); ok {
				evt.GatewayRef = s
			}
		case "PhoneNumber":
			evt.Phone = asString(it.Value)
		case "AccountReference":
			if s, ok := it.Value.(string); ok {
				evt.ReferenceHint = s
			}
		}
	}
	return evt, nil
}

// Sandboxes serialize numbers inconsistently; accept every shape seen.
func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return int(f)
		}
	}
	return 0
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return fmt.Sprintf("%.0f", s)
	case json.Number:
		return s.String()
	}
	return ""
}
