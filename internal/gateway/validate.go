package gateway

import (
	"fmt"
	"regexp"
	"strings"
)

var kenyanMSISDN = []*regexp.Regexp{
	regexp.MustCompile(`^254[17]\d{8}$`),
	regexp.MustCompile(`^254[78]\d{8}$`),
}

// NormalizePhone strips separators, converts a leading 0 to the Kenyan
// country code and validates the result.
func NormalizePhone(phone string) (string, error) {
	normalized := strings.ReplaceAll(phone, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "+", "")
	if strings.HasPrefix(normalized, "0") {
		normalized = "254" + normalized[1:]
	}
	for _, pattern := range kenyanMSISDN {
		if pattern.MatchString(normalized) {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("invalid phone number format: %s", phone)
}

// ValidateAmount checks the bounds for an initiation amount in whole KES.
func ValidateAmount(amount, ceiling int) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	if ceiling > 0 && amount > ceiling {
		return fmt.Errorf("amount must not exceed %d KES", ceiling)
	}
	return nil
}
