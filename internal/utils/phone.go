package utils

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minE164Digits = 8
	maxE164Digits = 15
)

// NormalizePhone turns a WhatsApp sender identifier into digits-only
// international form (no '+'). Transport prefixes like "whatsapp:" are dropped.
//
// A leading '+' marks a complete E.164 number, which is kept as is. Without it
// the Brazilian heuristic applies: 10 or 11 digit numbers (DDD + number) get
// the 55 prefix.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "whatsapp:"))
	if raw == "" {
		return "", fmt.Errorf("empty phone")
	}
	international := strings.HasPrefix(raw, "+")

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	phone := strings.TrimLeft(b.String(), "0")

	if international {
		if len(phone) < minE164Digits || len(phone) > maxE164Digits {
			return "", fmt.Errorf("invalid phone length: %d", len(phone))
		}
		return phone, nil
	}

	if len(phone) == 10 || len(phone) == 11 {
		phone = "55" + phone
	}

	if len(phone) < 12 {
		return "", fmt.Errorf("invalid phone length: %d", len(phone))
	}
	return phone, nil
}

// MaskPhone hides the middle digits of a phone number for log output
func MaskPhone(phone string) string {
	if len(phone) <= 6 {
		return phone
	}
	return phone[:4] + strings.Repeat("*", len(phone)-6) + phone[len(phone)-2:]
}
