package security

import (
	"regexp"
	"strings"
)

var (
	// Patterns for sensitive data
	jwtPattern    = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`)
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]{8,}`)
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|password|auth)["\s:=]+["']?([a-zA-Z0-9_-]{16,})["']?`)
	walletPattern = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
)

// MaskString masks credentials and shortens wallet addresses in free text,
// e.g. upstream error bodies before they reach logs or the ledger
func MaskString(s string) string {
	s = jwtPattern.ReplaceAllString(s, "eyJ***REDACTED***")
	s = bearerPattern.ReplaceAllString(s, "Bearer ***REDACTED***")
	s = apiKeyPattern.ReplaceAllString(s, "$1: ***REDACTED***")
	s = walletPattern.ReplaceAllStringFunc(s, MaskWalletAddress)
	return s
}

// MaskWalletAddress keeps the first 6 and last 4 characters
func MaskWalletAddress(addr string) string {
	if len(addr) < 10 {
		return "0x****"
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// MaskAPIKey masks an API key showing only first 4 chars
func MaskAPIKey(key string) string {
	if len(key) < 4 {
		return "****"
	}
	return key[:4] + strings.Repeat("*", len(key)-4)
}
