package security

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validation patterns
var (
	// Ticker pattern: uppercase letters, numbers, and limited special chars.
	tickerPattern = regexp.MustCompile(`^[A-Z0-9&-]{1,20}$`)

	// Source name pattern: alphanumeric with spaces, underscores and dashes.
	sourceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_ -]{1,50}$`)

	// API key patterns for detection (not validation).
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret|secret[_-]?key|access[_-]?token|auth[_-]?token|bearer|password)[=:\s]+["']?([A-Za-z0-9_\-.]{8,})["']?`),
		regexp.MustCompile(`[A-Za-z0-9]{32,}`), // generic long tokens
	}
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// ValidateTicker checks an exchange symbol before it reaches the store or
// a feed URL.
func ValidateTicker(ticker string) error {
	trimmed := strings.TrimSpace(ticker)
	if trimmed == "" {
		return &ValidationError{Field: "ticker", Message: "must not be empty"}
	}
	if !tickerPattern.MatchString(strings.ToUpper(trimmed)) {
		return &ValidationError{
			Field:   "ticker",
			Value:   ticker,
			Message: "must be 1-20 characters: letters, digits, & or -",
		}
	}
	return nil
}

// ValidateMarket checks a market code against the supported exchanges.
func ValidateMarket(market string) error {
	switch strings.ToUpper(strings.TrimSpace(market)) {
	case "NSE", "BSE", "NYSE":
		return nil
	}
	return &ValidationError{
		Field:   "market",
		Value:   market,
		Message: "must be one of NSE, BSE, NYSE",
	}
}

// ValidateSourceName checks a news source name.
func ValidateSourceName(name string) error {
	if !sourceNamePattern.MatchString(name) {
		return &ValidationError{
			Field:   "source",
			Value:   name,
			Message: "must be 1-50 characters: letters, digits, space, _ or -",
		}
	}
	return nil
}

// ValidateFeedURL checks a headline feed URL: http(s) with a host. The
// {ticker} and {company} placeholders are allowed anywhere in the path.
func ValidateFeedURL(raw string) error {
	parsed, err := url.Parse(strings.NewReplacer("{ticker}", "T", "{company}", "C").Replace(raw))
	if err != nil {
		return &ValidationError{Field: "url", Value: raw, Message: "not a valid URL"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{Field: "url", Value: raw, Message: "scheme must be http or https"}
	}
	if parsed.Host == "" {
		return &ValidationError{Field: "url", Value: raw, Message: "missing host"}
	}
	return nil
}

// MaskCredential masks a credential value for display and logging.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// ContainsSensitiveData checks if a string contains credential-like patterns.
func ContainsSensitiveData(input string) bool {
	for _, pattern := range apiKeyPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}
