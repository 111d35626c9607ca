package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// sensitiveFields contains field names that should be masked in logs.
var sensitiveFields = map[string]bool{
	"api_key":       true,
	"api_secret":    true,
	"apikey":        true,
	"apisecret":     true,
	"secret":        true,
	"password":      true,
	"token":         true,
	"access_token":  true,
	"request_token": true,
	"auth_token":    true,
	"bearer":        true,
	"credential":    true,
	"credentials":   true,
	"master_key":    true,
}

// sensitivePatterns matches key=value credential shapes inside free text.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|access[_-]?token|request[_-]?token|auth[_-]?token|bearer|password)[=:\s]+["']?([^\s"']+)["']?`),
}

// SafeLogger wraps a zerolog.Logger so credential values never reach the
// log sink. The auth flows log through this; request and access tokens
// pass through their hands.
type SafeLogger struct {
	logger zerolog.Logger
}

// NewSafeLogger creates a logger that masks sensitive data.
func NewSafeLogger(logger zerolog.Logger) *SafeLogger {
	return &SafeLogger{logger: logger}
}

// Debug starts a debug event with masking applied.
func (sl *SafeLogger) Debug() *SafeEvent {
	return &SafeEvent{event: sl.logger.Debug()}
}

// Info starts an info event with masking applied.
func (sl *SafeLogger) Info() *SafeEvent {
	return &SafeEvent{event: sl.logger.Info()}
}

// Warn starts a warning event with masking applied.
func (sl *SafeLogger) Warn() *SafeEvent {
	return &SafeEvent{event: sl.logger.Warn()}
}

// Error starts an error event with masking applied.
func (sl *SafeLogger) Error() *SafeEvent {
	return &SafeEvent{event: sl.logger.Error()}
}

// SafeEvent wraps zerolog.Event to mask sensitive data.
type SafeEvent struct {
	event *zerolog.Event
}

// Str adds a string field, masking if the key or value looks sensitive.
func (se *SafeEvent) Str(key, val string) *SafeEvent {
	if isSensitiveField(key) {
		se.event = se.event.Str(key, MaskCredential(val))
	} else {
		se.event = se.event.Str(key, Redact(val))
	}
	return se
}

// Int adds an integer field.
func (se *SafeEvent) Int(key string, val int) *SafeEvent {
	se.event = se.event.Int(key, val)
	return se
}

// Bool adds a boolean field.
func (se *SafeEvent) Bool(key string, val bool) *SafeEvent {
	se.event = se.event.Bool(key, val)
	return se
}

// Err adds an error field, masking sensitive data in the message.
func (se *SafeEvent) Err(err error) *SafeEvent {
	if err != nil {
		se.event = se.event.Err(fmt.Errorf("%s", Redact(err.Error())))
	}
	return se
}

// Msg sends the event with a masked message.
func (se *SafeEvent) Msg(msg string) {
	se.event.Msg(Redact(msg))
}

// Msgf sends the event with a masked formatted message.
func (se *SafeEvent) Msgf(format string, args ...interface{}) {
	se.event.Msg(Redact(fmt.Sprintf(format, args...)))
}

// isSensitiveField checks if a field name is sensitive.
func isSensitiveField(field string) bool {
	return sensitiveFields[strings.ToLower(field)]
}

// Redact masks credential-shaped substrings in free text. Safe on text
// with no credentials; the common case returns the input unchanged.
func Redact(input string) string {
	result := input
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			for _, sep := range []string{"=", ":"} {
				if parts := strings.SplitN(match, sep, 2); len(parts) == 2 {
					return parts[0] + sep + MaskCredential(strings.Trim(parts[1], "\"' "))
				}
			}
			return MaskCredential(match)
		})
	}
	return result
}

// RedactFields copies a map with credential values masked, for structured
// output paths like `auth status --json`.
func RedactFields(data map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch {
		case isSensitiveField(k):
			if strVal, ok := v.(string); ok {
				result[k] = MaskCredential(strVal)
			} else {
				result[k] = "***"
			}
		default:
			if strVal, ok := v.(string); ok {
				result[k] = Redact(strVal)
			} else {
				result[k] = v
			}
		}
	}
	return result
}
