package security

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// AuditEventType represents the type of audit event.
type AuditEventType string

const (
	// Authentication events
	AuditLogin          AuditEventType = "LOGIN"
	AuditLogout         AuditEventType = "LOGOUT"
	AuditSessionExpired AuditEventType = "SESSION_EXPIRED"
	AuditAuthFailed     AuditEventType = "AUTH_FAILED"

	// Credential events
	AuditCredentialAccess  AuditEventType = "CREDENTIAL_ACCESS"
	AuditCredentialUpdated AuditEventType = "CREDENTIAL_UPDATED"

	// Data events
	AuditCacheCleared  AuditEventType = "CACHE_CLEARED"
	AuditConfigChanged AuditEventType = "CONFIG_CHANGED"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	Ticker    string                 `json:"ticker,omitempty"`
	Action    string                 `json:"action,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// AuditLogger appends JSON-line audit events to a rotating file.
type AuditLogger struct {
	writer    *lumberjack.Logger
	mu        sync.Mutex
	sessionID string
}

// AuditConfig holds audit logger configuration.
type AuditConfig struct {
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultAuditConfig returns the default audit configuration.
func DefaultAuditConfig() AuditConfig {
	home, _ := os.UserHomeDir()
	return AuditConfig{
		LogDir:     filepath.Join(home, ".config", "stock-predictor", "audit"),
		MaxSize:    50,
		MaxBackups: 30,
		MaxAge:     365,
		Compress:   true,
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "audit.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	return &AuditLogger{
		writer:    writer,
		sessionID: generateSessionID(),
	}, nil
}

// Log writes one audit event.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	event.Timestamp = time.Now().UTC()
	event.SessionID = al.sessionID
	event.ErrorMsg = Redact(event.ErrorMsg)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}
	if _, err := al.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	return nil
}

// LogLogin logs a broker login attempt.
func (al *AuditLogger) LogLogin(ctx context.Context, success bool, errorMsg string) error {
	eventType := AuditLogin
	if !success {
		eventType = AuditAuthFailed
	}
	return al.Log(ctx, AuditEvent{
		EventType: eventType,
		Success:   success,
		ErrorMsg:  errorMsg,
	})
}

// LogLogout logs a broker logout.
func (al *AuditLogger) LogLogout(ctx context.Context) error {
	return al.Log(ctx, AuditEvent{EventType: AuditLogout, Success: true})
}

// LogCredentialAccess logs a decryption of the credential file.
func (al *AuditLogger) LogCredentialAccess(ctx context.Context, success bool, errorMsg string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditCredentialAccess,
		Success:   success,
		ErrorMsg:  errorMsg,
	})
}

// LogCredentialUpdate logs a rewrite of the credential file.
func (al *AuditLogger) LogCredentialUpdate(ctx context.Context, success bool, errorMsg string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditCredentialUpdated,
		Success:   success,
		ErrorMsg:  errorMsg,
	})
}

// LogCacheCleared logs a manual cache invalidation.
func (al *AuditLogger) LogCacheCleared(ctx context.Context, pattern string, success bool, errorMsg string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditCacheCleared,
		Action:    pattern,
		Success:   success,
		ErrorMsg:  errorMsg,
	})
}

// Close closes the audit logger.
func (al *AuditLogger) Close() error {
	return al.writer.Close()
}

// generateSessionID generates a unique session ID.
func generateSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
