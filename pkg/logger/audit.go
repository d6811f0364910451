package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventLoginSuccess  = "login_success"
	EventLoginFailed   = "login_failed"
	EventAccountLocked = "account_locked"
	EventSignUp        = "signup"
	EventSignOut       = "signout"
	EventPasswordReset = "password_reset_requested"
	EventUnlock        = "account_unlocked"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	Email         string
	UserID        string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes security events to the structured log
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogAuthEvent logs an authentication event. Emails are always masked.
func (al *AuditLogger) LogAuthEvent(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Email != "" {
		attrs = append(attrs, EmailAttr(event.Email))
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
