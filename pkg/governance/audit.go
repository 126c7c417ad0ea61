package governance

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AuditLogger appends governance events to a JSONL sink. Logging is
// fire-and-forget: a sink failure never fails the governed request.
type AuditLogger struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	file    *os.File
	enabled bool
}

// NewAuditLogger opens (or creates) the audit file. An empty path logs to
// stderr.
func NewAuditLogger(path string, enabled bool) (*AuditLogger, error) {
	if !enabled {
		return &AuditLogger{enabled: false}, nil
	}

	var file *os.File
	out := os.Stderr
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		file = f
		out = f
	}

	return &AuditLogger{
		logger:  zerolog.New(out).With().Timestamp().Logger(),
		file:    file,
		enabled: true,
	}, nil
}

// Close closes the underlying file handle.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func (a *AuditLogger) record(eventType, eventID, sessionID, userID string, fields map[string]interface{}) {
	if !a.enabled {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("event_type", eventType).
		Str("event_id", eventID).
		Str("session_id", sessionID).
		Time("at", time.Now())
	if userID != "" {
		entry = entry.Str("user_id", userID)
	}
	if fields != nil {
		entry = entry.Fields(fields)
	}
	entry.Msg("")
}

// LogRequest records an incoming governed request.
func (a *AuditLogger) LogRequest(eventID, sessionID, userID string, messageLen int) {
	a.record("request", eventID, sessionID, userID, map[string]interface{}{
		"message_length": messageLen,
	})
}

// LogViolation records a governance violation.
func (a *AuditLogger) LogViolation(eventID, sessionID, userID, violationType string, details map[string]interface{}) {
	a.record("violation", eventID, sessionID, userID, map[string]interface{}{
		"violation_type": violationType,
		"details":        details,
	})
}

// LogPIIEvent records detected PII without the underlying text.
func (a *AuditLogger) LogPIIEvent(eventID, sessionID, userID string, entityCount int, entityTypes []string) {
	a.record("pii", eventID, sessionID, userID, map[string]interface{}{
		"entity_count": entityCount,
		"entity_types": entityTypes,
	})
}

// LogResponse records the outcome of a governed request.
func (a *AuditLogger) LogResponse(eventID, sessionID, userID string, tokensUsed int, latencyMs float64, success bool) {
	a.record("response", eventID, sessionID, userID, map[string]interface{}{
		"tokens_used": tokensUsed,
		"latency_ms":  latencyMs,
		"success":     success,
	})
}
