// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/logging"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/middleware"
)

// maxValueLength bounds a logged sample value.
const maxValueLength = 100

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a sample value.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventStatementRejected is logged when a statement is malformed, names an
	// unknown parameter or is refused by the database.
	EventStatementRejected SecurityEventType = "statement_rejected"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	RequestID string            `json:"request_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a flagged sample value.
type SQLInjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Statement   string `json:"statement"`   // sanitized
}

// StatementRejectedDetails describes a statement that was refused.
type StatementRejectedDetails struct {
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Statement string `json:"statement"` // sanitized
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems. If logger is nil, a no-op logger is used.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a sample value that libinjection flagged.
// This is logged at ERROR level with "critical" severity for immediate alerting.
//
// The request id is taken from the context set by middleware.RequestLogger.
// Statement and value are sanitized and truncated before logging.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details SQLInjectionDetails, clientIP string) {
	details.ParamValue = truncate(details.ParamValue, maxValueLength)
	details.Statement = logging.SanitizeQuery(details.Statement)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventSQLInjectionAttempt,
		RequestID: middleware.RequestID(ctx),
		ClientIP:  clientIP,
		Details:   details,
		Severity:  "critical",
	}

	// Ignoring error as marshaling known types should never fail
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("request_id", event.RequestID),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", clientIP),
		zap.String("severity", "critical"),
	)
}

// LogStatementRejected records a statement that could not be described.
// This is logged at WARN level as these are typically user errors, not attacks.
func (a *SecurityAuditor) LogStatementRejected(ctx context.Context, details StatementRejectedDetails, clientIP string) {
	details.Statement = logging.SanitizeQuery(details.Statement)
	details.Message = logging.SanitizeConnectionString(details.Message)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventStatementRejected,
		RequestID: middleware.RequestID(ctx),
		ClientIP:  clientIP,
		Details:   details,
		Severity:  "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Statement rejected",
		zap.String("event_json", string(eventJSON)),
		zap.String("request_id", event.RequestID),
		zap.String("reason", details.Reason),
		zap.String("client_ip", clientIP),
		zap.String("severity", "warning"),
	)
}

// ValueString renders a sample value for an audit record.
func ValueString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
