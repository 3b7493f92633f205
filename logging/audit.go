package logging

// AuditEvent is a security relevant domain event recorded on the audit
// channel. Subscribers can filter on the fixed "channel" attribute to redirect
// audit entries to a secure sink.
type AuditEvent interface {
	auditKind() string
}

// SystemStartup records a kernel subsystem coming online.
type SystemStartup struct {
	Component string
}

func (SystemStartup) auditKind() string { return "system_startup" }

// SystemShutdown records an orderly shutdown and its trigger.
type SystemShutdown struct {
	Reason string
}

func (SystemShutdown) auditKind() string { return "system_shutdown" }

// AccessDenied records a store operation rejected by the access policy.
type AccessDenied struct {
	Scope    string
	Resource string
}

func (AccessDenied) auditKind() string { return "access_denied" }

// ComponentRegistered records a component installing itself into the mesh
// dispatch table.
type ComponentRegistered struct {
	ComponentID string
}

func (ComponentRegistered) auditKind() string { return "component_registered" }

// SessionCommitted records a workspace session reaching its terminal
// committed state.
type SessionCommitted struct {
	SessionID string
	BasePath  string
}

func (SessionCommitted) auditKind() string { return "session_committed" }

// Audit logs an audit event through the given logger. Events carry a fixed
// channel attribute so they can be filtered independently of regular logs.
func Audit(logger Logger, event AuditEvent) {
	if logger == nil {
		logger = NoOpLogger{}
	}
	switch ev := event.(type) {
	case SystemStartup:
		logger.Info("Security audit event", "channel", "audit", "event", ev.auditKind(), "component", ev.Component)
	case SystemShutdown:
		logger.Info("Security audit event", "channel", "audit", "event", ev.auditKind(), "reason", ev.Reason)
	case AccessDenied:
		logger.Warn("Security audit event", "channel", "audit", "event", ev.auditKind(), "scope", ev.Scope, "resource", ev.Resource)
	case ComponentRegistered:
		logger.Info("Security audit event", "channel", "audit", "event", ev.auditKind(), "component_id", ev.ComponentID)
	case SessionCommitted:
		logger.Info("Security audit event", "channel", "audit", "event", ev.auditKind(), "session_id", ev.SessionID, "base_path", ev.BasePath)
	default:
		logger.Info("Security audit event", "channel", "audit", "event", ev.auditKind())
	}
}
