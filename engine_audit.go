package auth

import "context"

// emitAudit builds and queues an audit event. metaFn is only invoked when
// auditing is enabled, so call sites can build metadata lazily.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, accountID, username string, cause error, metaFn func() map[string]string) {
	if e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.clock(),
		EventType: eventType,
		AccountID: accountID,
		Username:  username,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metaFn != nil {
		event.Metadata = metaFn()
	}

	before := e.audit.Dropped()
	e.audit.Emit(ctx, event)
	if e.audit.Dropped() > before {
		e.metrics.Inc(MetricAuditDropped)
	}
}
