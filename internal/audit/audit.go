// Package audit writes structured trail events for every mutating operation:
// who did what to which record, correlated with the originating request.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stayadmin.org/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so events can
// be correlated with access logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Recorder emits audit events through the service logger and, when a store is
// attached, into the audit_log table. A nil Recorder is usable and drops
// everything, so callers never branch.
type Recorder struct {
	log *zap.Logger
	db  *sql.DB
	now func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithStore persists every event into audit_log on the given database.
func WithStore(db *sql.DB) Option {
	return func(r *Recorder) {
		r.db = db
	}
}

// NewRecorder builds a recorder over the given logger.
func NewRecorder(log *zap.Logger, opts ...Option) *Recorder {
	r := &Recorder{log: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Event records one trail entry. Failures to log are not surfaced to the
// caller: the mutation already happened and must not be rolled back over a
// logging problem.
func (r *Recorder) Event(ctx context.Context, identity auth.Identity, action, resource, recordID string, fields map[string]any) {
	if r == nil {
		return
	}
	eventID := uuid.NewString()
	ts := r.now().UTC()
	requestID := RequestIDFromContext(ctx)

	if r.log != nil {
		attrs := []zap.Field{
			zap.String("event_id", eventID),
			zap.Time("ts", ts),
			zap.String("action", action),
			zap.String("resource", resource),
			zap.String("record_id", recordID),
			zap.String("actor_id", identity.ID),
			zap.String("actor_role", string(identity.Role)),
			zap.String("company_id", identity.CompanyID),
		}
		if requestID != "" {
			attrs = append(attrs, zap.String("request_id", requestID))
		}
		for k, v := range fields {
			attrs = append(attrs, zap.Any(k, v))
		}
		r.log.Info("audit", attrs...)
	}

	if r.db != nil {
		r.persist(ctx, eventID, ts, identity, action, resource, recordID, requestID, fields)
	}
}

func (r *Recorder) persist(ctx context.Context, eventID string, ts time.Time, identity auth.Identity, action, resource, recordID, requestID string, fields map[string]any) {
	var details any
	if len(fields) > 0 {
		raw, err := json.Marshal(fields)
		if err == nil {
			details = string(raw)
		}
	}
	_, err := r.db.ExecContext(ctx,
		`insert into audit_log (id, ts, actor_id, actor_role, company_id, action, resource, record_id, request_id, details)
		 values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)`,
		eventID, ts, identity.ID, string(identity.Role), identity.CompanyID,
		action, resource, recordID, requestID, details,
	)
	if err != nil && r.log != nil {
		// The mutation already happened; a failed trail insert is logged, not
		// surfaced.
		r.log.Warn("audit persist failed", zap.String("event_id", eventID), zap.Error(err))
	}
}
