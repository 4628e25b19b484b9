// Package compliance records an append-only audit trail of sensitive bot actions.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType names an audited action.
type AuditEventType string

const (
	// EventUserRegistered is logged when a registration completes.
	EventUserRegistered AuditEventType = "user.registered"
	// EventExport is logged for every spreadsheet export request.
	EventExport AuditEventType = "admin.export"
	// EventAdminDenied is logged when a non-admin uses an admin command.
	EventAdminDenied AuditEventType = "admin.denied"
	// EventHospitalAdded is logged when an admin adds a hospital.
	EventHospitalAdded AuditEventType = "admin.hospital_added"
	// EventDoctorAdded is logged when an admin adds a doctor.
	EventDoctorAdded AuditEventType = "admin.doctor_added"
	// EventBookingCreated is logged when a user books an appointment.
	EventBookingCreated AuditEventType = "booking.created"
)

// AuditEvent is one immutable audit record.
type AuditEvent struct {
	ID        string          `json:"id"`
	EventType AuditEventType  `json:"event_type"`
	UserID    string          `json:"user_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditService writes and reads audit events.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service. A nil db makes every call a no-op.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records an audit event.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_events (id, event_type, user_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		nullString(event.UserID),
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}
	return nil
}

// Log is a convenience wrapper marshalling details.
func (s *AuditService) Log(ctx context.Context, eventType AuditEventType, userID string, details any) error {
	var raw json.RawMessage
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("compliance: marshal details: %w", err)
		}
		raw = data
	}
	return s.LogEvent(ctx, AuditEvent{EventType: eventType, UserID: userID, Details: raw})
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	UserID    string
	EventType AuditEventType
	Since     time.Time
	Limit     int
}

// QueryEvents returns matching events, newest first.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := `
		SELECT id, event_type, user_id, details, created_at
		FROM audit_events
		WHERE 1=1
	`
	var args []any
	argIdx := 1
	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, string(filter.EventType))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.Since)
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var eventType string
		var userID sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &eventType, &userID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.EventType = AuditEventType(eventType)
		e.UserID = userID.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to read audit events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
