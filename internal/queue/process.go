package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tuchaVshortah/financial-kg-agent/internal/audit"
	"github.com/tuchaVshortah/financial-kg-agent/internal/util"
	"github.com/tuchaVshortah/financial-kg-agent/pkg/logger"
)

// ProcessAuditEvent handles one message from the audit queue: it
// appends the event to the canonical JSONL log and inserts it into the
// audit_events table. The insert is keyed on the event id, so a
// redelivered message never produces a second row.
func ProcessAuditEvent(
	ctx context.Context,
	conn *pgxpool.Pool,
	recorder *audit.JSONLRecorder,
	msg []byte,
) error {
	event := new(audit.Event)
	if err := json.Unmarshal(msg, event); err != nil {
		return fmt.Errorf("failed to decode audit event: %w", err)
	}
	if event.ID == "" {
		return fmt.Errorf("audit event has no id")
	}

	if recorder != nil {
		if err := recorder.Record(ctx, event); err != nil {
			return err
		}
	}

	if conn != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode audit event: %w", err)
		}
		_, err = conn.Exec(ctx, insertAuditEventSQL,
			event.ID,
			event.Timestamp,
			util.SanitizePostgresText(event.Question),
			string(event.Status),
			event.Template,
			payload,
		)
		if err != nil {
			return fmt.Errorf("failed to insert audit event: %w", err)
		}
	}

	logger.Debug("[Queue] Stored audit event", "event_id", event.ID, "status", event.Status)
	return nil
}

const insertAuditEventSQL = `
INSERT INTO audit_events (event_id, recorded_at, question, status, template, payload)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (event_id) DO NOTHING;
`
