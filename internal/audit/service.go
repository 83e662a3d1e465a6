package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
)

// WriteEvent inserts evt, assigning an EventID if the caller left it nil.
// A DB failure is masked from the caller: the event is spooled to disk and
// the replayer drains it once the DB is reachable again.
func (s *Service) WriteEvent(ctx context.Context, evt Event) error {
	if evt.EventID == uuid.Nil {
		evt.EventID = uuid.New()
	}

	query := `
		INSERT INTO audit_events (
			event_id, action, target_type, target_id, result, reason, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING
	`

	_, err := s.DB.ExecContext(ctx, query,
		evt.EventID, evt.Action, evt.TargetType, evt.TargetID,
		evt.Result, evt.Reason, evt.Metadata, evt.CreatedAt,
	)
	if err != nil {
		log.Printf("audit: db write failed, spooling event %s: %v", evt.EventID, err)
		if spoolErr := SpoolEvent(evt); spoolErr != nil {
			log.Printf("audit: spool failed for event %s: %v", evt.EventID, spoolErr)
			return fmt.Errorf("audit: write and spool both failed: %w", spoolErr)
		}
		return nil
	}
	return nil
}

// QueryEvents implements §6's GET /audit/events cursor pagination.
func (s *Service) QueryEvents(ctx context.Context, f Filter) ([]Event, string, error) {
	q := `SELECT id, event_id, action, target_type, target_id, result, reason, created_at, metadata
	      FROM audit_events WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.Result != "" {
		q += fmt.Sprintf(" AND result = $%d", idx)
		args = append(args, f.Result)
		idx++
	}
	if f.Cursor != "" {
		q += fmt.Sprintf(" AND (created_at, id) < (SELECT created_at, id FROM audit_events WHERE id = $%d)", idx)
		args = append(args, f.Cursor)
		idx++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var events []Event
	var lastID string
	for rows.Next() {
		var evt Event
		var meta []byte
		if err := rows.Scan(&evt.ID, &evt.EventID, &evt.Action, &evt.TargetType, &evt.TargetID, &evt.Result, &evt.Reason, &evt.CreatedAt, &meta); err != nil {
			return nil, "", err
		}
		if len(meta) > 0 {
			evt.Metadata = meta
		}
		events = append(events, evt)
		lastID = evt.ID.String()
	}
	return events, lastID, nil
}

// ExportEvents streams events, newest first, as newline-delimited JSON,
// capped at maxExportRecords so an unbounded query can't exhaust memory or
// the response writer. f is not applied: every stored event is exported,
// up to the cap.
const maxExportRecords = 10000

func (s *Service) ExportEvents(ctx context.Context, f Filter, w io.Writer) error {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, event_id, action, target_type, target_id, result, reason, created_at, metadata FROM audit_events ORDER BY created_at DESC`)
	if err != nil {
		return err
	}
	defer rows.Close()

	enc := json.NewEncoder(w)
	count := 0
	for rows.Next() {
		if count >= maxExportRecords {
			break
		}
		var evt Event
		var meta []byte
		if err := rows.Scan(&evt.ID, &evt.EventID, &evt.Action, &evt.TargetType, &evt.TargetID, &evt.Result, &evt.Reason, &evt.CreatedAt, &meta); err != nil {
			return err
		}
		if len(meta) > 0 {
			evt.Metadata = meta
		}
		if err := enc.Encode(evt); err != nil {
			return err
		}
		count++
	}
	return nil
}
