package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-resto/internal/audit"
)

const auditColumns = `id, actor_kind, actor_staff_id, action, resource_type, resource_id, method, path,
route, status, ip, user_agent, request_id, metadata, created_at`

// InsertAuditEntry appends e to audit_log. audit_log carries no revision
// trigger, so cached reports stay valid.
func (s *Store) InsertAuditEntry(ctx context.Context, e audit.Entry) error {
	if err := s.ready(); err != nil {
		return err
	}
	var metadata *string
	if len(e.Metadata) > 0 {
		raw := string(e.Metadata)
		metadata = &raw
	}
	_, err := s.Pool.Exec(ctx, `INSERT INTO audit_log (`+auditColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::jsonb, $15)`,
		e.ID, string(e.ActorKind), e.ActorStaffID, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path,
		e.Route, e.Status, e.IP, e.UserAgent, e.RequestID, metadata, e.CreatedAt)
	return mapErr(err)
}

// ListAuditEntries returns entries newest first.
func (s *Store) ListAuditEntries(ctx context.Context, limit, offset int) ([]audit.Entry, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+auditColumns+` FROM audit_log ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		limit, max(offset, 0))
	if err != nil {
		return nil, 0, mapErr(err)
	}
	out, err := pgx.CollectRows(rows, scanAuditEntry)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	return out, total, nil
}

func scanAuditEntry(row pgx.CollectableRow) (audit.Entry, error) {
	var (
		e        audit.Entry
		kind     string
		metadata []byte
	)
	err := row.Scan(&e.ID, &kind, &e.ActorStaffID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Method, &e.Path,
		&e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &metadata, &e.CreatedAt)
	if err != nil {
		return audit.Entry{}, err
	}
	e.ActorKind = audit.ActorKind(kind)
	if len(metadata) > 0 {
		e.Metadata = json.RawMessage(metadata)
	}
	return e, nil
}
