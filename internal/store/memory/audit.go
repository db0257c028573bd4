package memory

import (
	"context"
	"slices"

	"github.com/noah-isme/backend-resto/internal/audit"
)

// InsertAuditEntry appends e to the audit trail.
func (s *Store) InsertAuditEntry(ctx context.Context, e audit.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

// ListAuditEntries returns entries newest first.
func (s *Store) ListAuditEntries(ctx context.Context, limit, offset int) ([]audit.Entry, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.auditMu.RLock()
	out := slices.Clone(s.audit)
	s.auditMu.RUnlock()
	slices.Reverse(out)
	total := len(out)
	offset = min(max(offset, 0), total)
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}
