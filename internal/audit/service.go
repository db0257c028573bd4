// Package audit keeps a trail of who changed the financial record: order and
// item edits, payments and VAT return generation and submission.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/obs"
)

// ActorKind says where an audited action came from.
type ActorKind string

const (
	// ActorUser is a staff member identified on the request.
	ActorUser ActorKind = "user"
	// ActorSystem is the worker or another internal job.
	ActorSystem ActorKind = "system"
	// ActorAnonymous is a request that carried no staff identity.
	ActorAnonymous ActorKind = "anonymous"
)

// Actor is whoever performed the action.
type Actor struct {
	Kind    ActorKind
	StaffID *uuid.UUID
}

// ActorFrom returns the staff member on ctx, or an anonymous actor.
func ActorFrom(ctx context.Context) Actor {
	if id, ok := common.StaffID(ctx); ok {
		return Actor{Kind: ActorUser, StaffID: &id}
	}
	return Actor{Kind: ActorAnonymous}
}

// Entry is one persisted audit record. Request fields are empty for system
// actions.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	ActorKind    ActorKind       `json:"actorKind"`
	ActorStaffID *uuid.UUID      `json:"actorStaffId,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   *string         `json:"resourceId,omitempty"`
	Method       string          `json:"method,omitempty"`
	Path         string          `json:"path,omitempty"`
	Route        *string         `json:"route,omitempty"`
	Status       int             `json:"status"`
	IP           *string         `json:"ip,omitempty"`
	UserAgent    *string         `json:"userAgent,omitempty"`
	RequestID    *string         `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Store persists audit entries. Writes to it never move the report revision.
type Store interface {
	InsertAuditEntry(ctx context.Context, e Entry) error
	ListAuditEntries(ctx context.Context, limit, offset int) ([]Entry, int, error)
}

// Service records audit entries when enabled. A SamplingRate strictly
// between 0 and 1 keeps roughly that fraction of entries.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
	Now          func() time.Time
}

// Record persists an entry for an HTTP request that has been handled.
func (s *Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.keep() {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	route := obs.RouteOf(req)
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}
	reqID := middleware.GetReqID(req.Context())
	if reqID == "" {
		reqID = req.Header.Get(middleware.RequestIDHeader)
	}
	e := Entry{
		ActorKind:    normalizeKind(actor.Kind),
		ActorStaffID: actor.StaffID,
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   nonEmpty(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        nonEmpty(route),
		Status:       status,
		IP:           nonEmpty(common.ClientIP(req)),
		UserAgent:    nonEmpty(req.UserAgent()),
		RequestID:    nonEmpty(reqID),
		Metadata:     withQuery(metadata, req.URL.RawQuery),
	}
	return s.insert(ctx, e)
}

// RecordSystem persists an entry for an action taken without a request.
func (s *Service) RecordSystem(ctx context.Context, action, resourceType, resourceID string, metadata []byte) error {
	if !s.keep() {
		return nil
	}
	return s.insert(ctx, Entry{
		ActorKind:    ActorSystem,
		Action:       strings.TrimSpace(action),
		ResourceType: buildResource(resourceType, ""),
		ResourceID:   nonEmpty(resourceID),
		Metadata:     metadata,
	})
}

// List returns a page of entries, newest first, with the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("audit: store not configured")
	}
	entries, total, err := s.Store.ListAuditEntries(ctx, limit, offset)
	if err != nil {
		return nil, 0, common.Internal("list audit entries", err)
	}
	return entries, total, nil
}

func (s *Service) keep() bool {
	if s == nil || !s.Enabled {
		return false
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 {
		return rand.Float64() <= s.SamplingRate
	}
	return true
}

func (s *Service) insert(ctx context.Context, e Entry) error {
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	e.ID = uuid.New()
	e.CreatedAt = now().UTC()
	if err := s.Store.InsertAuditEntry(ctx, e); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("action", e.Action).Msg("audit entry dropped")
		return err
	}
	return nil
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource derives a dotted resource name from the route when none is
// given: /api/v1/orders/{orderId}/payments becomes orders.payments.
func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 2 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	kept := segments[:0]
	for _, seg := range segments {
		if seg != "" && !strings.HasPrefix(seg, "{") {
			kept = append(kept, seg)
		}
	}
	if len(kept) == 0 {
		return "unknown"
	}
	return strings.Join(kept, ".")
}

func normalizeKind(kind ActorKind) ActorKind {
	switch kind {
	case ActorUser, ActorSystem:
		return kind
	default:
		return ActorAnonymous
	}
}

func nonEmpty(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func withQuery(metadata []byte, query string) json.RawMessage {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}
