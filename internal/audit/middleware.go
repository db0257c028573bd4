package audit

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HTTPRecorder writes an audit entry after each wrapped request has been
// handled, whatever its status.
type HTTPRecorder struct {
	Service   *Service
	OnError   func(error)
	ActorFunc func(*http.Request) Actor
}

// Route describes how requests on one route are audited.
type Route struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	MetadataFunc    func(r *http.Request, status int) map[string]any
}

// Middleware returns chi middleware recording entries shaped by rt.
func (h HTTPRecorder) Middleware(rt Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h.Service == nil || !h.Service.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			resourceID := ""
			if rt.ResourceIDParam != "" {
				resourceID = chi.URLParam(r, rt.ResourceIDParam)
			}
			var metadata []byte
			if rt.MetadataFunc != nil {
				if payload := rt.MetadataFunc(r, ww.Status()); payload != nil {
					if data, err := json.Marshal(payload); err == nil {
						metadata = data
					}
				}
			}
			err := h.Service.Record(r.Context(), h.actor(r), rt.Action, rt.ResourceType, resourceID, r, ww.Status(), metadata)
			if err != nil && h.OnError != nil {
				h.OnError(err)
			}
		})
	}
}

func (h HTTPRecorder) actor(r *http.Request) Actor {
	if h.ActorFunc != nil {
		return h.ActorFunc(r)
	}
	return ActorFrom(r.Context())
}
