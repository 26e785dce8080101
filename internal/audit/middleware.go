package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/designer-pricing/internal/obs"
)

// Recorder writes an audit entry after each mutating request on the routes
// it wraps. Reads are not recorded.
type Recorder struct {
	Service  Service
	Logger   zerolog.Logger
	Resource string
	// Param names the chi URL parameter identifying the resource.
	Param string
}

// Middleware records POST, PUT, PATCH and DELETE requests that did not fail
// with a server error.
func (rec Recorder) Middleware(next http.Handler) http.Handler {
	if !rec.Service.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !mutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		rw := obs.NewStatusRecorder(w)
		next.ServeHTTP(rw, r)
		if rw.Status() >= http.StatusInternalServerError {
			return
		}
		id := ""
		if rec.Param != "" {
			id = chi.URLParam(r, rec.Param)
		}
		if err := rec.Service.Record(r.Context(), r, rec.Resource, id, rw.Status()); err != nil {
			rec.Logger.Warn().Err(err).Str("resource", rec.Resource).Msg("audit record failed")
		}
	})
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
